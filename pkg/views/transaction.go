package views

import (
	"encoding/json"
)

// FeatureCount is the number of anonymized PCA features (V1..V28) on a transaction.
const FeatureCount = 28

// Transaction is a card transaction as produced on the input topic.
// Timestamp is either an ISO-8601 string or epoch milliseconds and is carried through verbatim.
type Transaction struct {
	V1            float64         `json:"V1"`
	V2            float64         `json:"V2"`
	V3            float64         `json:"V3"`
	V4            float64         `json:"V4"`
	V5            float64         `json:"V5"`
	V6            float64         `json:"V6"`
	V7            float64         `json:"V7"`
	V8            float64         `json:"V8"`
	V9            float64         `json:"V9"`
	V10           float64         `json:"V10"`
	V11           float64         `json:"V11"`
	V12           float64         `json:"V12"`
	V13           float64         `json:"V13"`
	V14           float64         `json:"V14"`
	V15           float64         `json:"V15"`
	V16           float64         `json:"V16"`
	V17           float64         `json:"V17"`
	V18           float64         `json:"V18"`
	V19           float64         `json:"V19"`
	V20           float64         `json:"V20"`
	V21           float64         `json:"V21"`
	V22           float64         `json:"V22"`
	V23           float64         `json:"V23"`
	V24           float64         `json:"V24"`
	V25           float64         `json:"V25"`
	V26           float64         `json:"V26"`
	V27           float64         `json:"V27"`
	V28           float64         `json:"V28"`
	Amount        float64         `json:"Amount"`
	TransactionID string          `json:"transaction_id" validate:"required"`
	Timestamp     json.RawMessage `json:"timestamp,omitempty"`
}

// Features returns V1..V28 in order.
func (t Transaction) Features() [FeatureCount]float64 {
	return [FeatureCount]float64{
		t.V1, t.V2, t.V3, t.V4, t.V5, t.V6, t.V7, t.V8, t.V9, t.V10,
		t.V11, t.V12, t.V13, t.V14, t.V15, t.V16, t.V17, t.V18, t.V19, t.V20,
		t.V21, t.V22, t.V23, t.V24, t.V25, t.V26, t.V27, t.V28,
	}
}

// SetFeatures assigns V1..V28 from f.
func (t *Transaction) SetFeatures(f [FeatureCount]float64) {
	t.V1, t.V2, t.V3, t.V4, t.V5, t.V6, t.V7 = f[0], f[1], f[2], f[3], f[4], f[5], f[6]
	t.V8, t.V9, t.V10, t.V11, t.V12, t.V13, t.V14 = f[7], f[8], f[9], f[10], f[11], f[12], f[13]
	t.V15, t.V16, t.V17, t.V18, t.V19, t.V20, t.V21 = f[14], f[15], f[16], f[17], f[18], f[19], f[20]
	t.V22, t.V23, t.V24, t.V25, t.V26, t.V27, t.V28 = f[21], f[22], f[23], f[24], f[25], f[26], f[27]
}
