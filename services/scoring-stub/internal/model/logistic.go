package model

import (
	"math"

	"github.com/nimeshabuddhika/fraud-scoring-relay/pkg/views"
)

// Logistic is a fixed-weight logistic regression over V1..V28 and Amount.
// Weights favour the pattern txgen uses for fraud-like records: strongly negative V1-V3 and V7-V10,
// strongly positive V4-V6, and large amounts.
type Logistic struct {
	weights      [views.FeatureCount]float64
	amountWeight float64
	bias         float64
}

func NewLogistic() *Logistic {
	m := &Logistic{amountWeight: 0.002, bias: -4}
	for i := 0; i < 3; i++ {
		m.weights[i] = -0.6
	}
	for i := 3; i < 6; i++ {
		m.weights[i] = 0.6
	}
	for i := 6; i < 10; i++ {
		m.weights[i] = -0.4
	}
	return m
}

// Predict returns the fraud probability of tx, always in [0,1].
func (m *Logistic) Predict(tx views.Transaction) float64 {
	z := m.bias + m.amountWeight*tx.Amount
	f := tx.Features()
	for i, w := range m.weights {
		z += w * f[i]
	}
	return 1 / (1 + math.Exp(-z))
}

// PredictBatch scores txs in order.
func (m *Logistic) PredictBatch(txs []views.Transaction) []float64 {
	out := make([]float64, len(txs))
	for i, tx := range txs {
		out[i] = m.Predict(tx)
	}
	return out
}
