package views

import "github.com/nimeshabuddhika/fraud-scoring-relay/pkg"

// ScoringResult is the outcome of scoring one transaction.
type ScoringResult struct {
	TransactionID    string  `json:"transaction_id"`
	FraudProbability float64 `json:"fraud_probability"`
	FraudDetected    bool    `json:"fraud_detected"`
	Error            string  `json:"error,omitempty"`
}

// NewScoringResult thresholds probability with a strict greater-than.
func NewScoringResult(transactionID string, probability, threshold float64) ScoringResult {
	return ScoringResult{
		TransactionID:    transactionID,
		FraudProbability: probability,
		FraudDetected:    probability > threshold,
	}
}

// NewSentinelResult marks a transaction as unscored.
func NewSentinelResult(transactionID string, reason string) ScoringResult {
	return ScoringResult{
		TransactionID:    transactionID,
		FraudProbability: pkg.SentinelProbability,
		FraudDetected:    false,
		Error:            reason,
	}
}

// IsSentinel reports whether the result carries the unscored marker.
func (r ScoringResult) IsSentinel() bool {
	return r.FraudProbability == pkg.SentinelProbability
}

// Alert is a transaction enriched with its scoring outcome, published to the output topic.
// Transaction fields are flattened into the top-level JSON object.
type Alert struct {
	Transaction
	FraudProbability float64 `json:"fraud_probability"`
	FraudDetected    bool    `json:"fraud_detected"`
	Error            string  `json:"error,omitempty"`
}

func NewAlert(tx Transaction, result ScoringResult) Alert {
	return Alert{
		Transaction:      tx,
		FraudProbability: result.FraudProbability,
		FraudDetected:    result.FraudDetected,
		Error:            result.Error,
	}
}
