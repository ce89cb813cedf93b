package dtos

import "github.com/nimeshabuddhika/fraud-scoring-relay/pkg/views"

// PredictRequest is the body of POST /predict.
type PredictRequest struct {
	Transactions []views.Transaction `json:"transactions" binding:"required,min=1"`
}

// PredictResponse carries one fraud probability per requested transaction, same order.
type PredictResponse struct {
	Predictions []float64 `json:"predictions"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status         string `json:"status"`
	Service        string `json:"service"`
	ModelLoaded    bool   `json:"model_loaded"`
	UsingMockModel bool   `json:"using_mock_model"`
}
