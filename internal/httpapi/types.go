// Package httpapi serves the backtest demo over HTTP as JSON.
package httpapi

import "vantage/internal/domain"

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

// ErrorResponse is the body of every non-2xx JSON response.
type ErrorResponse struct {
	Detail string `json:"detail"`
}

// BacktestResponse is returned by GET /backtest/demo.
type BacktestResponse = domain.BacktestResult
