package fraudadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"meridian/contexts/insurance-core/policy-service/ports"
)

type analyzeRequest struct {
	OrderID    string `json:"order_id"`
	CustomerID string `json:"customer_id"`
}

type analyzeResponse struct {
	OrderID        string    `json:"orderId"`
	CustomerID     string    `json:"customerId"`
	AnalyzedAt     time.Time `json:"analyzedAt"`
	Classification string    `json:"classification"`
}

// HTTPGateway calls the external fraud classifier synchronously. Failures
// propagate to the intake use case; no retry happens here.
type HTTPGateway struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

func NewHTTPGateway(baseURL string, client *http.Client, logger *slog.Logger) *HTTPGateway {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPGateway{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
		logger:  logger,
	}
}

func (g *HTTPGateway) Analyze(ctx context.Context, orderID string, customerID string) (ports.FraudAnalysis, error) {
	body, err := json.Marshal(analyzeRequest{OrderID: orderID, CustomerID: customerID})
	if err != nil {
		return ports.FraudAnalysis{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/fraud-analysis", bytes.NewReader(body))
	if err != nil {
		return ports.FraudAnalysis{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		g.logger.Error("fraud classifier call failed",
			"event", "policy_fraud_call_failed",
			"module", "insurance-core/policy-service",
			"layer", "adapter",
			"order_id", orderID,
			"error", err.Error(),
		)
		return ports.FraudAnalysis{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("fraud classifier returned status %d", resp.StatusCode)
		g.logger.Error("fraud classifier unexpected status",
			"event", "policy_fraud_bad_status",
			"module", "insurance-core/policy-service",
			"layer", "adapter",
			"order_id", orderID,
			"status_code", resp.StatusCode,
		)
		return ports.FraudAnalysis{}, err
	}

	var decoded analyzeResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return ports.FraudAnalysis{}, err
	}
	return ports.FraudAnalysis{
		OrderID:        decoded.OrderID,
		CustomerID:     decoded.CustomerID,
		AnalyzedAt:     decoded.AnalyzedAt,
		Classification: decoded.Classification,
	}, nil
}
