package external

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"tribune/internal/apierr"
	"tribune/internal/models"
)

// OrderClient talks to the order service. Order creation is idempotent:
// repeated submissions carrying the same Idempotency-Key and body collapse
// to one order server-side.
type OrderClient struct {
	baseURL    string
	httpClient *http.Client
}

type OrderConfig struct {
	BaseURL string
	Timeout time.Duration
}

func NewOrderClient(cfg OrderConfig) *OrderClient {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}

	return &OrderClient{
		baseURL: cfg.BaseURL,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

func (oc *OrderClient) CreateOrder(req *models.CreateOrderRequest, idempotencyKey string) (*models.Order, error) {
	jsonBody, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequest(http.MethodPost, oc.baseURL+"/api/orders", bytes.NewBuffer(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Idempotency-Key", idempotencyKey)

	resp, err := oc.httpClient.Do(httpReq)
	if err != nil {
		return nil, apierr.Network(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, apierr.FromResponse(resp)
	}

	var order models.Order
	if err := json.NewDecoder(resp.Body).Decode(&order); err != nil {
		return nil, fmt.Errorf("failed to decode order response: %w", err)
	}

	return &order, nil
}

func (oc *OrderClient) GetOrder(orderID int64) (*models.Order, error) {
	resp, err := oc.httpClient.Get(fmt.Sprintf("%s/api/orders/%d", oc.baseURL, orderID))
	if err != nil {
		return nil, apierr.Network(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apierr.FromResponse(resp)
	}

	var order models.Order
	if err := json.NewDecoder(resp.Body).Decode(&order); err != nil {
		return nil, fmt.Errorf("failed to decode order response: %w", err)
	}

	return &order, nil
}
