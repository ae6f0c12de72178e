package external

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"tribune/internal/apierr"
	"tribune/internal/models"
)

// CatalogClient talks to the catalog service: event listings and seat maps.
// The seat-delta stream lives on the same service; see StreamURL.
type CatalogClient struct {
	baseURL    string
	httpClient *http.Client
}

type CatalogConfig struct {
	BaseURL string
	Timeout time.Duration
}

func NewCatalogClient(cfg CatalogConfig) *CatalogClient {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}

	return &CatalogClient{
		baseURL: cfg.BaseURL,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

func (cc *CatalogClient) ListEvents() ([]models.EventSummary, error) {
	resp, err := cc.httpClient.Get(cc.baseURL + "/api/events")
	if err != nil {
		return nil, apierr.Network(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apierr.FromResponse(resp)
	}

	var events []models.EventSummary
	if err := json.NewDecoder(resp.Body).Decode(&events); err != nil {
		return nil, fmt.Errorf("failed to decode events response: %w", err)
	}

	return events, nil
}

func (cc *CatalogClient) GetEvent(eventID int64) (*models.EventSummary, error) {
	resp, err := cc.httpClient.Get(fmt.Sprintf("%s/api/events/%d", cc.baseURL, eventID))
	if err != nil {
		return nil, apierr.Network(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apierr.FromResponse(resp)
	}

	var event models.EventSummary
	if err := json.NewDecoder(resp.Body).Decode(&event); err != nil {
		return nil, fmt.Errorf("failed to decode event response: %w", err)
	}

	return &event, nil
}

// GetSeatMap fetches the full seat grid for one event. This is the poll that
// re-synchronizes the client view; callers replace their cached map wholesale.
func (cc *CatalogClient) GetSeatMap(eventID int64) (*models.SeatMap, error) {
	resp, err := cc.httpClient.Get(fmt.Sprintf("%s/api/events/%d/seats", cc.baseURL, eventID))
	if err != nil {
		return nil, apierr.Network(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apierr.FromResponse(resp)
	}

	var seatMap models.SeatMap
	if err := json.NewDecoder(resp.Body).Decode(&seatMap); err != nil {
		return nil, fmt.Errorf("failed to decode seat map response: %w", err)
	}

	return &seatMap, nil
}

// StreamURL returns the event-scoped seat-delta subscription endpoint
func (cc *CatalogClient) StreamURL(eventID int64) string {
	return fmt.Sprintf("%s/api/events/%d/seats/stream", cc.baseURL, eventID)
}
