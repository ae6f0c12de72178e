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

// ReservationClient talks to the reservation service: create, extend,
// release and confirm holds. The server enforces at most one active hold
// per seat; 409/410/422 are expected outcomes, mapped by apierr.
type ReservationClient struct {
	baseURL    string
	httpClient *http.Client
}

type ReservationConfig struct {
	BaseURL string
	Timeout time.Duration
}

func NewReservationClient(cfg ReservationConfig) *ReservationClient {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}

	return &ReservationClient{
		baseURL: cfg.BaseURL,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

func (rc *ReservationClient) CreateHold(req *models.CreateReservationRequest) (*models.CreateReservationResponse, error) {
	jsonBody, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	resp, err := rc.httpClient.Post(rc.baseURL+"/api/reservations", "application/json", bytes.NewBuffer(jsonBody))
	if err != nil {
		return nil, apierr.Network(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return nil, apierr.FromResponse(resp)
	}

	var result models.CreateReservationResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode reservation response: %w", err)
	}

	return &result, nil
}

func (rc *ReservationClient) ExtendHold(eventID, seatID int64, seconds int) (*models.ExtendReservationResponse, error) {
	jsonBody, err := json.Marshal(models.ExtendReservationRequest{Seconds: seconds})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/api/reservations/%d/%d/extend", rc.baseURL, eventID, seatID)
	resp, err := rc.httpClient.Post(url, "application/json", bytes.NewBuffer(jsonBody))
	if err != nil {
		return nil, apierr.Network(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apierr.FromResponse(resp)
	}

	var result models.ExtendReservationResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode extend response: %w", err)
	}

	return &result, nil
}

func (rc *ReservationClient) ReleaseHold(eventID, seatID int64) error {
	url := fmt.Sprintf("%s/api/reservations/%d/%d", rc.baseURL, eventID, seatID)
	req, err := http.NewRequest(http.MethodDelete, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := rc.httpClient.Do(req)
	if err != nil {
		return apierr.Network(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		return apierr.FromResponse(resp)
	}

	return nil
}

func (rc *ReservationClient) ConfirmHold(eventID, seatID int64) (*models.ConfirmReservationResponse, error) {
	url := fmt.Sprintf("%s/api/reservations/%d/%d/confirm", rc.baseURL, eventID, seatID)
	resp, err := rc.httpClient.Post(url, "application/json", nil)
	if err != nil {
		return nil, apierr.Network(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apierr.FromResponse(resp)
	}

	var result models.ConfirmReservationResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode confirm response: %w", err)
	}

	return &result, nil
}
