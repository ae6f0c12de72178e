package apierr

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// Sentinel errors for the expected reservation outcomes. Callers match with
// errors.Is; the sentinels are wrapped by *APIError carrying wire details.
var (
	ErrConflict    = errors.New("seat is already held by another session")
	ErrExpired     = errors.New("hold is expired or gone")
	ErrAlreadySold = errors.New("seat is already sold")
	ErrServer      = errors.New("server error")
	ErrNetwork     = errors.New("network failure")
)

// Error codes used by the reservation service in error bodies
const (
	CodeConflict         = "RESERVATION_CONFLICT"
	CodeExpired          = "RESERVATION_EXPIRED"
	CodeValidationFailed = "VALIDATION_FAILED"
)

// APIError is a failed call to one of the backend boundaries
type APIError struct {
	Status  int
	Code    string
	Message string
	kind    error
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("HTTP %d (%s): %s", e.Status, e.Code, e.Message)
	}
	if e.Status > 0 {
		return fmt.Sprintf("HTTP %d: %s", e.Status, e.Message)
	}
	return e.Message
}

func (e *APIError) Unwrap() error {
	return e.kind
}

// errorBody is the JSON error envelope the reservation service returns
type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// FromResponse maps a non-success HTTP response onto the error taxonomy.
// The body is consumed; callers still own closing it.
func FromResponse(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode}

	var body errorBody
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err := json.Unmarshal(raw, &body); err == nil {
		apiErr.Code = body.Code
		apiErr.Message = body.Message
	} else {
		apiErr.Message = string(raw)
	}

	switch {
	case resp.StatusCode == http.StatusConflict || apiErr.Code == CodeConflict:
		apiErr.kind = ErrConflict
	case resp.StatusCode == http.StatusGone || apiErr.Code == CodeExpired:
		apiErr.kind = ErrExpired
	case resp.StatusCode == http.StatusUnprocessableEntity || apiErr.Code == CodeValidationFailed:
		apiErr.kind = ErrAlreadySold
	case resp.StatusCode >= 500:
		apiErr.kind = ErrServer
	}

	return apiErr
}

// Network wraps a transport-level failure
func Network(err error) error {
	return &APIError{Message: err.Error(), kind: ErrNetwork}
}

// UserMessage maps an error onto the message shown to the user.
// Conflict/Expired/AlreadySold are expected outcomes and are never retried
// automatically; the user has to re-pick a seat.
func UserMessage(err error) string {
	switch {
	case errors.Is(err, ErrConflict):
		return "Someone else just took that seat. Please pick another one."
	case errors.Is(err, ErrExpired):
		return "Your hold expired. Please select the seat again."
	case errors.Is(err, ErrAlreadySold):
		return "That seat has already been sold."
	default:
		return "Something went wrong while processing the reservation. Please try again shortly."
	}
}
