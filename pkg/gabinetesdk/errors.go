package gabinetesdk

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Error codes returned by the service.
const (
	ErrorCodeInvalidRequest  = "invalid_request"
	ErrorCodeUnauthenticated = "unauthenticated"
	ErrorCodeUnauthorized    = "unauthorized"
	ErrorCodeNotFound        = "not_found"
	ErrorCodeConflict        = "conflict"
	ErrorCodeRateLimited     = "rate_limited"
	ErrorCodeServerError     = "server_error"
)

// APIError is a non-2xx response from the service.
type APIError struct {
	StatusCode  int    `json:"-"`
	Code        string `json:"error"`
	Description string `json:"error_description"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

func IsNotFound(err error) bool        { return hasCode(err, ErrorCodeNotFound) }
func IsConflict(err error) bool        { return hasCode(err, ErrorCodeConflict) }
func IsRateLimited(err error) bool     { return hasCode(err, ErrorCodeRateLimited) }
func IsUnauthorized(err error) bool    { return hasCode(err, ErrorCodeUnauthorized) }
func IsUnauthenticated(err error) bool { return hasCode(err, ErrorCodeUnauthenticated) }

func hasCode(err error, code string) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == code
}

// parseErrorResponse turns an error response into an *APIError. Bodies that
// are not ErrorResponse JSON fall back to the status text.
func parseErrorResponse(resp *http.Response, body []byte) error {
	var errResp ErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error != "" {
		return &APIError{
			StatusCode:  resp.StatusCode,
			Code:        errResp.Error,
			Description: errResp.ErrorDescription,
		}
	}

	return &APIError{
		StatusCode:  resp.StatusCode,
		Code:        ErrorCodeServerError,
		Description: fmt.Sprintf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode)),
	}
}
