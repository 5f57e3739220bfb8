package apiclient

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/custodia-labs/socialrelay/internal/core/domain"
)

// APIError is a non-2xx response from a platform API.
type APIError struct {
	StatusCode int
	// Code is the provider's error code (OAuth error, Graph code, ...).
	Code string
	// Type is the provider's error type where it has one (e.g. OAuthException).
	Type    string
	Message string
	URL     string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error %d: %s (URL: %s)", e.StatusCode, e.Message, e.URL)
}

// IsUnauthorized checks if the error is a 401 response.
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnauthorized
}

// providerBody covers the error envelopes used by the supported platforms.
type providerBody struct {
	Error            json.RawMessage `json:"error"`
	ErrorDescription string          `json:"error_description"`
	Message          string          `json:"message"`
	Detail           string          `json:"detail"`
	Title            string          `json:"title"`
	Errors           []struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
	} `json:"errors"`
}

type graphError struct {
	Message      string `json:"message"`
	Type         string `json:"type"`
	Code         int    `json:"code"`
	ErrorUserMsg string `json:"error_user_msg"`
}

var authErrorCodes = map[string]bool{
	"invalid_grant":       true,
	"invalid_client":      true,
	"invalid_token":       true,
	"access_denied":       true,
	"unauthorized_client": true,
	"unauthorized":        true,
	"invalid_scope":       true,
}

// graphThrottleCodes are Graph API error codes that mean "slow down".
var graphThrottleCodes = map[int]bool{4: true, 17: true, 32: true, 613: true}

// parseAPIError extracts the provider's message and code from an error body.
func parseAPIError(status int, body []byte, rawURL string) *APIError {
	apiErr := &APIError{StatusCode: status, URL: rawURL}

	var pb providerBody
	if err := json.Unmarshal(body, &pb); err == nil {
		var ge graphError
		var oauthCode string
		switch {
		case len(pb.Error) > 0 && pb.Error[0] == '{' && json.Unmarshal(pb.Error, &ge) == nil:
			apiErr.Message = ge.Message
			if ge.ErrorUserMsg != "" {
				apiErr.Message = ge.ErrorUserMsg
			}
			apiErr.Type = ge.Type
			apiErr.Code = strconv.Itoa(ge.Code)
		case len(pb.Error) > 0 && json.Unmarshal(pb.Error, &oauthCode) == nil:
			apiErr.Code = oauthCode
			apiErr.Message = firstNonEmpty(pb.ErrorDescription, pb.Message, oauthCode)
		case pb.Detail != "":
			apiErr.Message = pb.Detail
			apiErr.Code = pb.Title
		case len(pb.Errors) > 0:
			apiErr.Message = pb.Errors[0].Message
			apiErr.Code = strconv.Itoa(pb.Errors[0].Code)
		case pb.Message != "":
			apiErr.Message = pb.Message
		}
	}
	if apiErr.Message == "" {
		text := strings.TrimSpace(string(body))
		if len(text) > 300 {
			text = text[:300]
		}
		if text == "" {
			text = http.StatusText(status)
		}
		apiErr.Message = text
	}
	return apiErr
}

// classify maps an API error to an ErrorKind.
func classify(apiErr *APIError) domain.ErrorKind {
	switch {
	case apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode >= 500:
		return domain.KindProviderUnavailable
	case apiErr.Type == "OAuthException" && isThrottle(apiErr.Code):
		return domain.KindProviderUnavailable
	case apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden:
		return domain.KindAuthDenied
	case authErrorCodes[apiErr.Code] || (apiErr.Type == "OAuthException" && isGraphAuth(apiErr.Code)):
		return domain.KindAuthDenied
	default:
		return domain.KindProviderRejected
	}
}

// isGraphAuth reports Graph codes for expired sessions and missing permissions.
func isGraphAuth(code string) bool {
	n, err := strconv.Atoi(code)
	if err != nil {
		return false
	}
	return n == 10 || n == 102 || n == 190 || (n >= 200 && n < 300)
}

func isThrottle(code string) bool {
	n, err := strconv.Atoi(code)
	return err == nil && graphThrottleCodes[n]
}

// retryAfter parses a Retry-After header in seconds.
func retryAfter(h http.Header) time.Duration {
	secs, err := strconv.Atoi(h.Get("Retry-After"))
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
