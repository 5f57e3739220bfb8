package youtube

import (
	"context"
	"errors"
	"net/http"

	"google.golang.org/api/googleapi"

	"github.com/custodia-labs/socialrelay/internal/core/domain"
)

// quotaReasons are 403 reasons that mean "try later" rather than "not allowed".
var quotaReasons = map[string]bool{
	"quotaExceeded":         true,
	"rateLimitExceeded":     true,
	"userRateLimitExceeded": true,
	"dailyLimitExceeded":    true,
}

// classify maps a YouTube Data API failure onto a domain error.
func classify(ctx context.Context, step string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	var pe *domain.PlatformError
	if errors.As(err, &pe) {
		return err
	}
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return domain.NewPlatformError(domain.KindProviderUnavailable, domain.PlatformYouTube, step, "", err)
	}

	msg := gerr.Message
	if msg == "" && len(gerr.Errors) > 0 {
		msg = gerr.Errors[0].Message
	}
	kind := domain.KindProviderRejected
	switch {
	case gerr.Code == http.StatusTooManyRequests || gerr.Code >= 500:
		kind = domain.KindProviderUnavailable
	case gerr.Code == http.StatusForbidden && isQuota(gerr):
		kind = domain.KindProviderUnavailable
	case gerr.Code == http.StatusUnauthorized || gerr.Code == http.StatusForbidden:
		kind = domain.KindAuthDenied
	}
	return domain.NewPlatformError(kind, domain.PlatformYouTube, step, msg, err)
}

func isQuota(gerr *googleapi.Error) bool {
	for _, item := range gerr.Errors {
		if quotaReasons[item.Reason] {
			return true
		}
	}
	return false
}
