package connectors

import (
	"context"
	"errors"
	"net"
	"net/url"
	"strings"

	"trendscope/internal/models"
)

// Classify maps a connector fetch error onto a source status and a
// human-readable reason. Only RATE_LIMITED and FAILED are possible here;
// DISABLED and PARTIAL are decided by the gateway.
func Classify(err error, displayName string) (models.SourceStatus, string) {
	if err == nil {
		return models.SourceFailed, "unknown error"
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		switch {
		case statusErr.Code == 401:
			return models.SourceFailed, "authentication failed - check API credentials"
		case statusErr.Code == 403:
			return models.SourceFailed, "access denied - insufficient API permissions"
		case statusErr.Code == 429:
			return models.SourceRateLimited, "rate limit exceeded - too many requests"
		case statusErr.Code == 404:
			return models.SourceFailed, "API endpoint not found"
		case statusErr.Code >= 500:
			return models.SourceFailed, displayName + " service temporarily unavailable"
		default:
			return models.SourceFailed, truncate(err.Error(), 160)
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return models.SourceFailed, "request timed out - " + displayName + " not responding"
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return models.SourceFailed, "request timed out - " + displayName + " not responding"
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return models.SourceFailed, "connection failed - unable to reach " + displayName
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return models.SourceFailed, "connection failed - unable to reach " + displayName
	}

	msg := err.Error()
	if strings.Contains(strings.ToLower(msg), "connection") {
		return models.SourceFailed, "connection failed - unable to reach " + displayName
	}
	return models.SourceFailed, truncate(msg, 160)
}
