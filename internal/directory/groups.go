package directory

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// GroupScript adds approved applicants to the foster mailing group.
// The script answers opaquely, so only the HTTP status is checked.
type GroupScript struct {
	http     *httpClient
	endpoint string
}

// NewGroupScript returns nil when endpoint is blank.
func NewGroupScript(endpoint string, timeout time.Duration, logger *zap.Logger) *GroupScript {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return nil
	}
	return &GroupScript{http: newHTTPClient(timeout, logger), endpoint: endpoint}
}

// AddMember posts {email} to the group script.
func (g *GroupScript) AddMember(ctx context.Context, email string) error {
	_, err := g.http.do(ctx, http.MethodPost, g.endpoint, map[string]string{"email": email})
	return err
}

// IsClientError reports whether err is a 4xx answer that retrying will not fix.
func IsClientError(err error) bool {
	var httpErr *HTTPError
	if !errors.As(err, &httpErr) {
		return false
	}
	return httpErr.StatusCode >= 400 && httpErr.StatusCode < 500 && httpErr.StatusCode != http.StatusTooManyRequests
}
