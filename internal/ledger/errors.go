package ledger

import (
	"errors"
	"fmt"
	"strings"

	"ledgersync/internal/infra/credentials"
)

var (
	ErrUnknownProvider = credentials.ErrUnknownProvider
	ErrNotConfigured   = errors.New("ledger provider is not configured")
	ErrMissingCode     = errors.New("authorization code is required")
	ErrMissingAccount  = errors.New("external account id is required")
	ErrNoAccounts      = errors.New("token grants access to no ledger accounts")
	ErrSyncInProgress  = errors.New("a sync is already running for this church")
)

const maxErrorBody = 300

// UpstreamError describes a failed call to a ledger provider: either a non-2xx
// response (Status set) or a transport failure (Err set).
type UpstreamError struct {
	Provider string
	Op       string
	Status   int
	Body     string
	Err      error
}

func (e *UpstreamError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s %s: %v", e.Provider, e.Op, e.Err)
	}
	body := strings.TrimSpace(e.Body)
	if len(body) > maxErrorBody {
		body = body[:maxErrorBody] + "..."
	}
	return fmt.Sprintf("%s %s: status %d: %s", e.Provider, e.Op, e.Status, body)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// IsUpstream reports whether err came from a ledger provider call.
func IsUpstream(err error) bool {
	var ue *UpstreamError
	return errors.As(err, &ue) || errors.Is(err, ErrNoAccounts)
}
