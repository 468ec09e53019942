package ledger

import (
	"time"

	"github.com/go-resty/resty/v2"
)

const defaultHTTPTimeout = 20 * time.Second

// NewHTTPClient builds the resty client shared by provider calls. Provider
// calls are never retried: a replayed token exchange burns the code and a
// replayed donation post duplicates the ledger entry.
func NewHTTPClient(timeout time.Duration) *resty.Client {
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}
	return resty.New().
		SetTimeout(timeout).
		SetRetryCount(0).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", "ledgersync/1.0")
}
