package ledger

import (
	"context"
	"sort"

	"ledgersync/internal/domain"
)

// Provider is one external accounting system.
type Provider interface {
	Name() string
	// Configured reports whether the process has an OAuth app registered.
	Configured() bool
	// RequiresAccount reports whether Connect needs the caller to name the
	// external account because the token endpoint does not reveal it.
	RequiresAccount() bool
	AuthorizeURL(state string) (string, error)
	Exchange(ctx context.Context, code string) (Token, error)
	Refresh(ctx context.Context, refreshToken string) (Token, error)
	// ResolveAccount determines the external account id for a fresh token.
	// hint is the account id supplied by the caller, if any.
	ResolveAccount(ctx context.Context, accessToken, hint string) (string, error)
	// PostDonation records one donation and returns the provider's id for it.
	PostDonation(ctx context.Context, cred domain.ProviderCredential, d domain.Donation, currency string) (string, error)
}

// Registry maps provider names to implementations.
type Registry map[string]Provider

func NewRegistry(providers ...Provider) Registry {
	r := make(Registry, len(providers))
	for _, p := range providers {
		r[p.Name()] = p
	}
	return r
}

func (r Registry) Get(name string) (Provider, error) {
	p, ok := r[name]
	if !ok {
		return nil, ErrUnknownProvider
	}
	return p, nil
}

// Names lists registered providers in stable order.
func (r Registry) Names() []string {
	out := make([]string, 0, len(r))
	for name := range r {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
