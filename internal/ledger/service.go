package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"ledgersync/internal/domain"
	"ledgersync/internal/infra"
)

// Action names the operation requested through the integration endpoint.
type Action string

const (
	ActionConnect Action = "connect"
	ActionSync    Action = "sync"
)

var ErrUnknownAction = errors.New("unknown integration action")

// ParseAction validates an action string.
func ParseAction(raw string) (Action, error) {
	switch a := Action(strings.ToLower(strings.TrimSpace(raw))); a {
	case ActionConnect, ActionSync:
		return a, nil
	}
	return "", ErrUnknownAction
}

// Status is what a church sees about one provider. Tokens never leave the
// service.
type Status struct {
	Connected         bool   `json:"connected"`
	ExternalAccountID string `json:"externalAccountId,omitempty"`
}

// Service implements the integration lifecycle for all registered providers.
type Service struct {
	providers   Registry
	credentials CredentialStore
	syncer      *Syncer
	logger      infra.Logger
}

func NewService(providers Registry, credentials CredentialStore, syncer *Syncer, logger infra.Logger) *Service {
	return &Service{
		providers:   providers,
		credentials: credentials,
		syncer:      syncer,
		logger:      logger,
	}
}

// Providers lists the registered provider names.
func (s *Service) Providers() []string {
	return s.providers.Names()
}

func (s *Service) Status(ctx context.Context, churchID, provider string) (Status, error) {
	if _, err := s.providers.Get(provider); err != nil {
		return Status{}, err
	}
	cred, err := s.credentials.Load(ctx, churchID, provider)
	if errors.Is(err, domain.ErrNotConnected) {
		return Status{}, nil
	}
	if err != nil {
		return Status{}, err
	}
	return Status{Connected: true, ExternalAccountID: cred.ExternalAccountID}, nil
}

// AuthorizeURL returns the provider consent URL and the state value embedded
// in it.
func (s *Service) AuthorizeURL(provider string) (string, string, error) {
	p, err := s.providers.Get(provider)
	if err != nil {
		return "", "", err
	}
	if !p.Configured() {
		return "", "", ErrNotConfigured
	}
	state := uuid.NewString()
	u, err := p.AuthorizeURL(state)
	if err != nil {
		return "", "", err
	}
	return u, state, nil
}

// Connect exchanges an authorization code, resolves the external account and
// stores the credential. Nothing is stored unless every step succeeds.
func (s *Service) Connect(ctx context.Context, churchID, provider, code, accountHint string) (Status, error) {
	p, err := s.providers.Get(provider)
	if err != nil {
		return Status{}, err
	}
	if !p.Configured() {
		return Status{}, ErrNotConfigured
	}
	if strings.TrimSpace(code) == "" {
		return Status{}, ErrMissingCode
	}
	if p.RequiresAccount() && strings.TrimSpace(accountHint) == "" {
		return Status{}, ErrMissingAccount
	}

	tok, err := p.Exchange(ctx, code)
	if err != nil {
		return Status{}, err
	}
	account, err := p.ResolveAccount(ctx, tok.AccessToken, accountHint)
	if err != nil {
		return Status{}, err
	}
	cred := domain.ProviderCredential{
		Provider:          provider,
		ExternalAccountID: account,
		AccessToken:       tok.AccessToken,
		RefreshToken:      tok.RefreshToken,
		ExpiresAt:         tok.ExpiresAt,
	}
	if err := s.credentials.Save(ctx, churchID, cred); err != nil {
		return Status{}, fmt.Errorf("store %s credential: %w", provider, err)
	}
	s.logger.Info().
		Str("church_id", churchID).
		Str("provider", provider).
		Str("external_account_id", account).
		Msg("ledger connected")
	return Status{Connected: true, ExternalAccountID: account}, nil
}

func (s *Service) Sync(ctx context.Context, churchID, provider string) (Result, error) {
	p, err := s.providers.Get(provider)
	if err != nil {
		return Result{}, err
	}
	return s.syncer.Sync(ctx, churchID, p)
}

// Disconnect forgets the provider credential. It does not revoke the token at
// the provider and is a no-op when nothing is stored.
func (s *Service) Disconnect(ctx context.Context, churchID, provider string) error {
	if _, err := s.providers.Get(provider); err != nil {
		return err
	}
	if err := s.credentials.Remove(ctx, churchID, provider); err != nil {
		return err
	}
	s.logger.Info().Str("church_id", churchID).Str("provider", provider).Msg("ledger disconnected")
	return nil
}
