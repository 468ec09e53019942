package repo

import (
	"context"
	"encoding/json"
	"fmt"

	"ledgersync/internal/domain"
	"ledgersync/internal/infra"
	"ledgersync/internal/sqlinline"
)

// ChurchRepositoryPG implements domain.ChurchRepository backed by PostgreSQL.
type ChurchRepositoryPG struct {
	sql infra.SQLExecutor
}

// NewChurchRepository creates a new ChurchRepositoryPG.
func NewChurchRepository(sql infra.SQLExecutor) *ChurchRepositoryPG {
	return &ChurchRepositoryPG{sql: sql}
}

// GetByID fetches a church by UUID.
func (r *ChurchRepositoryPG) GetByID(ctx context.Context, id string) (*domain.Church, error) {
	var c domain.Church
	var raw []byte
	err := r.sql.QueryRow(ctx, sqlinline.QSelectChurch, id).Scan(
		&c.ID, &c.Name, &c.Currency, &raw, &c.SettingsVersion, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get church: %w", err)
	}
	c.Settings = map[string]any{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &c.Settings); err != nil {
			return nil, fmt.Errorf("decode church settings: %w", err)
		}
	}
	return &c, nil
}

var _ domain.ChurchRepository = (*ChurchRepositoryPG)(nil)
