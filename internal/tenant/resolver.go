package tenant

import (
	"context"
	"fmt"
	"strings"

	"ledgersync/internal/domain"
	"ledgersync/internal/infra"
	"ledgersync/internal/sqlinline"
)

// Resolver maps an authenticated user to the church they administer.
type Resolver struct {
	sql infra.SQLExecutor
}

func NewResolver(sql infra.SQLExecutor) *Resolver {
	return &Resolver{sql: sql}
}

// TenantIDByUserID returns domain.ErrNotFound when the user has no membership.
func (r *Resolver) TenantIDByUserID(ctx context.Context, userID string) (string, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return "", domain.ErrUnauthorized
	}
	var churchID string
	if err := r.sql.QueryRow(ctx, sqlinline.QSelectChurchMembership, userID).Scan(&churchID); err != nil {
		if infra.IsNoRows(err) {
			return "", domain.ErrNotFound
		}
		return "", fmt.Errorf("resolve church for user: %w", err)
	}
	return churchID, nil
}
