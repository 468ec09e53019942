package domain

import "time"

// Church is the tenant record. Settings is the shared key-value document that
// integration credentials live in alongside unrelated configuration.
type Church struct {
	ID              string
	Name            string
	Currency        string
	Settings        map[string]any
	SettingsVersion int64
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
