// Command ledgerctl runs ledger integration operations outside the API:
// schema migrations, connection status, one-off syncs and disconnects.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"ledgersync/internal/infra"
	"ledgersync/internal/ledger"
)

func main() {
	_ = godotenv.Load()
	if err := newRootCmd(productionDeps()).Execute(); err != nil {
		os.Exit(1)
	}
}

func productionDeps() deps {
	return deps{
		openService: func(ctx context.Context) (*ledger.Service, func(), error) {
			cfg, err := infra.LoadConfig()
			if err != nil {
				return nil, nil, err
			}
			logger := infra.NewLogger(cfg.AppEnv, "ledgerctl")
			pool, err := infra.NewDBPool(ctx, cfg)
			if err != nil {
				return nil, nil, err
			}
			rdb, err := infra.NewRedisClient(ctx, cfg)
			if err != nil {
				pool.Close()
				return nil, nil, err
			}
			svc := ledger.NewServiceFromConfig(cfg, infra.NewSQLRunner(pool, logger), rdb, logger)
			cleanup := func() {
				if rdb != nil {
					_ = rdb.Close()
				}
				pool.Close()
			}
			return svc, cleanup, nil
		},
		migrate: func(ctx context.Context) (infra.MigrationReport, error) {
			cfg, err := infra.LoadConfig()
			if err != nil {
				return infra.MigrationReport{}, err
			}
			logger := infra.NewLogger(cfg.AppEnv, "ledgerctl")
			db, err := infra.OpenSQL(cfg.DatabaseURL)
			if err != nil {
				return infra.MigrationReport{}, err
			}
			defer db.Close()
			migrations, err := infra.Migrations()
			if err != nil {
				return infra.MigrationReport{}, fmt.Errorf("load migrations: %w", err)
			}
			return infra.Migrate(ctx, db, migrations, logger)
		},
	}
}
