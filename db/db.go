// Package db opens the PostgreSQL handle and creates the schema.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"
	"go.uber.org/zap"

	"github.com/padraicbc/raceops/config"
	"github.com/padraicbc/raceops/models"
)

// Setup opens a PostgreSQL connection using the provided config and pings it.
func Setup(ctx context.Context, cfg *config.Config) (*bun.DB, error) {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.PostgresDSN())))
	db := bun.NewDB(sqldb, pgdialect.New())

	if cfg.Debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	return db, nil
}

// Tables lists every model in dependency order.
func Tables() []interface{} {
	return []interface{}{
		(*models.User)(nil),
		(*models.TeamMember)(nil),
		(*models.Race)(nil),
		(*models.Order)(nil),
		(*models.DeliveryAttempt)(nil),
		(*models.Participant)(nil),
		(*models.Combo)(nil),
		(*models.Coupon)(nil),
		(*models.AbandonedCart)(nil),
		(*models.ContactMessage)(nil),
		(*models.AutomationSetting)(nil),
	}
}

// constraints are applied after the tables exist. Each statement is idempotent.
var constraints = []string{
	`DO $$ BEGIN IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'participants_bib_unique') THEN ALTER TABLE participants ADD CONSTRAINT participants_bib_unique UNIQUE (race_id, modality, bib_number); END IF; END $$`,
	`DO $$ BEGIN IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'delivery_attempts_order_fk') THEN ALTER TABLE delivery_attempts ADD CONSTRAINT delivery_attempts_order_fk FOREIGN KEY (order_id) REFERENCES orders (id) ON DELETE CASCADE; END IF; END $$`,
	`CREATE INDEX IF NOT EXISTS participants_race_status_idx ON participants (race_id, status)`,
	`CREATE INDEX IF NOT EXISTS participants_document_idx ON participants ((user_profile->>'documentNumber'))`,
	`CREATE INDEX IF NOT EXISTS delivery_attempts_order_idx ON delivery_attempts (order_id, "timestamp")`,
}

// CreateTables creates all tables in dependency order and applies the
// constraints. Constraint failures are logged, not returned.
func CreateTables(ctx context.Context, db *bun.DB, log *zap.Logger) error {
	for _, model := range Tables() {
		if _, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("creating table for %T: %w", model, err)
		}
	}

	for _, stmt := range constraints {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			log.Warn("constraint", zap.Error(err))
		}
	}
	return nil
}
