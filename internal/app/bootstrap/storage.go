package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/hospitalms/patient-portal/internal/audit"
	appconfig "github.com/hospitalms/patient-portal/internal/config"
	"github.com/hospitalms/patient-portal/pkg/logging"
)

// OpenDatabase opens and pings the audit database. It returns nil, nil when
// DATABASE_URL is not set.
func OpenDatabase(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (*sql.DB, error) {
	if cfg == nil || strings.TrimSpace(cfg.DatabaseURL) == "" {
		return nil, nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: open database: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bootstrap: ping database: %w", err)
	}
	logger.Info("audit database connected")
	return db, nil
}

// BuildAuditService returns nil without a database.
func BuildAuditService(db *sql.DB) *audit.Service {
	if db == nil {
		return nil
	}
	return audit.NewService(db)
}
