package bootstrap

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/jonesrussell/north-cloud/pagemonitor/internal/config"
	"github.com/jonesrussell/north-cloud/pagemonitor/internal/database"
	"github.com/jonesrussell/north-cloud/pagemonitor/internal/logger"
)

// DatabaseComponents holds the connection and all repositories.
type DatabaseComponents struct {
	DB        *sqlx.DB
	Pages     *database.PageRepository
	Changes   *database.ChangeRepository
	Schedules *database.ScheduleRepository
	Documents *database.DocumentRepository
}

// Close closes the connection pool.
func (d *DatabaseComponents) Close() error {
	return d.DB.Close()
}

// ConnectDatabase opens the PostgreSQL pool without touching the schema.
func ConnectDatabase(ctx context.Context, cfg *config.Config) (*sqlx.DB, error) {
	db, err := database.NewPostgresConnection(ctx, databaseConfig(cfg.Database))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// SetupDatabase connects to PostgreSQL, applies migrations and creates the
// repositories.
func SetupDatabase(ctx context.Context, cfg *config.Config, log logger.Logger) (*DatabaseComponents, error) {
	db, err := ConnectDatabase(ctx, cfg)
	if err != nil {
		return nil, err
	}

	if migrateErr := database.Migrate(ctx, db, log); migrateErr != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", migrateErr)
	}

	log.Info("Database ready",
		logger.String("host", cfg.Database.Host),
		logger.String("database", cfg.Database.Database),
	)

	return &DatabaseComponents{
		DB:        db,
		Pages:     database.NewPageRepository(db),
		Changes:   database.NewChangeRepository(db),
		Schedules: database.NewScheduleRepository(db),
		Documents: database.NewDocumentRepository(db),
	}, nil
}

func databaseConfig(cfg config.DatabaseConfig) database.Config {
	return database.Config{
		Host:            cfg.Host,
		Port:            cfg.Port,
		User:            cfg.User,
		Password:        cfg.Password,
		DBName:          cfg.Database,
		SSLMode:         cfg.SSLMode,
		MaxOpenConns:    cfg.MaxConnections,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnectionMaxLifetime,
	}
}
