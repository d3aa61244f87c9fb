package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/onicare/admin-backend/internal/store/migrations"
)

// Manager owns the two database handles of the backend: the admin database
// (credentials, login logs, admin-side CRUD tables) and the app database
// consumed by the member-facing routers. When no separate app DSN is
// configured both handles point at the same database.
type Manager struct {
	adminDB *sql.DB
	appDB   *sql.DB
	users   *PostgresAdminUsers
}

// NewManager opens both databases. It does not ping; call Ping or rely on
// the health endpoint for liveness.
func NewManager(adminDSN, appDSN string) (*Manager, error) {
	adminDB, err := sql.Open("pgx", adminDSN)
	if err != nil {
		return nil, fmt.Errorf("open admin db: %w", err)
	}

	appDB := adminDB
	if appDSN != "" && appDSN != adminDSN {
		appDB, err = sql.Open("pgx", appDSN)
		if err != nil {
			adminDB.Close()
			return nil, fmt.Errorf("open app db: %w", err)
		}
	}

	return &Manager{
		adminDB: adminDB,
		appDB:   appDB,
		users:   NewPostgresAdminUsers(adminDB),
	}, nil
}

// AdminUsers returns the credential-store repository.
func (m *Manager) AdminUsers() *PostgresAdminUsers { return m.users }

// AdminDB returns the admin database handle.
func (m *Manager) AdminDB() *sql.DB { return m.adminDB }

// AppDB returns the app database handle consumed by the CRUD routers.
func (m *Manager) AppDB() *sql.DB { return m.appDB }

// RunMigrations applies the embedded admin-schema migrations.
func (m *Manager) RunMigrations(ctx context.Context) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	if err := goose.UpContext(ctx, m.adminDB, "."); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// Ping checks both database handles.
func (m *Manager) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	if err := m.adminDB.PingContext(ctx); err != nil {
		return fmt.Errorf("admin db: %w", err)
	}
	if m.appDB != m.adminDB {
		if err := m.appDB.PingContext(ctx); err != nil {
			return fmt.Errorf("app db: %w", err)
		}
	}
	return nil
}

// Close releases both database handles.
func (m *Manager) Close() error {
	err := m.adminDB.Close()
	if m.appDB != m.adminDB {
		if appErr := m.appDB.Close(); err == nil {
			err = appErr
		}
	}
	return err
}
