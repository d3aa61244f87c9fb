// Package store provides the relational collaborators of the auth core:
// the admin-user credential store and the best-effort login log. The CRUD
// routers of the admin panel consume the same database handles but are
// outside this package.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Account status values for admin_users.status.
const (
	StatusInactive int16 = 0
	StatusActive   int16 = 1
)

// AdminUser is a principal record from the admin database.
type AdminUser struct {
	ID           int64
	Email        string
	PasswordHash string
	Name         string
	Role         string
	Status       int16
}

// Active reports whether the account may authenticate.
func (u *AdminUser) Active() bool { return u != nil && u.Status == StatusActive }

// LoginLog is one login audit row. Writes are best-effort.
type LoginLog struct {
	AdminID   int64
	Email     string
	IPAddress string
	UserAgent string
}

// AdminUsers is the credential-store contract consumed by the auth service.
// Implementations return (nil, nil) for missing principals; errors are
// reserved for transport/database failures.
type AdminUsers interface {
	GetByEmail(ctx context.Context, email string) (*AdminUser, error)
	GetActiveByID(ctx context.Context, id int64) (*AdminUser, error)
	TouchLastLogin(ctx context.Context, id int64) error
	InsertLoginLog(ctx context.Context, entry LoginLog) error
}

// PostgresAdminUsers implements AdminUsers over the admin database.
type PostgresAdminUsers struct {
	db *sql.DB
}

// NewPostgresAdminUsers returns an admin-user repository using db for
// persistence.
func NewPostgresAdminUsers(db *sql.DB) *PostgresAdminUsers {
	return &PostgresAdminUsers{db: db}
}

// GetByEmail returns the admin user with the given email, or nil if absent.
func (r *PostgresAdminUsers) GetByEmail(ctx context.Context, email string) (*AdminUser, error) {
	query := `
		SELECT id, email, password_hash, name, role, status
		FROM admin_users
		WHERE email = $1`

	u := &AdminUser{}
	err := r.db.QueryRowContext(ctx, query, email).
		Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Name, &u.Role, &u.Status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("query admin user by email: %w", err)
	}
	return u, nil
}

// GetActiveByID returns the active admin user with the given id, or nil if
// the principal is missing or no longer active.
func (r *PostgresAdminUsers) GetActiveByID(ctx context.Context, id int64) (*AdminUser, error) {
	query := `
		SELECT id, email, password_hash, name, role, status
		FROM admin_users
		WHERE id = $1 AND status = $2`

	u := &AdminUser{}
	err := r.db.QueryRowContext(ctx, query, id, StatusActive).
		Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Name, &u.Role, &u.Status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("query admin user by id: %w", err)
	}
	return u, nil
}

// TouchLastLogin stamps the user's last successful login time.
func (r *PostgresAdminUsers) TouchLastLogin(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE admin_users SET last_login = $1 WHERE id = $2`, time.Now(), id)
	if err != nil {
		return fmt.Errorf("touch last login: %w", err)
	}
	return nil
}

// InsertLoginLog records a login audit row.
func (r *PostgresAdminUsers) InsertLoginLog(ctx context.Context, entry LoginLog) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO admin_login_logs (admin_id, admin_email, ip_address, user_agent)
		VALUES ($1, $2, $3, $4)`,
		entry.AdminID, entry.Email, entry.IPAddress, entry.UserAgent)
	if err != nil {
		return fmt.Errorf("insert login log: %w", err)
	}
	return nil
}
