package database

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// DB represents a database connection
type DB struct {
	*sql.DB
}

// ConnectionParams holds PostgreSQL connection parameters
type ConnectionParams struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// DSN returns the lib/pq connection string
func (p ConnectionParams) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.DBName, p.SSLMode,
	)
}

// New creates a new database connection and applies pending migrations
func New(ctx context.Context, params ConnectionParams) (*DB, error) {
	db, err := sql.Open("postgres", params.DSN())
	if err != nil {
		return nil, err
	}

	// Check connection
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := Migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	return &DB{db}, nil
}

// Migrate brings the schema up to date using the embedded migrations
func Migrate(db *sql.DB) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}
	defer src.Close()

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("migration driver: %w", err)
	}

	// m.Close would also close db through the driver, so it is not called
	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// Nickname returns the stored display name of a user, or "" when none is set
func (db *DB) Nickname(ctx context.Context, userID string) (string, error) {
	var nickname sql.NullString

	err := db.QueryRowContext(ctx, `
		SELECT nickname
		FROM profiles
		WHERE id = $1
	`, userID).Scan(&nickname)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil // No profile yet
		}
		return "", err
	}

	return nickname.String, nil
}

// UpdateNickname creates or updates the profile row of a user
func (db *DB) UpdateNickname(ctx context.Context, userID, nickname string) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO profiles (id, nickname, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (id)
		DO UPDATE SET
			nickname = EXCLUDED.nickname,
			updated_at = EXCLUDED.updated_at
	`, userID, nickname)

	return err
}
