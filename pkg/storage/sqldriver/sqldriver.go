// Package sqldriver implements storage.Driver over database/sql. It is
// dialect-agnostic and is embedded by the sqlite and postgres drivers, which
// only differ in how they open the connection and create the schema.
package sqldriver

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"

	"github.com/papercomputeco/banter/pkg/persona"
	"github.com/papercomputeco/banter/pkg/storage"
)

const usersTable = "users"

var profileColumns = []string{
	"id",
	"external_id",
	"display_name",
	"persona",
	"created_at",
	"updated_at",
}

var schema = map[string]string{
	dialect.SQLite: `CREATE TABLE IF NOT EXISTS users (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	external_id TEXT NOT NULL UNIQUE,
	display_name TEXT NOT NULL,
	persona TEXT NOT NULL DEFAULT 'NEUTRAL',
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
)`,
	dialect.Postgres: `CREATE TABLE IF NOT EXISTS users (
	id BIGSERIAL PRIMARY KEY,
	external_id TEXT NOT NULL UNIQUE,
	display_name TEXT NOT NULL,
	persona TEXT NOT NULL DEFAULT 'NEUTRAL',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`,
}

// Driver provides profile storage on a *sql.DB using ent's SQL builders.
type Driver struct {
	DB      *sql.DB
	Dialect string

	// Now returns the timestamp written to created_at / updated_at.
	// Defaults to time.Now in UTC.
	Now func() time.Time
}

// New wraps db for the given ent dialect name (dialect.SQLite or
// dialect.Postgres).
func New(db *sql.DB, dialectName string) (*Driver, error) {
	if _, ok := schema[dialectName]; !ok {
		return nil, fmt.Errorf("unsupported sql dialect: %q", dialectName)
	}
	return &Driver{DB: db, Dialect: dialectName}, nil
}

// Migrate creates the users table if it does not exist yet.
func (d *Driver) Migrate(ctx context.Context) error {
	if _, err := d.DB.ExecContext(ctx, schema[d.Dialect]); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// FindByExternalID returns the profile for externalID.
func (d *Driver) FindByExternalID(ctx context.Context, externalID string) (*storage.Profile, error) {
	b := entsql.Dialect(d.Dialect)
	query, args := b.Select(profileColumns...).
		From(b.Table(usersTable)).
		Where(entsql.EQ("external_id", externalID)).
		Query()

	var (
		p           storage.Profile
		personaName string
	)
	err := d.DB.QueryRowContext(ctx, query, args...).Scan(
		&p.ID,
		&p.ExternalID,
		&p.DisplayName,
		&personaName,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.NotFoundError{ExternalID: externalID}
		}
		return nil, fmt.Errorf("failed to query profile: %w", err)
	}

	// Rows written outside banter may carry an unknown name; treat those
	// like an absent persona.
	p.Persona, _ = persona.Parse(personaName)

	return &p, nil
}

// Create inserts a Neutral profile unless externalID is already registered.
func (d *Driver) Create(ctx context.Context, externalID, displayName string) (*storage.Profile, bool, error) {
	if externalID == "" {
		return nil, false, errors.New("external id is required")
	}

	now := d.now()
	query, args := entsql.Dialect(d.Dialect).
		Insert(usersTable).
		Columns("external_id", "display_name", "persona", "created_at", "updated_at").
		Values(externalID, displayName, persona.Neutral.String(), now, now).
		OnConflict(
			entsql.ConflictColumns("external_id"),
			entsql.DoNothing(),
		).
		Query()

	res, err := d.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, false, fmt.Errorf("could not execute profile creation: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("failed to read affected rows: %w", err)
	}

	p, err := d.FindByExternalID(ctx, externalID)
	if err != nil {
		return nil, false, err
	}

	return p, affected > 0, nil
}

// UpdatePersona sets the persona on an existing profile in a single statement.
func (d *Driver) UpdatePersona(ctx context.Context, externalID string, p persona.Persona) error {
	if !p.Valid() {
		return fmt.Errorf("%w: %d", persona.ErrUnknown, uint8(p))
	}

	query, args := entsql.Dialect(d.Dialect).
		Update(usersTable).
		Set("persona", p.String()).
		Set("updated_at", d.now()).
		Where(entsql.EQ("external_id", externalID)).
		Query()

	res, err := d.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update persona: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return storage.NotFoundError{ExternalID: externalID}
	}

	return nil
}

// Ping runs a trivial query against the database.
func (d *Driver) Ping(ctx context.Context) error {
	var one int
	if err := d.DB.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (d *Driver) Close() error {
	return d.DB.Close()
}

func (d *Driver) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now().UTC()
}
