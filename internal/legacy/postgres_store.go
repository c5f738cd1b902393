package legacy

import (
	"context"
	"database/sql"
)

// PostgresDirectory reads legacy users from a SQL user table. The
// expected shape:
//
//	CREATE TABLE legacy_users (
//	    legacy_id          text PRIMARY KEY,
//	    login_name         text NOT NULL,
//	    given_name         text NOT NULL,
//	    family_name        text NOT NULL,
//	    display_name       text NOT NULL,
//	    preferred_language text NOT NULL,
//	    email              text NOT NULL,
//	    password           text NOT NULL
//	);
//
// The table belongs to the legacy system; this adapter never writes.
type PostgresDirectory struct {
	db *sql.DB
}

func NewPostgresDirectory(db *sql.DB) *PostgresDirectory {
	return &PostgresDirectory{db: db}
}

func (d *PostgresDirectory) LookupByLoginName(ctx context.Context, loginName string) (*Record, error) {
	var r Record

	err := d.db.QueryRowContext(ctx, `
		SELECT legacy_id, login_name, given_name, family_name,
		       display_name, preferred_language, email, password
		FROM legacy_users
		WHERE LOWER(login_name) = LOWER($1)
	`, loginName).Scan(
		&r.LegacyID,
		&r.LoginName,
		&r.GivenName,
		&r.FamilyName,
		&r.DisplayName,
		&r.PreferredLanguage,
		&r.Email,
		&r.Password,
	)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return &r, nil
}
