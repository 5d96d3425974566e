package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq" // PostgreSQL driver
)

const (
	defaultMaxOpenConns    = 25
	defaultMaxIdleConns    = 25
	defaultConnMaxLifetime = 5 * time.Minute
	defaultConnMaxIdleTime = 1 * time.Minute

	dateLayout = "2006-01-02"

	uniqueViolation = pq.ErrorCode("23505")
)

// NewPostgresConnection creates and returns a new PostgreSQL database connection.
// It also pings the database to ensure connectivity.
func NewPostgresConnection(dataSourceName string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	db.SetMaxOpenConns(defaultMaxOpenConns)
	db.SetMaxIdleConns(defaultMaxIdleConns)
	db.SetConnMaxLifetime(defaultConnMaxLifetime)
	db.SetConnMaxIdleTime(defaultConnMaxIdleTime)

	if err = db.Ping(); err != nil {
		db.Close() // Close the connection if ping fails
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// isUniqueViolation reports whether err is a unique-constraint failure,
// optionally on a specific constraint.
func isUniqueViolation(err error, constraint string) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || pqErr.Code != uniqueViolation {
		return false
	}
	return constraint == "" || pqErr.Constraint == constraint
}

// sqlDate renders the calendar date of t so Postgres compares DATE columns
// independently of the session time zone.
func sqlDate(t time.Time) string {
	return t.Format(dateLayout)
}
