// Package database provides the PostgreSQL connection pool backing the
// notification archive.
package database
