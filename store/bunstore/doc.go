// Package bunstore implements photoauth.UserStore on a SQL database through
// the bun ORM. Postgres (pgx) and SQLite are supported.
package bunstore
