// Package stores provides the bundlectl history database. It records
// validation runs and packaged bundles in SQLite, with embedded schema
// migrations applied by golang-migrate.
package stores
