// Package pgstore stores credentials in a PostgreSQL table so that
// processes on different hosts share one cache.
//
// The table is created on demand:
//
//	CREATE TABLE IF NOT EXISTS tokbroker_credentials (
//	    key        text PRIMARY KEY,
//	    value      bytea NOT NULL,
//	    expires_at timestamptz NOT NULL
//	)
//
// Rows past expires_at are never returned and are removed by Prune.
package pgstore
