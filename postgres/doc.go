// Package postgres provides a PostgreSQL-backed implementation of the
// [table.Client] interface.
//
// It uses pgx v5 with connection pooling (pgxpool) and stores every record
// in one wide table keyed by (pk, sk), with the JSON body in a JSONB column
// and the email attribute materialised for indexed lookup.
//
// # Usage
//
// Create a client using [New] with functional options, call [Client.Connect]
// to establish the connection pool, and then [Client.Init] to create the
// database schema:
//
//	client := postgres.New(
//	    postgres.WithHost("localhost"),
//	    postgres.WithPort(5432),
//	    postgres.WithUser("postgres"),
//	    postgres.WithPassword("secret"),
//	    postgres.WithDatabase("goaltracker"),
//	)
//
//	if err := client.Connect(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close(ctx)
//
//	if err := client.Init(ctx, false); err != nil {
//	    log.Fatal(err)
//	}
//
// # Database Table
//
// A single table is created automatically by [Client.Init] (its name is
// configurable via [WithRecordsTable]):
//
//   - goal_records: all user, character, goal, progress, and notification
//     channel records, keyed by (pk, sk)
//
// The sort key column uses the C collation, so ORDER BY sk walks a partition
// in the same bytewise order the composite key layout assumes. A partial
// index over the email column backs [table.EmailIndex] lookups.
//
// # Connection Pool
//
// The underlying pgxpool can be tuned with the pool-specific options:
// [WithPoolMaxConnections], [WithPoolMinConnections],
// [WithPoolMinIdleConnections], [WithPoolMaxConnectionLifetime],
// [WithPoolMaxConnectionIdleTime], [WithPoolHealthCheckPeriod], and
// [WithPoolMaxConnectionLifetimeJitter].
//
// # TTL and Cleanup
//
// Items written with a positive expiry get an expires_at timestamp. Reads
// exclude expired rows immediately; a background goroutine periodically
// deletes them. Its interval defaults to 1 hour and can be changed with
// [WithTTLCleanupInterval] or disabled entirely with
// [WithTTLCleanupDisabled].
//
// # Schema Validation
//
// When [Client.Init] is called with skipSchemaValidation set to false, it
// queries information_schema.columns and verifies that every expected column
// exists with the correct data type and nullability. Pass true to skip this
// check in environments where the schema is managed externally.
//
// # SSL
//
// SSL behaviour is controlled by [WithSSLMode] using the [SSLMode] constants
// ([SSLModeDisable], [SSLModeAllow], [SSLModePrefer], [SSLModeRequire],
// [SSLModeVerifyCA], [SSLModeVerifyFull]). The default is [SSLModePrefer].
package postgres
