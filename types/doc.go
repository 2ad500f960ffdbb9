// Package types defines the domain entities, error taxonomy, and shared
// interfaces used by every goal-tracker storage backend.
//
// The persistence model is hierarchical: a [User] owns RuneScape characters,
// a character carries goals, a goal accumulates timestamped progress samples,
// and a user configures notification channels. All of it lives in one
// wide-column table keyed by (partition key, sort key); see the keys and
// table packages for the encoding.
//
// Store operations fail with one of the typed errors in this package:
//
//   - [ValidationError]: malformed or missing input; never retried.
//   - [NotFoundError]: a referenced entity does not exist.
//   - [ConflictError]: an identity tuple already has a row.
//   - [DuplicateError]: a user with the same email already exists.
//   - [UnavailableError]: transient backend failure; safe to retry.
//
// Use the Is* helpers (for example [IsNotFound]) to classify an error
// without depending on the concrete type.
package types
