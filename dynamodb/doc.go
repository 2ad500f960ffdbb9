// Package dynamodb provides the DynamoDB-backed implementation of the
// [table.Client] interface. It is the production backend for the goal
// tracker's persistence layer.
//
// # Overview
//
// The package uses a single-table DynamoDB design. Every record belonging
// to one user shares the partition key USER#<user_id> ("pk") and carries a
// type-prefixed composite sort key ("sk"):
//
//   - User metadata:    METADATA
//   - Channels:         NOTIFICATION#<channel_type>
//   - Characters:       CHARACTER#METADATA#<character_name>
//   - Goals:            CHARACTER#<name>#GOAL#METADATA#<goal_id>
//   - Progress samples: CHARACTER#<name>#GOAL#<goal_id>#<rfc3339_timestamp>
//   - Progress markers: CHARACTER#<name>#GOAL#<goal_id>#LATEST / #EARLIEST
//
// One Global Secondary Index supports cross-partition lookup:
//
//   - [table.EmailIndex]: find the user partition owning an email address.
//
// # Getting Started
//
// Create a [Client] with [New], supplying an AWS config, the DynamoDB table
// name, and any [Option] values you need:
//
//	client := dynamodb.New(&awsCfg, tableName, dynamodb.WithConsistentReads())
//
// By default, [New] creates an AWS SDK v2 DynamoDB client from the supplied
// [aws.Config]. Supply [WithAPI] to inject a custom or mock implementation.
// Call [Client.Connect] before use, then [Client.Init] to validate the
// table schema against the layout above.
//
// # TTL Behaviour
//
// Items carrying a positive expiry are written with an expires_at attribute
// holding a Unix timestamp, and rely on DynamoDB's built-in TTL feature for
// automatic deletion. The store layer applies expiry to progress samples
// only; metadata records never expire.
//
// # Concurrency
//
// [Client] is safe for concurrent use by multiple goroutines. Conditional
// writes use a key-absence condition expression, so concurrent creators of
// the same record see exactly one winner.
package dynamodb
