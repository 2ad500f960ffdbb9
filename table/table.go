// Package table defines the generic key-value table contract that every
// goal-tracker storage backend implements. A table holds items addressed by
// a (partition key, sort key) string pair; the sole secondary access pattern
// is an ordered prefix query on the sort key, plus a named equality index
// used for the user email-uniqueness lookup.
//
// The dynamodb, postgres, and badgerstore packages provide implementations;
// the storetest package holds a conformance suite they all run.
package table

import (
	"context"
	"errors"
)

// EmailIndex is the name of the secondary index materialized over the
// [EmailAttribute] of user metadata rows. It backs the email-uniqueness
// check performed at signup.
const EmailIndex = "EmailIndex"

// EmailAttribute is the index attribute name carrying a user's email.
const EmailAttribute = "email"

// DefaultQueryLimit is the page size used when [QueryOptions.Limit] is not
// positive.
const DefaultQueryLimit = 100

// ErrConditionFailed is returned by [Client.PutIfAbsent] when an item
// already exists at the target key.
var ErrConditionFailed = errors.New("item already exists at key")

// ErrItemNotFound is returned by [Client.Get] when no item exists at the
// requested key.
var ErrItemNotFound = errors.New("item not found")

// Item is one stored row. The entity attributes travel as a JSON-encoded
// body; IndexAttrs carries the few attributes that are additionally
// materialized for index lookups (currently only [EmailAttribute]).
type Item struct {
	PartitionKey string
	SortKey      string
	// Body is the JSON-encoded entity record.
	Body []byte
	// IndexAttrs are attributes materialized outside the body so secondary
	// indexes can be built over them. Nil for most rows.
	IndexAttrs map[string]string
	// ExpiresAt is an optional expiry as Unix seconds. Zero means the item
	// never expires. Only progress-sample rows use it.
	ExpiresAt int64
}

// QueryOptions bounds and paginates a prefix query. FromSortKey and
// ToSortKey, when non-empty, further restrict the range (inclusive on both
// ends); they must themselves start with the queried prefix.
type QueryOptions struct {
	FromSortKey string
	ToSortKey   string
	// StartToken resumes a query from a previous page's NextToken.
	StartToken string
	// Limit caps the number of items in the page. Non-positive means
	// [DefaultQueryLimit].
	Limit int
}

// Page is one page of an ordered prefix query. NextToken is empty when the
// range is exhausted; otherwise it resumes the query when passed back via
// [QueryOptions.StartToken].
type Page struct {
	Items     []Item
	NextToken string
}

// Client is the generic table client consumed by the stores. Implementations
// must be safe for concurrent use. Within one (partition key, sort key)
// pair, PutIfAbsent serializes concurrent writers: exactly one succeeds and
// the rest fail with [ErrConditionFailed].
//
// Transient backend failures are reported as [types.UnavailableError] (with
// the backend error wrapped) so callers can apply retry policy.
type Client interface {
	// Put unconditionally upserts an item.
	Put(ctx context.Context, item Item) error

	// PutIfAbsent writes an item only if nothing exists at its key, failing
	// with ErrConditionFailed otherwise.
	PutIfAbsent(ctx context.Context, item Item) error

	// Get reads the item at the given key, failing with ErrItemNotFound if
	// absent.
	Get(ctx context.Context, partitionKey, sortKey string) (*Item, error)

	// QueryPrefix returns the items in a partition whose sort key starts
	// with sortKeyPrefix, ordered lexicographically ascending by sort key.
	QueryPrefix(ctx context.Context, partitionKey, sortKeyPrefix string, opts QueryOptions) (*Page, error)

	// QueryIndex returns the items whose indexed attribute equals value.
	// Used solely for the email-uniqueness lookup on [EmailIndex].
	QueryIndex(ctx context.Context, indexName, attribute, value string) ([]Item, error)
}

// EffectiveLimit resolves the page size for a query.
func (o QueryOptions) EffectiveLimit() int {
	if o.Limit <= 0 {
		return DefaultQueryLimit
	}
	return o.Limit
}
