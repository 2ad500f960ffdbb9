// Package badgerstore provides an embedded, BadgerDB-backed implementation
// of the [table.Client] contract. It is intended for local development and
// fast tests; the dynamodb package is the production backend.
//
// Composite keys are encoded as base64(partitionKey) + "|" + sortKey, so a
// Badger prefix iteration over one partition walks items in sort-key order.
// Secondary indexes are maintained as a separate keyspace written in the
// same transaction as the item itself.
package badgerstore

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/dgraph-io/badger/v4"

	"github.com/osrsgoaltracker/goaldao/table"
	"github.com/osrsgoaltracker/goaldao/types"
)

const (
	itemKeyspace  = "t"
	indexKeyspace = "i"
	keySeparator  = "|"
)

// Store is an embedded [table.Client] backed by BadgerDB. Use [New] to
// create one and call [Store.Close] when done.
type Store struct {
	db      *badger.DB
	indexes map[string]string // index name -> indexed attribute
	opts    *Options
}

var _ table.Client = (*Store)(nil)

// New opens a Badger-backed store. By default the database lives purely in
// memory and the [table.EmailIndex] is registered; use [WithPath] to persist
// to disk and [WithIndex] to register further indexes.
func New(opts ...Option) (*Store, error) {
	options := newOptions()

	for _, o := range opts {
		o(options)
	}

	if err := options.validate(); err != nil {
		return nil, fmt.Errorf("invalid badgerstore options: %w", err)
	}

	badgerOpts := badger.DefaultOptions(options.path).WithLogger(nil)
	if options.path == "" {
		badgerOpts = badgerOpts.WithInMemory(true)
	}

	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database: %w", err)
	}

	return &Store{
		db:      db,
		indexes: options.indexes,
		opts:    options,
	}, nil
}

// Close releases the underlying Badger database.
func (s *Store) Close() error {
	return s.db.Close()
}

// storedValue is the on-disk representation of a [table.Item] minus its key,
// which lives in the Badger key itself.
type storedValue struct {
	Body       json.RawMessage   `json:"body,omitempty"`
	IndexAttrs map[string]string `json:"indexAttrs,omitempty"`
	ExpiresAt  int64             `json:"expiresAt,omitempty"`
}

// itemKey encodes a composite key. The partition key is base64-encoded so
// the separator splits reliably when decoding; sort keys never contain the
// separator.
func itemKey(partitionKey, sortKey string) []byte {
	return []byte(itemKeyspace + keySeparator +
		base64.StdEncoding.EncodeToString([]byte(partitionKey)) + keySeparator + sortKey)
}

func partitionPrefix(partitionKey string) []byte {
	return []byte(itemKeyspace + keySeparator +
		base64.StdEncoding.EncodeToString([]byte(partitionKey)) + keySeparator)
}

func decodeItemKey(key []byte) (partitionKey, sortKey string, err error) {
	parts := strings.SplitN(string(key), keySeparator, 3)
	if len(parts) != 3 || parts[0] != itemKeyspace {
		return "", "", fmt.Errorf("invalid item key format: %s", key)
	}

	pk, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		return "", "", fmt.Errorf("invalid item key partition segment: %w", err)
	}

	return string(pk), parts[2], nil
}

func indexEntryKey(indexName, value, partitionKey, sortKey string) []byte {
	return []byte(indexKeyspace + keySeparator + indexName + keySeparator +
		base64.StdEncoding.EncodeToString([]byte(value)) + keySeparator +
		base64.StdEncoding.EncodeToString([]byte(partitionKey)) + keySeparator + sortKey)
}

func indexValuePrefix(indexName, value string) []byte {
	return []byte(indexKeyspace + keySeparator + indexName + keySeparator +
		base64.StdEncoding.EncodeToString([]byte(value)) + keySeparator)
}

func decodeIndexEntryKey(key []byte) (partitionKey, sortKey string, err error) {
	parts := strings.SplitN(string(key), keySeparator, 5)
	if len(parts) != 5 || parts[0] != indexKeyspace {
		return "", "", fmt.Errorf("invalid index entry key format: %s", key)
	}

	pk, err := base64.StdEncoding.DecodeString(parts[3])
	if err != nil {
		return "", "", fmt.Errorf("invalid index entry partition segment: %w", err)
	}

	return string(pk), parts[4], nil
}

// Put unconditionally upserts an item, rewriting any index entries it owns.
func (s *Store) Put(ctx context.Context, item table.Item) error {
	if err := validateItem(item); err != nil {
		return err
	}

	for {
		err := s.db.Update(func(txn *badger.Txn) error {
			return s.writeItem(txn, item)
		})
		if errors.Is(err, badger.ErrConflict) {
			continue
		}
		if err != nil {
			return mapBadgerError("failed to put item", err)
		}
		return nil
	}
}

// PutIfAbsent writes an item only if its key is vacant. The existence check
// and the write share one serializable Badger transaction, so concurrent
// writers to the same key see exactly one winner.
func (s *Store) PutIfAbsent(ctx context.Context, item table.Item) error {
	if err := validateItem(item); err != nil {
		return err
	}

	for {
		err := s.db.Update(func(txn *badger.Txn) error {
			_, err := txn.Get(itemKey(item.PartitionKey, item.SortKey))
			if err == nil {
				return table.ErrConditionFailed
			}
			if !errors.Is(err, badger.ErrKeyNotFound) {
				return err
			}
			return s.writeItem(txn, item)
		})
		if errors.Is(err, badger.ErrConflict) {
			// A concurrent writer committed first; re-running resolves the
			// race against the now-visible state.
			continue
		}
		if errors.Is(err, table.ErrConditionFailed) {
			return table.ErrConditionFailed
		}
		if err != nil {
			return mapBadgerError("failed to conditionally put item", err)
		}
		return nil
	}
}

func (s *Store) writeItem(txn *badger.Txn, item table.Item) error {
	key := itemKey(item.PartitionKey, item.SortKey)

	// Drop index entries owned by the previous version of the item.
	existing, err := txn.Get(key)
	if err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
		return err
	}
	if err == nil {
		var old storedValue
		if err := existing.Value(func(val []byte) error {
			return json.Unmarshal(val, &old)
		}); err != nil {
			return err
		}
		for name, attr := range s.indexes {
			if value, ok := old.IndexAttrs[attr]; ok {
				if err := txn.Delete(indexEntryKey(name, value, item.PartitionKey, item.SortKey)); err != nil {
					return err
				}
			}
		}
	}

	value, err := json.Marshal(storedValue{
		Body:       json.RawMessage(item.Body),
		IndexAttrs: item.IndexAttrs,
		ExpiresAt:  item.ExpiresAt,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal item value: %w", err)
	}

	entry := badger.NewEntry(key, value)
	if item.ExpiresAt > 0 {
		entry.ExpiresAt = uint64(item.ExpiresAt)
	}
	if err := txn.SetEntry(entry); err != nil {
		return err
	}

	for name, attr := range s.indexes {
		if value, ok := item.IndexAttrs[attr]; ok {
			idxEntry := badger.NewEntry(indexEntryKey(name, value, item.PartitionKey, item.SortKey), nil)
			if item.ExpiresAt > 0 {
				idxEntry.ExpiresAt = uint64(item.ExpiresAt)
			}
			if err := txn.SetEntry(idxEntry); err != nil {
				return err
			}
		}
	}

	return nil
}

// Get reads the item at the given key.
func (s *Store) Get(ctx context.Context, partitionKey, sortKey string) (*table.Item, error) {
	if partitionKey == "" || sortKey == "" {
		return nil, types.NewValidationError("partition key and sort key cannot be empty")
	}

	var item *table.Item

	err := s.db.View(func(txn *badger.Txn) error {
		found, err := readItem(txn, partitionKey, sortKey)
		if err != nil {
			return err
		}
		item = found
		return nil
	})
	if err != nil {
		if errors.Is(err, table.ErrItemNotFound) {
			return nil, table.ErrItemNotFound
		}
		return nil, mapBadgerError("failed to get item", err)
	}

	return item, nil
}

func readItem(txn *badger.Txn, partitionKey, sortKey string) (*table.Item, error) {
	entry, err := txn.Get(itemKey(partitionKey, sortKey))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, table.ErrItemNotFound
	}
	if err != nil {
		return nil, err
	}

	var stored storedValue
	if err := entry.Value(func(val []byte) error {
		return json.Unmarshal(val, &stored)
	}); err != nil {
		return nil, err
	}

	return &table.Item{
		PartitionKey: partitionKey,
		SortKey:      sortKey,
		Body:         []byte(stored.Body),
		IndexAttrs:   stored.IndexAttrs,
		ExpiresAt:    stored.ExpiresAt,
	}, nil
}

// QueryPrefix walks a partition in sort-key order, honoring range bounds,
// a continuation token, and a page limit.
func (s *Store) QueryPrefix(ctx context.Context, partitionKey, sortKeyPrefix string, opts table.QueryOptions) (*table.Page, error) {
	if partitionKey == "" {
		return nil, types.NewValidationError("partition key cannot be empty")
	}

	prefix := []byte(string(partitionPrefix(partitionKey)) + sortKeyPrefix)
	limit := opts.EffectiveLimit()

	startKey := prefix
	skipFirst := false

	if opts.StartToken != "" {
		tokenPK, tokenSK, err := table.DecodeToken(opts.StartToken)
		if err != nil {
			return nil, types.NewValidationError("invalid page token: %v", err)
		}
		if tokenPK != partitionKey {
			return nil, types.NewValidationError("page token does not match partition")
		}
		startKey = itemKey(tokenPK, tokenSK)
		skipFirst = true
	} else if opts.FromSortKey != "" {
		startKey = itemKey(partitionKey, opts.FromSortKey)
	}

	page := &table.Page{}

	err := s.db.View(func(txn *badger.Txn) error {
		iterOpts := badger.DefaultIteratorOptions
		iterOpts.Prefix = prefix

		it := txn.NewIterator(iterOpts)
		defer it.Close()

		it.Seek(startKey)
		if skipFirst && it.Valid() && bytes.Equal(it.Item().Key(), startKey) {
			it.Next()
		}

		for ; it.Valid(); it.Next() {
			_, sortKey, err := decodeItemKey(it.Item().Key())
			if err != nil {
				return err
			}

			if opts.ToSortKey != "" && sortKey > opts.ToSortKey {
				return nil
			}

			if len(page.Items) == limit {
				last := page.Items[len(page.Items)-1]
				page.NextToken = table.EncodeToken(last.PartitionKey, last.SortKey)
				return nil
			}

			var stored storedValue
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &stored)
			}); err != nil {
				return err
			}

			page.Items = append(page.Items, table.Item{
				PartitionKey: partitionKey,
				SortKey:      sortKey,
				Body:         []byte(stored.Body),
				IndexAttrs:   stored.IndexAttrs,
				ExpiresAt:    stored.ExpiresAt,
			})
		}

		return nil
	})
	if err != nil {
		return nil, mapBadgerError("failed to query prefix", err)
	}

	return page, nil
}

// QueryIndex resolves the items whose indexed attribute equals value.
func (s *Store) QueryIndex(ctx context.Context, indexName, attribute, value string) ([]table.Item, error) {
	indexedAttr, ok := s.indexes[indexName]
	if !ok {
		return nil, types.NewValidationError("unknown index: %s", indexName)
	}
	if attribute != indexedAttr {
		return nil, types.NewValidationError("index %s covers attribute %s, not %s", indexName, indexedAttr, attribute)
	}
	if value == "" {
		return nil, types.NewValidationError("index value cannot be empty")
	}

	var items []table.Item

	err := s.db.View(func(txn *badger.Txn) error {
		iterOpts := badger.DefaultIteratorOptions
		iterOpts.Prefix = indexValuePrefix(indexName, value)
		iterOpts.PrefetchValues = false

		it := txn.NewIterator(iterOpts)
		defer it.Close()

		for it.Seek(iterOpts.Prefix); it.Valid(); it.Next() {
			partitionKey, sortKey, err := decodeIndexEntryKey(it.Item().Key())
			if err != nil {
				return err
			}

			item, err := readItem(txn, partitionKey, sortKey)
			if errors.Is(err, table.ErrItemNotFound) {
				// The referenced item expired out from under its index entry.
				continue
			}
			if err != nil {
				return err
			}

			items = append(items, *item)
		}

		return nil
	})
	if err != nil {
		return nil, mapBadgerError("failed to query index", err)
	}

	return items, nil
}

func validateItem(item table.Item) error {
	if item.PartitionKey == "" || item.SortKey == "" {
		return types.NewValidationError("partition key and sort key cannot be empty")
	}
	if strings.Contains(item.SortKey, keySeparator) {
		return types.NewValidationError("sort key cannot contain %q", keySeparator)
	}
	if item.ExpiresAt < 0 {
		return types.NewValidationError("expiry cannot be negative")
	}
	return nil
}

func mapBadgerError(msg string, err error) error {
	return types.NewUnavailableError(msg, err)
}
