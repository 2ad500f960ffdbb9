package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/osrsgoaltracker/goaldao/table"
	"github.com/osrsgoaltracker/goaldao/types"
)

var errNotConnected = errors.New("client is not connected")

// pool defines the interface for database operations.
// This interface is satisfied by *pgxpool.Pool and can be mocked for testing.
type pool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
	Close()
	Ping(ctx context.Context) error
}

// Client is a PostgreSQL-backed implementation of the [table.Client]
// interface. All records live in one wide table keyed by (pk, sk); bodies
// are stored as JSONB and the email column backs the [table.EmailIndex]
// lookup.
type Client struct {
	conn      pool
	opts      *options
	cancelTTL context.CancelFunc
}

var _ table.Client = (*Client)(nil)

func New(opts ...Option) *Client {
	o := newOptions()
	for _, opt := range opts {
		opt(o)
	}

	return &Client{opts: o}
}

func (c *Client) Connect(ctx context.Context) error {
	// Close existing connection if any to prevent leaks
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}

	if err := c.opts.validate(); err != nil {
		return fmt.Errorf("invalid Postgres db configuration: %w", err)
	}

	config, err := pgxpool.ParseConfig(c.opts.connectionString())
	if err != nil {
		return fmt.Errorf("failed to parse Postgres db connection string: %w", err)
	}

	if c.opts.poolMaxConnections != nil {
		config.MaxConns = *c.opts.poolMaxConnections
	}

	if c.opts.poolMinConnections != nil {
		config.MinConns = *c.opts.poolMinConnections
	}

	if c.opts.poolMinIdleConnections != nil {
		config.MinIdleConns = *c.opts.poolMinIdleConnections
	}

	if c.opts.poolMaxConnectionLifetime != nil {
		config.MaxConnLifetime = *c.opts.poolMaxConnectionLifetime
	}

	if c.opts.poolMaxConnectionIdleTime != nil {
		config.MaxConnIdleTime = *c.opts.poolMaxConnectionIdleTime
	}

	if c.opts.poolHealthCheckPeriod != nil {
		config.HealthCheckPeriod = *c.opts.poolHealthCheckPeriod
	}

	if c.opts.poolMaxConnectionLifetimeJitter != nil {
		config.MaxConnLifetimeJitter = *c.opts.poolMaxConnectionLifetimeJitter
	}

	conn, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return fmt.Errorf("failed to create new Postgres connection pool: %w", err)
	}

	if err := conn.Ping(ctx); err != nil {
		return fmt.Errorf("failed to ping Postgres db: %w", err)
	}

	c.conn = conn

	return nil
}

func (c *Client) Close(_ context.Context) error {
	if c.cancelTTL != nil {
		c.cancelTTL()
		c.cancelTTL = nil
	}

	if c.conn == nil {
		return nil
	}

	c.conn.Close()

	c.conn = nil

	return nil
}

// Init creates the records table and its indexes if they do not exist, and
// unless skipSchemaValidation is set, verifies the live schema against the
// expected column layout. It also starts the background TTL cleanup
// goroutine unless disabled via [WithTTLCleanupDisabled].
func (c *Client) Init(ctx context.Context, skipSchemaValidation bool) error {
	if c.conn == nil {
		return errNotConnected
	}

	tx, err := c.conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin init transaction: %w", err)
	}

	defer func() { _ = tx.Rollback(ctx) }() // No-op if committed

	for _, sql := range c.opts.createStatements() {
		if _, err := tx.Exec(ctx, sql); err != nil {
			return fmt.Errorf("failed to execute create statement: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit init transaction: %w", err)
	}

	if !skipSchemaValidation {
		query := "SELECT table_name, column_name, data_type, is_nullable FROM information_schema.columns WHERE table_schema = 'public' ORDER BY ordinal_position"

		rows, err := c.conn.Query(ctx, query)
		if err != nil {
			return fmt.Errorf("failed to query information schema: %w", err)
		}

		defer rows.Close()

		infoRows := map[string]*dbRow{}

		for rows.Next() {
			var table, column string
			infoRow := &dbRow{}

			if err := rows.Scan(&table, &column, &infoRow.DataType, &infoRow.IsNullable); err != nil {
				return fmt.Errorf("failed to scan row from information schema: %w", err)
			}

			infoRows[table+"."+column] = infoRow
		}

		if err := rows.Err(); err != nil {
			return fmt.Errorf("error iterating over rows from information schema: %w", err)
		}

		if err := c.opts.verifySchema(infoRows); err != nil {
			return fmt.Errorf("failed to verify database schema: %w", err)
		}
	}

	if c.cancelTTL == nil && c.opts.ttlCleanupInterval != nil {
		ttlCtx, cancel := context.WithCancel(context.Background())
		c.cancelTTL = cancel

		//nolint:contextcheck // Intentionally using a new context: the TTL goroutine must outlive the Init call.
		go c.runTTLCleanup(ttlCtx)
	}

	return nil
}

func (c *Client) DropAllData(ctx context.Context) error {
	if c.conn == nil {
		return errNotConnected
	}

	tx, err := c.conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin drop tables transaction: %w", err)
	}

	defer func() { _ = tx.Rollback(ctx) }() // No-op if committed

	for _, sql := range c.opts.dropStatements() {
		if _, err := tx.Exec(ctx, sql); err != nil {
			return fmt.Errorf("failed to execute drop statement: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit drop tables transaction: %w", err)
	}

	return nil
}

// Put unconditionally upserts an item.
func (c *Client) Put(ctx context.Context, item table.Item) error {
	if c.conn == nil {
		return errNotConnected
	}

	if err := validateItem(item); err != nil {
		return err
	}

	sql := fmt.Sprintf(
		"INSERT INTO %s (pk, sk, body, email, expires_at) VALUES ($1, $2, $3, $4, $5) ON CONFLICT (pk, sk) DO UPDATE SET body = EXCLUDED.body, email = EXCLUDED.email, expires_at = EXCLUDED.expires_at",
		c.opts.recordsTable)

	if _, err := c.conn.Exec(ctx, sql, insertArgs(item)...); err != nil {
		return types.NewUnavailableError("failed to put item in Postgres db", err)
	}

	return nil
}

// PutIfAbsent writes an item only if its composite key is vacant. A lost
// race surfaces as [table.ErrConditionFailed].
func (c *Client) PutIfAbsent(ctx context.Context, item table.Item) error {
	if c.conn == nil {
		return errNotConnected
	}

	if err := validateItem(item); err != nil {
		return err
	}

	sql := fmt.Sprintf(
		"INSERT INTO %s (pk, sk, body, email, expires_at) VALUES ($1, $2, $3, $4, $5) ON CONFLICT (pk, sk) DO NOTHING",
		c.opts.recordsTable)

	tag, err := c.conn.Exec(ctx, sql, insertArgs(item)...)
	if err != nil {
		return types.NewUnavailableError("failed to conditionally put item in Postgres db", err)
	}

	if tag.RowsAffected() == 0 {
		return table.ErrConditionFailed
	}

	return nil
}

// Get reads the item at the given composite key. Expired rows are treated
// as absent even before the cleanup goroutine deletes them.
func (c *Client) Get(ctx context.Context, partitionKey, sortKey string) (*table.Item, error) {
	if c.conn == nil {
		return nil, errNotConnected
	}

	if partitionKey == "" || sortKey == "" {
		return nil, types.NewValidationError("partition key and sort key cannot be empty")
	}

	query := fmt.Sprintf(
		"SELECT body, email, expires_at FROM %s WHERE pk = $1 AND sk = $2 AND (expires_at IS NULL OR expires_at > NOW())",
		c.opts.recordsTable)

	row := c.conn.QueryRow(ctx, query, partitionKey, sortKey)

	item, err := scanItem(row, partitionKey, sortKey)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, table.ErrItemNotFound
		}
		return nil, types.NewUnavailableError("failed to get item from Postgres db", err)
	}

	return item, nil
}

// QueryPrefix walks one partition in sort-key order, honoring range bounds,
// a continuation token, and a page limit. Sort keys are stored with the C
// collation, so ORDER BY yields the same bytewise order DynamoDB uses.
func (c *Client) QueryPrefix(ctx context.Context, partitionKey, sortKeyPrefix string, opts table.QueryOptions) (*table.Page, error) {
	if c.conn == nil {
		return nil, errNotConnected
	}

	if partitionKey == "" {
		return nil, types.NewValidationError("partition key cannot be empty")
	}

	limit := opts.EffectiveLimit()

	query := fmt.Sprintf(
		"SELECT sk, body, email, expires_at FROM %s WHERE pk = $1 AND starts_with(sk, $2) AND (expires_at IS NULL OR expires_at > NOW())",
		c.opts.recordsTable)
	args := []any{partitionKey, sortKeyPrefix}

	if opts.StartToken != "" {
		tokenPK, tokenSK, err := table.DecodeToken(opts.StartToken)
		if err != nil {
			return nil, types.NewValidationError("invalid page token: %v", err)
		}
		if tokenPK != partitionKey {
			return nil, types.NewValidationError("page token does not match partition")
		}
		args = append(args, tokenSK)
		query += fmt.Sprintf(" AND sk > $%d", len(args))
	} else if opts.FromSortKey != "" {
		args = append(args, opts.FromSortKey)
		query += fmt.Sprintf(" AND sk >= $%d", len(args))
	}

	if opts.ToSortKey != "" {
		args = append(args, opts.ToSortKey)
		query += fmt.Sprintf(" AND sk <= $%d", len(args))
	}

	// Fetch one extra row to decide whether a continuation token is needed.
	args = append(args, limit+1)
	query += fmt.Sprintf(" ORDER BY sk LIMIT $%d", len(args))

	rows, err := c.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, types.NewUnavailableError("failed to query items from Postgres db", err)
	}

	defer rows.Close()

	page := &table.Page{}

	for rows.Next() {
		var sortKey string
		var body []byte
		var email *string
		var expiresAt *time.Time

		if err := rows.Scan(&sortKey, &body, &email, &expiresAt); err != nil {
			return nil, types.NewUnavailableError("failed to scan item row from Postgres db", err)
		}

		page.Items = append(page.Items, buildItem(partitionKey, sortKey, body, email, expiresAt))
	}

	if err := rows.Err(); err != nil {
		return nil, types.NewUnavailableError("error iterating over item rows from Postgres db", err)
	}

	if len(page.Items) > limit {
		page.Items = page.Items[:limit]
		last := page.Items[len(page.Items)-1]
		page.NextToken = table.EncodeToken(last.PartitionKey, last.SortKey)
	}

	return page, nil
}

// QueryIndex resolves the items whose indexed attribute equals value. The
// only registered index is [table.EmailIndex] over the email column.
func (c *Client) QueryIndex(ctx context.Context, indexName, attribute, value string) ([]table.Item, error) {
	if c.conn == nil {
		return nil, errNotConnected
	}

	if indexName != table.EmailIndex {
		return nil, types.NewValidationError("unknown index: %s", indexName)
	}
	if attribute != table.EmailAttribute {
		return nil, types.NewValidationError("index %s covers attribute %s, not %s", indexName, table.EmailAttribute, attribute)
	}
	if value == "" {
		return nil, types.NewValidationError("index value cannot be empty")
	}

	query := fmt.Sprintf(
		"SELECT pk, sk, body, email, expires_at FROM %s WHERE email = $1 AND (expires_at IS NULL OR expires_at > NOW()) ORDER BY pk, sk",
		c.opts.recordsTable)

	rows, err := c.conn.Query(ctx, query, value)
	if err != nil {
		return nil, types.NewUnavailableError("failed to query email index in Postgres db", err)
	}

	defer rows.Close()

	var items []table.Item

	for rows.Next() {
		var partitionKey, sortKey string
		var body []byte
		var email *string
		var expiresAt *time.Time

		if err := rows.Scan(&partitionKey, &sortKey, &body, &email, &expiresAt); err != nil {
			return nil, types.NewUnavailableError("failed to scan item row from Postgres db", err)
		}

		items = append(items, buildItem(partitionKey, sortKey, body, email, expiresAt))
	}

	if err := rows.Err(); err != nil {
		return nil, types.NewUnavailableError("error iterating over item rows from Postgres db", err)
	}

	return items, nil
}

func validateItem(item table.Item) error {
	if item.PartitionKey == "" || item.SortKey == "" {
		return types.NewValidationError("partition key and sort key cannot be empty")
	}
	if item.ExpiresAt < 0 {
		return types.NewValidationError("expiry cannot be negative")
	}
	return nil
}

func insertArgs(item table.Item) []any {
	var body *string
	if len(item.Body) > 0 {
		s := string(item.Body)
		body = &s
	}

	var email *string
	if value, ok := item.IndexAttrs[table.EmailAttribute]; ok && value != "" {
		email = &value
	}

	var expiresAt *time.Time
	if item.ExpiresAt > 0 {
		t := time.Unix(item.ExpiresAt, 0).UTC()
		expiresAt = &t
	}

	return []any{item.PartitionKey, item.SortKey, body, email, expiresAt}
}

func scanItem(row pgx.Row, partitionKey, sortKey string) (*table.Item, error) {
	var body []byte
	var email *string
	var expiresAt *time.Time

	if err := row.Scan(&body, &email, &expiresAt); err != nil {
		return nil, err
	}

	item := buildItem(partitionKey, sortKey, body, email, expiresAt)

	return &item, nil
}

func buildItem(partitionKey, sortKey string, body []byte, email *string, expiresAt *time.Time) table.Item {
	item := table.Item{
		PartitionKey: partitionKey,
		SortKey:      sortKey,
		Body:         body,
	}

	if email != nil {
		item.IndexAttrs = map[string]string{table.EmailAttribute: *email}
	}

	if expiresAt != nil {
		item.ExpiresAt = expiresAt.Unix()
	}

	return item
}

func (c *Client) runTTLCleanup(ctx context.Context) {
	ticker := time.NewTicker(*c.opts.ttlCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.deleteExpiredRows(ctx)
		}
	}
}

func (c *Client) deleteExpiredRows(ctx context.Context) {
	_, _ = c.conn.Exec(ctx, fmt.Sprintf(
		"DELETE FROM %s WHERE expires_at IS NOT NULL AND expires_at < NOW()", c.opts.recordsTable))
}
