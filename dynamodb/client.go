package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	dynamodbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/osrsgoaltracker/goaldao/table"
	"github.com/osrsgoaltracker/goaldao/types"
)

const (
	// PartitionKeyAttr is the DynamoDB partition key attribute name.
	PartitionKeyAttr = "pk"

	// SortKeyAttr is the DynamoDB sort key attribute name.
	SortKeyAttr = "sk"

	// BodyAttr is the attribute name used to store the JSON-encoded body of
	// a record.
	BodyAttr = "body"

	// TTLAttr is the attribute name used for DynamoDB TTL-based expiration.
	// The table must have TTL enabled on this attribute.
	TTLAttr = "expires_at"

	// conditionKeyAbsent guards conditional writes: the write succeeds only
	// if no item with the same composite key exists.
	conditionKeyAbsent = "attribute_not_exists(pk) AND attribute_not_exists(sk)"

	// sortKeyUpperBound sorts after every ASCII sort key, which lets a
	// prefix query be expressed as a closed BETWEEN range.
	sortKeyUpperBound = "￿"

	// maxBackoff is the maximum backoff duration for retry loops.
	maxBackoff = 2 * time.Second
)

// Client is a DynamoDB-backed implementation of the [table.Client]
// interface. It uses a single-table design: every record is keyed by a
// user partition key ("pk") combined with a composite sort key ("sk"), and
// the [table.EmailIndex] GSI maps email addresses back to user partitions.
//
// Use [New] to create a Client, [Client.Connect] to initialize the
// underlying DynamoDB connection, and [Client.Init] to validate the table
// schema.
type Client struct {
	client    API
	tableName string
	awsCfg    *aws.Config
	opts      *Options
}

var _ table.Client = (*Client)(nil)

// New creates a new Client configured with the given AWS config, table name,
// and optional options. Call [Client.Connect] on the returned client before use.
func New(awsCfg *aws.Config, tableName string, opts ...Option) *Client {
	options := newOptions()

	for _, o := range opts {
		o(options)
	}

	return &Client{
		awsCfg:    awsCfg,
		tableName: tableName,
		opts:      options,
	}
}

// Connect initializes the DynamoDB client from the AWS config provided to [New].
// It must be called before any other Client methods, and must complete before
// the Client is used concurrently.
func (c *Client) Connect() error {
	// Use injected DynamoDB API if provided (useful for testing).
	if c.opts.dynamoDBAPI != nil {
		c.client = c.opts.dynamoDBAPI
	} else {
		c.client = dynamodb.NewFromConfig(*c.awsCfg)
	}

	return nil
}

// Init validates the DynamoDB table schema. It checks that the table exists,
// has the correct partition key (pk) and sort key (sk), has TTL enabled on
// the expires_at attribute, and that the [table.EmailIndex] Global Secondary
// Index is present and correctly configured.
//
// Pass skipSchemaValidation true to skip all checks and return immediately,
// which is useful when schema validation is managed separately.
func (c *Client) Init(ctx context.Context, skipSchemaValidation bool) error {
	if skipSchemaValidation {
		return nil
	}

	input := &dynamodb.DescribeTableInput{
		TableName: aws.String(c.tableName),
	}

	response, err := c.client.DescribeTable(ctx, input)
	if err != nil {
		var notFoundError *dynamodbtypes.ResourceNotFoundException
		if errors.As(err, &notFoundError) {
			return fmt.Errorf("table %s does not exist", c.tableName)
		}
		return fmt.Errorf("failed to describe table %s: %w", c.tableName, err)
	}

	if len(response.Table.KeySchema) < 1 {
		return fmt.Errorf("table %s has no key schema", c.tableName)
	}

	if aws.ToString(response.Table.KeySchema[0].AttributeName) != PartitionKeyAttr {
		return fmt.Errorf("table %s has partition key %s, expected %s", c.tableName, aws.ToString(response.Table.KeySchema[0].AttributeName), PartitionKeyAttr)
	}

	if len(response.Table.KeySchema) < 2 {
		return fmt.Errorf("table %s has a simple primary key, expected composite", c.tableName)
	}

	if aws.ToString(response.Table.KeySchema[1].AttributeName) != SortKeyAttr {
		return fmt.Errorf("table %s has sort key %s, expected %s", c.tableName, aws.ToString(response.Table.KeySchema[1].AttributeName), SortKeyAttr)
	}

	if response.Table.TableStatus != dynamodbtypes.TableStatusActive {
		return fmt.Errorf("table %s is not active (status: %s)", c.tableName, response.Table.TableStatus)
	}

	ttlInput := &dynamodb.DescribeTimeToLiveInput{
		TableName: aws.String(c.tableName),
	}

	ttlResponse, err := c.client.DescribeTimeToLive(ctx, ttlInput)
	if err != nil {
		return err
	}

	if ttlResponse.TimeToLiveDescription == nil {
		return fmt.Errorf("table %s has no TTL description", c.tableName)
	}

	if ttlResponse.TimeToLiveDescription.TimeToLiveStatus != dynamodbtypes.TimeToLiveStatusEnabled {
		return fmt.Errorf("table %s has TTL status %s (expected %s)", c.tableName, ttlResponse.TimeToLiveDescription.TimeToLiveStatus, dynamodbtypes.TimeToLiveStatusEnabled)
	}

	if aws.ToString(ttlResponse.TimeToLiveDescription.AttributeName) != TTLAttr {
		return fmt.Errorf("TTL attribute name for table %s is %s, expected %s", c.tableName, aws.ToString(ttlResponse.TimeToLiveDescription.AttributeName), TTLAttr)
	}

	// Verify secondary index for users by email.
	// Partition key: email
	// Non-key attributes: body
	if err := verifySecondaryIndex(response.Table, table.EmailIndex, table.EmailAttribute, BodyAttr); err != nil {
		return err
	}

	return nil
}

// DropAllData deletes every item from the DynamoDB table. It scans the table
// in pages and removes each page using BatchWriteItem with exponential backoff
// for unprocessed items.
//
// This method is intended for use in tests only. Do not call it in production.
func (c *Client) DropAllData(ctx context.Context) error {
	input := &dynamodb.ScanInput{
		TableName: aws.String(c.tableName),
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		output, err := c.client.Scan(ctx, input)
		if err != nil {
			return fmt.Errorf("failed to scan DynamoDB table %s: %w", c.tableName, err)
		}

		if len(output.Items) == 0 {
			break
		}

		// Process items in batches of 25 (DynamoDB BatchWriteItem limit).
		for i := 0; i < len(output.Items); i += 25 {
			end := min(i+25, len(output.Items))
			batch := output.Items[i:end]

			requestItems := make([]dynamodbtypes.WriteRequest, 0, len(batch))

			for _, item := range batch {
				requestItems = append(requestItems, dynamodbtypes.WriteRequest{
					DeleteRequest: &dynamodbtypes.DeleteRequest{
						Key: map[string]dynamodbtypes.AttributeValue{
							PartitionKeyAttr: item[PartitionKeyAttr],
							SortKeyAttr:      item[SortKeyAttr],
						},
					},
				})
			}

			batchInput := &dynamodb.BatchWriteItemInput{
				RequestItems: map[string][]dynamodbtypes.WriteRequest{
					c.tableName: requestItems,
				},
			}

			// Retry with exponential backoff for unprocessed items.
			const maxRetries = 5
			backoff := 50 * time.Millisecond

			for attempt := 0; attempt <= maxRetries; attempt++ {
				batchResult, err := c.client.BatchWriteItem(ctx, batchInput)
				if err != nil {
					return fmt.Errorf("failed to batch delete items from DynamoDB table %s: %w", c.tableName, err)
				}

				if len(batchResult.UnprocessedItems) == 0 {
					break
				}

				if attempt == maxRetries {
					return fmt.Errorf("%d unprocessed items after %d retries in DropAllData",
						len(batchResult.UnprocessedItems[c.tableName]), maxRetries)
				}

				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(backoff):
				}

				backoff = min(backoff*2, maxBackoff)
				batchInput.RequestItems = batchResult.UnprocessedItems
			}
		}

		if output.LastEvaluatedKey == nil {
			break
		}

		input.ExclusiveStartKey = output.LastEvaluatedKey
	}

	return nil
}

// Put unconditionally upserts an item.
func (c *Client) Put(ctx context.Context, item table.Item) error {
	if err := validateItem(item); err != nil {
		return err
	}

	input := &dynamodb.PutItemInput{
		TableName: &c.tableName,
		Item:      marshalItem(item),
	}

	if _, err := c.client.PutItem(ctx, input); err != nil {
		return types.NewUnavailableError(fmt.Sprintf("failed to write item to DynamoDB table %s", c.tableName), err)
	}

	return nil
}

// PutIfAbsent writes an item only if no item with the same composite key
// exists. A lost race surfaces as [table.ErrConditionFailed].
func (c *Client) PutIfAbsent(ctx context.Context, item table.Item) error {
	if err := validateItem(item); err != nil {
		return err
	}

	input := &dynamodb.PutItemInput{
		TableName:           &c.tableName,
		Item:                marshalItem(item),
		ConditionExpression: aws.String(conditionKeyAbsent),
	}

	if _, err := c.client.PutItem(ctx, input); err != nil {
		var conditionFailed *dynamodbtypes.ConditionalCheckFailedException
		if errors.As(err, &conditionFailed) {
			return table.ErrConditionFailed
		}
		return types.NewUnavailableError(fmt.Sprintf("failed to conditionally write item to DynamoDB table %s", c.tableName), err)
	}

	return nil
}

// Get reads the item at the given composite key. A vacant key reports
// [table.ErrItemNotFound].
func (c *Client) Get(ctx context.Context, partitionKey, sortKey string) (*table.Item, error) {
	if partitionKey == "" || sortKey == "" {
		return nil, types.NewValidationError("partition key and sort key cannot be empty")
	}

	input := &dynamodb.GetItemInput{
		TableName:      &c.tableName,
		ConsistentRead: aws.Bool(c.opts.consistentReads),
		Key: map[string]dynamodbtypes.AttributeValue{
			PartitionKeyAttr: &dynamodbtypes.AttributeValueMemberS{Value: partitionKey},
			SortKeyAttr:      &dynamodbtypes.AttributeValueMemberS{Value: sortKey},
		},
	}

	output, err := c.client.GetItem(ctx, input)
	if err != nil {
		return nil, types.NewUnavailableError(fmt.Sprintf("failed to get item from DynamoDB table %s", c.tableName), err)
	}

	if len(output.Item) == 0 {
		return nil, table.ErrItemNotFound
	}

	item, err := unmarshalItem(output.Item)
	if err != nil {
		return nil, err
	}

	return item, nil
}

// QueryPrefix walks one partition in sort-key order. A prefix with no range
// bounds becomes a begins_with key condition; explicit bounds become an
// inclusive BETWEEN range clamped to the prefix.
func (c *Client) QueryPrefix(ctx context.Context, partitionKey, sortKeyPrefix string, opts table.QueryOptions) (*table.Page, error) {
	if partitionKey == "" {
		return nil, types.NewValidationError("partition key cannot be empty")
	}

	limit := opts.EffectiveLimit()

	input := &dynamodb.QueryInput{
		TableName:      &c.tableName,
		ConsistentRead: aws.Bool(c.opts.consistentReads),
		Limit:          aws.Int32(int32(limit)),
		ExpressionAttributeValues: map[string]dynamodbtypes.AttributeValue{
			":pk": &dynamodbtypes.AttributeValueMemberS{Value: partitionKey},
		},
	}

	switch {
	case opts.FromSortKey == "" && opts.ToSortKey == "":
		if sortKeyPrefix == "" {
			input.KeyConditionExpression = aws.String("pk = :pk")
		} else {
			input.KeyConditionExpression = aws.String("pk = :pk AND begins_with(sk, :prefix)")
			input.ExpressionAttributeValues[":prefix"] = &dynamodbtypes.AttributeValueMemberS{Value: sortKeyPrefix}
		}
	default:
		from := opts.FromSortKey
		if from == "" {
			from = sortKeyPrefix
		}
		to := opts.ToSortKey
		if to == "" {
			to = sortKeyPrefix + sortKeyUpperBound
		}
		input.KeyConditionExpression = aws.String("pk = :pk AND sk BETWEEN :from AND :to")
		input.ExpressionAttributeValues[":from"] = &dynamodbtypes.AttributeValueMemberS{Value: from}
		input.ExpressionAttributeValues[":to"] = &dynamodbtypes.AttributeValueMemberS{Value: to}
	}

	if opts.StartToken != "" {
		tokenPK, tokenSK, err := table.DecodeToken(opts.StartToken)
		if err != nil {
			return nil, types.NewValidationError("invalid page token: %v", err)
		}
		if tokenPK != partitionKey {
			return nil, types.NewValidationError("page token does not match partition")
		}
		input.ExclusiveStartKey = map[string]dynamodbtypes.AttributeValue{
			PartitionKeyAttr: &dynamodbtypes.AttributeValueMemberS{Value: tokenPK},
			SortKeyAttr:      &dynamodbtypes.AttributeValueMemberS{Value: tokenSK},
		}
	}

	output, err := c.client.Query(ctx, input)
	if err != nil {
		return nil, types.NewUnavailableError(fmt.Sprintf("failed to query DynamoDB table %s", c.tableName), err)
	}

	page := &table.Page{}

	for _, attrs := range output.Items {
		item, err := unmarshalItem(attrs)
		if err != nil {
			return nil, err
		}
		page.Items = append(page.Items, *item)
	}

	if output.LastEvaluatedKey != nil {
		page.NextToken = table.EncodeToken(
			getStringValue(output.LastEvaluatedKey[PartitionKeyAttr]),
			getStringValue(output.LastEvaluatedKey[SortKeyAttr]),
		)
	}

	return page, nil
}

// QueryIndex resolves the items whose indexed attribute equals value, using
// the named Global Secondary Index. Reads through a GSI are eventually
// consistent; a just-written item may not be visible yet.
func (c *Client) QueryIndex(ctx context.Context, indexName, attribute, value string) ([]table.Item, error) {
	if indexName == "" || attribute == "" {
		return nil, types.NewValidationError("index name and attribute cannot be empty")
	}
	if value == "" {
		return nil, types.NewValidationError("index value cannot be empty")
	}

	input := &dynamodb.QueryInput{
		TableName:              &c.tableName,
		IndexName:              aws.String(indexName),
		KeyConditionExpression: aws.String("#attr = :value"),
		ExpressionAttributeNames: map[string]string{
			"#attr": attribute,
		},
		ExpressionAttributeValues: map[string]dynamodbtypes.AttributeValue{
			":value": &dynamodbtypes.AttributeValueMemberS{Value: value},
		},
	}

	var items []table.Item

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		output, err := c.client.Query(ctx, input)
		if err != nil {
			return nil, types.NewUnavailableError(fmt.Sprintf("failed to query index %s of DynamoDB table %s", indexName, c.tableName), err)
		}

		for _, attrs := range output.Items {
			item, err := unmarshalItem(attrs)
			if err != nil {
				return nil, err
			}
			items = append(items, *item)
		}

		if output.LastEvaluatedKey == nil {
			break
		}

		input.ExclusiveStartKey = output.LastEvaluatedKey
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

func marshalItem(item table.Item) map[string]dynamodbtypes.AttributeValue {
	attributes := map[string]dynamodbtypes.AttributeValue{
		PartitionKeyAttr: &dynamodbtypes.AttributeValueMemberS{Value: item.PartitionKey},
		SortKeyAttr:      &dynamodbtypes.AttributeValueMemberS{Value: item.SortKey},
	}

	if len(item.Body) > 0 {
		attributes[BodyAttr] = &dynamodbtypes.AttributeValueMemberS{Value: string(item.Body)}
	}

	for attr, value := range item.IndexAttrs {
		attributes[attr] = &dynamodbtypes.AttributeValueMemberS{Value: value}
	}

	if item.ExpiresAt > 0 {
		attributes[TTLAttr] = &dynamodbtypes.AttributeValueMemberN{Value: strconv.FormatInt(item.ExpiresAt, 10)}
	}

	return attributes
}

func unmarshalItem(attributes map[string]dynamodbtypes.AttributeValue) (*table.Item, error) {
	item := &table.Item{
		PartitionKey: getStringValue(attributes[PartitionKeyAttr]),
		SortKey:      getStringValue(attributes[SortKeyAttr]),
	}

	if item.PartitionKey == "" || item.SortKey == "" {
		return nil, types.NewUnavailableError("item is missing its composite key attributes", nil)
	}

	if body := getStringValue(attributes[BodyAttr]); body != "" {
		item.Body = []byte(body)
	}

	if email := getStringValue(attributes[table.EmailAttribute]); email != "" {
		item.IndexAttrs = map[string]string{table.EmailAttribute: email}
	}

	if ttlAttr, ok := attributes[TTLAttr].(*dynamodbtypes.AttributeValueMemberN); ok {
		expiresAt, err := strconv.ParseInt(ttlAttr.Value, 10, 64)
		if err != nil {
			return nil, types.NewUnavailableError("item has a malformed expiry attribute", err)
		}
		item.ExpiresAt = expiresAt
	}

	return item, nil
}

func verifySecondaryIndex(tableDesc *dynamodbtypes.TableDescription, indexName, partitionKey string, nonKeyAttributes ...string) error {
	for _, index := range tableDesc.GlobalSecondaryIndexes {
		if aws.ToString(index.IndexName) == indexName {
			if len(index.KeySchema) < 1 {
				return fmt.Errorf("global secondary index %s has no key schema", indexName)
			}

			if aws.ToString(index.KeySchema[0].AttributeName) != partitionKey {
				return fmt.Errorf("global secondary index %s has partition key %s, expected %s", indexName, aws.ToString(index.KeySchema[0].AttributeName), partitionKey)
			}

			if index.IndexStatus != dynamodbtypes.IndexStatusActive {
				return fmt.Errorf("global secondary index %s is not active (status: %s)", indexName, index.IndexStatus)
			}

			if index.Projection.ProjectionType != dynamodbtypes.ProjectionTypeInclude {
				return fmt.Errorf("global secondary index %s has projection type %s, expected %s", indexName, index.Projection.ProjectionType, dynamodbtypes.ProjectionTypeInclude)
			}

			for _, attr := range nonKeyAttributes {
				if !slices.Contains(index.Projection.NonKeyAttributes, attr) {
					return fmt.Errorf("global secondary index %s is missing non-key attribute %s", indexName, attr)
				}
			}

			return nil
		}
	}

	return fmt.Errorf("global secondary index %s not found", indexName)
}

// getStringValue extracts the string value from a DynamoDB AttributeValue.
// It returns an empty string if the AttributeValue is not of type AttributeValueMemberS.
func getStringValue(attr dynamodbtypes.AttributeValue) string {
	if attrValue, ok := attr.(*dynamodbtypes.AttributeValueMemberS); ok {
		return attrValue.Value
	}

	return ""
}
