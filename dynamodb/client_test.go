package dynamodb

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	dynamodbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/osrsgoaltracker/goaldao/table"
	"github.com/osrsgoaltracker/goaldao/types"
)

// mockAPI is a mock implementation of API for testing.
type mockAPI struct {
	putItemFunc            func(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	queryFunc              func(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	getItemFunc            func(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	scanFunc               func(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	batchWriteItemFunc     func(ctx context.Context, params *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error)
	describeTableFunc      func(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
	describeTimeToLiveFunc func(ctx context.Context, params *dynamodb.DescribeTimeToLiveInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTimeToLiveOutput, error)
}

func (m *mockAPI) PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	if m.putItemFunc != nil {
		return m.putItemFunc(ctx, params, optFns...)
	}
	return &dynamodb.PutItemOutput{}, nil
}

func (m *mockAPI) Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	if m.queryFunc != nil {
		return m.queryFunc(ctx, params, optFns...)
	}
	return &dynamodb.QueryOutput{}, nil
}

func (m *mockAPI) GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	if m.getItemFunc != nil {
		return m.getItemFunc(ctx, params, optFns...)
	}
	return &dynamodb.GetItemOutput{}, nil
}

func (m *mockAPI) Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	if m.scanFunc != nil {
		return m.scanFunc(ctx, params, optFns...)
	}
	return &dynamodb.ScanOutput{}, nil
}

func (m *mockAPI) BatchWriteItem(ctx context.Context, params *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error) {
	if m.batchWriteItemFunc != nil {
		return m.batchWriteItemFunc(ctx, params, optFns...)
	}
	return &dynamodb.BatchWriteItemOutput{}, nil
}

func (m *mockAPI) DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
	if m.describeTableFunc != nil {
		return m.describeTableFunc(ctx, params, optFns...)
	}
	return &dynamodb.DescribeTableOutput{}, nil
}

func (m *mockAPI) DescribeTimeToLive(ctx context.Context, params *dynamodb.DescribeTimeToLiveInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTimeToLiveOutput, error) {
	if m.describeTimeToLiveFunc != nil {
		return m.describeTimeToLiveFunc(ctx, params, optFns...)
	}
	return &dynamodb.DescribeTimeToLiveOutput{}, nil
}

func newTestClient(mock *mockAPI, opts ...Option) *Client {
	cfg := aws.Config{}
	client := New(&cfg, "test-table", append([]Option{WithAPI(mock)}, opts...)...)
	_ = client.Connect()
	return client
}

func stringAttr(t *testing.T, attrs map[string]dynamodbtypes.AttributeValue, name string) string {
	t.Helper()
	attr, ok := attrs[name].(*dynamodbtypes.AttributeValueMemberS)
	if !ok {
		t.Fatalf("expected attribute %s to be a string", name)
	}
	return attr.Value
}

// validTableDescription returns a DescribeTable output matching the expected
// schema: composite pk/sk primary key plus the email index.
func validTableDescription() *dynamodb.DescribeTableOutput {
	return &dynamodb.DescribeTableOutput{
		Table: &dynamodbtypes.TableDescription{
			TableStatus: dynamodbtypes.TableStatusActive,
			KeySchema: []dynamodbtypes.KeySchemaElement{
				{AttributeName: aws.String(PartitionKeyAttr), KeyType: dynamodbtypes.KeyTypeHash},
				{AttributeName: aws.String(SortKeyAttr), KeyType: dynamodbtypes.KeyTypeRange},
			},
			GlobalSecondaryIndexes: []dynamodbtypes.GlobalSecondaryIndexDescription{
				{
					IndexName:   aws.String(table.EmailIndex),
					IndexStatus: dynamodbtypes.IndexStatusActive,
					KeySchema: []dynamodbtypes.KeySchemaElement{
						{AttributeName: aws.String(table.EmailAttribute), KeyType: dynamodbtypes.KeyTypeHash},
					},
					Projection: &dynamodbtypes.Projection{
						ProjectionType:   dynamodbtypes.ProjectionTypeInclude,
						NonKeyAttributes: []string{BodyAttr},
					},
				},
			},
		},
	}
}

func validTTLDescription() *dynamodb.DescribeTimeToLiveOutput {
	return &dynamodb.DescribeTimeToLiveOutput{
		TimeToLiveDescription: &dynamodbtypes.TimeToLiveDescription{
			TimeToLiveStatus: dynamodbtypes.TimeToLiveStatusEnabled,
			AttributeName:    aws.String(TTLAttr),
		},
	}
}

// ==================== Connect Tests ====================

func TestConnect_Success(t *testing.T) {
	t.Parallel()
	mock := &mockAPI{}
	cfg := aws.Config{}
	client := New(&cfg, "test-table", WithAPI(mock))

	err := client.Connect()
	if err != nil {
		t.Errorf("expected no error, got %v", err)
	}
}

// ==================== Init Tests ====================

func TestInit_Success(t *testing.T) {
	t.Parallel()
	mock := &mockAPI{
		describeTableFunc: func(_ context.Context, _ *dynamodb.DescribeTableInput, _ ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
			return validTableDescription(), nil
		},
		describeTimeToLiveFunc: func(_ context.Context, _ *dynamodb.DescribeTimeToLiveInput, _ ...func(*dynamodb.Options)) (*dynamodb.DescribeTimeToLiveOutput, error) {
			return validTTLDescription(), nil
		},
	}
	client := newTestClient(mock)

	if err := client.Init(context.Background(), false); err != nil {
		t.Errorf("expected no error, got %v", err)
	}
}

func TestInit_SkipSchemaValidation(t *testing.T) {
	t.Parallel()
	called := false
	mock := &mockAPI{
		describeTableFunc: func(_ context.Context, _ *dynamodb.DescribeTableInput, _ ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
			called = true
			return nil, errors.New("should not be called")
		},
	}
	client := newTestClient(mock)

	if err := client.Init(context.Background(), true); err != nil {
		t.Errorf("expected no error, got %v", err)
	}
	if called {
		t.Error("expected DescribeTable not to be called when validation is skipped")
	}
}

func TestInit_TableNotFound(t *testing.T) {
	t.Parallel()
	mock := &mockAPI{
		describeTableFunc: func(_ context.Context, _ *dynamodb.DescribeTableInput, _ ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
			return nil, &dynamodbtypes.ResourceNotFoundException{}
		},
	}
	client := newTestClient(mock)

	err := client.Init(context.Background(), false)
	if err == nil {
		t.Fatal("expected error for missing table, got nil")
	}
	if !strings.Contains(err.Error(), "does not exist") {
		t.Errorf("expected 'does not exist' error, got %v", err)
	}
}

func TestInit_WrongPartitionKey(t *testing.T) {
	t.Parallel()
	mock := &mockAPI{
		describeTableFunc: func(_ context.Context, _ *dynamodb.DescribeTableInput, _ ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
			output := validTableDescription()
			output.Table.KeySchema[0].AttributeName = aws.String("user_id")
			return output, nil
		},
	}
	client := newTestClient(mock)

	err := client.Init(context.Background(), false)
	if err == nil || !strings.Contains(err.Error(), "partition key") {
		t.Errorf("expected partition key error, got %v", err)
	}
}

func TestInit_SimplePrimaryKey(t *testing.T) {
	t.Parallel()
	mock := &mockAPI{
		describeTableFunc: func(_ context.Context, _ *dynamodb.DescribeTableInput, _ ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
			output := validTableDescription()
			output.Table.KeySchema = output.Table.KeySchema[:1]
			return output, nil
		},
	}
	client := newTestClient(mock)

	err := client.Init(context.Background(), false)
	if err == nil || !strings.Contains(err.Error(), "composite") {
		t.Errorf("expected composite key error, got %v", err)
	}
}

func TestInit_TTLDisabled(t *testing.T) {
	t.Parallel()
	mock := &mockAPI{
		describeTableFunc: func(_ context.Context, _ *dynamodb.DescribeTableInput, _ ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
			return validTableDescription(), nil
		},
		describeTimeToLiveFunc: func(_ context.Context, _ *dynamodb.DescribeTimeToLiveInput, _ ...func(*dynamodb.Options)) (*dynamodb.DescribeTimeToLiveOutput, error) {
			output := validTTLDescription()
			output.TimeToLiveDescription.TimeToLiveStatus = dynamodbtypes.TimeToLiveStatusDisabled
			return output, nil
		},
	}
	client := newTestClient(mock)

	err := client.Init(context.Background(), false)
	if err == nil || !strings.Contains(err.Error(), "TTL status") {
		t.Errorf("expected TTL status error, got %v", err)
	}
}

func TestInit_WrongTTLAttribute(t *testing.T) {
	t.Parallel()
	mock := &mockAPI{
		describeTableFunc: func(_ context.Context, _ *dynamodb.DescribeTableInput, _ ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
			return validTableDescription(), nil
		},
		describeTimeToLiveFunc: func(_ context.Context, _ *dynamodb.DescribeTimeToLiveInput, _ ...func(*dynamodb.Options)) (*dynamodb.DescribeTimeToLiveOutput, error) {
			output := validTTLDescription()
			output.TimeToLiveDescription.AttributeName = aws.String("ttl")
			return output, nil
		},
	}
	client := newTestClient(mock)

	err := client.Init(context.Background(), false)
	if err == nil || !strings.Contains(err.Error(), "TTL attribute") {
		t.Errorf("expected TTL attribute error, got %v", err)
	}
}

func TestInit_MissingEmailIndex(t *testing.T) {
	t.Parallel()
	mock := &mockAPI{
		describeTableFunc: func(_ context.Context, _ *dynamodb.DescribeTableInput, _ ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
			output := validTableDescription()
			output.Table.GlobalSecondaryIndexes = nil
			return output, nil
		},
		describeTimeToLiveFunc: func(_ context.Context, _ *dynamodb.DescribeTimeToLiveInput, _ ...func(*dynamodb.Options)) (*dynamodb.DescribeTimeToLiveOutput, error) {
			return validTTLDescription(), nil
		},
	}
	client := newTestClient(mock)

	err := client.Init(context.Background(), false)
	if err == nil || !strings.Contains(err.Error(), table.EmailIndex) {
		t.Errorf("expected missing index error, got %v", err)
	}
}

func TestInit_WrongEmailIndexKey(t *testing.T) {
	t.Parallel()
	mock := &mockAPI{
		describeTableFunc: func(_ context.Context, _ *dynamodb.DescribeTableInput, _ ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
			output := validTableDescription()
			output.Table.GlobalSecondaryIndexes[0].KeySchema[0].AttributeName = aws.String("username")
			return output, nil
		},
		describeTimeToLiveFunc: func(_ context.Context, _ *dynamodb.DescribeTimeToLiveInput, _ ...func(*dynamodb.Options)) (*dynamodb.DescribeTimeToLiveOutput, error) {
			return validTTLDescription(), nil
		},
	}
	client := newTestClient(mock)

	err := client.Init(context.Background(), false)
	if err == nil || !strings.Contains(err.Error(), "partition key") {
		t.Errorf("expected index partition key error, got %v", err)
	}
}

// ==================== Put Tests ====================

func TestPut_Success(t *testing.T) {
	t.Parallel()
	var capturedInput *dynamodb.PutItemInput
	mock := &mockAPI{
		putItemFunc: func(_ context.Context, params *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
			capturedInput = params
			return &dynamodb.PutItemOutput{}, nil
		},
	}
	client := newTestClient(mock)

	err := client.Put(context.Background(), table.Item{
		PartitionKey: "USER#u1",
		SortKey:      "METADATA",
		Body:         []byte(`{"email":"alice@example.com"}`),
		IndexAttrs:   map[string]string{table.EmailAttribute: "alice@example.com"},
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if capturedInput == nil {
		t.Fatal("expected PutItem to be called")
	}
	if *capturedInput.TableName != "test-table" {
		t.Errorf("expected table name 'test-table', got %s", *capturedInput.TableName)
	}
	if capturedInput.ConditionExpression != nil {
		t.Error("expected no condition expression on unconditional put")
	}
	if got := stringAttr(t, capturedInput.Item, PartitionKeyAttr); got != "USER#u1" {
		t.Errorf("expected partition key 'USER#u1', got %s", got)
	}
	if got := stringAttr(t, capturedInput.Item, SortKeyAttr); got != "METADATA" {
		t.Errorf("expected sort key 'METADATA', got %s", got)
	}
	if got := stringAttr(t, capturedInput.Item, table.EmailAttribute); got != "alice@example.com" {
		t.Errorf("expected email attribute, got %s", got)
	}
	if _, ok := capturedInput.Item[TTLAttr]; ok {
		t.Error("expected no TTL attribute without an expiry")
	}
}

func TestPut_WithExpiry(t *testing.T) {
	t.Parallel()
	var capturedInput *dynamodb.PutItemInput
	mock := &mockAPI{
		putItemFunc: func(_ context.Context, params *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
			capturedInput = params
			return &dynamodb.PutItemOutput{}, nil
		},
	}
	client := newTestClient(mock)

	err := client.Put(context.Background(), table.Item{
		PartitionKey: "USER#u1",
		SortKey:      "CHARACTER#A#GOAL#g1#2025-01-01T00:00:00Z",
		Body:         []byte(`{"value":42}`),
		ExpiresAt:    1767225600,
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	ttlAttr, ok := capturedInput.Item[TTLAttr].(*dynamodbtypes.AttributeValueMemberN)
	if !ok {
		t.Fatal("expected TTL attribute to be a number")
	}
	if ttlAttr.Value != "1767225600" {
		t.Errorf("expected TTL value 1767225600, got %s", ttlAttr.Value)
	}
}

func TestPut_EmptyKey(t *testing.T) {
	t.Parallel()
	client := newTestClient(&mockAPI{})

	err := client.Put(context.Background(), table.Item{SortKey: "METADATA"})
	if !types.IsValidation(err) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestPut_BackendError(t *testing.T) {
	t.Parallel()
	mock := &mockAPI{
		putItemFunc: func(_ context.Context, _ *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
			return nil, errors.New("throttled")
		},
	}
	client := newTestClient(mock)

	err := client.Put(context.Background(), table.Item{PartitionKey: "USER#u1", SortKey: "METADATA"})
	if !types.IsUnavailable(err) {
		t.Errorf("expected unavailable error, got %v", err)
	}
}

// ==================== PutIfAbsent Tests ====================

func TestPutIfAbsent_Success(t *testing.T) {
	t.Parallel()
	var capturedInput *dynamodb.PutItemInput
	mock := &mockAPI{
		putItemFunc: func(_ context.Context, params *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
			capturedInput = params
			return &dynamodb.PutItemOutput{}, nil
		},
	}
	client := newTestClient(mock)

	err := client.PutIfAbsent(context.Background(), table.Item{
		PartitionKey: "USER#u1",
		SortKey:      "METADATA",
		Body:         []byte(`{}`),
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if capturedInput.ConditionExpression == nil {
		t.Fatal("expected a condition expression")
	}
	if *capturedInput.ConditionExpression != "attribute_not_exists(pk) AND attribute_not_exists(sk)" {
		t.Errorf("unexpected condition expression: %s", *capturedInput.ConditionExpression)
	}
}

func TestPutIfAbsent_ConditionFailed(t *testing.T) {
	t.Parallel()
	mock := &mockAPI{
		putItemFunc: func(_ context.Context, _ *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
			return nil, &dynamodbtypes.ConditionalCheckFailedException{}
		},
	}
	client := newTestClient(mock)

	err := client.PutIfAbsent(context.Background(), table.Item{
		PartitionKey: "USER#u1",
		SortKey:      "METADATA",
	})
	if !errors.Is(err, table.ErrConditionFailed) {
		t.Errorf("expected ErrConditionFailed, got %v", err)
	}
}

func TestPutIfAbsent_BackendError(t *testing.T) {
	t.Parallel()
	mock := &mockAPI{
		putItemFunc: func(_ context.Context, _ *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
			return nil, errors.New("throttled")
		},
	}
	client := newTestClient(mock)

	err := client.PutIfAbsent(context.Background(), table.Item{
		PartitionKey: "USER#u1",
		SortKey:      "METADATA",
	})
	if !types.IsUnavailable(err) {
		t.Errorf("expected unavailable error, got %v", err)
	}
}

// ==================== Get Tests ====================

func TestGet_Success(t *testing.T) {
	t.Parallel()
	mock := &mockAPI{
		getItemFunc: func(_ context.Context, params *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
			return &dynamodb.GetItemOutput{
				Item: map[string]dynamodbtypes.AttributeValue{
					PartitionKeyAttr: &dynamodbtypes.AttributeValueMemberS{Value: "USER#u1"},
					SortKeyAttr:      &dynamodbtypes.AttributeValueMemberS{Value: "METADATA"},
					BodyAttr:         &dynamodbtypes.AttributeValueMemberS{Value: `{"email":"alice@example.com"}`},
					TTLAttr:          &dynamodbtypes.AttributeValueMemberN{Value: "1767225600"},
				},
			}, nil
		},
	}
	client := newTestClient(mock)

	item, err := client.Get(context.Background(), "USER#u1", "METADATA")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if item.PartitionKey != "USER#u1" || item.SortKey != "METADATA" {
		t.Errorf("unexpected item key: %s / %s", item.PartitionKey, item.SortKey)
	}
	if string(item.Body) != `{"email":"alice@example.com"}` {
		t.Errorf("unexpected body: %s", item.Body)
	}
	if item.ExpiresAt != 1767225600 {
		t.Errorf("expected expiry 1767225600, got %d", item.ExpiresAt)
	}
}

func TestGet_NotFound(t *testing.T) {
	t.Parallel()
	client := newTestClient(&mockAPI{})

	_, err := client.Get(context.Background(), "USER#u1", "MISSING")
	if !errors.Is(err, table.ErrItemNotFound) {
		t.Errorf("expected ErrItemNotFound, got %v", err)
	}
}

func TestGet_EmptyKey(t *testing.T) {
	t.Parallel()
	client := newTestClient(&mockAPI{})

	_, err := client.Get(context.Background(), "", "METADATA")
	if !types.IsValidation(err) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestGet_ConsistentReads(t *testing.T) {
	t.Parallel()
	var capturedInput *dynamodb.GetItemInput
	mock := &mockAPI{
		getItemFunc: func(_ context.Context, params *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
			capturedInput = params
			return &dynamodb.GetItemOutput{
				Item: map[string]dynamodbtypes.AttributeValue{
					PartitionKeyAttr: &dynamodbtypes.AttributeValueMemberS{Value: "USER#u1"},
					SortKeyAttr:      &dynamodbtypes.AttributeValueMemberS{Value: "METADATA"},
				},
			}, nil
		},
	}
	client := newTestClient(mock, WithConsistentReads())

	if _, err := client.Get(context.Background(), "USER#u1", "METADATA"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !aws.ToBool(capturedInput.ConsistentRead) {
		t.Error("expected a consistent read")
	}
}

// ==================== QueryPrefix Tests ====================

func queryOutputItem(pk, sk, body string) map[string]dynamodbtypes.AttributeValue {
	return map[string]dynamodbtypes.AttributeValue{
		PartitionKeyAttr: &dynamodbtypes.AttributeValueMemberS{Value: pk},
		SortKeyAttr:      &dynamodbtypes.AttributeValueMemberS{Value: sk},
		BodyAttr:         &dynamodbtypes.AttributeValueMemberS{Value: body},
	}
}

func TestQueryPrefix_BeginsWith(t *testing.T) {
	t.Parallel()
	var capturedInput *dynamodb.QueryInput
	mock := &mockAPI{
		queryFunc: func(_ context.Context, params *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
			capturedInput = params
			return &dynamodb.QueryOutput{
				Items: []map[string]dynamodbtypes.AttributeValue{
					queryOutputItem("USER#u1", "CHARACTER#METADATA#PlayerOne", `{"name":"PlayerOne"}`),
				},
			}, nil
		},
	}
	client := newTestClient(mock)

	page, err := client.QueryPrefix(context.Background(), "USER#u1", "CHARACTER#METADATA#", table.QueryOptions{})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if *capturedInput.KeyConditionExpression != "pk = :pk AND begins_with(sk, :prefix)" {
		t.Errorf("unexpected key condition: %s", *capturedInput.KeyConditionExpression)
	}
	if got := capturedInput.ExpressionAttributeValues[":prefix"].(*dynamodbtypes.AttributeValueMemberS).Value; got != "CHARACTER#METADATA#" {
		t.Errorf("unexpected prefix value: %s", got)
	}
	if len(page.Items) != 1 || page.Items[0].SortKey != "CHARACTER#METADATA#PlayerOne" {
		t.Errorf("unexpected page items: %+v", page.Items)
	}
	if page.NextToken != "" {
		t.Errorf("expected no next token, got %s", page.NextToken)
	}
}

func TestQueryPrefix_RangeBounds(t *testing.T) {
	t.Parallel()
	var capturedInput *dynamodb.QueryInput
	mock := &mockAPI{
		queryFunc: func(_ context.Context, params *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
			capturedInput = params
			return &dynamodb.QueryOutput{}, nil
		},
	}
	client := newTestClient(mock)

	_, err := client.QueryPrefix(context.Background(), "USER#u1", "CHARACTER#A#GOAL#g1#", table.QueryOptions{
		FromSortKey: "CHARACTER#A#GOAL#g1#2025-01-01T00:00:00Z",
		ToSortKey:   "CHARACTER#A#GOAL#g1#2025-01-31T00:00:00Z",
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if *capturedInput.KeyConditionExpression != "pk = :pk AND sk BETWEEN :from AND :to" {
		t.Errorf("unexpected key condition: %s", *capturedInput.KeyConditionExpression)
	}
	from := capturedInput.ExpressionAttributeValues[":from"].(*dynamodbtypes.AttributeValueMemberS).Value
	to := capturedInput.ExpressionAttributeValues[":to"].(*dynamodbtypes.AttributeValueMemberS).Value
	if from != "CHARACTER#A#GOAL#g1#2025-01-01T00:00:00Z" {
		t.Errorf("unexpected from bound: %s", from)
	}
	if to != "CHARACTER#A#GOAL#g1#2025-01-31T00:00:00Z" {
		t.Errorf("unexpected to bound: %s", to)
	}
}

func TestQueryPrefix_FromBoundOnly(t *testing.T) {
	t.Parallel()
	var capturedInput *dynamodb.QueryInput
	mock := &mockAPI{
		queryFunc: func(_ context.Context, params *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
			capturedInput = params
			return &dynamodb.QueryOutput{}, nil
		},
	}
	client := newTestClient(mock)

	_, err := client.QueryPrefix(context.Background(), "USER#u1", "CHARACTER#A#GOAL#g1#", table.QueryOptions{
		FromSortKey: "CHARACTER#A#GOAL#g1#2025-01-15T00:00:00Z",
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	to := capturedInput.ExpressionAttributeValues[":to"].(*dynamodbtypes.AttributeValueMemberS).Value
	if !strings.HasPrefix(to, "CHARACTER#A#GOAL#g1#") {
		t.Errorf("expected upper bound derived from prefix, got %s", to)
	}
	if to <= "CHARACTER#A#GOAL#g1#2025-01-15T00:00:00Z" {
		t.Errorf("upper bound %s does not cover the range", to)
	}
}

func TestQueryPrefix_Pagination(t *testing.T) {
	t.Parallel()
	var capturedInput *dynamodb.QueryInput
	mock := &mockAPI{
		queryFunc: func(_ context.Context, params *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
			capturedInput = params
			return &dynamodb.QueryOutput{
				Items: []map[string]dynamodbtypes.AttributeValue{
					queryOutputItem("USER#u1", "NOTIFICATION#DISCORD", `{}`),
					queryOutputItem("USER#u1", "NOTIFICATION#SMS", `{}`),
				},
				LastEvaluatedKey: map[string]dynamodbtypes.AttributeValue{
					PartitionKeyAttr: &dynamodbtypes.AttributeValueMemberS{Value: "USER#u1"},
					SortKeyAttr:      &dynamodbtypes.AttributeValueMemberS{Value: "NOTIFICATION#SMS"},
				},
			}, nil
		},
	}
	client := newTestClient(mock)

	page, err := client.QueryPrefix(context.Background(), "USER#u1", "NOTIFICATION#", table.QueryOptions{Limit: 2})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if aws.ToInt32(capturedInput.Limit) != 2 {
		t.Errorf("expected limit 2, got %d", aws.ToInt32(capturedInput.Limit))
	}
	if page.NextToken == "" {
		t.Fatal("expected a next token")
	}

	// Resume from the token and verify it becomes the exclusive start key.
	_, err = client.QueryPrefix(context.Background(), "USER#u1", "NOTIFICATION#", table.QueryOptions{
		Limit:      2,
		StartToken: page.NextToken,
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if capturedInput.ExclusiveStartKey == nil {
		t.Fatal("expected an exclusive start key")
	}
	if got := stringAttr(t, capturedInput.ExclusiveStartKey, SortKeyAttr); got != "NOTIFICATION#SMS" {
		t.Errorf("expected exclusive start at NOTIFICATION#SMS, got %s", got)
	}
}

func TestQueryPrefix_TokenPartitionMismatch(t *testing.T) {
	t.Parallel()
	client := newTestClient(&mockAPI{})

	token := table.EncodeToken("USER#other", "METADATA")
	_, err := client.QueryPrefix(context.Background(), "USER#u1", "", table.QueryOptions{StartToken: token})
	if !types.IsValidation(err) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestQueryPrefix_InvalidToken(t *testing.T) {
	t.Parallel()
	client := newTestClient(&mockAPI{})

	_, err := client.QueryPrefix(context.Background(), "USER#u1", "", table.QueryOptions{StartToken: "not-a-token"})
	if !types.IsValidation(err) {
		t.Errorf("expected validation error, got %v", err)
	}
}

// ==================== QueryIndex Tests ====================

func TestQueryIndex_Success(t *testing.T) {
	t.Parallel()
	var capturedInput *dynamodb.QueryInput
	mock := &mockAPI{
		queryFunc: func(_ context.Context, params *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
			capturedInput = params
			return &dynamodb.QueryOutput{
				Items: []map[string]dynamodbtypes.AttributeValue{
					queryOutputItem("USER#u1", "METADATA", `{"email":"alice@example.com"}`),
				},
			}, nil
		},
	}
	client := newTestClient(mock)

	items, err := client.QueryIndex(context.Background(), table.EmailIndex, table.EmailAttribute, "alice@example.com")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if aws.ToString(capturedInput.IndexName) != table.EmailIndex {
		t.Errorf("expected index %s, got %s", table.EmailIndex, aws.ToString(capturedInput.IndexName))
	}
	if capturedInput.ExpressionAttributeNames["#attr"] != table.EmailAttribute {
		t.Errorf("unexpected attribute name mapping: %v", capturedInput.ExpressionAttributeNames)
	}
	if len(items) != 1 || items[0].PartitionKey != "USER#u1" {
		t.Errorf("unexpected items: %+v", items)
	}
}

func TestQueryIndex_PaginatesAllResults(t *testing.T) {
	t.Parallel()
	calls := 0
	mock := &mockAPI{
		queryFunc: func(_ context.Context, params *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
			calls++
			if calls == 1 {
				return &dynamodb.QueryOutput{
					Items: []map[string]dynamodbtypes.AttributeValue{
						queryOutputItem("USER#u1", "METADATA", `{}`),
					},
					LastEvaluatedKey: map[string]dynamodbtypes.AttributeValue{
						PartitionKeyAttr: &dynamodbtypes.AttributeValueMemberS{Value: "USER#u1"},
						SortKeyAttr:      &dynamodbtypes.AttributeValueMemberS{Value: "METADATA"},
					},
				}, nil
			}
			if params.ExclusiveStartKey == nil {
				t.Error("expected exclusive start key on second call")
			}
			return &dynamodb.QueryOutput{
				Items: []map[string]dynamodbtypes.AttributeValue{
					queryOutputItem("USER#u2", "METADATA", `{}`),
				},
			}, nil
		},
	}
	client := newTestClient(mock)

	items, err := client.QueryIndex(context.Background(), table.EmailIndex, table.EmailAttribute, "shared@example.com")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if calls != 2 {
		t.Errorf("expected 2 query calls, got %d", calls)
	}
	if len(items) != 2 {
		t.Errorf("expected 2 items, got %d", len(items))
	}
}

func TestQueryIndex_EmptyValue(t *testing.T) {
	t.Parallel()
	client := newTestClient(&mockAPI{})

	_, err := client.QueryIndex(context.Background(), table.EmailIndex, table.EmailAttribute, "")
	if !types.IsValidation(err) {
		t.Errorf("expected validation error, got %v", err)
	}
}

// ==================== DropAllData Tests ====================

func TestDropAllData_DeletesScannedItems(t *testing.T) {
	t.Parallel()
	var deleted []string
	mock := &mockAPI{
		scanFunc: func(_ context.Context, params *dynamodb.ScanInput, _ ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
			if params.ExclusiveStartKey != nil {
				return &dynamodb.ScanOutput{}, nil
			}
			return &dynamodb.ScanOutput{
				Items: []map[string]dynamodbtypes.AttributeValue{
					queryOutputItem("USER#u1", "METADATA", `{}`),
					queryOutputItem("USER#u1", "NOTIFICATION#SMS", `{}`),
				},
			}, nil
		},
		batchWriteItemFunc: func(_ context.Context, params *dynamodb.BatchWriteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error) {
			for _, request := range params.RequestItems["test-table"] {
				key, ok := request.DeleteRequest.Key[SortKeyAttr].(*dynamodbtypes.AttributeValueMemberS)
				if !ok {
					t.Error("expected sort key in delete request")
					continue
				}
				deleted = append(deleted, key.Value)
			}
			return &dynamodb.BatchWriteItemOutput{}, nil
		},
	}
	client := newTestClient(mock)

	if err := client.DropAllData(context.Background()); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(deleted) != 2 {
		t.Errorf("expected 2 deletions, got %d", len(deleted))
	}
}
