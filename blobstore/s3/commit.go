package s3

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// CommitStore coordinates snapshot generations on top of an S3 store.
//
// S3 has no compare-and-swap, so the pointer to the currently committed
// snapshot lives in DynamoDB: each successful upload commits a monotonically
// increasing generation with a conditional write. Readers resolve the latest
// committed generation before opening the snapshot blob, which makes
// concurrent backup writers safe.
//
// Table schema:
//   - Partition key: base_uri (string) — the S3 prefix/path
//   - Sort key: generation (number) — monotonically increasing
//
// Create with:
//
//	aws dynamodb create-table \
//	  --table-name docgo-commits \
//	  --attribute-definitions AttributeName=base_uri,AttributeType=S AttributeName=generation,AttributeType=N \
//	  --key-schema AttributeName=base_uri,KeyType=HASH AttributeName=generation,KeyType=RANGE \
//	  --billing-mode PAY_PER_REQUEST
type CommitStore struct {
	store     *Store
	ddbClient DDBClient
	tableName string
	baseURI   string
}

// DDBClient is the interface for DynamoDB operations, narrow for testing.
type DDBClient interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// ErrConcurrentCommit is returned when another writer committed the same
// generation first.
var ErrConcurrentCommit = errors.New("s3: concurrent snapshot commit detected")

// NewCommitStore creates a commit store over an S3 store.
// baseURI (e.g. "s3://bucket/prefix") is the DynamoDB partition key.
func NewCommitStore(store *Store, ddbClient DDBClient, tableName, baseURI string) *CommitStore {
	return &CommitStore{
		store:     store,
		ddbClient: ddbClient,
		tableName: tableName,
		baseURI:   baseURI,
	}
}

// Commit records blobName as the next committed snapshot generation.
func (s *CommitStore) Commit(ctx context.Context, blobName string) (uint64, error) {
	gen, _, err := s.Current(ctx)
	if err != nil {
		return 0, err
	}
	next := gen + 1

	_, err = s.ddbClient.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item: map[string]types.AttributeValue{
			"base_uri":   &types.AttributeValueMemberS{Value: s.baseURI},
			"generation": &types.AttributeValueMemberN{Value: strconv.FormatUint(next, 10)},
			"blob":       &types.AttributeValueMemberS{Value: blobName},
		},
		ConditionExpression: aws.String("attribute_not_exists(generation)"),
	})
	if err != nil {
		var cfe *types.ConditionalCheckFailedException
		if errors.As(err, &cfe) {
			return 0, ErrConcurrentCommit
		}
		return 0, fmt.Errorf("s3: commit generation: %w", err)
	}
	return next, nil
}

// Current returns the latest committed generation and its blob name.
// Generation 0 means no snapshot has been committed yet.
func (s *CommitStore) Current(ctx context.Context) (uint64, string, error) {
	resp, err := s.ddbClient.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.tableName),
		KeyConditionExpression: aws.String("base_uri = :uri"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":uri": &types.AttributeValueMemberS{Value: s.baseURI},
		},
		ScanIndexForward: aws.Bool(false),
		Limit:            aws.Int32(1),
	})
	if err != nil {
		return 0, "", fmt.Errorf("s3: query current generation: %w", err)
	}
	if len(resp.Items) == 0 {
		return 0, "", nil
	}

	genAttr, ok := resp.Items[0]["generation"].(*types.AttributeValueMemberN)
	if !ok {
		return 0, "", errors.New("s3: malformed commit item: missing generation")
	}
	gen, err := strconv.ParseUint(genAttr.Value, 10, 64)
	if err != nil {
		return 0, "", fmt.Errorf("s3: malformed generation: %w", err)
	}

	var blob string
	if blobAttr, ok := resp.Items[0]["blob"].(*types.AttributeValueMemberS); ok {
		blob = blobAttr.Value
	}
	return gen, blob, nil
}

// Store returns the underlying S3 store for blob IO.
func (s *CommitStore) Store() *Store { return s.store }
