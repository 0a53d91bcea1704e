package store

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"go.uber.org/zap"

	pipeerrors "github.com/eventlake/eventlake/internal/errors"
	"github.com/eventlake/eventlake/pkg/types"
)

// dynamoAPI is the subset of the DynamoDB client used by DynamoStore.
type dynamoAPI interface {
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

// DynamoConfig holds configuration for the DynamoDB store.
type DynamoConfig struct {
	Region string
	// Endpoint is an optional custom endpoint (DynamoDB Local, LocalStack).
	Endpoint string
	// MaxAttempts caps SDK-level attempts per request (default 1).
	MaxAttempts int
}

// DynamoStore writes events to a DynamoDB table.
type DynamoStore struct {
	client dynamoAPI
	table  string
	log    *zap.Logger
}

// NewDynamoStore creates a DynamoDB-backed store for table.
func NewDynamoStore(ctx context.Context, table string, cfg DynamoConfig, log *zap.Logger) (*DynamoStore, error) {
	var opts []func(*config.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	opts = append(opts, config.WithRetryMaxAttempts(maxAttempts))

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var ddbOpts []func(*dynamodb.Options)
	if cfg.Endpoint != "" {
		ddbOpts = append(ddbOpts, func(o *dynamodb.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}

	return NewDynamoStoreWithClient(dynamodb.NewFromConfig(awsCfg, ddbOpts...), table, log), nil
}

// NewDynamoStoreWithClient creates a store around an existing client.
func NewDynamoStoreWithClient(client dynamoAPI, table string, log *zap.Logger) *DynamoStore {
	if log == nil {
		log = zap.NewNop()
	}
	return &DynamoStore{client: client, table: table, log: log}
}

// PutEvent writes ev with a single PutItem call.
func (d *DynamoStore) PutEvent(ctx context.Context, ev types.RawEvent) error {
	_, err := d.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(d.table),
		Item:      ToAttributeMap(EventItem(ev)),
	})
	if err != nil {
		d.log.Error("dynamodb put failed", zap.String("table", d.table), zap.String("user_id", ev.UserID), zap.Error(err))
		return pipeerrors.NewStoreError(pipeerrors.CodeWriteFailed, "failed to write event", err).
			WithDetails(map[string]interface{}{"table": d.table})
	}
	return nil
}
