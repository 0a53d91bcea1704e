package stream

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/kinesis"
	"go.uber.org/zap"

	pipeerrors "github.com/eventlake/eventlake/internal/errors"
)

// kinesisAPI is the subset of the Kinesis client used by KinesisPublisher.
type kinesisAPI interface {
	PutRecord(ctx context.Context, in *kinesis.PutRecordInput, optFns ...func(*kinesis.Options)) (*kinesis.PutRecordOutput, error)
}

// KinesisConfig holds configuration for the Kinesis publisher.
type KinesisConfig struct {
	Region      string
	Endpoint    string
	MaxAttempts int
}

// KinesisPublisher publishes records to a Kinesis data stream.
type KinesisPublisher struct {
	client     kinesisAPI
	streamName string
	log        *zap.Logger
}

// NewKinesisPublisher creates a publisher for streamName.
func NewKinesisPublisher(ctx context.Context, streamName string, cfg KinesisConfig, log *zap.Logger) (*KinesisPublisher, error) {
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

	var kOpts []func(*kinesis.Options)
	if cfg.Endpoint != "" {
		kOpts = append(kOpts, func(o *kinesis.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}

	return NewKinesisPublisherWithClient(kinesis.NewFromConfig(awsCfg, kOpts...), streamName, log), nil
}

// NewKinesisPublisherWithClient creates a publisher around an existing client.
func NewKinesisPublisherWithClient(client kinesisAPI, streamName string, log *zap.Logger) *KinesisPublisher {
	if log == nil {
		log = zap.NewNop()
	}
	return &KinesisPublisher{client: client, streamName: streamName, log: log}
}

// Publish puts data as a single record keyed by partitionKey.
func (k *KinesisPublisher) Publish(ctx context.Context, partitionKey string, data []byte) error {
	out, err := k.client.PutRecord(ctx, &kinesis.PutRecordInput{
		StreamName:   aws.String(k.streamName),
		PartitionKey: aws.String(partitionKey),
		Data:         data,
	})
	if err != nil {
		return pipeerrors.NewStreamError("failed to publish record", err).
			WithDetails(map[string]interface{}{"stream": k.streamName})
	}
	k.log.Debug("record published",
		zap.String("stream", k.streamName),
		zap.String("shard", aws.ToString(out.ShardId)),
		zap.String("sequence", aws.ToString(out.SequenceNumber)))
	return nil
}
