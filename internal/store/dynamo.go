package store

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/rs/zerolog/log"
)

// keyAttr is the partition key attribute of the jobs table.
const keyAttr = "jobId"

// DynamoAPI is the subset of the DynamoDB client used by DynamoStore.
type DynamoAPI interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
}

// DynamoStore implements JobStore using AWS DynamoDB.
type DynamoStore struct {
	client    DynamoAPI
	tableName string
}

// Compile-time interface check.
var _ JobStore = (*DynamoStore)(nil)

// NewDynamoStore creates a DynamoStore for the given table.
func NewDynamoStore(client DynamoAPI, tableName string) *DynamoStore {
	return &DynamoStore{
		client:    client,
		tableName: tableName,
	}
}

func (s *DynamoStore) PutJob(ctx context.Context, job *Job) error {
	if job.ID == "" {
		return fmt.Errorf("put job: empty job id")
	}
	item, err := attributevalue.MarshalMap(job)
	if err != nil {
		return fmt.Errorf("put job %s: marshal: %w", job.ID, err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: &s.tableName,
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("put job %s: PutItem: %w", job.ID, err)
	}

	evt := log.Debug().
		Str("jobId", job.ID).
		Str("status", string(job.Status)).
		Str("filename", job.Filename)
	if job.Results != nil {
		evt = evt.Int("treesCut", job.Results.TreesCut)
	}
	evt.Msg("Job persisted")
	return nil
}

func (s *DynamoStore) GetJob(ctx context.Context, jobID string) (*Job, error) {
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: &s.tableName,
		Key: map[string]types.AttributeValue{
			keyAttr: &types.AttributeValueMemberS{Value: jobID},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("get job %s: GetItem: %w", jobID, err)
	}
	if result.Item == nil {
		log.Debug().Str("jobId", jobID).Bool("found", false).Msg("GetJob: job not found")
		return nil, nil
	}

	var job Job
	if err := attributevalue.UnmarshalMap(result.Item, &job); err != nil {
		return nil, fmt.Errorf("get job %s: unmarshal: %w", jobID, err)
	}
	log.Debug().Str("jobId", jobID).Str("status", string(job.Status)).Bool("found", true).Msg("GetJob: job retrieved")
	return &job, nil
}
