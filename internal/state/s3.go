package state

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	dbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"

	"github.com/picket-io/picket/internal/ir"
	"github.com/picket-io/picket/internal/logging"
)

// s3Backend stores state in an S3 object and takes the deployment lock
// via a DynamoDB conditional put.
type s3Backend struct {
	bucket  string
	key     string
	region  string
	table   string
	encrypt bool
	profile string

	s3Client *s3.Client
	dbClient *dynamodb.Client
}

func newS3Backend(settings map[string]string) (Backend, error) {
	bucket := settings["bucket"]
	if bucket == "" {
		return nil, fmt.Errorf("s3 backend requires 'bucket'")
	}
	key := settings["key"]
	if key == "" {
		key = "picket/state.json"
	}
	region := settings["region"]
	if region == "" {
		region = "us-east-1"
	}

	b := &s3Backend{
		bucket:  bucket,
		key:     key,
		region:  region,
		table:   settings["dynamodb_table"],
		encrypt: settings["encrypt"] == "true",
		profile: settings["profile"],
	}

	var opts []func(*awsconfig.LoadOptions) error
	opts = append(opts, awsconfig.WithRegion(b.region))
	if b.profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(b.profile))
	}
	cfg, err := awsconfig.LoadDefaultConfig(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("unable to load AWS config: %w", err)
	}
	b.s3Client = s3.NewFromConfig(cfg)
	if b.table != "" {
		b.dbClient = dynamodb.NewFromConfig(cfg)
	}
	return b, nil
}

func (b *s3Backend) Read(ctx context.Context) (*ir.State, error) {
	result, err := b.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.key),
	})
	if err != nil {
		var nsk *s3types.NoSuchKey
		if errors.As(err, &nsk) || strings.Contains(err.Error(), "NoSuchKey") || strings.Contains(err.Error(), "404") {
			return ir.NewState(""), nil
		}
		return nil, fmt.Errorf("failed to read state from s3://%s/%s: %w", b.bucket, b.key, err)
	}
	defer result.Body.Close()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(result.Body); err != nil {
		return nil, fmt.Errorf("failed to read S3 object body: %w", err)
	}

	content, err := Decrypt(buf.Bytes())
	if err != nil {
		return nil, err
	}
	var st ir.State
	if err := json.Unmarshal(content, &st); err != nil {
		return nil, fmt.Errorf("failed to parse remote state: %w", err)
	}
	return &st, nil
}

func (b *s3Backend) Write(ctx context.Context, st *ir.State) error {
	content, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return &PersistError{Path: b.objectURL(), Err: err}
	}
	content, err = Encrypt(content)
	if err != nil {
		return &PersistError{Path: b.objectURL(), Err: err}
	}

	input := &s3.PutObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.key),
		Body:   bytes.NewReader(content),
	}
	if b.encrypt {
		input.ServerSideEncryption = s3types.ServerSideEncryptionAes256
	}
	if _, err := b.s3Client.PutObject(ctx, input); err != nil {
		return &PersistError{Path: b.objectURL(), Err: err}
	}
	return nil
}

// Snapshot archives the state under a history prefix beside the state
// object, one object per serial.
func (b *s3Backend) Snapshot(ctx context.Context, st *ir.State) error {
	content, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return &PersistError{Path: b.snapshotKey(st.Serial), Err: err}
	}
	content, err = Encrypt(content)
	if err != nil {
		return &PersistError{Path: b.snapshotKey(st.Serial), Err: err}
	}

	input := &s3.PutObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.snapshotKey(st.Serial)),
		Body:   bytes.NewReader(content),
	}
	if b.encrypt {
		input.ServerSideEncryption = s3types.ServerSideEncryptionAes256
	}
	if _, err := b.s3Client.PutObject(ctx, input); err != nil {
		return &PersistError{Path: b.snapshotKey(st.Serial), Err: err}
	}
	return nil
}

func (b *s3Backend) ReadSnapshot(ctx context.Context, serial int) (*ir.State, error) {
	result, err := b.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.snapshotKey(serial)),
	})
	if err != nil {
		var nsk *s3types.NoSuchKey
		if errors.As(err, &nsk) || strings.Contains(err.Error(), "NoSuchKey") || strings.Contains(err.Error(), "404") {
			return nil, fmt.Errorf("no state snapshot for serial %d", serial)
		}
		return nil, fmt.Errorf("failed to read state snapshot s3://%s/%s: %w", b.bucket, b.snapshotKey(serial), err)
	}
	defer result.Body.Close()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(result.Body); err != nil {
		return nil, fmt.Errorf("failed to read S3 object body: %w", err)
	}

	content, err := Decrypt(buf.Bytes())
	if err != nil {
		return nil, err
	}
	var st ir.State
	if err := json.Unmarshal(content, &st); err != nil {
		return nil, fmt.Errorf("failed to parse state snapshot: %w", err)
	}
	return &st, nil
}

func (b *s3Backend) Snapshots(ctx context.Context) ([]int, error) {
	prefix := b.historyPrefix()
	var serials []int
	var token *string
	for {
		out, err := b.s3Client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(b.bucket),
			Prefix:            aws.String(prefix),
			ContinuationToken: token,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list state snapshots under s3://%s/%s: %w", b.bucket, prefix, err)
		}
		for _, obj := range out.Contents {
			serial, err := strconv.Atoi(strings.TrimPrefix(aws.ToString(obj.Key), prefix))
			if err != nil {
				continue
			}
			serials = append(serials, serial)
		}
		if out.NextContinuationToken == nil {
			break
		}
		token = out.NextContinuationToken
	}
	sort.Ints(serials)
	return serials, nil
}

func (b *s3Backend) historyPrefix() string {
	return b.key + ".history/"
}

func (b *s3Backend) snapshotKey(serial int) string {
	return fmt.Sprintf("%s%d", b.historyPrefix(), serial)
}

func (b *s3Backend) AcquireLock(ctx context.Context, holder string, ttl time.Duration) (*Lock, error) {
	if b.dbClient == nil {
		// No lock table configured; the S3 object alone cannot exclude
		// concurrent writers.
		logging.Warn("s3 backend has no dynamodb_table, skipping lock")
		return &Lock{ID: uuid.NewString(), Holder: holder, AcquiredAt: time.Now().UTC(), TTL: ttl}, nil
	}
	if ttl <= 0 {
		ttl = DefaultLockTTL
	}
	lock := &Lock{
		ID:         uuid.NewString(),
		Holder:     holder,
		AcquiredAt: time.Now().UTC(),
		TTL:        ttl,
	}

	err := b.putLockItem(ctx, lock)
	if err == nil {
		return lock, nil
	}
	var ccf *dbtypes.ConditionalCheckFailedException
	if !errors.As(err, &ccf) && !strings.Contains(err.Error(), "ConditionalCheckFailed") {
		return nil, fmt.Errorf("failed to acquire lock: %w", err)
	}

	prior, err := b.getLockItem(ctx)
	if err != nil {
		return nil, err
	}
	if prior == nil || !prior.Expired(time.Now()) {
		if prior == nil {
			prior = &Lock{Holder: "unknown"}
		}
		return nil, &LockContentionError{Holder: prior.Holder, AcquiredAt: prior.AcquiredAt, TTL: prior.TTL}
	}

	// Reclaim the expired lock only if it is still exactly the one we
	// observed.
	logging.Warn("reclaiming expired state lock", "holder", prior.Holder, "acquired_at", prior.AcquiredAt)
	_, err = b.dbClient.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:           aws.String(b.table),
		Key:                 map[string]dbtypes.AttributeValue{"LockID": &dbtypes.AttributeValueMemberS{Value: b.key}},
		ConditionExpression: aws.String("Info = :info"),
		ExpressionAttributeValues: map[string]dbtypes.AttributeValue{
			":info": &dbtypes.AttributeValueMemberS{Value: prior.ID},
		},
	})
	if err != nil {
		return nil, &LockContentionError{Holder: prior.Holder, AcquiredAt: prior.AcquiredAt, TTL: prior.TTL}
	}
	if err := b.putLockItem(ctx, lock); err != nil {
		return nil, &LockContentionError{Holder: prior.Holder, AcquiredAt: prior.AcquiredAt, TTL: prior.TTL}
	}
	return lock, nil
}

func (b *s3Backend) ReleaseLock(ctx context.Context, lock *Lock) error {
	if b.dbClient == nil {
		return nil
	}
	_, err := b.dbClient.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:           aws.String(b.table),
		Key:                 map[string]dbtypes.AttributeValue{"LockID": &dbtypes.AttributeValueMemberS{Value: b.key}},
		ConditionExpression: aws.String("Info = :info"),
		ExpressionAttributeValues: map[string]dbtypes.AttributeValue{
			":info": &dbtypes.AttributeValueMemberS{Value: lock.ID},
		},
	})
	if err != nil && !strings.Contains(err.Error(), "ConditionalCheckFailed") {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	return nil
}

func (b *s3Backend) putLockItem(ctx context.Context, lock *Lock) error {
	_, err := b.dbClient.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(b.table),
		Item: map[string]dbtypes.AttributeValue{
			"LockID":     &dbtypes.AttributeValueMemberS{Value: b.key},
			"Info":       &dbtypes.AttributeValueMemberS{Value: lock.ID},
			"Holder":     &dbtypes.AttributeValueMemberS{Value: lock.Holder},
			"AcquiredAt": &dbtypes.AttributeValueMemberS{Value: lock.AcquiredAt.Format(time.RFC3339)},
			"TTLSeconds": &dbtypes.AttributeValueMemberN{Value: strconv.FormatInt(int64(lock.TTL.Seconds()), 10)},
		},
		ConditionExpression: aws.String("attribute_not_exists(LockID)"),
	})
	return err
}

func (b *s3Backend) getLockItem(ctx context.Context) (*Lock, error) {
	out, err := b.dbClient.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(b.table),
		Key:            map[string]dbtypes.AttributeValue{"LockID": &dbtypes.AttributeValueMemberS{Value: b.key}},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read lock item: %w", err)
	}
	if out.Item == nil {
		return nil, nil
	}
	lock := &Lock{}
	if v, ok := out.Item["Info"].(*dbtypes.AttributeValueMemberS); ok {
		lock.ID = v.Value
	}
	if v, ok := out.Item["Holder"].(*dbtypes.AttributeValueMemberS); ok {
		lock.Holder = v.Value
	}
	if v, ok := out.Item["AcquiredAt"].(*dbtypes.AttributeValueMemberS); ok {
		if t, err := time.Parse(time.RFC3339, v.Value); err == nil {
			lock.AcquiredAt = t
		}
	}
	if v, ok := out.Item["TTLSeconds"].(*dbtypes.AttributeValueMemberN); ok {
		if n, err := strconv.ParseInt(v.Value, 10, 64); err == nil {
			lock.TTL = time.Duration(n) * time.Second
		}
	}
	return lock, nil
}

func (b *s3Backend) objectURL() string {
	return fmt.Sprintf("s3://%s/%s", b.bucket, b.key)
}
