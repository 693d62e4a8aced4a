// Package dynamodb implements domain.Store on a single DynamoDB table.
//
// Key layout:
//
//	users/{userId}/{collection}/{barcode}   PK=USER#{userId}  SK={COLLECTION}#{barcode}
//	users/{userId}/emotion_status/{date}    PK=USER#{userId}  SK=EMOTION#{date}
//	foods/{barcode}                         PK=CATALOG        SK=FOOD#{barcode}
//	lock on {resource}                      PK=LOCK#{resource} SK=LOCK
package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/moodbite/backend/internal/domain"
)

// maxTransactItems is the DynamoDB limit on items per TransactWriteItems call
const maxTransactItems = 100

const (
	catalogPK    = "CATALOG"
	foodPrefix   = "FOOD#"
	moodPrefix   = "EMOTION#"
	lockSK       = "LOCK"
	entityRecord = "NutritionRecord"
	entityMood   = "MoodRecord"

	lockAcquireCondition = "attribute_not_exists(PK) OR ExpiresAt < :now"
	lockReleaseCondition = "LockID = :lockId"
)

// API is the subset of *dynamodb.Client the store uses
type API interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	TransactWriteItems(ctx context.Context, params *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

// ddbRecord represents a nutrition record item in DynamoDB
type ddbRecord struct {
	PK            string  `dynamodbav:"PK"`
	SK            string  `dynamodbav:"SK"`
	EntityType    string  `dynamodbav:"EntityType"`
	Barcode       string  `dynamodbav:"Barcode"`
	ProductName   string  `dynamodbav:"ProductName"`
	EnergyKj      float64 `dynamodbav:"EnergyKj"`
	EnergyKcal    float64 `dynamodbav:"EnergyKcal"`
	Carbohydrates float64 `dynamodbav:"Carbohydrates"`
	Sugars        float64 `dynamodbav:"Sugars"`
	Fat           float64 `dynamodbav:"Fat"`
	Proteins      float64 `dynamodbav:"Proteins"`
	ScanDate      string  `dynamodbav:"ScanDate"`
}

func toDDB(pk, sk string, r domain.NutritionRecord) ddbRecord {
	return ddbRecord{
		PK:            pk,
		SK:            sk,
		EntityType:    entityRecord,
		Barcode:       r.Barcode,
		ProductName:   r.ProductName,
		EnergyKj:      r.EnergyKj,
		EnergyKcal:    r.EnergyKcal,
		Carbohydrates: r.Carbohydrates,
		Sugars:        r.Sugars,
		Fat:           r.Fat,
		Proteins:      r.Proteins,
		ScanDate:      r.ScanDate,
	}
}

func (d ddbRecord) toDomain() domain.NutritionRecord {
	return domain.NutritionRecord{
		Barcode:       d.Barcode,
		ProductName:   d.ProductName,
		EnergyKj:      d.EnergyKj,
		EnergyKcal:    d.EnergyKcal,
		Carbohydrates: d.Carbohydrates,
		Sugars:        d.Sugars,
		Fat:           d.Fat,
		Proteins:      d.Proteins,
		ScanDate:      d.ScanDate,
	}
}

// ddbMood represents a mood item in DynamoDB
type ddbMood struct {
	PK         string `dynamodbav:"PK"`
	SK         string `dynamodbav:"SK"`
	EntityType string `dynamodbav:"EntityType"`
	Date       string `dynamodbav:"Date"`
	Mood       string `dynamodbav:"Mood"`
}

// ddbLock represents a lock item in DynamoDB
type ddbLock struct {
	PK         string `dynamodbav:"PK"`
	SK         string `dynamodbav:"SK"`
	LockID     string `dynamodbav:"LockID"`
	Owner      string `dynamodbav:"Owner"`
	AcquiredAt string `dynamodbav:"AcquiredAt"`
	ExpiresAt  int64  `dynamodbav:"ExpiresAt"` // unix millis
	TTL        int64  `dynamodbav:"TTL"`       // unix seconds, for DynamoDB TTL
}

// Store is the DynamoDB-backed domain.Store
type Store struct {
	client    API
	tableName string
	logger    *zap.Logger
	now       func() time.Time
}

// New creates a store on the given table
func New(client API, tableName string, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		client:    client,
		tableName: tableName,
		logger:    logger.Named("dynamodb"),
		now:       time.Now,
	}
}

func userPK(userID string) string {
	return "USER#" + userID
}

func collectionPrefix(c domain.Collection) string {
	return strings.ToUpper(string(c)) + "#"
}

func storeErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", domain.ErrStore, op, err)
}

func key(pk, sk string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: pk},
		"SK": &types.AttributeValueMemberS{Value: sk},
	}
}

// Add upserts a record; PutItem replaces any previous item with the same key
func (s *Store) Add(ctx context.Context, userID string, collection domain.Collection, record domain.NutritionRecord) error {
	if err := domain.ValidateScope(userID, collection); err != nil {
		return err
	}
	if err := domain.ValidateRecord(record); err != nil {
		return err
	}

	item, err := attributevalue.MarshalMap(toDDB(userPK(userID), collectionPrefix(collection)+record.Barcode, record))
	if err != nil {
		return storeErr("marshal record", err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      item,
	})
	if err != nil {
		return storeErr("put record", err)
	}

	s.logger.Debug("record stored",
		zap.String("userID", userID),
		zap.String("collection", string(collection)),
		zap.String("barcode", record.Barcode),
	)
	return nil
}

// List queries every record of a collection, in sort key order
func (s *Store) List(ctx context.Context, userID string, collection domain.Collection) ([]domain.NutritionRecord, error) {
	if err := domain.ValidateScope(userID, collection); err != nil {
		return nil, err
	}

	var items []ddbRecord
	if err := s.queryPrefix(ctx, userPK(userID), collectionPrefix(collection), 0, &items); err != nil {
		return nil, err
	}

	records := make([]domain.NutritionRecord, 0, len(items))
	for _, item := range items {
		records = append(records, item.toDomain())
	}
	return records, nil
}

// Delete removes a record; DeleteItem on a missing key succeeds
func (s *Store) Delete(ctx context.Context, userID string, collection domain.Collection, barcode string) error {
	if err := domain.ValidateScope(userID, collection); err != nil {
		return err
	}
	if barcode == "" {
		return fmt.Errorf("%w: barcode is required", domain.ErrInvalidRequest)
	}

	_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.tableName),
		Key:       key(userPK(userID), collectionPrefix(collection)+barcode),
	})
	if err != nil {
		return storeErr("delete record", err)
	}
	return nil
}

// SetMood upserts the mood of one date
func (s *Store) SetMood(ctx context.Context, userID string, mood domain.MoodRecord) error {
	if userID == "" {
		return fmt.Errorf("%w: user id is required", domain.ErrInvalidRequest)
	}
	if err := domain.ValidateMood(mood); err != nil {
		return err
	}

	item, err := attributevalue.MarshalMap(ddbMood{
		PK:         userPK(userID),
		SK:         moodPrefix + mood.Date,
		EntityType: entityMood,
		Date:       mood.Date,
		Mood:       mood.Mood,
	})
	if err != nil {
		return storeErr("marshal mood", err)
	}

	if _, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      item,
	}); err != nil {
		return storeErr("put mood", err)
	}
	return nil
}

// ListMoods returns every mood entry of a user
func (s *Store) ListMoods(ctx context.Context, userID string) ([]domain.MoodRecord, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", domain.ErrInvalidRequest)
	}

	var items []ddbMood
	if err := s.queryPrefix(ctx, userPK(userID), moodPrefix, 0, &items); err != nil {
		return nil, err
	}

	moods := make([]domain.MoodRecord, 0, len(items))
	for _, item := range items {
		moods = append(moods, domain.MoodRecord{Date: item.Date, Mood: item.Mood})
	}
	return moods, nil
}

// queryPrefix reads items under pk whose sort key starts with prefix,
// following pagination until limit items (0 means all) are read.
func (s *Store) queryPrefix(ctx context.Context, pk, prefix string, limit int, out any) error {
	keyCond := expression.Key("PK").Equal(expression.Value(pk)).
		And(expression.Key("SK").BeginsWith(prefix))

	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).Build()
	if err != nil {
		return storeErr("build expression", err)
	}

	input := &dynamodb.QueryInput{
		TableName:                 aws.String(s.tableName),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	}
	if limit > 0 {
		input.Limit = aws.Int32(int32(limit))
	}

	var raw []map[string]types.AttributeValue
	paginator := dynamodb.NewQueryPaginator(s.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return storeErr("query items", err)
		}
		raw = append(raw, page.Items...)
		if limit > 0 && len(raw) >= limit {
			raw = raw[:limit]
			break
		}
	}

	if err := attributevalue.UnmarshalListOfMaps(raw, out); err != nil {
		return storeErr("unmarshal items", err)
	}
	return nil
}

// Catalog returns the shared catalog partition
func (s *Store) Catalog() domain.CatalogStore {
	return &catalogStore{s: s}
}

// AcquireLock takes a lease with a conditional put: the write succeeds only
// when no lock item exists or the existing lease has expired.
func (s *Store) AcquireLock(ctx context.Context, resource, owner string, ttl time.Duration) (domain.Lock, error) {
	now := s.now()
	expiresAt := now.Add(ttl)
	lockID := uuid.NewString()

	item, err := attributevalue.MarshalMap(ddbLock{
		PK:         "LOCK#" + resource,
		SK:         lockSK,
		LockID:     lockID,
		Owner:      owner,
		AcquiredAt: now.UTC().Format(time.RFC3339),
		ExpiresAt:  expiresAt.UnixMilli(),
		TTL:        expiresAt.Unix(),
	})
	if err != nil {
		return nil, storeErr("marshal lock", err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.tableName),
		Item:                item,
		ConditionExpression: aws.String(lockAcquireCondition),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":now": &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", now.UnixMilli())},
		},
	})
	if err != nil {
		var conditionalCheckFailed *types.ConditionalCheckFailedException
		if errors.As(err, &conditionalCheckFailed) {
			s.logger.Debug("lock already held",
				zap.String("resource", resource),
				zap.String("owner", owner),
			)
			return nil, fmt.Errorf("%w: %s", domain.ErrLockHeld, resource)
		}
		return nil, storeErr("acquire lock", err)
	}

	s.logger.Debug("lock acquired",
		zap.String("resource", resource),
		zap.String("lockID", lockID),
		zap.Duration("ttl", ttl),
	)
	return &ddbLease{s: s, resource: resource, lockID: lockID}, nil
}

// Close is a no-op; the SDK client holds no resources that need closing
func (s *Store) Close() error {
	return nil
}

type ddbLease struct {
	s        *Store
	resource string
	lockID   string
}

// Release deletes the lock item if it still carries our lock id
func (l *ddbLease) Release(ctx context.Context) error {
	_, err := l.s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:           aws.String(l.s.tableName),
		Key:                 key("LOCK#"+l.resource, lockSK),
		ConditionExpression: aws.String(lockReleaseCondition),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":lockId": &types.AttributeValueMemberS{Value: l.lockID},
		},
	})
	if err != nil {
		var conditionalCheckFailed *types.ConditionalCheckFailedException
		if errors.As(err, &conditionalCheckFailed) {
			// released already or taken over after expiry
			return nil
		}
		return storeErr("release lock", err)
	}
	return nil
}

type catalogStore struct {
	s *Store
}

func (c *catalogStore) IsEmpty(ctx context.Context) (bool, error) {
	var items []ddbRecord
	if err := c.s.queryPrefix(ctx, catalogPK, foodPrefix, 1, &items); err != nil {
		return false, err
	}
	return len(items) == 0, nil
}

// PutBatch writes the whole batch in one TransactWriteItems call
func (c *catalogStore) PutBatch(ctx context.Context, records []domain.NutritionRecord) error {
	if len(records) > maxTransactItems {
		return fmt.Errorf("%w: batch of %d exceeds %d items", domain.ErrInvalidRequest, len(records), maxTransactItems)
	}
	if err := domain.ValidateBatch(records); err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}

	transactItems := make([]types.TransactWriteItem, 0, len(records))
	for _, r := range records {
		item, err := attributevalue.MarshalMap(toDDB(catalogPK, foodPrefix+r.Barcode, r))
		if err != nil {
			return storeErr("marshal catalog record", err)
		}
		transactItems = append(transactItems, types.TransactWriteItem{
			Put: &types.Put{
				TableName: aws.String(c.s.tableName),
				Item:      item,
			},
		})
	}

	if _, err := c.s.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: transactItems,
	}); err != nil {
		return storeErr("write catalog batch", err)
	}

	c.s.logger.Info("catalog batch written", zap.Int("count", len(records)))
	return nil
}

func (c *catalogStore) Get(ctx context.Context, barcode string) (domain.NutritionRecord, error) {
	out, err := c.s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(c.s.tableName),
		Key:       key(catalogPK, foodPrefix+barcode),
	})
	if err != nil {
		return domain.NutritionRecord{}, storeErr("get catalog record", err)
	}
	if len(out.Item) == 0 {
		return domain.NutritionRecord{}, domain.ErrProductNotFound
	}

	var item ddbRecord
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return domain.NutritionRecord{}, storeErr("unmarshal catalog record", err)
	}
	return item.toDomain(), nil
}

func (c *catalogStore) List(ctx context.Context, limit int) ([]domain.NutritionRecord, error) {
	var items []ddbRecord
	if err := c.s.queryPrefix(ctx, catalogPK, foodPrefix, limit, &items); err != nil {
		return nil, err
	}

	records := make([]domain.NutritionRecord, 0, len(items))
	for _, item := range items {
		records = append(records, item.toDomain())
	}
	return records, nil
}
