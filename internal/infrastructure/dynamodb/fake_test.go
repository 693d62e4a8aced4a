package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

var (
	eqPattern         = regexp.MustCompile(`(#\w+)\s*=\s*(:\w+)`)
	beginsWithPattern = regexp.MustCompile(`begins_with\s*\(\s*(#\w+)\s*,\s*(:\w+)\s*\)`)
)

// fakeAPI is an in-memory table understanding the expressions the store sends
type fakeAPI struct {
	mu    sync.Mutex
	items map[string]map[string]map[string]types.AttributeValue
	err   error
	calls map[string]int
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		items: make(map[string]map[string]map[string]types.AttributeValue),
		calls: make(map[string]int),
	}
}

func str(av types.AttributeValue) string {
	switch v := av.(type) {
	case *types.AttributeValueMemberS:
		return v.Value
	case *types.AttributeValueMemberN:
		return v.Value
	}
	return ""
}

func num(av types.AttributeValue) int64 {
	n, _ := strconv.ParseInt(str(av), 10, 64)
	return n
}

func conditionFailed() error {
	return &types.ConditionalCheckFailedException{Message: aws.String("The conditional request failed")}
}

func (f *fakeAPI) get(pk, sk string) map[string]types.AttributeValue {
	if part, ok := f.items[pk]; ok {
		return part[sk]
	}
	return nil
}

func (f *fakeAPI) put(item map[string]types.AttributeValue) {
	pk, sk := str(item["PK"]), str(item["SK"])
	if f.items[pk] == nil {
		f.items[pk] = make(map[string]map[string]types.AttributeValue)
	}
	f.items[pk][sk] = item
}

func (f *fakeAPI) GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["GetItem"]++
	if f.err != nil {
		return nil, f.err
	}
	return &dynamodb.GetItemOutput{Item: f.get(str(params.Key["PK"]), str(params.Key["SK"]))}, nil
}

func (f *fakeAPI) PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["PutItem"]++
	if f.err != nil {
		return nil, f.err
	}

	if cond := aws.ToString(params.ConditionExpression); cond != "" {
		if cond != lockAcquireCondition {
			return nil, fmt.Errorf("unsupported condition %q", cond)
		}
		existing := f.get(str(params.Item["PK"]), str(params.Item["SK"]))
		if existing != nil && num(existing["ExpiresAt"]) >= num(params.ExpressionAttributeValues[":now"]) {
			return nil, conditionFailed()
		}
	}

	f.put(params.Item)
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeAPI) DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["DeleteItem"]++
	if f.err != nil {
		return nil, f.err
	}

	pk, sk := str(params.Key["PK"]), str(params.Key["SK"])
	existing := f.get(pk, sk)

	if cond := aws.ToString(params.ConditionExpression); cond != "" {
		if cond != lockReleaseCondition {
			return nil, fmt.Errorf("unsupported condition %q", cond)
		}
		if existing == nil || str(existing["LockID"]) != str(params.ExpressionAttributeValues[":lockId"]) {
			return nil, conditionFailed()
		}
	}

	if existing != nil {
		delete(f.items[pk], sk)
	}
	return &dynamodb.DeleteItemOutput{}, nil
}

func (f *fakeAPI) Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["Query"]++
	if f.err != nil {
		return nil, f.err
	}

	expr := aws.ToString(params.KeyConditionExpression)
	resolve := func(name, value string) (string, string) {
		return params.ExpressionAttributeNames[name], str(params.ExpressionAttributeValues[value])
	}

	var pk, prefix string
	for _, m := range eqPattern.FindAllStringSubmatch(expr, -1) {
		if attr, v := resolve(m[1], m[2]); attr == "PK" {
			pk = v
		}
	}
	for _, m := range beginsWithPattern.FindAllStringSubmatch(expr, -1) {
		if attr, v := resolve(m[1], m[2]); attr == "SK" {
			prefix = v
		}
	}
	if pk == "" {
		return nil, errors.New("query without partition key condition")
	}

	var sks []string
	for sk := range f.items[pk] {
		if len(sk) >= len(prefix) && sk[:len(prefix)] == prefix {
			sks = append(sks, sk)
		}
	}
	sort.Strings(sks)

	if params.ExclusiveStartKey != nil {
		start := str(params.ExclusiveStartKey["SK"])
		i := sort.SearchStrings(sks, start)
		if i < len(sks) && sks[i] == start {
			i++
		}
		sks = sks[i:]
	}

	out := &dynamodb.QueryOutput{}
	if params.Limit != nil && int(*params.Limit) < len(sks) {
		sks = sks[:*params.Limit]
		out.LastEvaluatedKey = f.get(pk, sks[len(sks)-1])
	}
	for _, sk := range sks {
		out.Items = append(out.Items, f.items[pk][sk])
	}
	out.Count = int32(len(out.Items))
	return out, nil
}

func (f *fakeAPI) TransactWriteItems(ctx context.Context, params *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["TransactWriteItems"]++
	if f.err != nil {
		return nil, f.err
	}
	seen := make(map[string]bool, len(params.TransactItems))
	for _, ti := range params.TransactItems {
		if ti.Put == nil {
			return nil, errors.New("only Put is supported")
		}
		k := str(ti.Put.Item["PK"]) + "|" + str(ti.Put.Item["SK"])
		if seen[k] {
			return nil, errors.New("ValidationException: Transaction request cannot include multiple operations on one item")
		}
		seen[k] = true
	}
	for _, ti := range params.TransactItems {
		f.put(ti.Put.Item)
	}
	return &dynamodb.TransactWriteItemsOutput{}, nil
}
