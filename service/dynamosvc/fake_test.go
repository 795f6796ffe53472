package dynamosvc_test

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/jacentio/recrud/service/dynamosvc"
)

// fakeDynamo is an in-memory table understanding the expressions the adapter
// generates. Equality filters are recorded but not evaluated.
type fakeDynamo struct {
	mu       sync.Mutex
	keyAttrs []string
	items    map[string]map[string]types.AttributeValue
	err      error

	updates    int
	lastScan   *dynamodb.ScanInput
	lastQuery  *dynamodb.QueryInput
	lastUpdate *dynamodb.UpdateItemInput
}

func newFakeDynamo(keyAttrs ...string) *fakeDynamo {
	return &fakeDynamo{
		keyAttrs: keyAttrs,
		items:    map[string]map[string]types.AttributeValue{},
	}
}

var _ dynamosvc.API = (*fakeDynamo)(nil)

func avString(av types.AttributeValue) string {
	switch v := av.(type) {
	case *types.AttributeValueMemberS:
		return v.Value
	case *types.AttributeValueMemberN:
		return v.Value
	}
	return ""
}

func (f *fakeDynamo) itemKey(attrs map[string]types.AttributeValue) string {
	parts := make([]string, len(f.keyAttrs))
	for i, k := range f.keyAttrs {
		parts[i] = avString(attrs[k])
	}
	return strings.Join(parts, "|")
}

func copyItem(item map[string]types.AttributeValue) map[string]types.AttributeValue {
	if item == nil {
		return nil
	}
	out := make(map[string]types.AttributeValue, len(item))
	for k, v := range item {
		out[k] = v
	}
	return out
}

func conditionFailed() error {
	return &types.ConditionalCheckFailedException{Message: aws.String("The conditional request failed")}
}

func (f *fakeDynamo) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return &dynamodb.GetItemOutput{Item: copyItem(f.items[f.itemKey(in.Key)])}, nil
}

func (f *fakeDynamo) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	k := f.itemKey(in.Item)
	if in.ConditionExpression != nil {
		if existing, ok := f.items[k]; ok && !dynamosvc.IsDeleted(existing, "ttl") {
			return nil, conditionFailed()
		}
	}
	f.items[k] = copyItem(in.Item)
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDynamo) UpdateItem(_ context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates++
	f.lastUpdate = in
	if f.err != nil {
		return nil, f.err
	}

	k := f.itemKey(in.Key)
	existing, ok := f.items[k]
	cond := aws.ToString(in.ConditionExpression)
	if strings.Contains(cond, "attribute_exists(#key)") && !ok {
		return nil, conditionFailed()
	}
	if strings.Contains(cond, "attribute_not_exists(#ttl)") && ok {
		if _, has := existing["ttl"]; has && !strings.Contains(cond, "#ttl > :now") {
			return nil, conditionFailed()
		}
		if dynamosvc.IsDeleted(existing, "ttl") {
			return nil, conditionFailed()
		}
	}

	old := copyItem(existing)
	next := copyItem(existing)
	if next == nil {
		next = copyItem(in.Key)
	}

	expr := aws.ToString(in.UpdateExpression)
	setPart, removePart := expr, ""
	if i := strings.Index(expr, "REMOVE "); i >= 0 {
		setPart, removePart = expr[:i], expr[i+len("REMOVE "):]
	}
	setPart = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(setPart), "SET "))
	if setPart != "" {
		for _, assign := range strings.Split(setPart, ", ") {
			lr := strings.SplitN(assign, " = ", 2)
			next[in.ExpressionAttributeNames[lr[0]]] = in.ExpressionAttributeValues[lr[1]]
		}
	}
	if removePart != "" {
		for _, name := range strings.Split(strings.TrimSpace(removePart), ", ") {
			delete(next, in.ExpressionAttributeNames[name])
		}
	}
	f.items[k] = next

	out := &dynamodb.UpdateItemOutput{}
	switch in.ReturnValues {
	case types.ReturnValueAllNew:
		out.Attributes = copyItem(next)
	case types.ReturnValueAllOld:
		out.Attributes = old
	}
	return out, nil
}

func (f *fakeDynamo) DeleteItem(_ context.Context, in *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	k := f.itemKey(in.Key)
	old := f.items[k]
	delete(f.items, k)
	return &dynamodb.DeleteItemOutput{Attributes: old}, nil
}

func (f *fakeDynamo) sortedItems(match func(map[string]types.AttributeValue) bool) []map[string]types.AttributeValue {
	ks := make([]string, 0, len(f.items))
	for k := range f.items {
		ks = append(ks, k)
	}
	sort.Strings(ks)
	var out []map[string]types.AttributeValue
	for _, k := range ks {
		if match == nil || match(f.items[k]) {
			out = append(out, copyItem(f.items[k]))
		}
	}
	return out
}

func (f *fakeDynamo) Query(_ context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastQuery = in
	if f.err != nil {
		return nil, f.err
	}
	attr := in.ExpressionAttributeNames["#pk"]
	want := avString(in.ExpressionAttributeValues[":pk"])
	items := f.sortedItems(func(item map[string]types.AttributeValue) bool {
		return avString(item[attr]) == want
	})
	return &dynamodb.QueryOutput{Items: items}, nil
}

func (f *fakeDynamo) Scan(_ context.Context, in *dynamodb.ScanInput, _ ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastScan = in
	if f.err != nil {
		return nil, f.err
	}
	return &dynamodb.ScanOutput{Items: f.sortedItems(nil)}, nil
}
