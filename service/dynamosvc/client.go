// Package dynamosvc implements service.Adapter on a DynamoDB table.
package dynamosvc

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"

	"github.com/jacentio/recrud/internal/keys"
	"github.com/jacentio/recrud/service"
)

// Client performs the six operations against one DynamoDB table.
type Client struct {
	api    API
	config Config
}

var _ service.Adapter = (*Client)(nil)

// New creates a Client on api.
func New(api API, config Config) *Client {
	config.validate()
	return &Client{
		api:    api,
		config: config,
	}
}

// NewFromConfig creates a Client using the default AWS configuration chain.
func NewFromConfig(ctx context.Context, config Config, optFns ...func(*awsconfig.LoadOptions) error) (*Client, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, optFns...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return New(dynamodb.NewFromConfig(awsCfg), config), nil
}

// Config returns the client's resolved configuration.
func (c *Client) Config() Config {
	return c.config
}

// API returns the underlying DynamoDB client.
func (c *Client) API() API {
	return c.api
}

// FetchList scans the table, or queries one partition when Params carries the
// PartitionKey value. Remaining params are equality filters.
func (c *Client) FetchList(ctx context.Context, req service.Request) (service.Result, error) {
	names := map[string]string{}
	values := map[string]types.AttributeValue{}
	var filters []string
	var keyCond string

	params := req.Params
	if c.config.PartitionKey != "" {
		if pkv, ok := params[c.config.PartitionKey]; ok && pkv != nil {
			av, err := attributevalue.Marshal(pkv)
			if err != nil {
				return service.Result{}, c.transportError("fetchList", err)
			}
			names["#pk"] = c.config.PartitionKey
			values[":pk"] = av
			keyCond = "#pk = :pk"
		}
	}

	fields := make([]string, 0, len(params))
	for k := range params {
		if keyCond != "" && k == c.config.PartitionKey {
			continue
		}
		fields = append(fields, k)
	}
	sort.Strings(fields)
	for i, k := range fields {
		av, err := attributevalue.Marshal(params[k])
		if err != nil {
			return service.Result{}, c.transportError("fetchList", err)
		}
		nameKey := fmt.Sprintf("#f%d", i)
		valueKey := fmt.Sprintf(":f%d", i)
		names[nameKey] = k
		values[valueKey] = av
		filters = append(filters, fmt.Sprintf("%s = %s", nameKey, valueKey))
	}

	if c.config.SoftDelete {
		names["#ttl"] = c.config.TTLAttribute
		values[":now"] = nowValue()
		filters = append(filters, activeFilterExpr)
	}

	var filterExpr *string
	if len(filters) > 0 {
		filterExpr = aws.String(strings.Join(filters, " AND "))
	}

	var raw []map[string]types.AttributeValue
	if keyCond != "" {
		paginator := dynamodb.NewQueryPaginator(c.api, &dynamodb.QueryInput{
			TableName:                 aws.String(c.config.Table),
			KeyConditionExpression:    aws.String(keyCond),
			FilterExpression:          filterExpr,
			ExpressionAttributeNames:  names,
			ExpressionAttributeValues: values,
		})
		for paginator.HasMorePages() {
			page, err := paginator.NextPage(ctx)
			if err != nil {
				return service.Result{}, c.transportError("fetchList", err)
			}
			raw = append(raw, page.Items...)
		}
	} else {
		input := &dynamodb.ScanInput{
			TableName:        aws.String(c.config.Table),
			FilterExpression: filterExpr,
		}
		if len(names) > 0 {
			input.ExpressionAttributeNames = names
			input.ExpressionAttributeValues = values
		}
		paginator := dynamodb.NewScanPaginator(c.api, input)
		for paginator.HasMorePages() {
			page, err := paginator.NextPage(ctx)
			if err != nil {
				return service.Result{}, c.transportError("fetchList", err)
			}
			raw = append(raw, page.Items...)
		}
	}

	records := make([]any, 0, len(raw))
	for _, item := range raw {
		if c.config.SoftDelete && IsDeleted(item, c.config.TTLAttribute) {
			continue
		}
		record, err := unmarshalItem(item)
		if err != nil {
			return service.Result{}, c.transportError("fetchList", err)
		}
		records = append(records, record)
	}

	return service.Result{
		ResponseData: service.TransformList(records, "", c.config.Transformer),
		Success:      true,
		StatusCode:   http.StatusOK,
	}, nil
}

func (c *Client) FetchSingle(ctx context.Context, req service.Request) (service.Result, error) {
	if req.ID == "" {
		return service.Result{}, fmt.Errorf("fetchSingle: %w", service.ErrMissingID)
	}
	key, err := c.key(req.ID, req.Params)
	if err != nil {
		return service.Result{}, c.transportError("fetchSingle", err)
	}

	out, err := c.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(c.config.Table),
		Key:            key,
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return service.Result{}, c.transportError("fetchSingle", err)
	}
	if out.Item == nil || (c.config.SoftDelete && IsDeleted(out.Item, c.config.TTLAttribute)) {
		return service.Rejection(http.StatusNotFound, service.ErrNotFound), nil
	}
	return c.itemResult("fetchSingle", out.Item, http.StatusOK, out)
}

// Create puts a new item. A missing Key attribute is filled with a UUID; an
// existing live item with the same key is rejected with 409.
func (c *Client) Create(ctx context.Context, req service.Request) (service.Result, error) {
	body := copyMap(req.Body)
	if _, ok := keys.Field(body, c.config.Key); !ok {
		body[c.config.Key] = uuid.NewString()
	}
	item, err := attributevalue.MarshalMap(body)
	if err != nil {
		return service.Result{}, c.transportError("create", err)
	}

	names := map[string]string{"#key": c.config.Key}
	values := map[string]types.AttributeValue(nil)
	cond := "attribute_not_exists(#key)"
	if c.config.SoftDelete {
		names["#ttl"] = c.config.TTLAttribute
		values = map[string]types.AttributeValue{":now": nowValue()}
		cond = "attribute_not_exists(#key) OR #ttl <= :now"
	}

	_, err = c.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                 aws.String(c.config.Table),
		Item:                      item,
		ConditionExpression:       aws.String(cond),
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return service.Rejection(http.StatusConflict, service.ErrAlreadyExists), nil
		}
		return service.Result{}, c.transportError("create", err)
	}
	return c.transform(service.Result{ResponseData: body, Success: true, StatusCode: http.StatusCreated}), nil
}

// Put replaces the item. The id defaults to Body[Key].
func (c *Client) Put(ctx context.Context, req service.Request) (service.Result, error) {
	id := req.ID
	if id == "" {
		id, _ = keys.Field(req.Body, c.config.Key)
	}
	if id == "" {
		return service.Result{}, fmt.Errorf("put: %w", service.ErrMissingID)
	}
	body := copyMap(req.Body)
	body[c.config.Key] = id
	item, err := attributevalue.MarshalMap(body)
	if err != nil {
		return service.Result{}, c.transportError("put", err)
	}

	out, err := c.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(c.config.Table),
		Item:      item,
	})
	if err != nil {
		return service.Result{}, c.transportError("put", err)
	}
	return c.transform(service.Result{ResponseData: body, Success: true, StatusCode: http.StatusOK, Raw: out}), nil
}

// Patch applies the patch operations with a single UpdateItem and returns the
// updated item. With nothing to change Current is returned without I/O.
func (c *Client) Patch(ctx context.Context, req service.Request) (service.Result, error) {
	ops, err := service.PatchOperations(req)
	if err != nil {
		return service.Result{}, c.transportError("patch", err)
	}

	var setClauses, removeClauses []string
	names := map[string]string{}
	values := map[string]types.AttributeValue{}
	for i, op := range ops {
		field := op.Field()
		if field == "" || field == c.config.Key || field == c.config.PartitionKey {
			continue
		}
		nameKey := fmt.Sprintf("#attr%d", i)
		names[nameKey] = field
		switch op.Op {
		case service.PatchRemove:
			removeClauses = append(removeClauses, nameKey)
		case service.PatchAdd, service.PatchReplace:
			av, err := attributevalue.Marshal(op.Value)
			if err != nil {
				return service.Result{}, c.transportError("patch", err)
			}
			valueKey := fmt.Sprintf(":val%d", i)
			values[valueKey] = av
			setClauses = append(setClauses, fmt.Sprintf("%s = %s", nameKey, valueKey))
		default:
			delete(names, nameKey)
		}
	}
	if len(setClauses) == 0 && len(removeClauses) == 0 {
		return service.Result{ResponseData: copyMap(req.Current), Success: true, StatusCode: http.StatusOK}, nil
	}

	id := req.ID
	if id == "" {
		id, _ = keys.Field(req.Current, c.config.Key)
	}
	if id == "" {
		return service.Result{}, fmt.Errorf("patch: %w", service.ErrMissingID)
	}
	key, err := c.key(id, mergeMaps(req.Params, req.Current))
	if err != nil {
		return service.Result{}, c.transportError("patch", err)
	}

	var clauses []string
	if len(setClauses) > 0 {
		clauses = append(clauses, "SET "+strings.Join(setClauses, ", "))
	}
	if len(removeClauses) > 0 {
		clauses = append(clauses, "REMOVE "+strings.Join(removeClauses, ", "))
	}

	names["#key"] = c.config.Key
	cond := "attribute_exists(#key)"
	if c.config.SoftDelete {
		names["#ttl"] = c.config.TTLAttribute
		values[":now"] = nowValue()
		cond += " AND " + activeFilterExpr
	}

	input := &dynamodb.UpdateItemInput{
		TableName:                aws.String(c.config.Table),
		Key:                      key,
		UpdateExpression:         aws.String(strings.Join(clauses, " ")),
		ConditionExpression:      aws.String(cond),
		ExpressionAttributeNames: names,
		ReturnValues:             types.ReturnValueAllNew,
	}
	if len(values) > 0 {
		input.ExpressionAttributeValues = values
	}

	out, err := c.api.UpdateItem(ctx, input)
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return service.Rejection(http.StatusNotFound, service.ErrNotFound), nil
		}
		return service.Result{}, c.transportError("patch", err)
	}
	return c.itemResult("patch", out.Attributes, http.StatusOK, out)
}

// Delete removes the item, or marks it expired when SoftDelete is set.
// Deleting an absent item succeeds.
func (c *Client) Delete(ctx context.Context, req service.Request) (service.Result, error) {
	if req.ID == "" {
		return service.Result{}, fmt.Errorf("delete: %w", service.ErrMissingID)
	}
	key, err := c.key(req.ID, req.Params)
	if err != nil {
		return service.Result{}, c.transportError("delete", err)
	}

	var old map[string]types.AttributeValue
	if c.config.SoftDelete {
		out, err := c.api.UpdateItem(ctx, &dynamodb.UpdateItemInput{
			TableName:           aws.String(c.config.Table),
			Key:                 key,
			UpdateExpression:    aws.String("SET #ttl = :now"),
			ConditionExpression: aws.String("attribute_exists(#key) AND attribute_not_exists(#ttl)"),
			ExpressionAttributeNames: map[string]string{
				"#key": c.config.Key,
				"#ttl": c.config.TTLAttribute,
			},
			ExpressionAttributeValues: map[string]types.AttributeValue{":now": nowValue()},
			ReturnValues:              types.ReturnValueAllOld,
		})
		// Condition failure means absent or already deleted.
		var condErr *types.ConditionalCheckFailedException
		if err != nil && !errors.As(err, &condErr) {
			return service.Result{}, c.transportError("delete", err)
		}
		if out != nil {
			old = out.Attributes
		}
	} else {
		out, err := c.api.DeleteItem(ctx, &dynamodb.DeleteItemInput{
			TableName:    aws.String(c.config.Table),
			Key:          key,
			ReturnValues: types.ReturnValueAllOld,
		})
		if err != nil {
			return service.Result{}, c.transportError("delete", err)
		}
		old = out.Attributes
	}

	data := map[string]any{c.config.Key: req.ID}
	if len(old) > 0 {
		record, err := unmarshalItem(old)
		if err != nil {
			return service.Result{}, c.transportError("delete", err)
		}
		delete(record, c.config.TTLAttribute)
		data = record
	} else if pk := c.config.PartitionKey; pk != "" {
		if pkv, ok := req.Params[pk]; ok {
			data[pk] = pkv
		}
	}
	return service.Result{ResponseData: data, Success: true, StatusCode: http.StatusOK}, nil
}

// key builds the primary key of id, reading the partition value from data.
func (c *Client) key(id string, data map[string]any) (map[string]types.AttributeValue, error) {
	key := map[string]types.AttributeValue{
		c.config.Key: &types.AttributeValueMemberS{Value: id},
	}
	if pk := c.config.PartitionKey; pk != "" {
		pkv, ok := data[pk]
		if !ok || pkv == nil {
			return nil, fmt.Errorf("partition key %q is required", pk)
		}
		av, err := attributevalue.Marshal(pkv)
		if err != nil {
			return nil, err
		}
		key[pk] = av
	}
	return key, nil
}

func (c *Client) itemResult(op string, item map[string]types.AttributeValue, status int, raw any) (service.Result, error) {
	record, err := unmarshalItem(item)
	if err != nil {
		return service.Result{}, c.transportError(op, err)
	}
	return c.transform(service.Result{ResponseData: record, Success: true, StatusCode: status, Raw: raw}), nil
}

func (c *Client) transform(res service.Result) service.Result {
	if c.config.Transformer != nil {
		res.ResponseData = c.config.Transformer(res.ResponseData)
	}
	return res
}

func (c *Client) transportError(op string, err error) error {
	c.config.Logger.Warn("dynamodb operation failed",
		"op", op,
		"table", c.config.Table,
		"error", err,
	)
	return &service.TransportError{Op: op, Target: c.config.Table, Err: err}
}

func unmarshalItem(item map[string]types.AttributeValue) (map[string]any, error) {
	record := map[string]any{}
	if err := attributevalue.UnmarshalMap(item, &record); err != nil {
		return nil, fmt.Errorf("unmarshal item: %w", err)
	}
	return record, nil
}

func copyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func mergeMaps(base, overlay map[string]any) map[string]any {
	out := copyMap(base)
	for k, v := range overlay {
		out[k] = v
	}
	return out
}
