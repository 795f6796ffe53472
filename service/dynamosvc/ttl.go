package dynamosvc

import (
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// IsDeleted reports whether item carries an expired TTL in attr.
func IsDeleted(item map[string]types.AttributeValue, attr string) bool {
	ttlAttr, exists := item[attr]
	if !exists {
		return false
	}
	ttlNum, ok := ttlAttr.(*types.AttributeValueMemberN)
	if !ok {
		return false
	}
	ttl, err := strconv.ParseInt(ttlNum.Value, 10, 64)
	if err != nil {
		return false
	}
	return ttl <= time.Now().Unix()
}

// activeFilterExpr matches items that are not soft deleted.
const activeFilterExpr = "(attribute_not_exists(#ttl) OR #ttl > :now)"

func nowValue() types.AttributeValue {
	return &types.AttributeValueMemberN{Value: strconv.FormatInt(time.Now().Unix(), 10)}
}
