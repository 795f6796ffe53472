// Package keys derives record identities for the flat records map.
package keys

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Separator joins a partition value and a key value in composite identities.
const Separator = ":"

// Extractor computes an identity from a response payload.
type Extractor func(data map[string]any) string

// Input holds everything an identity can be derived from.
type Input struct {
	// Key is the field holding the record's own identifier (e.g. "id").
	Key string

	// PartitionKey is the field holding the parent identifier, when the
	// partition value is embedded in the payload.
	PartitionKey string

	// KeyValue is an explicit identity supplied by the caller.
	KeyValue string

	// PartitionKeyValue is a parent identifier supplied by the caller.
	PartitionKeyValue string

	// Data is the payload the identity is read from.
	Data map[string]any

	// Extractor overrides field-based derivation when set.
	Extractor Extractor
}

// Resolve computes a record identity. Precedence, highest first:
//
//  1. explicit KeyValue
//  2. Extractor(Data)
//  3. "{PartitionKeyValue}:{Data[Key]}"
//  4. "{Data[PartitionKey]}:{Data[Key]}"
//  5. Data[Key]
//
// The boolean is false when nothing resolves.
func Resolve(in Input) (string, bool) {
	if in.KeyValue != "" {
		return in.KeyValue, true
	}
	if in.Extractor != nil {
		if in.Data == nil {
			return "", false
		}
		v := in.Extractor(in.Data)
		return v, v != ""
	}

	keyValue, hasKey := Field(in.Data, in.Key)
	if in.PartitionKeyValue != "" && hasKey {
		return Composite(in.PartitionKeyValue, keyValue), true
	}
	if in.PartitionKey != "" && hasKey {
		if partitionValue, ok := Field(in.Data, in.PartitionKey); ok {
			return Composite(partitionValue, keyValue), true
		}
	}
	if hasKey {
		return keyValue, true
	}
	return "", false
}

// Composite joins a partition value and a key value.
func Composite(partitionValue, keyValue string) string {
	return partitionValue + Separator + keyValue
}

// InPartition reports whether identity belongs to the given partition value.
func InPartition(identity, partitionValue string) bool {
	return strings.HasPrefix(identity, partitionValue+Separator)
}

// Field reads data[name] as an identity fragment. Absent, nil and empty
// string values do not count as present.
func Field(data map[string]any, name string) (string, bool) {
	if data == nil || name == "" {
		return "", false
	}
	v, ok := data[name]
	if !ok || v == nil {
		return "", false
	}
	s := Format(v)
	return s, s != ""
}

// Format renders an identity fragment. Floats use the shortest exact decimal
// form, so a decoded 1234567 renders as "1234567", not "1.234567e+06".
func Format(v any) string {
	switch tv := v.(type) {
	case nil:
		return ""
	case string:
		return tv
	case []byte:
		return string(tv)
	case json.Number:
		return tv.String()
	case float64:
		return strconv.FormatFloat(tv, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(tv), 'f', -1, 32)
	default:
		return fmt.Sprint(tv)
	}
}
