package store

import (
	"fmt"

	jsoniter "github.com/json-iterator/go"
)

// serverErrorFields are the body fields searched for a message, in order.
var serverErrorFields = []string{"message", "error", "errorMessage"}

// ServerErrorMessage extracts a message from a server-provided error body.
// Strings are used as is, objects are searched for a message field, and
// anything else is rendered as JSON.
func ServerErrorMessage(responseData any) string {
	var msg string
	switch body := responseData.(type) {
	case nil:
	case string:
		msg = body
	case []byte:
		msg = string(body)
	case error:
		msg = body.Error()
	default:
		if data, ok := asData(body); ok {
			for _, field := range serverErrorFields {
				if s, ok := data[field].(string); ok && s != "" {
					return s
				}
			}
		}
		out, err := jsoniter.ConfigCompatibleWithStandardLibrary.MarshalToString(body)
		if err != nil {
			out = fmt.Sprint(body)
		}
		msg = out
	}
	if msg == "" {
		return ErrRequestFailed.Error()
	}
	return msg
}

// asData returns v as a record payload when it is an object.
func asData(v any) (Data, bool) {
	switch m := v.(type) {
	case Data:
		return m, m != nil
	case map[string]any:
		return Data(m), m != nil
	}
	return nil, false
}
