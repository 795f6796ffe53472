package httpsvc

import (
	"net/url"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/jacentio/recrud/internal/keys"
)

// EncodeQuery renders params as a query string. Nested maps and slices use
// bracket notation (a[b]=1, a[0]=x); keys are emitted in sorted order.
func EncodeQuery(params map[string]any) string {
	var parts []string
	for _, k := range sortedKeys(reflect.ValueOf(params)) {
		parts = appendParam(parts, k, params[k])
	}
	return strings.Join(parts, "&")
}

func appendParam(parts []string, name string, value any) []string {
	if value == nil {
		return append(parts, escape(name)+"=")
	}

	v := reflect.ValueOf(value)
	switch v.Kind() {
	case reflect.Map:
		if v.Type().Key().Kind() != reflect.String {
			break
		}
		for _, k := range sortedKeys(v) {
			parts = appendParam(parts, name+"["+k+"]", v.MapIndex(reflect.ValueOf(k).Convert(v.Type().Key())).Interface())
		}
		return parts
	case reflect.Slice, reflect.Array:
		if v.Type().Elem().Kind() == reflect.Uint8 {
			break
		}
		for i := 0; i < v.Len(); i++ {
			parts = appendParam(parts, name+"["+strconv.Itoa(i)+"]", v.Index(i).Interface())
		}
		return parts
	}

	return append(parts, escape(name)+"="+escape(keys.Format(value)))
}

func sortedKeys(v reflect.Value) []string {
	keys := make([]string, 0, v.Len())
	for _, k := range v.MapKeys() {
		keys = append(keys, k.String())
	}
	sort.Strings(keys)
	return keys
}

// escape percent-encodes s, spaces as %20.
func escape(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}
