package service

import (
	"fmt"
	"sort"
	"strings"

	jsonpatch "github.com/evanphx/json-patch/v5"
	jsoniter "github.com/json-iterator/go"
	"github.com/wI2L/jsondiff"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// PatchOperation is one JSON-Patch style change of a top-level field.
type PatchOperation struct {
	Op    string `json:"op"`
	Path  string `json:"path"`
	Value any    `json:"value,omitempty"`
}

// Patch operation kinds.
const (
	PatchAdd     = "add"
	PatchReplace = "replace"
	PatchRemove  = "remove"
)

// DiffPatch returns the operations turning current into next, one per changed
// top-level field, ordered by path. A change below a field replaces the whole
// field: DynamoDB attributes and SQL columns are addressed at the top level.
func DiffPatch(current, next map[string]any) ([]PatchOperation, error) {
	if current == nil {
		current = map[string]any{}
	}
	if next == nil {
		next = map[string]any{}
	}
	diff, err := jsondiff.Compare(current, next)
	if err != nil {
		return nil, fmt.Errorf("diff records: %w", err)
	}

	changed := map[string]bool{}
	for _, op := range diff {
		if field := topLevelField(op.Path); field != "" {
			changed[field] = true
		}
	}
	names := make([]string, 0, len(changed))
	for name := range changed {
		names = append(names, name)
	}
	sort.Strings(names)

	ops := make([]PatchOperation, 0, len(names))
	for _, name := range names {
		_, had := current[name]
		after, has := next[name]
		path := "/" + escapePointer(name)
		switch {
		case had && !has:
			ops = append(ops, PatchOperation{Op: PatchRemove, Path: path})
		case !had && has:
			ops = append(ops, PatchOperation{Op: PatchAdd, Path: path, Value: after})
		default:
			ops = append(ops, PatchOperation{Op: PatchReplace, Path: path, Value: after})
		}
	}
	return ops, nil
}

// Field returns the top-level field name a patch path addresses.
func (p PatchOperation) Field() string {
	return topLevelField(p.Path)
}

// PatchOperations returns req.PatchOperations, or the diff of Current and Next
// when the caller supplied only the two versions.
func PatchOperations(req Request) ([]PatchOperation, error) {
	if req.PatchOperations != nil {
		return req.PatchOperations, nil
	}
	if req.Current == nil && req.Next == nil {
		return nil, nil
	}
	return DiffPatch(req.Current, req.Next)
}

// ApplyPatch returns a copy of data with ops applied. Removing an absent
// field is not an error.
func ApplyPatch(data map[string]any, ops []PatchOperation) (map[string]any, error) {
	if data == nil {
		data = map[string]any{}
	}
	doc, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}

	// Values are written explicitly so a replace with null keeps its value.
	raw := make([]map[string]any, len(ops))
	for i, op := range ops {
		raw[i] = map[string]any{"op": op.Op, "path": op.Path}
		if op.Op != PatchRemove {
			raw[i]["value"] = op.Value
		}
	}
	encoded, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("encode patch: %w", err)
	}
	patch, err := jsonpatch.DecodePatch(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode patch: %w", err)
	}

	opts := jsonpatch.NewApplyOptions()
	opts.AllowMissingPathOnRemove = true
	opts.EnsurePathExistsOnAdd = true
	patched, err := patch.ApplyWithOptions(doc, opts)
	if err != nil {
		return nil, fmt.Errorf("apply patch: %w", err)
	}

	out := map[string]any{}
	if err := json.Unmarshal(patched, &out); err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}
	return out, nil
}

// topLevelField returns the unescaped first segment of a JSON pointer.
func topLevelField(path string) string {
	path = strings.TrimPrefix(path, "/")
	if i := strings.IndexByte(path, '/'); i >= 0 {
		path = path[:i]
	}
	return strings.NewReplacer("~1", "/", "~0", "~").Replace(path)
}

func escapePointer(field string) string {
	return strings.NewReplacer("~", "~0", "/", "~1").Replace(field)
}
