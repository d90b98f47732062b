package fhir

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/quantumcare/clinical/internal/platform/apperr"
)

// Wrapper member names of a submitted document.
const (
	FieldMetaData = "metaData"
	FieldResource = "resource"
)

// serverManagedKeys may appear in a submitted wrapper (clients often echo a
// fetched document back) but are owned by the store and never applied.
var serverManagedKeys = map[string]bool{
	"_id":       true,
	"createdAt": true,
	"updatedAt": true,
}

// Normalized is a validated document in its canonical stored shape. In a
// patch, a nil part means "leave unchanged".
type Normalized struct {
	ResourceType string
	MetaData     json.RawMessage
	Resource     json.RawMessage
}

// Engine validates submitted documents against the registry and normalises
// them for persistence.
type Engine struct {
	registry *Registry
}

func NewEngine(registry *Registry) *Engine {
	return &Engine{registry: registry}
}

// Registry returns the schema registry backing the engine.
func (e *Engine) Registry() *Registry {
	return e.registry
}

// Normalize validates a create payload of the form {metaData?, resource}.
// The returned resource keeps every submitted member value byte-for-byte
// and gains resourceType when it was absent.
func (e *Engine) Normalize(resourceType string, payload []byte) (*Normalized, error) {
	schema, err := e.registry.SchemaFor(resourceType)
	if err != nil {
		return nil, err
	}

	wrapper, err := decodeWrapper(payload)
	if err != nil {
		return nil, err
	}

	rawResource, ok := wrapper[FieldResource]
	if !ok || isNull(rawResource) {
		return nil, apperr.InvalidPayload("missing resource")
	}

	return e.normalizeParts(schema, wrapper[FieldMetaData], rawResource)
}

// NormalizePatch validates an update payload. At least one of metaData and
// resource must be present; each present part replaces the stored part
// wholesale, so it is validated as on create.
func (e *Engine) NormalizePatch(resourceType string, payload []byte) (*Normalized, error) {
	schema, err := e.registry.SchemaFor(resourceType)
	if err != nil {
		return nil, err
	}

	wrapper, err := decodeWrapper(payload)
	if err != nil {
		return nil, err
	}

	rawMeta, hasMeta := wrapper[FieldMetaData]
	rawResource, hasResource := wrapper[FieldResource]
	if !hasMeta && !hasResource {
		return nil, apperr.InvalidPayload("update must include metaData or resource")
	}
	if hasResource && isNull(rawResource) {
		return nil, apperr.InvalidPayload("resource must not be null")
	}

	n := &Normalized{ResourceType: schema.ResourceType}
	var issues []apperr.FieldIssue

	if hasResource {
		res, resIssues, err := normalizeResource(schema, rawResource)
		if err != nil {
			return nil, err
		}
		n.Resource = res
		issues = append(issues, resIssues...)
	}
	if hasMeta {
		meta, metaIssues, err := normalizeMetaData(schema, rawMeta)
		if err != nil {
			return nil, err
		}
		n.MetaData = meta
		issues = append(issues, metaIssues...)
	}

	if len(issues) > 0 {
		return nil, apperr.ValidationFailed(issues)
	}
	return n, nil
}

func (e *Engine) normalizeParts(schema *ResourceSchema, rawMeta, rawResource json.RawMessage) (*Normalized, error) {
	res, issues, err := normalizeResource(schema, rawResource)
	if err != nil {
		return nil, err
	}
	meta, metaIssues, err := normalizeMetaData(schema, rawMeta)
	if err != nil {
		return nil, err
	}
	issues = append(issues, metaIssues...)
	if len(issues) > 0 {
		return nil, apperr.ValidationFailed(issues)
	}
	return &Normalized{ResourceType: schema.ResourceType, MetaData: meta, Resource: res}, nil
}

func decodeWrapper(payload []byte) (map[string]json.RawMessage, error) {
	var wrapper map[string]json.RawMessage
	if err := json.Unmarshal(payload, &wrapper); err != nil || wrapper == nil {
		return nil, apperr.InvalidPayload("request body must be a JSON object")
	}
	for k := range wrapper {
		if k == FieldMetaData || k == FieldResource || serverManagedKeys[k] {
			continue
		}
		return nil, apperr.InvalidPayload(fmt.Sprintf("unknown top-level field %q", k))
	}
	return wrapper, nil
}

func normalizeResource(schema *ResourceSchema, raw json.RawMessage) (json.RawMessage, []apperr.FieldIssue, error) {
	var members map[string]json.RawMessage
	if err := json.Unmarshal(raw, &members); err != nil || members == nil {
		return nil, nil, apperr.InvalidPayload("resource must be a JSON object")
	}

	decoded, err := decodeValue(raw)
	if err != nil {
		return nil, nil, apperr.InvalidPayload("resource is not valid JSON")
	}
	issues := schema.Resource.Validate(FieldResource, decoded)

	out := []byte(raw)
	if rt, ok := members["resourceType"]; !ok || isNull(rt) {
		out, err = sjson.SetRawBytes(out, "resourceType", []byte(strconv.Quote(schema.ResourceType)))
		if err != nil {
			return nil, nil, apperr.InvalidPayload("resource could not be encoded")
		}
	}
	return out, issues, nil
}

func normalizeMetaData(schema *ResourceSchema, raw json.RawMessage) (json.RawMessage, []apperr.FieldIssue, error) {
	if len(raw) == 0 || isNull(raw) {
		return json.RawMessage(`{}`), nil, nil
	}

	decoded, err := decodeValue(raw)
	if err != nil {
		return nil, nil, apperr.InvalidPayload("metaData is not valid JSON")
	}
	if _, ok := decoded.(map[string]any); !ok {
		return nil, nil, apperr.InvalidPayload("metaData must be a JSON object")
	}
	issues := schema.MetaData.Validate(FieldMetaData, decoded)
	return bytes.TrimSpace(raw), issues, nil
}

// decodeValue decodes JSON keeping numbers as json.Number so that integer
// and number checks see the submitted lexical form.
func decodeValue(raw []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

// StringMember returns the string value of a top-level member of a JSON
// object, or "" when it is absent or not a string.
func StringMember(raw json.RawMessage, name string) string {
	if !gjson.ValidBytes(raw) || !gjson.ParseBytes(raw).IsObject() {
		return ""
	}
	r := gjson.GetBytes(raw, memberPath(name))
	if r.Type != gjson.String {
		return ""
	}
	return r.Str
}

// SetMember returns a copy of a JSON object with name set to value. Other
// members keep their bytes and order; a new member is appended.
func SetMember(raw json.RawMessage, name string, value any) (json.RawMessage, error) {
	if len(bytes.TrimSpace(raw)) == 0 || isNull(raw) {
		raw = json.RawMessage(`{}`)
	}
	if !gjson.ValidBytes(raw) || !gjson.ParseBytes(raw).IsObject() {
		return nil, fmt.Errorf("set %s: not a JSON object", name)
	}
	encoded, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", name, err)
	}
	out, err := sjson.SetRawBytes(append([]byte(nil), raw...), memberPath(name), encoded)
	if err != nil {
		return nil, fmt.Errorf("set %s: %w", name, err)
	}
	return out, nil
}

// DeleteMember returns a copy of a JSON object without name.
func DeleteMember(raw json.RawMessage, name string) (json.RawMessage, error) {
	if !gjson.GetBytes(raw, memberPath(name)).Exists() {
		return raw, nil
	}
	out, err := sjson.DeleteBytes(append([]byte(nil), raw...), memberPath(name))
	if err != nil {
		return nil, fmt.Errorf("delete %s: %w", name, err)
	}
	return out, nil
}

var pathEscaper = strings.NewReplacer(
	"\\", "\\\\", ".", "\\.", "*", "\\*", "?", "\\?", "|", "\\|", "#", "\\#",
	"@", "\\@", "!", "\\!", "=", "\\=", "<", "\\<", ">", "\\>", "%", "\\%",
)

// memberPath turns a member name into a gjson/sjson path that matches it
// literally.
func memberPath(name string) string {
	return pathEscaper.Replace(name)
}
