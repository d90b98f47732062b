package fhir

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/quantumcare/clinical/internal/platform/apperr"
)

// dateLayouts are the accepted lexical forms of FHIR date, dateTime and instant.
var dateLayouts = []string{
	"2006",
	"2006-01",
	"2006-01-02",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05.999999999",
	time.RFC3339,
	time.RFC3339Nano,
}

// IsDate reports whether s is a FHIR date, dateTime or instant.
func IsDate(s string) bool {
	for _, layout := range dateLayouts {
		if _, err := time.Parse(layout, s); err == nil {
			return true
		}
	}
	return false
}

// Validate checks a decoded JSON value (objects as map[string]any, numbers
// as json.Number) against the spec. It returns one issue per offending path;
// an empty result means the value conforms.
func (f *FieldSpec) Validate(path string, value any) []apperr.FieldIssue {
	var issues []apperr.FieldIssue
	f.walk(path, value, &issues)
	return issues
}

func (f *FieldSpec) walk(path string, value any, issues *[]apperr.FieldIssue) {
	if value == nil || f.Kind == KindMixed {
		return
	}

	report := func(msg string) {
		*issues = append(*issues, apperr.FieldIssue{Path: path, Message: msg})
	}

	switch f.Kind {
	case KindString:
		s, ok := value.(string)
		if !ok {
			report("must be a string")
			return
		}
		if !f.allows(s) {
			report(fmt.Sprintf("invalid code %q; valid values: %s", s, strings.Join(f.Enum, ", ")))
		}

	case KindNumber:
		n, ok := value.(json.Number)
		if !ok {
			report("must be a number")
			return
		}
		if _, err := n.Float64(); err != nil {
			report("must be a number")
		}

	case KindInteger:
		n, ok := value.(json.Number)
		if !ok {
			report("must be an integer")
			return
		}
		if _, err := n.Int64(); err != nil {
			report("must be an integer")
		}

	case KindBoolean:
		if _, ok := value.(bool); !ok {
			report("must be a boolean")
		}

	case KindDate:
		s, ok := value.(string)
		if !ok || !IsDate(s) {
			report("must be a FHIR date, dateTime or instant")
		}

	case KindArray:
		items, ok := value.([]any)
		if !ok {
			report("must be an array")
			return
		}
		for i, item := range items {
			itemPath := fmt.Sprintf("%s[%d]", path, i)
			if item == nil {
				*issues = append(*issues, apperr.FieldIssue{Path: itemPath, Message: "must not be null"})
				continue
			}
			f.Elem.walk(itemPath, item, issues)
		}

	case KindObject:
		obj, ok := value.(map[string]any)
		if !ok {
			report("must be an object")
			return
		}
		f.walkObject(path, obj, issues)
	}
}

func (f *FieldSpec) walkObject(path string, obj map[string]any, issues *[]apperr.FieldIssue) {
	for _, name := range f.RequiredFields() {
		if v, ok := obj[name]; !ok || v == nil {
			*issues = append(*issues, apperr.FieldIssue{Path: joinPath(path, name), Message: "is required"})
		}
	}

	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		child, known := f.Fields[k]
		if !known {
			*issues = append(*issues, apperr.FieldIssue{Path: joinPath(path, k), Message: "is not a permitted field"})
			continue
		}
		child.walk(joinPath(path, k), obj[k], issues)
	}
}

func joinPath(parent, name string) string {
	if parent == "" {
		return name
	}
	return parent + "." + name
}
