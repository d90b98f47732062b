package fhir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantumcare/clinical/internal/platform/apperr"
)

func validate(t *testing.T, spec *FieldSpec, doc string) []apperr.FieldIssue {
	t.Helper()
	v, err := decodeValue([]byte(doc))
	require.NoError(t, err)
	return spec.Validate("resource", v)
}

func issuePaths(issues []apperr.FieldIssue) []string {
	paths := make([]string, len(issues))
	for i, is := range issues {
		paths[i] = is.Path
	}
	return paths
}

func TestIsDate(t *testing.T) {
	for _, s := range []string{"2024", "2024-03", "2024-03-15", "2024-03-15T10:30:00Z", "2024-03-15T10:30:00.123+05:30", "2024-03-15T10:30:00"} {
		assert.True(t, IsDate(s), s)
	}
	for _, s := range []string{"", "yesterday", "2024-13-01", "15/03/2024"} {
		assert.False(t, IsDate(s), s)
	}
}

func TestValidate_Kinds(t *testing.T) {
	spec := Object(Fields{
		"s":    String(),
		"n":    Number(),
		"i":    Integer(),
		"b":    Boolean(),
		"d":    Date(),
		"list": ArrayOf(String()),
		"any":  Mixed(),
	})

	issues := validate(t, spec, `{"s":"x","n":1.5,"i":3,"b":true,"d":"2024-01-01","list":["a"],"any":{"deep":[1,{"x":null}]}}`)
	assert.Empty(t, issues)

	issues = validate(t, spec, `{"s":1,"n":"1","i":1.5,"b":"true","d":"soon","list":"a"}`)
	assert.ElementsMatch(t, []string{
		"resource.s", "resource.n", "resource.i", "resource.b", "resource.d", "resource.list",
	}, issuePaths(issues))
}

func TestValidate_NullOptionalAllowed(t *testing.T) {
	spec := Object(Fields{"s": String(), "o": Object(Fields{"x": String()})})
	assert.Empty(t, validate(t, spec, `{"s":null,"o":null}`))
}

func TestValidate_RequiredMissingOrNull(t *testing.T) {
	spec := Object(Fields{"status": String().Require(), "code": CodeableConceptSpec.Require()})

	issues := validate(t, spec, `{"status":null}`)
	require.Len(t, issues, 2)
	assert.Equal(t, "resource.code", issues[0].Path)
	assert.Equal(t, "is required", issues[0].Message)
	assert.Equal(t, "resource.status", issues[1].Path)
}

func TestValidate_UnknownFieldRejectedAtDepth(t *testing.T) {
	issues := validate(t, CodeableConceptSpec, `{"coding":[{"system":"http://loinc.org"},{"code":"x","bogus":1}],"text":"t"}`)
	require.Len(t, issues, 1)
	assert.Equal(t, "resource.coding[1].bogus", issues[0].Path)
	assert.Equal(t, "is not a permitted field", issues[0].Message)
}

func TestValidate_NestedWrongKind(t *testing.T) {
	issues := validate(t, CodeableConceptSpec, `{"coding":[{"userSelected":"yes"}]}`)
	require.Len(t, issues, 1)
	assert.Equal(t, "resource.coding[0].userSelected", issues[0].Path)
	assert.Equal(t, "must be a boolean", issues[0].Message)
}

func TestValidate_NullArrayElement(t *testing.T) {
	issues := validate(t, Object(Fields{"given": ArrayOf(String())}), `{"given":["a",null]}`)
	require.Len(t, issues, 1)
	assert.Equal(t, "resource.given[1]", issues[0].Path)
	assert.Equal(t, "must not be null", issues[0].Message)
}

func TestValidate_Enum(t *testing.T) {
	spec := Object(Fields{"status": String().OneOf("final", "amended")})

	assert.Empty(t, validate(t, spec, `{"status":"final"}`))

	issues := validate(t, spec, `{"status":"done"}`)
	require.Len(t, issues, 1)
	assert.Contains(t, issues[0].Message, `invalid code "done"`)
	assert.Contains(t, issues[0].Message, "final, amended")
}

func TestValidate_MixedSkipsInspection(t *testing.T) {
	issues := validate(t, IdentifierSpec, `{"value":"123","period":"not-a-period","assigner":[1,2,3]}`)
	assert.Empty(t, issues)
}

func TestValidate_RootNotObject(t *testing.T) {
	issues := validate(t, Object(Fields{}), `[1]`)
	require.Len(t, issues, 1)
	assert.Equal(t, "resource", issues[0].Path)
	assert.Equal(t, "must be an object", issues[0].Message)
}

func TestValidate_IntegerRejectsFraction(t *testing.T) {
	spec := Object(Fields{"rank": Integer()})
	assert.Empty(t, validate(t, spec, `{"rank":7}`))
	assert.Len(t, validate(t, spec, `{"rank":7.25}`), 1)
}
