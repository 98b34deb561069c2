package validation

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// apiClaimRule mirrors the shape of a descriptor API claim: an internal claim
// may not name a bundle, an external one must.
func apiClaimRule() *UnionRule {
	internal := Object(
		F("name", String()),
		F("type", String(OneOf("internal"))),
		F("serviceName", String()),
		F("bundle", String().Optional().DependsOnField("type", Equals("external"))),
	)
	external := Object(
		F("name", String()),
		F("type", String(OneOf("external"))),
		F("serviceName", String()),
		F("bundle", String()),
	)
	return Union(internal, external)
}

func TestValidate_ReturnsValueOnSuccess(t *testing.T) {
	rule := Object(
		F("name", String(MaxLength(50))),
		F("port", Number()),
		F("ingress", Boolean().Optional()),
	)
	value := map[string]interface{}{"name": "svc", "port": 8080, "extra": true}

	got, err := Validate(value, rule)
	require.NoError(t, err)
	assert.Equal(t, value, got)
}

func TestValidate_RequiredFieldMissing(t *testing.T) {
	rule := Object(F("name", String()))

	_, err := Validate(map[string]interface{}{}, rule)
	require.Error(t, err)

	var se *StructuralError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, `Field "name" is required`, se.Message)
	assert.Equal(t, "$.name", se.Path.String())
	assert.Equal(t, "Field \"name\" is required\nPosition: $.name", err.Error())
}

func TestValidate_ArrayElementPath(t *testing.T) {
	rule := Array(Object(F("name", String())))
	value := []interface{}{
		map[string]interface{}{"name": "a"},
		map[string]interface{}{},
	}

	_, err := Validate(value, rule)
	require.Error(t, err)

	path, ok := ErrorPath(err)
	require.True(t, ok)
	assert.Equal(t, "$[1].name", path.String())
}

func TestValidate_NestedPath(t *testing.T) {
	rule := Object(
		F("microservices", Array(Object(F("name", String(MaxLength(5)))))),
	)
	value := map[string]interface{}{
		"microservices": []interface{}{
			map[string]interface{}{"name": "a"},
			map[string]interface{}{"name": "b"},
			map[string]interface{}{"name": "much-too-long"},
		},
	}

	_, err := Validate(value, rule)
	require.Error(t, err)
	assert.Equal(t,
		"Field \"name\" is too long. Maximum length is 5\nPosition: $.microservices[2].name",
		err.Error())
}

func TestValidate_ArrayStopsAtFirstFailingElement(t *testing.T) {
	rule := Object(F("tags", Array(String())))
	value := map[string]interface{}{"tags": []interface{}{"ok", 1, true}}

	_, err := Validate(value, rule)
	require.Error(t, err)
	path, _ := ErrorPath(err)
	assert.Equal(t, "$.tags[1]", path.String())
}

func TestValidate_TypeMismatches(t *testing.T) {
	tests := []struct {
		name    string
		rule    Rule
		value   interface{}
		wantMsg string
	}{
		{
			name:    "string expected",
			rule:    Object(F("name", String())),
			value:   map[string]interface{}{"name": 42},
			wantMsg: `Field "name" is not valid. Should be a string`,
		},
		{
			name:    "number expected",
			rule:    Object(F("port", Number())),
			value:   map[string]interface{}{"port": "8080"},
			wantMsg: `Field "port" is not valid. Should be a number`,
		},
		{
			name:    "boolean expected",
			rule:    Object(F("ingress", Boolean())),
			value:   map[string]interface{}{"ingress": "yes"},
			wantMsg: `Field "ingress" is not valid. Should be a boolean`,
		},
		{
			name:    "null counts as present",
			rule:    Object(F("name", String().Optional())),
			value:   map[string]interface{}{"name": nil},
			wantMsg: `Field "name" is not valid. Should be a string`,
		},
		{
			name:    "array expected",
			rule:    Object(F("tags", Array(String()))),
			value:   map[string]interface{}{"tags": "a,b"},
			wantMsg: `Field "tags" should be an array`,
		},
		{
			name:    "object expected",
			rule:    Object(F("meta", Object(F("a", String())))),
			value:   map[string]interface{}{"meta": []interface{}{}},
			wantMsg: `Field "meta" should be an object`,
		},
		{
			name:    "root object expected",
			rule:    Object(F("name", String())),
			value:   "bundle",
			wantMsg: `Field "$" should be an object`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Validate(tt.value, tt.rule)
			require.Error(t, err)
			var se *StructuralError
			require.True(t, errors.As(err, &se))
			assert.Equal(t, tt.wantMsg, se.Message)
		})
	}
}

func TestValidate_NumberShapes(t *testing.T) {
	rule := Object(F("n", Number()))
	for _, v := range []interface{}{1, int64(2), uint8(3), 4.5, float32(5), json.Number("6")} {
		_, err := Validate(map[string]interface{}{"n": v}, rule)
		assert.NoError(t, err, "value %#v", v)
	}
}

func TestValidate_YAMLStyleMaps(t *testing.T) {
	rule := Object(F("svc", Object(F("name", String()))))
	value := map[interface{}]interface{}{
		"svc": map[interface{}]interface{}{"name": "x"},
	}
	_, err := Validate(value, rule)
	assert.NoError(t, err)
}

func TestValidate_FirstCollectedErrorWins(t *testing.T) {
	value := map[string]interface{}{"a": 1, "b": "x"}

	_, err := Validate(value, Object(F("a", String()), F("b", Number())))
	require.Error(t, err)
	path, _ := ErrorPath(err)
	assert.Equal(t, "$.a", path.String())

	// reversing the declaration order reverses the reported field
	_, err = Validate(value, Object(F("b", Number()), F("a", String())))
	require.Error(t, err)
	path, _ = ErrorPath(err)
	assert.Equal(t, "$.b", path.String())
}

func TestValidate_RequiredFailsFast(t *testing.T) {
	// "a" fails first but the missing "b" is reported
	rule := Object(F("a", String()), F("b", String()))

	_, err := Validate(map[string]interface{}{"a": 1}, rule)
	require.Error(t, err)
	assert.Equal(t, "Field \"b\" is required\nPosition: $.b", err.Error())
}

func TestValidate_ValidatorsRunInOrder(t *testing.T) {
	rule := Object(F("name", String(MaxLength(3), Pattern("^[a-z]+$"))))

	_, err := Validate(map[string]interface{}{"name": "ABCDE"}, rule)
	require.Error(t, err)
	var se *StructuralError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, `Field "name" is too long. Maximum length is 3`, se.Message)

	_, err = Validate(map[string]interface{}{"name": "ABC"}, rule)
	require.Error(t, err)
	require.True(t, errors.As(err, &se))
	assert.Equal(t, `Field "name" is not valid. Should match regex "^[a-z]+$"`, se.Message)
}

func TestValidate_ObjectValidatorsRunAfterFields(t *testing.T) {
	var calls int
	check := ValidatorFunc(func(field string, value interface{}, path Path) error {
		calls++
		return NewStructuralError(path, "Field \"%s\" is not valid. Object check failed", field)
	})
	rule := Object(F("name", String())).With(check)

	_, err := Validate(map[string]interface{}{"name": 1}, rule)
	require.Error(t, err)
	assert.Equal(t, 0, calls)

	_, err = Validate(map[string]interface{}{"name": "ok"}, rule)
	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, "Field \"$\" is not valid. Object check failed\nPosition: $", err.Error())
}

func TestValidate_DependencyFailure(t *testing.T) {
	rule := Object(
		F("type", String()),
		F("bundle", String().Optional().DependsOnField("type", Equals("external"))),
	)

	_, err := Validate(map[string]interface{}{"type": "internal", "bundle": "other"}, rule)
	require.Error(t, err)

	var de *DependencyError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, "bundle", de.Field)
	assert.Equal(t, "type", de.DependsOn)
	assert.Equal(t, "$.type", de.Path.String())
	assert.Equal(t,
		"Field \"bundle\" depends on field \"type\" with validation:\n"+
			"    Field \"type\" is not valid. Should be equal to \"external\"\n"+
			"Position: $.type",
		err.Error())

	var cause *StructuralError
	assert.True(t, errors.As(de.Unwrap(), &cause))
}

func TestValidate_DependencyOnlyCheckedWhenPresent(t *testing.T) {
	rule := Object(
		F("type", String()),
		F("bundle", String().Optional().DependsOnField("type", Equals("external"))),
	)
	_, err := Validate(map[string]interface{}{"type": "internal"}, rule)
	assert.NoError(t, err)
}

func TestValidate_DependencyOnAbsentSibling(t *testing.T) {
	rule := Object(
		F("type", String().Optional()),
		F("bundle", String().DependsOnField("type", Equals("external"))),
	)
	_, err := Validate(map[string]interface{}{"bundle": "x"}, rule)
	require.Error(t, err)
	assert.True(t, IsDependencyError(err))
}

func TestValidate_DependencyPrecedesCollectedErrors(t *testing.T) {
	dep := String().Optional().DependsOnField("type", Equals("external"))
	value := map[string]interface{}{"type": "internal", "bundle": "x", "port": "bad"}

	tests := []struct {
		name string
		rule *ObjectRule
	}{
		{
			name: "bad sibling declared after",
			rule: Object(F("type", String()), F("bundle", dep), F("port", Number())),
		},
		{
			name: "bad sibling declared before",
			rule: Object(F("port", Number()), F("type", String()), F("bundle", dep)),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Validate(value, tt.rule)
			require.Error(t, err)
			assert.True(t, IsDependencyError(err))
		})
	}
}

func TestValidate_NestedDependencyPropagates(t *testing.T) {
	rule := Object(
		F("name", Number()),
		F("claims", Array(apiClaimRule())),
	)
	value := map[string]interface{}{
		"name": "not-a-number",
		"claims": []interface{}{
			map[string]interface{}{
				"name": "c", "type": "internal", "serviceName": "svc", "bundle": "other",
			},
		},
	}

	_, err := Validate(value, rule)
	require.Error(t, err)
	var de *DependencyError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, "$.claims[0].type", de.Path.String())
}

func TestValidate_Union(t *testing.T) {
	rule := apiClaimRule()

	t.Run("first alternative matches", func(t *testing.T) {
		_, err := Validate(map[string]interface{}{
			"name": "c", "type": "internal", "serviceName": "svc",
		}, rule)
		assert.NoError(t, err)
	})

	t.Run("later alternative matches", func(t *testing.T) {
		_, err := Validate(map[string]interface{}{
			"name": "c", "type": "external", "serviceName": "svc", "bundle": "other",
		}, rule)
		assert.NoError(t, err)
	})

	t.Run("no alternative matches", func(t *testing.T) {
		_, err := Validate(map[string]interface{}{
			"name": "c", "type": "external", "serviceName": "svc",
		}, rule)
		require.Error(t, err)

		var ue *UnionError
		require.True(t, errors.As(err, &ue))
		require.Len(t, ue.Alternatives, 2)
		assert.Equal(t,
			"Fix one of the following errors:\n"+
				"- Field \"type\" is not valid. Should be one of: internal\n"+
				"  Position: $.type\n"+
				"- Field \"bundle\" is required\n"+
				"  Position: $.bundle",
			err.Error())

		_, ok := ErrorPath(err)
		assert.False(t, ok)
	})

	t.Run("dependency error stops the search", func(t *testing.T) {
		_, err := Validate(map[string]interface{}{
			"name": "c", "type": "internal", "serviceName": "svc", "bundle": "other",
		}, rule)
		require.Error(t, err)
		assert.True(t, IsDependencyError(err))
		assert.False(t, IsUnionError(err))
	})
}

func TestValidate_UnionDeduplicatesMessages(t *testing.T) {
	rule := Union(
		Object(F("name", String())),
		Object(F("name", String()), F("type", String().Optional())),
		Object(F("id", Number())),
	)

	_, err := Validate(map[string]interface{}{}, rule)
	require.Error(t, err)

	var ue *UnionError
	require.True(t, errors.As(err, &ue))
	assert.Equal(t, []string{
		"Field \"name\" is required\nPosition: $.name",
		"Field \"id\" is required\nPosition: $.id",
	}, ue.Alternatives)
}

func TestValidate_NilRule(t *testing.T) {
	_, err := Validate(map[string]interface{}{}, nil)
	assert.Error(t, err)
}

func TestValidate_Deterministic(t *testing.T) {
	rule := Object(
		F("claims", Array(apiClaimRule())),
		F("name", String()),
	)
	value := map[string]interface{}{
		"name": 5,
		"claims": []interface{}{
			map[string]interface{}{"name": "c", "type": "other", "serviceName": "svc"},
		},
	}

	_, first := Validate(value, rule)
	require.Error(t, first)
	for i := 0; i < 20; i++ {
		_, err := Validate(value, rule)
		require.Error(t, err)
		assert.Equal(t, first.Error(), err.Error())
	}
}

func TestValidate_ConcurrentUse(t *testing.T) {
	rule := Object(F("claims", Array(apiClaimRule())))
	good := map[string]interface{}{
		"claims": []interface{}{
			map[string]interface{}{"name": "c", "type": "internal", "serviceName": "svc"},
		},
	}
	bad := map[string]interface{}{"claims": "none"}

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				_, err := Validate(good, rule)
				assert.NoError(t, err)
				return
			}
			_, err := Validate(bad, rule)
			assert.Error(t, err)
		}(i)
	}
	wg.Wait()
}
