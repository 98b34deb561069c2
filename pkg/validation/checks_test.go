package validation

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidators(t *testing.T) {
	path := PathOf("svc", "name")

	tests := []struct {
		name      string
		validator Validator
		value     interface{}
		wantMsg   string
	}{
		{
			name:      "pattern match",
			validator: Pattern(`^[a-z0-9-]+$`),
			value:     "my-bundle",
		},
		{
			name:      "pattern mismatch",
			validator: Pattern(`^[a-z0-9-]+$`),
			value:     "My Bundle",
			wantMsg:   `Field "name" is not valid. Should match regex "^[a-z0-9-]+$"`,
		},
		{
			name:      "pattern hint",
			validator: Pattern(`^/`).WithHint("Should start with a slash"),
			value:     "health",
			wantMsg:   `Field "name" is not valid. Should start with a slash`,
		},
		{
			name:      "pattern on non-string",
			validator: Pattern(`.*`),
			value:     12,
			wantMsg:   `Field "name" is not valid. Should match regex ".*"`,
		},
		{
			name:      "enum accepted",
			validator: OneOf("spring-boot", "node", "custom"),
			value:     "node",
		},
		{
			name:      "enum rejected",
			validator: OneOf("spring-boot", "node", "custom"),
			value:     "python",
			wantMsg:   `Field "name" is not valid. Should be one of: spring-boot, node, custom`,
		},
		{
			name:      "max length counts runes",
			validator: MaxLength(3),
			value:     "äöü",
		},
		{
			name:      "max length exceeded",
			validator: MaxLength(3),
			value:     "abcd",
			wantMsg:   `Field "name" is too long. Maximum length is 3`,
		},
		{
			name:      "min length",
			validator: MinLength(2),
			value:     "a",
			wantMsg:   `Field "name" is too short. Minimum length is 2`,
		},
		{
			name:      "equals string",
			validator: Equals("external"),
			value:     "internal",
			wantMsg:   `Field "name" is not valid. Should be equal to "external"`,
		},
		{
			name:      "equals across numeric kinds",
			validator: Equals(6),
			value:     6.0,
		},
		{
			name:      "equals numeric mismatch",
			validator: Equals(6),
			value:     "6",
			wantMsg:   `Field "name" is not valid. Should be equal to 6`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.validator.Validate("name", tt.value, path)
			if tt.wantMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			var se *StructuralError
			require.True(t, errors.As(err, &se))
			assert.Equal(t, tt.wantMsg, se.Message)
			assert.Equal(t, "$.svc.name", se.Path.String())
		})
	}
}

func TestStringMap(t *testing.T) {
	rule := Object(
		F("titles", Object().With(StringMap())),
	)

	_, err := Validate(map[string]interface{}{
		"titles": map[string]interface{}{"en": "Title", "it": "Titolo"},
	}, rule)
	assert.NoError(t, err)

	_, err = Validate(map[string]interface{}{
		"titles": map[string]interface{}{"en": "Title", "it": 3},
	}, rule)
	require.Error(t, err)
	assert.Equal(t, "Field \"it\" is not valid. Should be a string\nPosition: $.titles.it", err.Error())
}
