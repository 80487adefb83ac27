package forum

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidator(t *testing.T) {
	t.Run("ValidateRequired", func(t *testing.T) {
		v := NewValidator()

		assert.False(t, v.ValidateRequired("field", ""))
		assert.False(t, v.ValidateRequired("field", "   "))
		assert.True(t, v.ValidateRequired("field", "value"))
		assert.True(t, v.HasErrors())
		assert.Len(t, v.Errors(), 2)
		assert.ErrorIs(t, v.Err(), ErrValidation)
	})

	t.Run("ValidateMaxLength", func(t *testing.T) {
		v := NewValidator()

		assert.True(t, v.ValidateMaxLength("field", "hello", 10))
		assert.False(t, v.ValidateMaxLength("field", "hello world", 5))
		assert.True(t, v.ValidateMaxLength("field", "👋🌍", 2))
	})

	t.Run("ValidateNoHTML", func(t *testing.T) {
		v := NewValidator()

		assert.True(t, v.ValidateNoHTML("field", "plain text"))
		assert.True(t, v.ValidateNoHTML("field", "text with < and >"))
		assert.False(t, v.ValidateNoHTML("field", "<script>alert('xss')</script>"))
	})

	t.Run("ValidateInteger", func(t *testing.T) {
		v := NewValidator()

		val, ok := v.ValidateInteger("num", "42", 0, 100)
		assert.True(t, ok)
		assert.Equal(t, int64(42), val)

		_, ok = v.ValidateInteger("num", "150", 0, 100)
		assert.False(t, ok)
		_, ok = v.ValidateInteger("num", "-5", 0, 100)
		assert.False(t, ok)
		_, ok = v.ValidateInteger("num", "12abc", 0, 100)
		assert.False(t, ok)
	})

	t.Run("no errors", func(t *testing.T) {
		assert.NoError(t, NewValidator().Err())
	})
}

func TestValidateTopicForm(t *testing.T) {
	tests := []struct {
		name      string
		title     string
		body      string
		wantError bool
	}{
		{"valid input", "Test title", "Body", false},
		{"empty title", "", "Body", true},
		{"short title", "Hi", "Body", true},
		{"empty body", "Test title", "", true},
		{"title too long", strings.Repeat("a", MaxTitleLength+1), "Body", true},
		{"body too long", "Test title", strings.Repeat("a", MaxBodyLength+1), true},
		{"markup in title", "<i>Test</i> title", "Body", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTopicForm(tt.title, tt.body)
			if tt.wantError {
				assert.ErrorIs(t, err, ErrValidation)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateModeration(t *testing.T) {
	assert.NoError(t, ValidateModeration(Moderation{Type: ActionBan, Reason: "Spam"}))
	assert.Error(t, ValidateModeration(Moderation{Type: "delete"}))
	assert.Error(t, ValidateModeration(Moderation{Type: ActionBan, ReasonText: strings.Repeat("x", MaxReasonLength+1)}))
}

func TestValidateSetting(t *testing.T) {
	tests := []struct {
		key       string
		value     string
		wantError bool
	}{
		{SettingNewbieLimitTime, "100000", false},
		{SettingNewbieLimitTime, "0", false},
		{SettingNewbieLimitTime, "-1", true},
		{SettingNewbieLimitTime, "soon", true},
		{SettingNewbieLimitTime, "31536000", false},
		{SettingNewbieLimitTime, "31536001", true},
		{SettingNewbieLimitTime, "9223372036854775807", true},
		{SettingBoardTitle, "Our board", false},
		{SettingBoardTitle, "", true},
		{SettingBanReasons, "Spam\nOff topic", false},
		{"favorite_color", "blue", true},
	}

	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			err := ValidateSetting(tt.key, tt.value)
			if tt.wantError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSanitizeInput(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"normal text", "Hello World", "Hello World"},
		{"extra spaces", "  Hello   World  ", "Hello World"},
		{"crlf", "Hello\r\nWorld", "Hello\nWorld"},
		{"tabs", "Hello\t\tWorld", "Hello World"},
		{"paragraphs collapse", "a\n\n\n\nb", "a\n\nb"},
		{"null bytes", "Hello\x00World", "HelloWorld"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, SanitizeInput(tt.input))
		})
	}
}
