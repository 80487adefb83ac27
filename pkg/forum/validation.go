package forum

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Validator provides input validation functions
type Validator struct {
	errors ValidationErrors
}

// NewValidator creates a new validator
func NewValidator() *Validator {
	return &Validator{
		errors: make(ValidationErrors, 0),
	}
}

// HasErrors returns true if there are validation errors
func (v *Validator) HasErrors() bool {
	return len(v.errors) > 0
}

// Errors returns all validation errors
func (v *Validator) Errors() ValidationErrors {
	return v.errors
}

// Err returns the collected errors, or nil when there are none.
func (v *Validator) Err() error {
	if !v.HasErrors() {
		return nil
	}
	return v.errors
}

func (v *Validator) AddError(field, message string) {
	v.errors = append(v.errors, ValidationError{
		Field:   field,
		Message: message,
	})
}

// ValidateRequired validates that a field is not empty
func (v *Validator) ValidateRequired(field, value string) bool {
	if strings.TrimSpace(value) == "" {
		v.AddError(field, "is required")
		return false
	}
	return true
}

func (v *Validator) ValidateMaxLength(field, value string, maxLength int) bool {
	if utf8.RuneCountInString(value) > maxLength {
		v.AddError(field, fmt.Sprintf("must not exceed %d characters", maxLength))
		return false
	}
	return true
}

func (v *Validator) ValidateMinLength(field, value string, minLength int) bool {
	if utf8.RuneCountInString(value) < minLength {
		v.AddError(field, fmt.Sprintf("must be at least %d characters", minLength))
		return false
	}
	return true
}

var htmlTagRegex = regexp.MustCompile(`</?[a-zA-Z][^>]*>`)

// ValidateNoHTML validates that a string contains no HTML tags
func (v *Validator) ValidateNoHTML(field, value string) bool {
	if htmlTagRegex.MatchString(value) {
		v.AddError(field, "must not contain HTML tags")
		return false
	}
	return true
}

// ValidateInteger validates that a string parses as an integer within bounds
func (v *Validator) ValidateInteger(field, value string, min, max int64) (int64, bool) {
	num, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil {
		v.AddError(field, "must be a valid number")
		return 0, false
	}

	if num < min {
		v.AddError(field, fmt.Sprintf("must be at least %d", min))
		return 0, false
	}

	if num > max {
		v.AddError(field, fmt.Sprintf("must not exceed %d", max))
		return 0, false
	}

	return num, true
}

const (
	MinTitleLength     = 3
	MaxTitleLength     = 255
	MaxBodyLength      = 20000
	MaxReasonLength    = 500
	MaxBoardTitle      = 200
	MaxBanReasonsSize  = 2000
	MaxNewbieLimitTime = 365 * 24 * 60 * 60
)

// ValidateTopicForm validates topic creation and edit input
func ValidateTopicForm(title, body string) error {
	v := NewValidator()

	if v.ValidateRequired("title", title) {
		v.ValidateMaxLength("title", title, MaxTitleLength)
		v.ValidateMinLength("title", strings.TrimSpace(title), MinTitleLength)
		v.ValidateNoHTML("title", title)
	}

	if v.ValidateRequired("body", body) {
		v.ValidateMaxLength("body", body, MaxBodyLength)
	}

	return v.Err()
}

func ValidateReplyForm(body string) error {
	v := NewValidator()

	if v.ValidateRequired("body", body) {
		v.ValidateMaxLength("body", body, MaxBodyLength)
	}

	return v.Err()
}

// ValidateModeration checks the action token and reason lengths.
func ValidateModeration(m Moderation) error {
	v := NewValidator()

	if !m.Type.Valid() {
		v.AddError("type", fmt.Sprintf("unknown action %q", string(m.Type)))
	}
	v.ValidateMaxLength("reason", m.Reason, MaxReasonLength)
	v.ValidateMaxLength("reason_text", m.ReasonText, MaxReasonLength)

	return v.Err()
}

// ValidateSetting checks a runtime setting before it is stored.
func ValidateSetting(key, value string) error {
	v := NewValidator()

	switch key {
	case SettingNewbieLimitTime:
		if v.ValidateRequired(key, value) {
			v.ValidateInteger(key, value, 0, MaxNewbieLimitTime)
		}
	case SettingBoardTitle:
		if v.ValidateRequired(key, value) {
			v.ValidateMaxLength(key, value, MaxBoardTitle)
			v.ValidateNoHTML(key, value)
		}
	case SettingBanReasons:
		v.ValidateMaxLength(key, value, MaxBanReasonsSize)
	default:
		v.AddError("key", fmt.Sprintf("unknown setting %q", key))
	}

	return v.Err()
}

var (
	hSpaceRegex  = regexp.MustCompile(`[^\S\n]+`)
	newlineRegex = regexp.MustCompile(`\n{3,}`)
)

// SanitizeInput performs basic input sanitization
func SanitizeInput(input string) string {
	// CRLF and bare CR become LF
	input = strings.ReplaceAll(input, "\r\n", "\n")
	input = strings.ReplaceAll(input, "\r", "\n")

	input = strings.TrimSpace(input)
	input = hSpaceRegex.ReplaceAllString(input, " ")
	input = newlineRegex.ReplaceAllString(input, "\n\n")

	return strings.ReplaceAll(input, "\x00", "")
}
