package main

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/imeyer/tforum/middleware"
)

func TestRedactLogin(t *testing.T) {
	tests := []struct {
		name     string
		login    string
		expected string
	}{
		{name: "normal login", login: "alice@example.com", expected: "a***@example.com"},
		{name: "short local part", login: "ab@example.com", expected: "***@example.com"},
		{name: "single character", login: "a@example.com", expected: "***@example.com"},
		{name: "empty", login: "", expected: ""},
		{name: "no domain", login: "alice", expected: "***"},
		{name: "two @ signs", login: "alice@host@example.com", expected: "***"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, redactLogin(tt.login))
		})
	}
}

func TestLoginAttrHidesLogin(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	logger.Info("lookup", loginAttr("alice@example.com"))

	out := buf.String()
	assert.NotContains(t, out, "alice@")
	assert.Contains(t, out, "login.masked=a***@example.com")
	assert.Contains(t, out, "login.digest="+middleware.HashEmail("alice@example.com"))
}
