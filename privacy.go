package main

import (
	"log/slog"
	"strings"

	"github.com/imeyer/tforum/middleware"
)

// redactLogin keeps the first character and the domain of a tailnet
// login: "alice@example.com" becomes "a***@example.com".
func redactLogin(login string) string {
	if login == "" {
		return ""
	}

	local, domain, ok := strings.Cut(login, "@")
	if !ok || strings.Contains(domain, "@") {
		return "***"
	}
	if len(local) <= 2 {
		return "***@" + domain
	}
	return local[:1] + "***@" + domain
}

// loginAttr logs a login without exposing it. The digest matches the
// email_hash the identity middleware logs.
func loginAttr(login string) slog.Attr {
	return slog.Group("login",
		slog.String("masked", redactLogin(login)),
		slog.String("digest", middleware.HashEmail(login)),
	)
}
