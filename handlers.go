package main

import (
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strconv"

	"github.com/imeyer/tforum/middleware"
	"github.com/imeyer/tforum/pkg/forum"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

func (s *ForumService) renderError(w http.ResponseWriter, statusCode int) {
	http.Error(w, http.StatusText(statusCode), statusCode)
}

func (s *ForumService) writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		middleware.GetLogger(r.Context()).ErrorContext(r.Context(), "error encoding response",
			slog.String("error", err.Error()))
	}
}

// handleError turns a forum error into a response. Anonymous denials
// go to sign in; everything unclassified is a logged 500.
func (s *ForumService) handleError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	span := trace.SpanFromContext(ctx)
	span.RecordError(err)

	var verrs forum.ValidationErrors
	switch {
	case forum.IsUnauthenticated(err):
		middleware.RedirectToSignIn(w, r)
	case errors.Is(err, forum.ErrDenied):
		middleware.GetLogger(ctx).InfoContext(ctx, "request denied", slog.String("error", err.Error()))
		s.renderError(w, http.StatusForbidden)
	case errors.Is(err, forum.ErrNotFound):
		s.renderError(w, http.StatusNotFound)
	case errors.As(err, &verrs):
		fields := make(map[string]string, len(verrs))
		for _, v := range verrs {
			fields[v.Field] = v.Message
		}
		s.writeJSON(w, r, http.StatusBadRequest, errorJSON{Error: "validation failed", Fields: fields})
	default:
		span.SetStatus(codes.Error, err.Error())
		middleware.GetLogger(ctx).ErrorContext(ctx, "request failed", slog.String("error", err.Error()))
		s.renderError(w, http.StatusInternalServerError)
	}
}

// pathID parses a numeric path value. Anything else is a missing record.
func pathID(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// pageParam reads ?page=. Malformed, non-positive or out of range values
// mean page 1.
func pageParam(r *http.Request) int {
	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || page < 1 || page > math.MaxInt32 {
		return 1
	}
	return page
}

// formID parses an optional numeric form field; empty means zero.
func formID(r *http.Request, field string) (int64, error) {
	raw := r.Form.Get(field)
	if raw == "" {
		return 0, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 0 {
		return 0, forum.ValidationErrors{{Field: field, Message: "must be a positive number"}}
	}
	return id, nil
}

// SignIn explains how to get an identity. Members are identified by the
// tailnet, so there is nothing to submit.
func (s *ForumService) SignIn(w http.ResponseWriter, r *http.Request) {
	if user, ok := middleware.GetUser(r.Context()); ok && user != nil {
		next := r.URL.Query().Get("next")
		if next == "" || next[0] != '/' || (len(next) > 1 && next[1] == '/') {
			next = "/"
		}
		http.Redirect(w, r, next, http.StatusSeeOther)
		return
	}

	s.writeJSON(w, r, http.StatusUnauthorized, errorJSON{
		Error: "sign in to your tailnet with a user account to take part",
	})
}

// Preview renders a Markdown draft the way it will be stored.
func (s *ForumService) Preview(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.renderError(w, http.StatusBadRequest)
		return
	}

	s.writeJSON(w, r, http.StatusOK, map[string]string{
		"html": renderBody(forum.SanitizeInput(r.PostForm.Get("body"))),
	})
}

func (s *ForumService) ListNotifications(w http.ResponseWriter, r *http.Request) {
	ctx, span := s.telemetry.Tracer.Start(r.Context(), "ListNotifications")
	defer span.End()
	r = r.WithContext(ctx)

	actor := actorFromRequest(r)
	unread, err := s.forum.Notifications.Unread(ctx, actor)
	if err != nil {
		s.handleError(w, r, err)
		return
	}

	count, err := s.forum.Notifications.UnreadCount(ctx, actor)
	if err != nil {
		s.handleError(w, r, err)
		return
	}

	out := make([]notificationJSON, 0, len(unread))
	for _, n := range unread {
		out = append(out, newNotificationJSON(n))
	}

	s.writeJSON(w, r, http.StatusOK, map[string]any{
		"unread_count":  count,
		"notifications": out,
	})
}

// Admin handlers

func (s *ForumService) AdminGET(w http.ResponseWriter, r *http.Request) {
	ctx, span := s.telemetry.Tracer.Start(r.Context(), "AdminGET")
	defer span.End()
	r = r.WithContext(ctx)

	settings, err := s.forum.Settings.All(ctx, actorFromRequest(r))
	if err != nil {
		s.handleError(w, r, err)
		return
	}

	values := make(map[string]string, len(settings))
	for _, st := range settings {
		values[st.Key] = st.Value
	}

	s.writeJSON(w, r, http.StatusOK, map[string]any{
		"settings": values,
		"version":  s.version,
		"git_sha":  s.gitSha,
	})
}

func (s *ForumService) AdminPOST(w http.ResponseWriter, r *http.Request) {
	ctx, span := s.telemetry.Tracer.Start(r.Context(), "AdminPOST")
	defer span.End()
	r = r.WithContext(ctx)

	if err := r.ParseForm(); err != nil {
		s.renderError(w, http.StatusBadRequest)
		return
	}

	actor := actorFromRequest(r)
	action := r.PostForm.Get("action")
	span.SetAttributes(attribute.String("admin.action", action))

	var err error
	switch action {
	case "update_setting":
		err = s.forum.Settings.Set(ctx, actor, r.PostForm.Get("key"), r.PostForm.Get("value"))
	case "block_member":
		var memberID int64
		if memberID, err = formID(r, "member_id"); err == nil {
			if memberID == 0 {
				err = forum.ValidationErrors{{Field: "member_id", Message: "is required"}}
			} else {
				err = s.forum.Settings.BlockMember(ctx, actor, memberID)
			}
		}
	default:
		middleware.GetLogger(ctx).WarnContext(ctx, "unknown admin action", slog.String("action", action))
		s.renderError(w, http.StatusBadRequest)
		return
	}

	if err != nil {
		s.handleError(w, r, err)
		return
	}

	http.Redirect(w, r, "/admin", http.StatusSeeOther)
}

// HealthCheck reports whether the database answers.
func (s *ForumService) HealthCheck(w http.ResponseWriter, r *http.Request) {
	if s.db != nil {
		if err := s.db.Ping(r.Context()); err != nil {
			s.logger.WarnContext(r.Context(), "health check failed", slog.String("error", err.Error()))
			s.renderError(w, http.StatusServiceUnavailable)
			return
		}
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}
