package main

import (
	"context"
	"errors"
	"net/http"

	"github.com/imeyer/tforum/pkg/forum"
	"go.opentelemetry.io/otel/attribute"
)

type toggleFunc func(ctx context.Context, actor forum.Actor, topicID int64) (bool, error)

// toggle wraps a favorite or follow change. Repeats are no-ops and
// still answer "1".
func (s *ForumService) toggle(name string, fn toggleFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := s.telemetry.Tracer.Start(r.Context(), name)
		defer span.End()
		r = r.WithContext(ctx)

		tid, ok := pathID(r, "tid")
		if !ok {
			s.renderError(w, http.StatusNotFound)
			return
		}

		changed, err := fn(ctx, actorFromRequest(r), tid)
		if err != nil {
			s.handleError(w, r, err)
			return
		}
		span.SetAttributes(
			attribute.Int64("topic.id", tid),
			attribute.Bool("engagement.changed", changed),
		)

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("1"))
	}
}

func (s *ForumService) FavoriteTopic() http.HandlerFunc {
	return s.toggle("FavoriteTopic", s.forum.Engagement.Favorite)
}

func (s *ForumService) UnfavoriteTopic() http.HandlerFunc {
	return s.toggle("UnfavoriteTopic", s.forum.Engagement.Unfavorite)
}

func (s *ForumService) FollowTopic() http.HandlerFunc {
	return s.toggle("FollowTopic", s.forum.Engagement.Follow)
}

func (s *ForumService) UnfollowTopic() http.HandlerFunc {
	return s.toggle("UnfollowTopic", s.forum.Engagement.Unfollow)
}

// BanForm lists the configured ban reasons for a topic.
func (s *ForumService) BanForm(w http.ResponseWriter, r *http.Request) {
	ctx, span := s.telemetry.Tracer.Start(r.Context(), "BanForm")
	defer span.End()
	r = r.WithContext(ctx)

	tid, ok := pathID(r, "tid")
	if !ok {
		s.renderError(w, http.StatusNotFound)
		return
	}

	form, err := s.forum.Moderation.BanForm(ctx, actorFromRequest(r), tid)
	if err != nil {
		s.handleError(w, r, err)
		return
	}

	s.writeJSON(w, r, http.StatusOK, map[string]any{
		"topic":   newTopicJSON(form.Topic),
		"reasons": form.Reasons,
	})
}

// moderationOutcome classifies an Apply result for the action counters.
func moderationOutcome(res forum.Result, err error) string {
	var verrs forum.ValidationErrors
	switch {
	case err == nil && res.Changed:
		return "applied"
	case err == nil:
		return "unchanged"
	case errors.Is(err, forum.ErrDenied):
		return "denied"
	case errors.Is(err, forum.ErrNotFound):
		return "not_found"
	case errors.As(err, &verrs):
		return "invalid"
	default:
		return "error"
	}
}

// countModeration records one moderation request. Only the Prometheus
// counter tracks these; the OTel meter shares its registry.
func countModeration(action, outcome string) {
	moderationActions.WithLabelValues(action, outcome).Inc()
}

// ModerateTopic applies the action named by type, read from the query
// string or the form body.
func (s *ForumService) ModerateTopic(w http.ResponseWriter, r *http.Request) {
	ctx, span := s.telemetry.Tracer.Start(r.Context(), "ModerateTopic")
	defer span.End()
	r = r.WithContext(ctx)

	tid, ok := pathID(r, "tid")
	if !ok {
		s.renderError(w, http.StatusNotFound)
		return
	}
	if err := r.ParseForm(); err != nil {
		s.renderError(w, http.StatusBadRequest)
		return
	}

	req := forum.Moderation{
		Type:       forum.ActionType(r.Form.Get("type")),
		Reason:     r.Form.Get("reason"),
		ReasonText: r.Form.Get("reason_text"),
	}
	label := string(req.Type)
	if !req.Type.Valid() {
		label = "invalid"
	}
	span.SetAttributes(
		attribute.Int64("topic.id", tid),
		attribute.String("moderation.action", label),
	)

	res, err := s.forum.Moderation.Apply(ctx, actorFromRequest(r), tid, req)
	countModeration(label, moderationOutcome(res, err))
	if err != nil {
		s.handleError(w, r, err)
		return
	}

	span.SetAttributes(attribute.Bool("moderation.changed", res.Changed))
	http.Redirect(w, r, topicURL(tid), http.StatusFound)
}
