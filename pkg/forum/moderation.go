package forum

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Moderator applies admin transitions to topics. Each transition and its
// audit reply commit together or not at all.
type Moderator struct {
	*core
}

// Result is the topic after a transition. Audit is nil when the
// transition left no record.
type Result struct {
	Topic   Topic
	Audit   *Reply
	Changed bool
}

// Apply runs one moderation request. Non-admins get a *DeniedError and
// the topic is not read for update.
func (m *Moderator) Apply(ctx context.Context, actor Actor, topicID int64, req Moderation) (Result, error) {
	ctx, span := m.opts.tracer.Start(ctx, "Moderator.Apply", trace.WithAttributes(
		attribute.Int64("topic_id", topicID),
		attribute.String("action", string(req.Type)),
	))
	defer span.End()

	if _, err := m.authorize(ctx, actor, OpModerate, nil); err != nil {
		span.SetStatus(codes.Error, "denied")
		return Result{}, err
	}
	if err := ValidateModeration(req); err != nil {
		return Result{}, err
	}

	var res Result
	err := inTx(ctx, m.db, m.store, func(q Store) error {
		before, err := q.GetTopicForUpdate(ctx, topicID)
		if err != nil {
			return notFound("topic", topicID, err)
		}

		res, err = m.transition(ctx, q, actor, before, req)
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Result{}, err
	}

	span.AddEvent("transition applied", trace.WithAttributes(attribute.Bool("changed", res.Changed)))
	m.logger.InfoContext(ctx, "moderation applied",
		slog.String("action", string(req.Type)),
		slog.Int64("topic_id", topicID),
		slog.Int64("admin_id", actor.ID),
		slog.Bool("changed", res.Changed))
	return res, nil
}

func (m *Moderator) transition(ctx context.Context, q Store, actor Actor, t Topic, req Moderation) (Result, error) {
	var (
		after Topic
		err   error
		body  string
	)

	switch req.Type {
	case ActionExcellent, ActionNormal:
		grade := GradeExcellent
		if req.Type == ActionNormal {
			grade = GradeNormal
		}
		if t.Grade == grade {
			return Result{Topic: t}, nil
		}
		after, err = q.SetTopicGrade(ctx, SetTopicGradeParams{ID: t.ID, Grade: grade})
		body = auditMessages[req.Type]

	case ActionBan:
		// every ban is an event, even on an already banned topic
		after, err = q.BanTopic(ctx, t.ID)
		body = BanMessage(req.Reason, req.ReasonText)

	case ActionClose:
		if t.Closed() {
			return Result{Topic: t}, nil
		}
		after, err = q.CloseTopic(ctx, CloseTopicParams{ID: t.ID, ClosedAt: timestamptz(m.now())})
		body = auditMessages[ActionClose]

	case ActionOpen:
		if !t.Closed() {
			return Result{Topic: t}, nil
		}
		after, err = q.OpenTopic(ctx, t.ID)
		body = auditMessages[ActionOpen]

	default:
		return Result{}, fmt.Errorf("unhandled moderation action %q", req.Type)
	}
	if err != nil {
		return Result{}, fmt.Errorf("%s topic %d: %w", req.Type, t.ID, err)
	}

	audit, err := appendAudit(ctx, q, t.ID, actor.ID, req.Type, body)
	if err != nil {
		return Result{}, err
	}
	return Result{Topic: after, Audit: &audit, Changed: true}, nil
}

// BanForm is what an admin sees before banning a topic.
type BanForm struct {
	Topic   Topic
	Reasons []string
}

func (m *Moderator) BanForm(ctx context.Context, actor Actor, topicID int64) (BanForm, error) {
	if _, err := m.authorize(ctx, actor, OpModerate, nil); err != nil {
		return BanForm{}, err
	}

	t, err := m.topic(ctx, m.store, topicID)
	if err != nil {
		return BanForm{}, err
	}

	reasons, err := m.settings.BanReasons(ctx)
	if err != nil {
		return BanForm{}, err
	}
	return BanForm{Topic: t, Reasons: reasons}, nil
}
