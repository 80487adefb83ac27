package main

import (
	"context"
	"fmt"
	"time"

	"github.com/imeyer/tforum/pkg/forum"
	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// TracedStore decorates a forum.Store with a span and a duration sample
// per query.
type TracedStore struct {
	wrapped   forum.Store
	telemetry *TelemetryConfig
}

var _ forum.Store = (*TracedStore)(nil)

func NewTracedStore(wrapped forum.Store, telemetry *TelemetryConfig) *TracedStore {
	return &TracedStore{
		wrapped:   wrapped,
		telemetry: telemetry,
	}
}

func (t *TracedStore) WithTx(tx pgx.Tx) forum.Store {
	return &TracedStore{
		wrapped:   t.wrapped.WithTx(tx),
		telemetry: t.telemetry,
	}
}

func (t *TracedStore) recordMetrics(ctx context.Context, queryName string, duration float64) {
	if t.telemetry.Metrics.DBQueryDuration != nil {
		t.telemetry.Metrics.DBQueryDuration.Record(ctx, duration,
			metric.WithAttributes(
				attribute.String("query", queryName),
			),
		)
	}
}

// traced runs fn inside a "<name>(query)" span. Errors are wrapped so
// callers can still match pgx.ErrNoRows with errors.Is.
func traced[T any](ctx context.Context, t *TracedStore, name string, attrs []attribute.KeyValue, fn func(context.Context) (T, error)) (T, error) {
	ctx, span := t.telemetry.Tracer.Start(ctx, name+"(query)", trace.WithAttributes(attrs...))
	defer span.End()

	start := time.Now()
	v, err := fn(ctx)
	duration := time.Since(start).Seconds()

	t.recordMetrics(ctx, name, duration)
	span.SetAttributes(attribute.Float64("request.duration", duration))

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return v, fmt.Errorf("query error: %w", err)
	}

	span.SetStatus(codes.Ok, "")
	return v, nil
}

// tracedExec is traced for queries with no result.
func tracedExec(ctx context.Context, t *TracedStore, name string, attrs []attribute.KeyValue, fn func(context.Context) error) error {
	_, err := traced(ctx, t, name, attrs, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

func topicAttr(id int64) []attribute.KeyValue {
	return []attribute.KeyValue{attribute.Int64("topic.id", id)}
}

func memberTopicAttrs(memberID, topicID int64) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int64("member.id", memberID),
		attribute.Int64("topic.id", topicID),
	}
}

func (t *TracedStore) AddFavorite(ctx context.Context, arg forum.AddFavoriteParams) (int64, error) {
	return traced(ctx, t, "AddFavorite", memberTopicAttrs(arg.MemberID, arg.TopicID), func(ctx context.Context) (int64, error) {
		return t.wrapped.AddFavorite(ctx, arg)
	})
}

func (t *TracedStore) AddFollow(ctx context.Context, arg forum.AddFollowParams) (int64, error) {
	return traced(ctx, t, "AddFollow", memberTopicAttrs(arg.MemberID, arg.TopicID), func(ctx context.Context) (int64, error) {
		return t.wrapped.AddFollow(ctx, arg)
	})
}

func (t *TracedStore) BanTopic(ctx context.Context, id int64) (forum.Topic, error) {
	return traced(ctx, t, "BanTopic", topicAttr(id), func(ctx context.Context) (forum.Topic, error) {
		return t.wrapped.BanTopic(ctx, id)
	})
}

func (t *TracedStore) BlockMember(ctx context.Context, id int64) (int64, error) {
	return traced(ctx, t, "BlockMember", []attribute.KeyValue{attribute.Int64("member.id", id)}, func(ctx context.Context) (int64, error) {
		return t.wrapped.BlockMember(ctx, id)
	})
}

func (t *TracedStore) CloseTopic(ctx context.Context, arg forum.CloseTopicParams) (forum.Topic, error) {
	return traced(ctx, t, "CloseTopic", topicAttr(arg.ID), func(ctx context.Context) (forum.Topic, error) {
		return t.wrapped.CloseTopic(ctx, arg)
	})
}

func (t *TracedStore) CountTopicFavorites(ctx context.Context, topicID int64) (int64, error) {
	return traced(ctx, t, "CountTopicFavorites", topicAttr(topicID), func(ctx context.Context) (int64, error) {
		return t.wrapped.CountTopicFavorites(ctx, topicID)
	})
}

func (t *TracedStore) CountUnreadNotifications(ctx context.Context, memberID int64) (int64, error) {
	return traced(ctx, t, "CountUnreadNotifications", []attribute.KeyValue{attribute.Int64("member.id", memberID)}, func(ctx context.Context) (int64, error) {
		return t.wrapped.CountUnreadNotifications(ctx, memberID)
	})
}

func (t *TracedStore) CreateNode(ctx context.Context, arg forum.CreateNodeParams) (forum.Node, error) {
	return traced(ctx, t, "CreateNode", []attribute.KeyValue{attribute.String("node.name", arg.Name)}, func(ctx context.Context) (forum.Node, error) {
		return t.wrapped.CreateNode(ctx, arg)
	})
}

func (t *TracedStore) CreateNotification(ctx context.Context, arg forum.CreateNotificationParams) error {
	attrs := []attribute.KeyValue{
		attribute.Int64("member.id", arg.MemberID),
		attribute.Int64("topic.id", arg.TopicID),
		attribute.String("notification.type", arg.NotifyType),
	}
	return tracedExec(ctx, t, "CreateNotification", attrs, func(ctx context.Context) error {
		return t.wrapped.CreateNotification(ctx, arg)
	})
}

func (t *TracedStore) CreateOrReturnID(ctx context.Context, email string) (forum.CreateOrReturnIDRow, error) {
	return traced(ctx, t, "CreateOrReturnID", nil, func(ctx context.Context) (forum.CreateOrReturnIDRow, error) {
		row, err := t.wrapped.CreateOrReturnID(ctx, email)
		if err == nil {
			trace.SpanFromContext(ctx).SetAttributes(
				attribute.Bool("user.isAdmin", row.IsAdmin),
				attribute.Int64("user.id", row.ID),
			)
		}
		return row, err
	})
}

func (t *TracedStore) CreateReply(ctx context.Context, arg forum.CreateReplyParams) (forum.Reply, error) {
	attrs := memberTopicAttrs(arg.MemberID, arg.TopicID)
	if arg.Action.Valid {
		attrs = append(attrs, attribute.String("reply.action", arg.Action.String))
	}
	return traced(ctx, t, "CreateReply", attrs, func(ctx context.Context) (forum.Reply, error) {
		return t.wrapped.CreateReply(ctx, arg)
	})
}

func (t *TracedStore) CreateTopic(ctx context.Context, arg forum.CreateTopicParams) (forum.Topic, error) {
	attrs := []attribute.KeyValue{
		attribute.Int64("member.id", arg.MemberID),
		attribute.Int64("node.id", arg.NodeID),
	}
	return traced(ctx, t, "CreateTopic", attrs, func(ctx context.Context) (forum.Topic, error) {
		return t.wrapped.CreateTopic(ctx, arg)
	})
}

func (t *TracedStore) DeleteTopic(ctx context.Context, id int64) (int64, error) {
	return traced(ctx, t, "DeleteTopic", topicAttr(id), func(ctx context.Context) (int64, error) {
		return t.wrapped.DeleteTopic(ctx, id)
	})
}

func (t *TracedStore) GetMember(ctx context.Context, id int64) (forum.Member, error) {
	return traced(ctx, t, "GetMember", []attribute.KeyValue{attribute.Int64("member.id", id)}, func(ctx context.Context) (forum.Member, error) {
		return t.wrapped.GetMember(ctx, id)
	})
}

func (t *TracedStore) GetMemberByEmail(ctx context.Context, email string) (forum.Member, error) {
	return traced(ctx, t, "GetMemberByEmail", nil, func(ctx context.Context) (forum.Member, error) {
		return t.wrapped.GetMemberByEmail(ctx, email)
	})
}

func (t *TracedStore) GetNode(ctx context.Context, id int64) (forum.Node, error) {
	return traced(ctx, t, "GetNode", []attribute.KeyValue{attribute.Int64("node.id", id)}, func(ctx context.Context) (forum.Node, error) {
		return t.wrapped.GetNode(ctx, id)
	})
}

func (t *TracedStore) GetSetting(ctx context.Context, key string) (string, error) {
	return traced(ctx, t, "GetSetting", []attribute.KeyValue{attribute.String("setting.key", key)}, func(ctx context.Context) (string, error) {
		return t.wrapped.GetSetting(ctx, key)
	})
}

func (t *TracedStore) GetTopic(ctx context.Context, id int64) (forum.Topic, error) {
	return traced(ctx, t, "GetTopic", topicAttr(id), func(ctx context.Context) (forum.Topic, error) {
		return t.wrapped.GetTopic(ctx, id)
	})
}

func (t *TracedStore) GetTopicEngagement(ctx context.Context, arg forum.GetTopicEngagementParams) (forum.GetTopicEngagementRow, error) {
	return traced(ctx, t, "GetTopicEngagement", memberTopicAttrs(arg.MemberID, arg.TopicID), func(ctx context.Context) (forum.GetTopicEngagementRow, error) {
		return t.wrapped.GetTopicEngagement(ctx, arg)
	})
}

func (t *TracedStore) GetTopicForUpdate(ctx context.Context, id int64) (forum.Topic, error) {
	return traced(ctx, t, "GetTopicForUpdate", topicAttr(id), func(ctx context.Context) (forum.Topic, error) {
		return t.wrapped.GetTopicForUpdate(ctx, id)
	})
}

func (t *TracedStore) IncrementTopicHits(ctx context.Context, id int64) error {
	return tracedExec(ctx, t, "IncrementTopicHits", topicAttr(id), func(ctx context.Context) error {
		return t.wrapped.IncrementTopicHits(ctx, id)
	})
}

func (t *TracedStore) ListMembersByLogin(ctx context.Context, logins []string) ([]forum.Member, error) {
	return traced(ctx, t, "ListMembersByLogin", []attribute.KeyValue{attribute.Int("logins", len(logins))}, func(ctx context.Context) ([]forum.Member, error) {
		return t.wrapped.ListMembersByLogin(ctx, logins)
	})
}

func (t *TracedStore) ListNodes(ctx context.Context) ([]forum.Node, error) {
	return traced(ctx, t, "ListNodes", nil, t.wrapped.ListNodes)
}

func (t *TracedStore) ListSettings(ctx context.Context) ([]forum.Setting, error) {
	return traced(ctx, t, "ListSettings", nil, t.wrapped.ListSettings)
}

func (t *TracedStore) ListTopicFollowers(ctx context.Context, topicID int64) ([]int64, error) {
	return traced(ctx, t, "ListTopicFollowers", topicAttr(topicID), func(ctx context.Context) ([]int64, error) {
		return t.wrapped.ListTopicFollowers(ctx, topicID)
	})
}

func (t *TracedStore) ListTopicReplies(ctx context.Context, topicID int64) ([]forum.Reply, error) {
	return traced(ctx, t, "ListTopicReplies", topicAttr(topicID), func(ctx context.Context) ([]forum.Reply, error) {
		return t.wrapped.ListTopicReplies(ctx, topicID)
	})
}

func (t *TracedStore) ListTopics(ctx context.Context, arg forum.ListTopicsParams) ([]forum.Topic, error) {
	attrs := []attribute.KeyValue{
		attribute.String("list.scope", arg.Scope),
		attribute.Int64("node.id", arg.NodeID),
		attribute.Int("list.offset", int(arg.PageOffset)),
	}
	return traced(ctx, t, "ListTopics", attrs, func(ctx context.Context) ([]forum.Topic, error) {
		return t.wrapped.ListTopics(ctx, arg)
	})
}

func (t *TracedStore) ListUnreadNotifications(ctx context.Context, memberID int64) ([]forum.Notification, error) {
	return traced(ctx, t, "ListUnreadNotifications", []attribute.KeyValue{attribute.Int64("member.id", memberID)}, func(ctx context.Context) ([]forum.Notification, error) {
		return t.wrapped.ListUnreadNotifications(ctx, memberID)
	})
}

func (t *TracedStore) MarkTopicNotificationsRead(ctx context.Context, arg forum.MarkTopicNotificationsReadParams) (int64, error) {
	return traced(ctx, t, "MarkTopicNotificationsRead", memberTopicAttrs(arg.MemberID, arg.TopicID), func(ctx context.Context) (int64, error) {
		return t.wrapped.MarkTopicNotificationsRead(ctx, arg)
	})
}

func (t *TracedStore) OpenTopic(ctx context.Context, id int64) (forum.Topic, error) {
	return traced(ctx, t, "OpenTopic", topicAttr(id), func(ctx context.Context) (forum.Topic, error) {
		return t.wrapped.OpenTopic(ctx, id)
	})
}

func (t *TracedStore) RemoveFavorite(ctx context.Context, arg forum.RemoveFavoriteParams) (int64, error) {
	return traced(ctx, t, "RemoveFavorite", memberTopicAttrs(arg.MemberID, arg.TopicID), func(ctx context.Context) (int64, error) {
		return t.wrapped.RemoveFavorite(ctx, arg)
	})
}

func (t *TracedStore) RemoveFollow(ctx context.Context, arg forum.RemoveFollowParams) (int64, error) {
	return traced(ctx, t, "RemoveFollow", memberTopicAttrs(arg.MemberID, arg.TopicID), func(ctx context.Context) (int64, error) {
		return t.wrapped.RemoveFollow(ctx, arg)
	})
}

func (t *TracedStore) SetMemberAdmin(ctx context.Context, arg forum.SetMemberAdminParams) (int64, error) {
	return traced(ctx, t, "SetMemberAdmin", nil, func(ctx context.Context) (int64, error) {
		return t.wrapped.SetMemberAdmin(ctx, arg)
	})
}

func (t *TracedStore) SetTopicGrade(ctx context.Context, arg forum.SetTopicGradeParams) (forum.Topic, error) {
	attrs := append(topicAttr(arg.ID), attribute.String("topic.grade", arg.Grade))
	return traced(ctx, t, "SetTopicGrade", attrs, func(ctx context.Context) (forum.Topic, error) {
		return t.wrapped.SetTopicGrade(ctx, arg)
	})
}

func (t *TracedStore) TouchTopicReplied(ctx context.Context, arg forum.TouchTopicRepliedParams) error {
	return tracedExec(ctx, t, "TouchTopicReplied", topicAttr(arg.ID), func(ctx context.Context) error {
		return t.wrapped.TouchTopicReplied(ctx, arg)
	})
}

func (t *TracedStore) UpdateTopicContent(ctx context.Context, arg forum.UpdateTopicContentParams) (forum.Topic, error) {
	return traced(ctx, t, "UpdateTopicContent", topicAttr(arg.ID), func(ctx context.Context) (forum.Topic, error) {
		return t.wrapped.UpdateTopicContent(ctx, arg)
	})
}

func (t *TracedStore) UpdateTopicNode(ctx context.Context, arg forum.UpdateTopicNodeParams) (forum.Topic, error) {
	attrs := append(topicAttr(arg.ID), attribute.Int64("node.id", arg.NodeID), attribute.Bool("topic.lock_node", arg.LockNode))
	return traced(ctx, t, "UpdateTopicNode", attrs, func(ctx context.Context) (forum.Topic, error) {
		return t.wrapped.UpdateTopicNode(ctx, arg)
	})
}

func (t *TracedStore) UpsertSetting(ctx context.Context, arg forum.UpsertSettingParams) error {
	return tracedExec(ctx, t, "UpsertSetting", []attribute.KeyValue{attribute.String("setting.key", arg.Key)}, func(ctx context.Context) error {
		return t.wrapped.UpsertSetting(ctx, arg)
	})
}
