package forum

import (
	"context"
	"fmt"
	"log/slog"
)

// Registry keeps the per-member favorite and follow sets. Every call is
// idempotent and ignores the topic's moderation state.
type Registry struct {
	*core
}

type relation struct {
	name   string
	op     Operation
	add    func(ctx context.Context, q Store, memberID, topicID int64) (int64, error)
	remove func(ctx context.Context, q Store, memberID, topicID int64) (int64, error)
}

var (
	favoriteRelation = relation{
		name: "favorite",
		op:   OpFavorite,
		add: func(ctx context.Context, q Store, memberID, topicID int64) (int64, error) {
			return q.AddFavorite(ctx, AddFavoriteParams{MemberID: memberID, TopicID: topicID})
		},
		remove: func(ctx context.Context, q Store, memberID, topicID int64) (int64, error) {
			return q.RemoveFavorite(ctx, RemoveFavoriteParams{MemberID: memberID, TopicID: topicID})
		},
	}
	followRelation = relation{
		name: "follow",
		op:   OpFollow,
		add: func(ctx context.Context, q Store, memberID, topicID int64) (int64, error) {
			return q.AddFollow(ctx, AddFollowParams{MemberID: memberID, TopicID: topicID})
		},
		remove: func(ctx context.Context, q Store, memberID, topicID int64) (int64, error) {
			return q.RemoveFollow(ctx, RemoveFollowParams{MemberID: memberID, TopicID: topicID})
		},
	}
)

// Favorite adds the pair to the set. It reports whether a row was added.
func (r *Registry) Favorite(ctx context.Context, actor Actor, topicID int64) (bool, error) {
	return r.toggle(ctx, actor, topicID, favoriteRelation, true)
}

func (r *Registry) Unfavorite(ctx context.Context, actor Actor, topicID int64) (bool, error) {
	return r.toggle(ctx, actor, topicID, favoriteRelation, false)
}

func (r *Registry) Follow(ctx context.Context, actor Actor, topicID int64) (bool, error) {
	return r.toggle(ctx, actor, topicID, followRelation, true)
}

func (r *Registry) Unfollow(ctx context.Context, actor Actor, topicID int64) (bool, error) {
	return r.toggle(ctx, actor, topicID, followRelation, false)
}

func (r *Registry) toggle(ctx context.Context, actor Actor, topicID int64, rel relation, present bool) (bool, error) {
	if _, err := r.authorize(ctx, actor, rel.op, nil); err != nil {
		return false, err
	}
	if _, err := r.topic(ctx, r.store, topicID); err != nil {
		return false, err
	}

	apply, verb := rel.add, "add"
	if !present {
		apply, verb = rel.remove, "remove"
	}

	n, err := apply(ctx, r.store, actor.ID, topicID)
	if err != nil {
		return false, fmt.Errorf("%s %s for topic %d: %w", verb, rel.name, topicID, err)
	}

	r.logger.DebugContext(ctx, "engagement toggled",
		slog.String("relation", rel.name),
		slog.Bool("present", present),
		slog.Bool("changed", n > 0),
		slog.Int64("topic_id", topicID))
	return n > 0, nil
}

// State reports the actor's relations to a topic. Anonymous actors have
// none.
func (r *Registry) State(ctx context.Context, actor Actor, topicID int64) (GetTopicEngagementRow, error) {
	if actor.Anonymous() {
		return GetTopicEngagementRow{}, nil
	}
	row, err := r.store.GetTopicEngagement(ctx, GetTopicEngagementParams{MemberID: actor.ID, TopicID: topicID})
	if err != nil {
		return GetTopicEngagementRow{}, fmt.Errorf("engagement for topic %d: %w", topicID, err)
	}
	return row, nil
}
