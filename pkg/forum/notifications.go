package forum

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5/pgtype"
)

const (
	NotifyMention    = "mention"
	NotifyTopicReply = "topic_reply"

	TargetTopic = "topic"
	TargetReply = "reply"
)

const maxMentions = 20

var mentionRegex = regexp.MustCompile(`(?:^|[^\w@.])@([A-Za-z0-9][A-Za-z0-9_.\-]*)`)

// Mentions returns the distinct lowercased logins referenced as @login,
// in order of first appearance.
func Mentions(body string) []string {
	seen := make(map[string]bool)
	var logins []string
	for _, m := range mentionRegex.FindAllStringSubmatch(body, -1) {
		login := strings.ToLower(strings.TrimRight(m[1], ".-"))
		if login == "" || seen[login] {
			continue
		}
		seen[login] = true
		logins = append(logins, login)
		if len(logins) == maxMentions {
			break
		}
	}
	return logins
}

// fanout delivers at most one notification per recipient for a single
// topic or reply. The author is never notified of their own content.
type fanout struct {
	q          Store
	actorID    int64
	topicID    int64
	targetType string
	targetID   int64
	sent       map[int64]bool
}

func newFanout(q Store, actorID, topicID int64, targetType string, targetID int64) *fanout {
	return &fanout{
		q:          q,
		actorID:    actorID,
		topicID:    topicID,
		targetType: targetType,
		targetID:   targetID,
		sent:       map[int64]bool{actorID: true},
	}
}

func (f *fanout) notify(ctx context.Context, memberID int64, kind string) error {
	if f.sent[memberID] {
		return nil
	}
	f.sent[memberID] = true

	err := f.q.CreateNotification(ctx, CreateNotificationParams{
		MemberID:   memberID,
		ActorID:    pgtype.Int8{Int64: f.actorID, Valid: true},
		NotifyType: kind,
		TargetType: f.targetType,
		TargetID:   f.targetID,
		TopicID:    f.topicID,
	})
	if err != nil {
		return fmt.Errorf("notify member %d: %w", memberID, err)
	}
	return nil
}

func (f *fanout) mentions(ctx context.Context, body string) error {
	logins := Mentions(body)
	if len(logins) == 0 {
		return nil
	}

	members, err := f.q.ListMembersByLogin(ctx, logins)
	if err != nil {
		return fmt.Errorf("resolve mentions: %w", err)
	}
	for _, m := range members {
		if err := f.notify(ctx, m.ID, NotifyMention); err != nil {
			return err
		}
	}
	return nil
}

func (f *fanout) followers(ctx context.Context) error {
	ids, err := f.q.ListTopicFollowers(ctx, f.topicID)
	if err != nil {
		return fmt.Errorf("list followers of topic %d: %w", f.topicID, err)
	}
	for _, id := range ids {
		if err := f.notify(ctx, id, NotifyTopicReply); err != nil {
			return err
		}
	}
	return nil
}

// Resolver tracks unread notifications and clears them when their
// recipient views the topic they point at.
type Resolver struct {
	*core
}

// ResolveOnView marks every unread notification of viewer about topicID
// read in one statement and returns how many changed. Anonymous viewers
// resolve nothing.
func (r *Resolver) ResolveOnView(ctx context.Context, viewer Actor, topicID int64) (int64, error) {
	if viewer.Anonymous() {
		return 0, nil
	}

	n, err := r.store.MarkTopicNotificationsRead(ctx, MarkTopicNotificationsReadParams{
		MemberID: viewer.ID,
		TopicID:  topicID,
		ReadAt:   timestamptz(r.now()),
	})
	if err != nil {
		return 0, fmt.Errorf("resolve notifications for topic %d: %w", topicID, err)
	}
	if n > 0 {
		r.logger.DebugContext(ctx, "notifications resolved",
			slog.Int64("topic_id", topicID),
			slog.Int64("count", n))
	}
	return n, nil
}

func (r *Resolver) UnreadCount(ctx context.Context, viewer Actor) (int64, error) {
	if _, err := r.authorize(ctx, viewer, OpNotifications, nil); err != nil {
		return 0, err
	}
	return r.store.CountUnreadNotifications(ctx, viewer.ID)
}

// Unread lists the newest unread notifications of viewer.
func (r *Resolver) Unread(ctx context.Context, viewer Actor) ([]Notification, error) {
	if _, err := r.authorize(ctx, viewer, OpNotifications, nil); err != nil {
		return nil, err
	}
	return r.store.ListUnreadNotifications(ctx, viewer.ID)
}
