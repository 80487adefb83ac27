package main

import (
	"fmt"
	"time"

	"github.com/imeyer/tforum/pkg/forum"
	"github.com/jackc/pgx/v5/pgtype"
)

// Response bodies. Titles are plain text, bodies sanitized HTML.

type topicJSON struct {
	ID            int64      `json:"id"`
	URL           string     `json:"url"`
	MemberID      int64      `json:"member_id"`
	NodeID        int64      `json:"node_id"`
	Title         string     `json:"title"`
	BodyHTML      string     `json:"body_html"`
	Grade         string     `json:"grade"`
	Banned        bool       `json:"banned"`
	LockNode      bool       `json:"lock_node"`
	Closed        bool       `json:"closed"`
	ClosedAt      *time.Time `json:"closed_at,omitempty"`
	Hits          int32      `json:"hits"`
	RepliesCount  int32      `json:"replies_count"`
	LastRepliedAt *time.Time `json:"last_replied_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

type replyJSON struct {
	ID        int64     `json:"id"`
	MemberID  int64     `json:"member_id"`
	BodyHTML  string    `json:"body_html"`
	Action    string    `json:"action,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type nodeJSON struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Summary string `json:"summary,omitempty"`
}

type topicPageJSON struct {
	Topic     topicJSON   `json:"topic"`
	Node      nodeJSON    `json:"node"`
	Replies   []replyJSON `json:"replies"`
	Favorites int64       `json:"favorites"`
	Favorited bool        `json:"favorited"`
	Following bool        `json:"following"`
	Resolved  int64       `json:"notifications_resolved"`
}

type topicListJSON struct {
	Title  string      `json:"title"`
	Scope  string      `json:"scope"`
	Page   int         `json:"page"`
	Node   *nodeJSON   `json:"node,omitempty"`
	Topics []topicJSON `json:"topics"`
}

type notificationJSON struct {
	ID         int64     `json:"id"`
	Type       string    `json:"type"`
	ActorID    int64     `json:"actor_id,omitempty"`
	TopicID    int64     `json:"topic_id"`
	TopicURL   string    `json:"topic_url"`
	TargetType string    `json:"target_type"`
	TargetID   int64     `json:"target_id"`
	CreatedAt  time.Time `json:"created_at"`
}

type errorJSON struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

func topicURL(id int64) string {
	return fmt.Sprintf("/topics/%d", id)
}

func optionalTime(ts pgtype.Timestamptz) *time.Time {
	if !ts.Valid {
		return nil
	}
	t := ts.Time
	return &t
}

func newTopicJSON(t forum.Topic) topicJSON {
	return topicJSON{
		ID:            t.ID,
		URL:           topicURL(t.ID),
		MemberID:      t.MemberID,
		NodeID:        t.NodeID,
		Title:         plainText(t.Title),
		BodyHTML:      renderBody(t.Body),
		Grade:         t.Grade,
		Banned:        t.Banned,
		LockNode:      t.LockNode,
		Closed:        t.Closed(),
		ClosedAt:      optionalTime(t.ClosedAt),
		Hits:          t.Hits,
		RepliesCount:  t.RepliesCount,
		LastRepliedAt: optionalTime(t.LastRepliedAt),
		CreatedAt:     t.CreatedAt.Time,
	}
}

func newTopicsJSON(topics []forum.Topic) []topicJSON {
	out := make([]topicJSON, 0, len(topics))
	for _, t := range topics {
		out = append(out, newTopicJSON(t))
	}
	return out
}

func newReplyJSON(r forum.Reply) replyJSON {
	return replyJSON{
		ID:        r.ID,
		MemberID:  r.MemberID,
		BodyHTML:  renderBody(r.Body),
		Action:    r.Action.String,
		CreatedAt: r.CreatedAt.Time,
	}
}

func newNodeJSON(n forum.Node) nodeJSON {
	return nodeJSON{ID: n.ID, Name: n.Name, Summary: n.Summary}
}

func newTopicPageJSON(v forum.TopicView) topicPageJSON {
	replies := make([]replyJSON, 0, len(v.Replies))
	for _, r := range v.Replies {
		replies = append(replies, newReplyJSON(r))
	}

	return topicPageJSON{
		Topic:     newTopicJSON(v.Topic),
		Node:      newNodeJSON(v.Node),
		Replies:   replies,
		Favorites: v.Favorites,
		Favorited: v.Favorited,
		Following: v.Following,
		Resolved:  v.Resolved,
	}
}

func newNotificationJSON(n forum.Notification) notificationJSON {
	return notificationJSON{
		ID:         n.ID,
		Type:       n.NotifyType,
		ActorID:    n.ActorID.Int64,
		TopicID:    n.TopicID,
		TopicURL:   topicURL(n.TopicID),
		TargetType: n.TargetType,
		TargetID:   n.TargetID,
		CreatedAt:  n.CreatedAt.Time,
	}
}
