package forum

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

const DefaultBanMessage = "This topic has been banned for violating the community guidelines."

var auditMessages = map[ActionType]string{
	ActionExcellent: "Marked this topic as excellent.",
	ActionNormal:    "Removed the excellent mark from this topic.",
	ActionClose:     "Closed this topic.",
	ActionOpen:      "Reopened this topic.",
}

// BanMessage picks the ban audit body: free text, then the coded
// reason, then the default.
func BanMessage(reason, reasonText string) string {
	if t := strings.TrimSpace(reasonText); t != "" {
		return t
	}
	if r := strings.TrimSpace(reason); r != "" {
		return r
	}
	return DefaultBanMessage
}

// appendAudit records one moderation event as a tagged reply. It never
// touches existing replies and must run inside the transition's
// transaction.
func appendAudit(ctx context.Context, q Store, topicID, actorID int64, action ActionType, body string) (Reply, error) {
	r, err := q.CreateReply(ctx, CreateReplyParams{
		TopicID:  topicID,
		MemberID: actorID,
		Body:     body,
		Action:   pgtype.Text{String: string(action), Valid: true},
	})
	if err != nil {
		return Reply{}, fmt.Errorf("append %s audit for topic %d: %w", action, topicID, err)
	}
	return r, nil
}

func timestamptz(t time.Time) pgtype.Timestamptz {
	return pgtype.Timestamptz{Time: t, Valid: true}
}

func pgtypeInt8(v int64) pgtype.Int8 {
	return pgtype.Int8{Int64: v, Valid: true}
}
