package forum

import (
	"time"
)

const (
	GradeNormal    = "normal"
	GradeExcellent = "excellent"
)

// ActionType is a moderation transition token.
type ActionType string

const (
	ActionExcellent ActionType = "excellent"
	ActionNormal    ActionType = "normal"
	ActionBan       ActionType = "ban"
	ActionClose     ActionType = "close"
	ActionOpen      ActionType = "open"
)

func (a ActionType) Valid() bool {
	switch a {
	case ActionExcellent, ActionNormal, ActionBan, ActionClose, ActionOpen:
		return true
	}
	return false
}

// Moderation is one admin request against a topic. ReasonText wins over
// Reason for the ban audit body.
type Moderation struct {
	Type       ActionType
	Reason     string
	ReasonText string
}

// Actor is the member performing an operation. A zero ID is anonymous.
type Actor struct {
	ID       int64
	Admin    bool
	Blocked  bool
	JoinedAt time.Time
}

func (a Actor) Anonymous() bool {
	return a.ID == 0
}

func (t Topic) Excellent() bool {
	return t.Grade == GradeExcellent
}

func (t Topic) Closed() bool {
	return t.ClosedAt.Valid
}

func (t Topic) OwnedBy(a Actor) bool {
	return !a.Anonymous() && t.MemberID == a.ID
}

// IsAudit reports whether the reply records a moderation event.
func (r Reply) IsAudit() bool {
	return r.Action.Valid
}
