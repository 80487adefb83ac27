package forum

import (
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/assert"
)

func TestRoleOf(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	p := Policy{NewbieWindow: 24 * time.Hour, Now: now}

	tests := []struct {
		name   string
		actor  Actor
		policy Policy
		want   Role
	}{
		{"anonymous", Actor{}, p, RoleAnonymous},
		{"admin joined today", Actor{ID: 1, Admin: true, JoinedAt: now}, p, RoleAdmin},
		{"joined an hour ago", Actor{ID: 2, JoinedAt: now.Add(-time.Hour)}, p, RoleNewbie},
		{"joined two days ago", Actor{ID: 2, JoinedAt: now.Add(-48 * time.Hour)}, p, RoleMember},
		{"no window", Actor{ID: 2, JoinedAt: now}, Policy{Now: now}, RoleMember},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.policy.RoleOf(tt.actor))
		})
	}
}

func TestAuthorize(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	p := Policy{NewbieWindow: time.Hour, Now: now}
	old := now.AddDate(-1, 0, 0)

	admin := Actor{ID: 1, Admin: true, JoinedAt: old}
	owner := Actor{ID: 2, JoinedAt: old}
	member := Actor{ID: 3, JoinedAt: old}
	newbie := Actor{ID: 4, JoinedAt: now}
	blocked := Actor{ID: 5, Blocked: true, JoinedAt: old}
	anon := Actor{}

	open := &Topic{ID: 10, MemberID: owner.ID}
	banned := &Topic{ID: 11, MemberID: owner.ID, Banned: true}
	closed := &Topic{ID: 12, MemberID: owner.ID, ClosedAt: pgtype.Timestamptz{Time: now, Valid: true}}
	newbieOwned := &Topic{ID: 13, MemberID: newbie.ID}

	tests := []struct {
		name   string
		actor  Actor
		op     Operation
		topic  *Topic
		reason DenyReason
	}{
		{"anyone reads", anon, OpRead, open, ""},
		{"anonymous create", anon, OpCreate, nil, ReasonUnauthenticated},
		{"newbie create", newbie, OpCreate, nil, ReasonNewbie},
		{"member create", member, OpCreate, nil, ""},
		{"admin create", admin, OpCreate, nil, ""},
		{"blocked create", blocked, OpCreate, nil, ReasonBlocked},
		{"blocked reads", blocked, OpRead, open, ""},
		{"blocked lists favorites", blocked, OpListFavorites, nil, ""},
		{"blocked notifications", blocked, OpNotifications, nil, ""},
		{"blocked reply", blocked, OpReply, open, ReasonBlocked},
		{"blocked favorite", blocked, OpFavorite, open, ReasonBlocked},

		{"owner edit", owner, OpEdit, open, ""},
		{"newbie owner edit", newbie, OpEdit, newbieOwned, ""},
		{"other edit", member, OpEdit, open, ReasonForbidden},
		{"anonymous edit", anon, OpEdit, open, ReasonUnauthenticated},
		{"admin edit", admin, OpEdit, open, ""},
		{"owner edit banned", owner, OpEdit, banned, ReasonTopicBanned},
		{"admin edit banned", admin, OpEdit, banned, ""},

		{"owner destroy", owner, OpDestroy, open, ""},
		{"owner destroy banned", owner, OpDestroy, banned, ""},
		{"other destroy", member, OpDestroy, open, ReasonForbidden},
		{"admin destroy", admin, OpDestroy, open, ""},
		{"newbie destroy other", newbie, OpDestroy, open, ReasonForbidden},

		{"member reply", member, OpReply, open, ""},
		{"newbie reply", newbie, OpReply, open, ""},
		{"member reply closed", member, OpReply, closed, ReasonTopicClosed},
		{"member reply banned", member, OpReply, banned, ReasonTopicBanned},
		{"admin reply closed", admin, OpReply, closed, ""},
		{"anonymous reply", anon, OpReply, open, ReasonUnauthenticated},

		{"member favorite banned", member, OpFavorite, banned, ""},
		{"anonymous favorite", anon, OpFavorite, open, ReasonUnauthenticated},
		{"newbie follow", newbie, OpFollow, open, ""},

		{"admin moderate", admin, OpModerate, open, ""},
		{"owner moderate", owner, OpModerate, open, ReasonForbidden},
		{"newbie moderate", newbie, OpModerate, open, ReasonForbidden},
		{"anonymous moderate", anon, OpModerate, open, ReasonUnauthenticated},

		{"member configure", member, OpConfigure, nil, ReasonForbidden},
		{"admin configure", admin, OpConfigure, nil, ""},
		{"unknown operation", admin, Operation("launch"), nil, ReasonForbidden},
	}

	var az Authorizer
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := az.Authorize(tt.actor, tt.op, tt.topic, p)
			assert.Equal(t, tt.reason == "", d.Allowed)
			assert.Equal(t, tt.reason, d.Reason)
			if d.Allowed {
				assert.NoError(t, d.Err())
			} else {
				assert.ErrorIs(t, d.Err(), ErrDenied)
			}
		})
	}
}
