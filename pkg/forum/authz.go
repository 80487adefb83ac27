package forum

import (
	"time"
)

// Operation is something an actor asks to do.
type Operation string

const (
	OpRead          Operation = "read"
	OpCreate        Operation = "create"
	OpEdit          Operation = "edit"
	OpDestroy       Operation = "destroy"
	OpReply         Operation = "reply"
	OpFavorite      Operation = "favorite"
	OpFollow        Operation = "follow"
	OpListFavorites Operation = "list_favorites"
	OpNotifications Operation = "notifications"
	OpModerate      Operation = "moderate"
	OpConfigure     Operation = "configure"
)

type Role int

const (
	RoleAnonymous Role = iota
	RoleNewbie
	RoleMember
	RoleAdmin
)

func (r Role) String() string {
	switch r {
	case RoleAnonymous:
		return "anonymous"
	case RoleNewbie:
		return "newbie"
	case RoleMember:
		return "member"
	case RoleAdmin:
		return "admin"
	}
	return "unknown"
}

// Policy carries the per-request tunables the Authorizer needs.
type Policy struct {
	NewbieWindow time.Duration
	Now          time.Time
}

// RoleOf classifies an actor. Admins are never newbies.
func (p Policy) RoleOf(a Actor) Role {
	switch {
	case a.Anonymous():
		return RoleAnonymous
	case a.Admin:
		return RoleAdmin
	case p.NewbieWindow > 0 && a.JoinedAt.After(p.Now.Add(-p.NewbieWindow)):
		return RoleNewbie
	}
	return RoleMember
}

type roleSet uint8

func roles(rs ...Role) roleSet {
	var s roleSet
	for _, r := range rs {
		s |= 1 << r
	}
	return s
}

func (s roleSet) has(r Role) bool {
	return s&(1<<r) != 0
}

// rule is one row of the authorization table.
type rule struct {
	// roles allowed regardless of ownership
	roles roleSet
	// owner allowed even when the role alone is not
	owner bool
	// owner loses the grant while the topic is banned
	ownerUnlessBanned bool
	// non-admins need a topic that is neither closed nor banned
	needsOpen bool
	// blocked members keep the grant; only reads set this
	blockedOK bool
}

var authzTable = map[Operation]rule{
	OpRead:          {roles: roles(RoleAnonymous, RoleNewbie, RoleMember, RoleAdmin), blockedOK: true},
	OpCreate:        {roles: roles(RoleMember, RoleAdmin)},
	OpEdit:          {roles: roles(RoleAdmin), owner: true, ownerUnlessBanned: true},
	OpDestroy:       {roles: roles(RoleAdmin), owner: true},
	OpReply:         {roles: roles(RoleNewbie, RoleMember, RoleAdmin), needsOpen: true},
	OpFavorite:      {roles: roles(RoleNewbie, RoleMember, RoleAdmin)},
	OpFollow:        {roles: roles(RoleNewbie, RoleMember, RoleAdmin)},
	OpListFavorites: {roles: roles(RoleNewbie, RoleMember, RoleAdmin), blockedOK: true},
	OpNotifications: {roles: roles(RoleNewbie, RoleMember, RoleAdmin), blockedOK: true},
	OpModerate:      {roles: roles(RoleAdmin)},
	OpConfigure:     {roles: roles(RoleAdmin)},
}

// Decision is the outcome of Authorize.
type Decision struct {
	Allowed bool
	Role    Role
	Reason  DenyReason
	Op      Operation
}

// Err returns a *DeniedError for a denial and nil otherwise.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	return &DeniedError{Op: d.Op, Reason: d.Reason}
}

// Authorizer is the access gate consumed by every mutating operation.
// It holds no state; everything it needs arrives per call.
type Authorizer struct{}

// Authorize evaluates the table for actor doing op on topic. topic may
// be nil for operations that are not about an existing topic.
func (Authorizer) Authorize(actor Actor, op Operation, topic *Topic, p Policy) Decision {
	role := p.RoleOf(actor)
	d := Decision{Role: role, Op: op}

	r, ok := authzTable[op]
	if !ok {
		d.Reason = ReasonForbidden
		return d
	}

	if actor.Blocked && !r.blockedOK {
		d.Reason = ReasonBlocked
		return d
	}

	allowed := r.roles.has(role)
	if !allowed && r.owner && topic != nil && topic.OwnedBy(actor) {
		if r.ownerUnlessBanned && topic.Banned {
			d.Reason = ReasonTopicBanned
			return d
		}
		allowed = true
	}

	if !allowed {
		switch role {
		case RoleAnonymous:
			d.Reason = ReasonUnauthenticated
		case RoleNewbie:
			if r.roles.has(RoleMember) {
				d.Reason = ReasonNewbie
			} else {
				d.Reason = ReasonForbidden
			}
		default:
			d.Reason = ReasonForbidden
		}
		return d
	}

	if r.needsOpen && role != RoleAdmin && topic != nil {
		switch {
		case topic.Banned:
			d.Reason = ReasonTopicBanned
			return d
		case topic.Closed():
			d.Reason = ReasonTopicClosed
			return d
		}
	}

	d.Allowed = true
	return d
}
