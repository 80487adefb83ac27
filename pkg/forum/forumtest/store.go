// Package forumtest provides an in-memory forum.Store with transaction
// rollback and failure injection for tests.
package forumtest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/imeyer/tforum/pkg/forum"
)

type pair struct {
	memberID int64
	topicID  int64
}

type state struct {
	// txMu serializes transactions the way row locks would.
	txMu sync.Mutex

	mu            sync.Mutex
	seq           int64
	members       map[int64]forum.Member
	nodes         map[int64]forum.Node
	topics        map[int64]forum.Topic
	replies       []forum.Reply
	favorites     map[pair]time.Time
	follows       map[pair]time.Time
	notifications []forum.Notification
	settings      map[string]forum.Setting
	failures      map[string]error
	now           func() time.Time
	beforeBegin   func()
}

// Store implements forum.Store and forum.TxBeginner in memory.
type Store struct {
	st *state
	tx *Tx
}

var (
	_ forum.Store      = (*Store)(nil)
	_ forum.TxBeginner = (*Store)(nil)
)

func NewStore() *Store {
	return &Store{st: &state{
		members:   make(map[int64]forum.Member),
		nodes:     make(map[int64]forum.Node),
		topics:    make(map[int64]forum.Topic),
		favorites: make(map[pair]time.Time),
		follows:   make(map[pair]time.Time),
		settings:  make(map[string]forum.Setting),
		failures:  make(map[string]error),
		now:       time.Now,
	}}
}

// SetClock replaces the clock used for created_at columns.
func (s *Store) SetClock(now func() time.Time) {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()
	s.st.now = now
}

// FailNext makes the next call of method return err.
func (s *Store) FailNext(method string, err error) {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()
	s.st.failures[method] = err
}

// BeforeNextBegin runs fn once, right before the next transaction starts.
// It stands in for a concurrent writer landing between a read and a
// locked re-read.
func (s *Store) BeforeNextBegin(fn func()) {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()
	s.st.beforeBegin = fn
}

// Tx is a pgx.Tx whose Commit and Rollback act on the in-memory state.
// Other pgx.Tx methods are not supported.
type Tx struct {
	pgx.Tx
	st   *state
	undo []func()
	done bool
}

func (s *Store) Begin(ctx context.Context) (pgx.Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.fail("Begin"); err != nil {
		return nil, err
	}

	s.st.mu.Lock()
	hook := s.st.beforeBegin
	s.st.beforeBegin = nil
	s.st.mu.Unlock()
	if hook != nil {
		hook()
	}

	s.st.txMu.Lock()
	return &Tx{st: s.st}, nil
}

func (t *Tx) Commit(ctx context.Context) error {
	if t.done {
		return pgx.ErrTxClosed
	}
	if err := ctx.Err(); err != nil {
		t.rollback()
		return err
	}
	t.done = true
	t.st.txMu.Unlock()
	return nil
}

func (t *Tx) Rollback(ctx context.Context) error {
	if t.done {
		return pgx.ErrTxClosed
	}
	t.rollback()
	return nil
}

func (t *Tx) rollback() {
	t.st.mu.Lock()
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.st.mu.Unlock()
	t.undo = nil
	t.done = true
	t.st.txMu.Unlock()
}

func (s *Store) WithTx(tx pgx.Tx) forum.Store {
	t, ok := tx.(*Tx)
	if !ok {
		panic(fmt.Sprintf("forumtest: foreign transaction %T", tx))
	}
	return &Store{st: s.st, tx: t}
}

func (s *Store) fail(method string) error {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()
	if err, ok := s.st.failures[method]; ok {
		delete(s.st.failures, method)
		return err
	}
	return nil
}

// lock takes the data lock and returns the matching unlock.
func (s *Store) lock() func() {
	s.st.mu.Lock()
	return s.st.mu.Unlock
}

// record registers an undo step when running inside a transaction.
// Callers hold the data lock.
func (s *Store) record(undo func()) {
	if s.tx != nil {
		s.tx.undo = append(s.tx.undo, undo)
	}
}

func (s *Store) nextID() int64 {
	s.st.seq++
	return s.st.seq
}

func (s *Store) ts() pgtype.Timestamptz {
	return pgtype.Timestamptz{Time: s.st.now(), Valid: true}
}

// putTopic stores t and records how to restore the previous row.
func (s *Store) putTopic(t forum.Topic) {
	prev, existed := s.st.topics[t.ID]
	s.st.topics[t.ID] = t
	s.record(func() {
		if existed {
			s.st.topics[t.ID] = prev
		} else {
			delete(s.st.topics, t.ID)
		}
	})
}

func (s *Store) updateTopic(method string, id int64, fn func(*forum.Topic)) (forum.Topic, error) {
	if err := s.fail(method); err != nil {
		return forum.Topic{}, err
	}
	defer s.lock()()

	t, ok := s.st.topics[id]
	if !ok {
		return forum.Topic{}, pgx.ErrNoRows
	}
	fn(&t)
	t.UpdatedAt = s.ts()
	s.putTopic(t)
	return t, nil
}

func loginOf(email string) string {
	local, _, _ := strings.Cut(email, "@")
	return strings.ToLower(local)
}

// AddMember inserts a member directly, bypassing CreateOrReturnID.
func (s *Store) AddMember(email string, admin bool, joined time.Time) forum.Member {
	defer s.lock()()
	m := forum.Member{
		ID:         s.nextID(),
		Email:      email,
		Login:      loginOf(email),
		IsAdmin:    admin,
		DateJoined: pgtype.Timestamptz{Time: joined, Valid: true},
	}
	s.st.members[m.ID] = m
	return m
}

func (s *Store) AddNode(name string) forum.Node {
	defer s.lock()()
	n := forum.Node{ID: s.nextID(), Name: name, CreatedAt: s.ts()}
	s.st.nodes[n.ID] = n
	return n
}

// UnreadFor counts unread notifications of a member.
func (s *Store) UnreadFor(memberID int64) int {
	defer s.lock()()
	n := 0
	for _, no := range s.st.notifications {
		if no.MemberID == memberID && !no.ReadAt.Valid {
			n++
		}
	}
	return n
}

func (s *Store) Replies(topicID int64) []forum.Reply {
	defer s.lock()()
	var out []forum.Reply
	for _, r := range s.st.replies {
		if r.TopicID == topicID {
			out = append(out, r)
		}
	}
	return out
}

func (s *Store) FavoriteCount(topicID int64) int {
	defer s.lock()()
	return countTopic(s.st.favorites, topicID)
}

func (s *Store) FollowCount(topicID int64) int {
	defer s.lock()()
	return countTopic(s.st.follows, topicID)
}

func countTopic(set map[pair]time.Time, topicID int64) int {
	n := 0
	for k := range set {
		if k.topicID == topicID {
			n++
		}
	}
	return n
}

func (s *Store) CreateOrReturnID(ctx context.Context, email string) (forum.CreateOrReturnIDRow, error) {
	if err := s.fail("CreateOrReturnID"); err != nil {
		return forum.CreateOrReturnIDRow{}, err
	}
	defer s.lock()()

	for _, m := range s.st.members {
		if m.Email == email {
			return forum.CreateOrReturnIDRow{ID: m.ID, IsAdmin: m.IsAdmin, IsBlocked: m.IsBlocked, DateJoined: m.DateJoined}, nil
		}
	}
	m := forum.Member{ID: s.nextID(), Email: email, Login: loginOf(email), DateJoined: s.ts()}
	s.st.members[m.ID] = m
	s.record(func() { delete(s.st.members, m.ID) })
	return forum.CreateOrReturnIDRow{ID: m.ID, DateJoined: m.DateJoined}, nil
}

func (s *Store) GetMember(ctx context.Context, id int64) (forum.Member, error) {
	if err := s.fail("GetMember"); err != nil {
		return forum.Member{}, err
	}
	defer s.lock()()
	m, ok := s.st.members[id]
	if !ok {
		return forum.Member{}, pgx.ErrNoRows
	}
	return m, nil
}

func (s *Store) GetMemberByEmail(ctx context.Context, email string) (forum.Member, error) {
	if err := s.fail("GetMemberByEmail"); err != nil {
		return forum.Member{}, err
	}
	defer s.lock()()
	for _, m := range s.st.members {
		if m.Email == email {
			return m, nil
		}
	}
	return forum.Member{}, pgx.ErrNoRows
}

func (s *Store) ListMembersByLogin(ctx context.Context, logins []string) ([]forum.Member, error) {
	if err := s.fail("ListMembersByLogin"); err != nil {
		return nil, err
	}
	defer s.lock()()
	want := make(map[string]bool, len(logins))
	for _, l := range logins {
		want[l] = true
	}
	var out []forum.Member
	for _, m := range s.st.members {
		if want[m.Login] && !m.IsBlocked {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) BlockMember(ctx context.Context, id int64) (int64, error) {
	if err := s.fail("BlockMember"); err != nil {
		return 0, err
	}
	defer s.lock()()
	m, ok := s.st.members[id]
	if !ok {
		return 0, nil
	}
	prev := m
	m.IsBlocked = true
	s.st.members[id] = m
	s.record(func() { s.st.members[id] = prev })
	return 1, nil
}

func (s *Store) SetMemberAdmin(ctx context.Context, arg forum.SetMemberAdminParams) (int64, error) {
	if err := s.fail("SetMemberAdmin"); err != nil {
		return 0, err
	}
	defer s.lock()()
	for id, m := range s.st.members {
		if m.Email == arg.Email {
			prev := m
			m.IsAdmin = arg.IsAdmin
			s.st.members[id] = m
			s.record(func() { s.st.members[id] = prev })
			return 1, nil
		}
	}
	return 0, nil
}

func (s *Store) CreateNode(ctx context.Context, arg forum.CreateNodeParams) (forum.Node, error) {
	if err := s.fail("CreateNode"); err != nil {
		return forum.Node{}, err
	}
	defer s.lock()()
	for _, n := range s.st.nodes {
		if n.Name == arg.Name {
			return forum.Node{}, fmt.Errorf("node %q already exists", arg.Name)
		}
	}
	n := forum.Node{ID: s.nextID(), Name: arg.Name, Summary: arg.Summary, CreatedAt: s.ts()}
	s.st.nodes[n.ID] = n
	s.record(func() { delete(s.st.nodes, n.ID) })
	return n, nil
}

func (s *Store) GetNode(ctx context.Context, id int64) (forum.Node, error) {
	if err := s.fail("GetNode"); err != nil {
		return forum.Node{}, err
	}
	defer s.lock()()
	n, ok := s.st.nodes[id]
	if !ok {
		return forum.Node{}, pgx.ErrNoRows
	}
	return n, nil
}

func (s *Store) ListNodes(ctx context.Context) ([]forum.Node, error) {
	if err := s.fail("ListNodes"); err != nil {
		return nil, err
	}
	defer s.lock()()
	var out []forum.Node
	for _, n := range s.st.nodes {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) CreateTopic(ctx context.Context, arg forum.CreateTopicParams) (forum.Topic, error) {
	if err := s.fail("CreateTopic"); err != nil {
		return forum.Topic{}, err
	}
	defer s.lock()()
	now := s.ts()
	t := forum.Topic{
		ID:        s.nextID(),
		MemberID:  arg.MemberID,
		NodeID:    arg.NodeID,
		Title:     arg.Title,
		Body:      arg.Body,
		Grade:     forum.GradeNormal,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.putTopic(t)
	return t, nil
}

func (s *Store) GetTopic(ctx context.Context, id int64) (forum.Topic, error) {
	if err := s.fail("GetTopic"); err != nil {
		return forum.Topic{}, err
	}
	defer s.lock()()
	t, ok := s.st.topics[id]
	if !ok {
		return forum.Topic{}, pgx.ErrNoRows
	}
	return t, nil
}

// GetTopicForUpdate relies on transactions being serialized.
func (s *Store) GetTopicForUpdate(ctx context.Context, id int64) (forum.Topic, error) {
	if err := s.fail("GetTopicForUpdate"); err != nil {
		return forum.Topic{}, err
	}
	defer s.lock()()
	t, ok := s.st.topics[id]
	if !ok {
		return forum.Topic{}, pgx.ErrNoRows
	}
	return t, nil
}

func (s *Store) UpdateTopicContent(ctx context.Context, arg forum.UpdateTopicContentParams) (forum.Topic, error) {
	return s.updateTopic("UpdateTopicContent", arg.ID, func(t *forum.Topic) {
		t.Title, t.Body = arg.Title, arg.Body
	})
}

func (s *Store) UpdateTopicNode(ctx context.Context, arg forum.UpdateTopicNodeParams) (forum.Topic, error) {
	return s.updateTopic("UpdateTopicNode", arg.ID, func(t *forum.Topic) {
		t.NodeID = arg.NodeID
		t.LockNode = t.LockNode || arg.LockNode
	})
}

func (s *Store) SetTopicGrade(ctx context.Context, arg forum.SetTopicGradeParams) (forum.Topic, error) {
	return s.updateTopic("SetTopicGrade", arg.ID, func(t *forum.Topic) {
		t.Grade = arg.Grade
	})
}

func (s *Store) BanTopic(ctx context.Context, id int64) (forum.Topic, error) {
	return s.updateTopic("BanTopic", id, func(t *forum.Topic) {
		t.Banned = true
	})
}

func (s *Store) CloseTopic(ctx context.Context, arg forum.CloseTopicParams) (forum.Topic, error) {
	return s.updateTopic("CloseTopic", arg.ID, func(t *forum.Topic) {
		if !t.ClosedAt.Valid {
			t.ClosedAt = arg.ClosedAt
		}
	})
}

func (s *Store) OpenTopic(ctx context.Context, id int64) (forum.Topic, error) {
	return s.updateTopic("OpenTopic", id, func(t *forum.Topic) {
		t.ClosedAt = pgtype.Timestamptz{}
	})
}

func (s *Store) DeleteTopic(ctx context.Context, id int64) (int64, error) {
	if err := s.fail("DeleteTopic"); err != nil {
		return 0, err
	}
	defer s.lock()()
	t, ok := s.st.topics[id]
	if !ok {
		return 0, nil
	}

	prevReplies := s.st.replies
	prevNotifications := s.st.notifications
	removed := make(map[pair]time.Time)
	removedFollows := make(map[pair]time.Time)

	delete(s.st.topics, id)
	s.st.replies = filter(s.st.replies, func(r forum.Reply) bool { return r.TopicID != id })
	s.st.notifications = filter(s.st.notifications, func(n forum.Notification) bool { return n.TopicID != id })
	for k, at := range s.st.favorites {
		if k.topicID == id {
			removed[k] = at
			delete(s.st.favorites, k)
		}
	}
	for k, at := range s.st.follows {
		if k.topicID == id {
			removedFollows[k] = at
			delete(s.st.follows, k)
		}
	}

	s.record(func() {
		s.st.topics[id] = t
		s.st.replies = prevReplies
		s.st.notifications = prevNotifications
		for k, at := range removed {
			s.st.favorites[k] = at
		}
		for k, at := range removedFollows {
			s.st.follows[k] = at
		}
	})
	return 1, nil
}

func (s *Store) IncrementTopicHits(ctx context.Context, id int64) error {
	_, err := s.updateTopic("IncrementTopicHits", id, func(t *forum.Topic) {
		t.Hits++
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return nil
	}
	return err
}

func (s *Store) TouchTopicReplied(ctx context.Context, arg forum.TouchTopicRepliedParams) error {
	_, err := s.updateTopic("TouchTopicReplied", arg.ID, func(t *forum.Topic) {
		t.RepliesCount++
		t.LastReplyID = arg.LastReplyID
		t.LastRepliedAt = arg.LastRepliedAt
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return nil
	}
	return err
}

func (s *Store) ListTopics(ctx context.Context, arg forum.ListTopicsParams) ([]forum.Topic, error) {
	if err := s.fail("ListTopics"); err != nil {
		return nil, err
	}
	defer s.lock()()

	var out []forum.Topic
	for _, t := range s.st.topics {
		if (arg.Scope == forum.ScopeBanned) != t.Banned {
			continue
		}
		switch arg.Scope {
		case forum.ScopeExcellent:
			if !t.Excellent() {
				continue
			}
		case forum.ScopeNoReply:
			if t.RepliesCount != 0 {
				continue
			}
		case forum.ScopeLastReply:
			if !t.LastRepliedAt.Valid {
				continue
			}
		case forum.ScopeNode:
			if t.NodeID != arg.NodeID {
				continue
			}
		case forum.ScopeFavorites:
			if _, ok := s.st.favorites[pair{arg.MemberID, t.ID}]; !ok {
				continue
			}
		case forum.ScopePopular:
			if int64(countTopic(s.st.favorites, t.ID)) < arg.PopularThreshold {
				continue
			}
		}
		out = append(out, t)
	}

	byCreated := arg.Scope == forum.ScopeLast || arg.Scope == forum.ScopeExcellent ||
		arg.Scope == forum.ScopeBanned || arg.Scope == forum.ScopeNoReply
	key := func(t forum.Topic) time.Time {
		if !byCreated && t.LastRepliedAt.Valid {
			return t.LastRepliedAt.Time
		}
		return t.CreatedAt.Time
	}
	sort.Slice(out, func(i, j int) bool {
		ki, kj := key(out[i]), key(out[j])
		if !ki.Equal(kj) {
			return ki.After(kj)
		}
		return out[i].ID > out[j].ID
	})

	start := int(arg.PageOffset)
	if start >= len(out) {
		return nil, nil
	}
	end := start + int(arg.PageSize)
	if end > len(out) {
		end = len(out)
	}
	return out[start:end], nil
}

func (s *Store) CreateReply(ctx context.Context, arg forum.CreateReplyParams) (forum.Reply, error) {
	if err := s.fail("CreateReply"); err != nil {
		return forum.Reply{}, err
	}
	defer s.lock()()
	if _, ok := s.st.topics[arg.TopicID]; !ok {
		return forum.Reply{}, fmt.Errorf("topic %d does not exist", arg.TopicID)
	}
	r := forum.Reply{
		ID:        s.nextID(),
		TopicID:   arg.TopicID,
		MemberID:  arg.MemberID,
		Body:      arg.Body,
		Action:    arg.Action,
		CreatedAt: s.ts(),
	}
	s.st.replies = append(s.st.replies, r)
	s.record(func() {
		s.st.replies = filter(s.st.replies, func(x forum.Reply) bool { return x.ID != r.ID })
	})
	return r, nil
}

func (s *Store) ListTopicReplies(ctx context.Context, topicID int64) ([]forum.Reply, error) {
	if err := s.fail("ListTopicReplies"); err != nil {
		return nil, err
	}
	defer s.lock()()
	var out []forum.Reply
	for _, r := range s.st.replies {
		if r.TopicID == topicID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *Store) addPair(method string, set map[pair]time.Time, k pair) (int64, error) {
	if err := s.fail(method); err != nil {
		return 0, err
	}
	defer s.lock()()
	if _, ok := set[k]; ok {
		return 0, nil
	}
	set[k] = s.st.now()
	s.record(func() { delete(set, k) })
	return 1, nil
}

func (s *Store) removePair(method string, set map[pair]time.Time, k pair) (int64, error) {
	if err := s.fail(method); err != nil {
		return 0, err
	}
	defer s.lock()()
	at, ok := set[k]
	if !ok {
		return 0, nil
	}
	delete(set, k)
	s.record(func() { set[k] = at })
	return 1, nil
}

func (s *Store) AddFavorite(ctx context.Context, arg forum.AddFavoriteParams) (int64, error) {
	return s.addPair("AddFavorite", s.st.favorites, pair{arg.MemberID, arg.TopicID})
}

func (s *Store) RemoveFavorite(ctx context.Context, arg forum.RemoveFavoriteParams) (int64, error) {
	return s.removePair("RemoveFavorite", s.st.favorites, pair{arg.MemberID, arg.TopicID})
}

func (s *Store) AddFollow(ctx context.Context, arg forum.AddFollowParams) (int64, error) {
	return s.addPair("AddFollow", s.st.follows, pair{arg.MemberID, arg.TopicID})
}

func (s *Store) RemoveFollow(ctx context.Context, arg forum.RemoveFollowParams) (int64, error) {
	return s.removePair("RemoveFollow", s.st.follows, pair{arg.MemberID, arg.TopicID})
}

func (s *Store) GetTopicEngagement(ctx context.Context, arg forum.GetTopicEngagementParams) (forum.GetTopicEngagementRow, error) {
	if err := s.fail("GetTopicEngagement"); err != nil {
		return forum.GetTopicEngagementRow{}, err
	}
	defer s.lock()()
	k := pair{arg.MemberID, arg.TopicID}
	_, fav := s.st.favorites[k]
	_, fol := s.st.follows[k]
	return forum.GetTopicEngagementRow{Favorited: fav, Following: fol}, nil
}

func (s *Store) CountTopicFavorites(ctx context.Context, topicID int64) (int64, error) {
	if err := s.fail("CountTopicFavorites"); err != nil {
		return 0, err
	}
	defer s.lock()()
	return int64(countTopic(s.st.favorites, topicID)), nil
}

func (s *Store) ListTopicFollowers(ctx context.Context, topicID int64) ([]int64, error) {
	if err := s.fail("ListTopicFollowers"); err != nil {
		return nil, err
	}
	defer s.lock()()
	var out []int64
	for k := range s.st.follows {
		if k.topicID == topicID {
			out = append(out, k.memberID)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

func (s *Store) CreateNotification(ctx context.Context, arg forum.CreateNotificationParams) error {
	if err := s.fail("CreateNotification"); err != nil {
		return err
	}
	defer s.lock()()
	n := forum.Notification{
		ID:         s.nextID(),
		MemberID:   arg.MemberID,
		ActorID:    arg.ActorID,
		NotifyType: arg.NotifyType,
		TargetType: arg.TargetType,
		TargetID:   arg.TargetID,
		TopicID:    arg.TopicID,
		CreatedAt:  s.ts(),
	}
	s.st.notifications = append(s.st.notifications, n)
	s.record(func() {
		s.st.notifications = filter(s.st.notifications, func(x forum.Notification) bool { return x.ID != n.ID })
	})
	return nil
}

func (s *Store) MarkTopicNotificationsRead(ctx context.Context, arg forum.MarkTopicNotificationsReadParams) (int64, error) {
	if err := s.fail("MarkTopicNotificationsRead"); err != nil {
		return 0, err
	}
	defer s.lock()()
	var changed []int
	for i, n := range s.st.notifications {
		if n.MemberID == arg.MemberID && n.TopicID == arg.TopicID && !n.ReadAt.Valid {
			s.st.notifications[i].ReadAt = arg.ReadAt
			changed = append(changed, i)
		}
	}
	s.record(func() {
		for _, i := range changed {
			s.st.notifications[i].ReadAt = pgtype.Timestamptz{}
		}
	})
	return int64(len(changed)), nil
}

func (s *Store) CountUnreadNotifications(ctx context.Context, memberID int64) (int64, error) {
	if err := s.fail("CountUnreadNotifications"); err != nil {
		return 0, err
	}
	defer s.lock()()
	var n int64
	for _, no := range s.st.notifications {
		if no.MemberID == memberID && !no.ReadAt.Valid {
			n++
		}
	}
	return n, nil
}

func (s *Store) ListUnreadNotifications(ctx context.Context, memberID int64) ([]forum.Notification, error) {
	if err := s.fail("ListUnreadNotifications"); err != nil {
		return nil, err
	}
	defer s.lock()()
	var out []forum.Notification
	for i := len(s.st.notifications) - 1; i >= 0 && len(out) < 50; i-- {
		n := s.st.notifications[i]
		if n.MemberID == memberID && !n.ReadAt.Valid {
			out = append(out, n)
		}
	}
	return out, nil
}

func (s *Store) GetSetting(ctx context.Context, key string) (string, error) {
	if err := s.fail("GetSetting"); err != nil {
		return "", err
	}
	defer s.lock()()
	v, ok := s.st.settings[key]
	if !ok {
		return "", pgx.ErrNoRows
	}
	return v.Value, nil
}

func (s *Store) UpsertSetting(ctx context.Context, arg forum.UpsertSettingParams) error {
	if err := s.fail("UpsertSetting"); err != nil {
		return err
	}
	defer s.lock()()
	prev, existed := s.st.settings[arg.Key]
	s.st.settings[arg.Key] = forum.Setting{Key: arg.Key, Value: arg.Value, UpdatedAt: s.ts()}
	s.record(func() {
		if existed {
			s.st.settings[arg.Key] = prev
		} else {
			delete(s.st.settings, arg.Key)
		}
	})
	return nil
}

func (s *Store) ListSettings(ctx context.Context) ([]forum.Setting, error) {
	if err := s.fail("ListSettings"); err != nil {
		return nil, err
	}
	defer s.lock()()
	var out []forum.Setting
	for _, v := range s.st.settings {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func filter[T any](in []T, keep func(T) bool) []T {
	out := make([]T, 0, len(in))
	for _, v := range in {
		if keep(v) {
			out = append(out, v)
		}
	}
	return out
}

