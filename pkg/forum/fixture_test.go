package forum_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/imeyer/tforum/pkg/forum"
	"github.com/imeyer/tforum/pkg/forum/forumtest"
)

var epoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	store *forumtest.Store
	forum *forum.Forum
	admin forum.Actor
	owner forum.Actor
	other forum.Actor
	node  forum.Node
	node2 forum.Node
	now   time.Time
	ctx   context.Context
}

func actorOf(m forum.Member) forum.Actor {
	return forum.Actor{ID: m.ID, Admin: m.IsAdmin, Blocked: m.IsBlocked, JoinedAt: m.DateJoined.Time}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		store: forumtest.NewStore(),
		now:   epoch,
		ctx:   context.Background(),
	}
	f.store.SetClock(func() time.Time { return f.now })

	longAgo := epoch.AddDate(-1, 0, 0)
	admin := f.store.AddMember("root@example.com", true, longAgo)
	owner := f.store.AddMember("alice@example.com", false, longAgo)
	other := f.store.AddMember("bob@example.com", false, longAgo)
	f.admin, f.owner, f.other = actorOf(admin), actorOf(owner), actorOf(other)

	f.node = f.store.AddNode("general")
	f.node2 = f.store.AddNode("meta")

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	f.forum = forum.NewForum(f.store, f.store, logger,
		forum.WithClock(func() time.Time { return f.now }),
		forum.WithPageSize(2),
		forum.WithPopularThreshold(1))
	return f
}

// topic creates a topic owned by the fixture owner.
func (f *fixture) topic(t *testing.T, body string) forum.Topic {
	t.Helper()
	topic, err := f.forum.Topics.Create(f.ctx, f.owner, forum.TopicInput{
		Title:  "A topic title",
		Body:   body,
		NodeID: f.node.ID,
	})
	require.NoError(t, err)
	return topic
}

func (f *fixture) reload(t *testing.T, id int64) forum.Topic {
	t.Helper()
	topic, err := f.store.GetTopic(f.ctx, id)
	require.NoError(t, err)
	return topic
}

func (f *fixture) setNewbieWindow(t *testing.T, seconds string) {
	t.Helper()
	require.NoError(t, f.forum.Settings.Set(f.ctx, f.admin, forum.SettingNewbieLimitTime, seconds))
}
