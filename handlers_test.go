package main

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imeyer/tforum/pkg/forum"
	"github.com/imeyer/tforum/pkg/forum/forumtest"
)

const (
	adminAddr = "100.64.0.1:40001"
	aliceAddr = "100.64.0.2:40002"
	bobAddr   = "100.64.0.3:40003"
	anonAddr  = "192.0.2.1:1234"
)

type testForum struct {
	store   *forumtest.Store
	board   *forum.Forum
	pinger  *MockPinger
	handler http.Handler

	admin forum.Actor
	alice forum.Actor
	bob   forum.Actor
	node  forum.Node
}

func actorOf(m forum.Member) forum.Actor {
	return forum.Actor{ID: m.ID, Admin: m.IsAdmin, Blocked: m.IsBlocked, JoinedAt: m.DateJoined.Time}
}

func newTestForum(t *testing.T) *testForum {
	t.Helper()

	store := forumtest.NewStore()
	longAgo := time.Now().AddDate(-1, 0, 0)
	tf := &testForum{
		store:  store,
		pinger: &MockPinger{},
		admin:  actorOf(store.AddMember("root@example.com", true, longAgo)),
		alice:  actorOf(store.AddMember("alice@example.com", false, longAgo)),
		bob:    actorOf(store.AddMember("bob@example.com", false, longAgo)),
		node:   store.AddNode("general"),
	}

	logger := discardLogger()
	tf.board = forum.NewForum(store, store, logger)

	lc := peers(map[string]string{
		adminAddr: "root@example.com",
		aliceAddr: "alice@example.com",
		bobAddr:   "bob@example.com",
	})
	cfg := &Config{LogLevel: "info", MetricsAllowlist: []string{"127.0.0.1"}}

	fs := NewForumService(lc, logger, tf.pinger, store, tf.board, noopTelemetry(), cfg, "test", "abc123")
	ms := newMiddlewareSetup(fs)
	ms.EnableRateLimit = false
	t.Cleanup(ms.Close)

	tf.handler = SetupRoutes(fs, ms)
	return tf
}

func (tf *testForum) topic(t *testing.T, body string) forum.Topic {
	t.Helper()
	topic, err := tf.board.Topics.Create(context.Background(), tf.alice, forum.TopicInput{
		Title:  "A topic title",
		Body:   body,
		NodeID: tf.node.ID,
	})
	require.NoError(t, err)
	return topic
}

func (tf *testForum) do(method, target, addr string, form url.Values) *httptest.ResponseRecorder {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}

	req := httptest.NewRequest(method, target, body)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	req.RemoteAddr = addr

	rr := httptest.NewRecorder()
	tf.handler.ServeHTTP(rr, req)
	return rr
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}

func TestBanWithReasons(t *testing.T) {
	tf := newTestForum(t)
	topic := tf.topic(t, "hello")
	target := topicURL(topic.ID) + "/action"

	before := testutil.ToFloat64(moderationActions.WithLabelValues("ban", "applied"))

	rr := tf.do(http.MethodPost, target+"?type=ban", adminAddr, url.Values{"reason": {"Foobar"}})
	require.Equal(t, http.StatusFound, rr.Code)
	assert.Equal(t, topicURL(topic.ID), rr.Header().Get("Location"))

	rr = tf.do(http.MethodPost, target+"?type=ban", adminAddr, url.Values{
		"reason":      {"Foobar"},
		"reason_text": {"Barfoo"},
	})
	require.Equal(t, http.StatusFound, rr.Code)

	replies := tf.store.Replies(topic.ID)
	require.Len(t, replies, 2)
	assert.Equal(t, "Foobar", replies[0].Body)
	assert.Equal(t, "Barfoo", replies[1].Body)
	for _, r := range replies {
		assert.Equal(t, "ban", r.Action.String)
		assert.Equal(t, tf.admin.ID, r.MemberID)
	}

	got, err := tf.store.GetTopic(context.Background(), topic.ID)
	require.NoError(t, err)
	assert.True(t, got.Banned)
	assert.Zero(t, got.RepliesCount)

	assert.Equal(t, before+2, testutil.ToFloat64(moderationActions.WithLabelValues("ban", "applied")))
}

func TestModerationDenied(t *testing.T) {
	tf := newTestForum(t)
	topic := tf.topic(t, "hello")
	target := topicURL(topic.ID) + "/action?type=excellent"

	deniedBefore := testutil.ToFloat64(moderationActions.WithLabelValues("excellent", "denied"))

	tests := []struct {
		name     string
		addr     string
		status   int
		location string
	}{
		{name: "owner is not an admin", addr: aliceAddr, status: http.StatusForbidden},
		{name: "other member", addr: bobAddr, status: http.StatusForbidden},
		{name: "anonymous", addr: anonAddr, status: http.StatusFound, location: "/signin?next="},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := tf.do(http.MethodPost, target, tt.addr, url.Values{})
			assert.Equal(t, tt.status, rr.Code)
			if tt.location != "" {
				assert.True(t, strings.HasPrefix(rr.Header().Get("Location"), tt.location), rr.Header().Get("Location"))
			}
		})
	}

	got, err := tf.store.GetTopic(context.Background(), topic.ID)
	require.NoError(t, err)
	assert.Equal(t, forum.GradeNormal, got.Grade)
	assert.Empty(t, tf.store.Replies(topic.ID))
	assert.Equal(t, deniedBefore+3, testutil.ToFloat64(moderationActions.WithLabelValues("excellent", "denied")))
}

func TestModerationTransitions(t *testing.T) {
	tf := newTestForum(t)
	topic := tf.topic(t, "hello")
	base := topicURL(topic.ID) + "/action?type="

	tests := []struct {
		action  string
		status  int
		replies int
		check   func(t *testing.T, got forum.Topic)
	}{
		{action: "excellent", status: http.StatusFound, replies: 1, check: func(t *testing.T, got forum.Topic) {
			assert.Equal(t, forum.GradeExcellent, got.Grade)
		}},
		{action: "excellent", status: http.StatusFound, replies: 1},
		{action: "close", status: http.StatusFound, replies: 2, check: func(t *testing.T, got forum.Topic) {
			assert.True(t, got.Closed())
		}},
		{action: "close", status: http.StatusFound, replies: 2},
		{action: "open", status: http.StatusFound, replies: 3, check: func(t *testing.T, got forum.Topic) {
			assert.False(t, got.Closed())
		}},
		{action: "normal", status: http.StatusFound, replies: 4, check: func(t *testing.T, got forum.Topic) {
			assert.Equal(t, forum.GradeNormal, got.Grade)
		}},
		{action: "unban", status: http.StatusBadRequest, replies: 4},
	}

	for _, tt := range tests {
		rr := tf.do(http.MethodPost, base+tt.action, adminAddr, url.Values{})
		require.Equal(t, tt.status, rr.Code, tt.action)
		assert.Len(t, tf.store.Replies(topic.ID), tt.replies, tt.action)
		if tt.check != nil {
			got, err := tf.store.GetTopic(context.Background(), topic.ID)
			require.NoError(t, err)
			tt.check(t, got)
		}
	}
}

func TestModerationMissingTopic(t *testing.T) {
	tf := newTestForum(t)

	rr := tf.do(http.MethodPost, "/topics/999/action?type=close", adminAddr, url.Values{})
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestBanFormReasons(t *testing.T) {
	tf := newTestForum(t)
	topic := tf.topic(t, "hello")

	rr := tf.do(http.MethodPost, "/admin", adminAddr, url.Values{
		"action": {"update_setting"},
		"key":    {forum.SettingBanReasons},
		"value":  {"Spam\n\nOff topic\n"},
	})
	require.Equal(t, http.StatusSeeOther, rr.Code)

	rr = tf.do(http.MethodGet, topicURL(topic.ID)+"/ban", adminAddr, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	form := decode[struct {
		Reasons []string `json:"reasons"`
	}](t, rr)
	assert.Equal(t, []string{"Spam", "Off topic"}, form.Reasons)

	rr = tf.do(http.MethodGet, topicURL(topic.ID)+"/ban", bobAddr, nil)
	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestEngagementToggles(t *testing.T) {
	tf := newTestForum(t)
	topic := tf.topic(t, "hello")
	base := topicURL(topic.ID)

	steps := []struct {
		method    string
		path      string
		favorites int
	}{
		{http.MethodPost, "/favorite", 1},
		{http.MethodPost, "/favorite", 1},
		{http.MethodDelete, "/favorite", 0},
		{http.MethodPost, "/favorite", 1},
		{http.MethodPost, "/unfavorite", 0},
		{http.MethodPost, "/unfavorite", 0},
	}
	for _, s := range steps {
		rr := tf.do(s.method, base+s.path, bobAddr, nil)
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "1", rr.Body.String())
		assert.Equal(t, s.favorites, tf.store.FavoriteCount(topic.ID), s.method+" "+s.path)
	}

	// the owner follows on creation
	require.Equal(t, 1, tf.store.FollowCount(topic.ID))
	rr := tf.do(http.MethodPost, base+"/follow", bobAddr, nil)
	assert.Equal(t, "1", rr.Body.String())
	assert.Equal(t, 2, tf.store.FollowCount(topic.ID))
	rr = tf.do(http.MethodPost, base+"/unfollow", bobAddr, nil)
	assert.Equal(t, "1", rr.Body.String())
	assert.Equal(t, 1, tf.store.FollowCount(topic.ID))

	rr = tf.do(http.MethodPost, base+"/favorite", anonAddr, nil)
	assert.Equal(t, http.StatusFound, rr.Code)
	rr = tf.do(http.MethodPost, "/topics/999/favorite", bobAddr, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestShowResolvesNotifications(t *testing.T) {
	tf := newTestForum(t)
	topic := tf.topic(t, "hey @bob")
	_, err := tf.board.Topics.Reply(context.Background(), tf.alice, topic.ID, "@bob please look")
	require.NoError(t, err)
	require.Equal(t, 2, tf.store.UnreadFor(tf.bob.ID))

	rr := tf.do(http.MethodGet, "/notifications", bobAddr, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	list := decode[struct {
		UnreadCount   int64              `json:"unread_count"`
		Notifications []notificationJSON `json:"notifications"`
	}](t, rr)
	assert.EqualValues(t, 2, list.UnreadCount)
	assert.Len(t, list.Notifications, 2)

	rr = tf.do(http.MethodGet, topicURL(topic.ID), bobAddr, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	page := decode[topicPageJSON](t, rr)
	assert.EqualValues(t, 2, page.Resolved)
	assert.Equal(t, topic.ID, page.Topic.ID)
	assert.Len(t, page.Replies, 1)
	assert.Zero(t, tf.store.UnreadFor(tf.bob.ID))

	rr = tf.do(http.MethodGet, topicURL(topic.ID), bobAddr, nil)
	assert.EqualValues(t, 0, decode[topicPageJSON](t, rr).Resolved)

	rr = tf.do(http.MethodGet, "/notifications", anonAddr, nil)
	assert.Equal(t, http.StatusFound, rr.Code)
}

func TestResolutionFailureFailsTheView(t *testing.T) {
	tf := newTestForum(t)
	topic := tf.topic(t, "hey @bob")

	tf.store.FailNext("MarkTopicNotificationsRead", errors.New("connection reset"))
	rr := tf.do(http.MethodGet, topicURL(topic.ID), bobAddr, nil)
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, 1, tf.store.UnreadFor(tf.bob.ID))
}

func TestTopicRoutes(t *testing.T) {
	tf := newTestForum(t)
	topic := tf.topic(t, "hello **world**")

	tests := []struct {
		name   string
		target string
		addr   string
		status int
	}{
		{name: "index", target: "/", addr: anonAddr, status: http.StatusOK},
		{name: "active", target: "/topics", addr: bobAddr, status: http.StatusOK},
		{name: "malformed page", target: "/topics?page=2/*", addr: bobAddr, status: http.StatusOK},
		{name: "page past int32", target: "/topics?page=3221225473", addr: bobAddr, status: http.StatusOK},
		{name: "page past int64", target: "/topics?page=99999999999999999999", addr: bobAddr, status: http.StatusOK},
		{name: "largest page", target: "/topics?page=2147483647", addr: bobAddr, status: http.StatusOK},
		{name: "scope", target: "/topics/no_reply", addr: bobAddr, status: http.StatusOK},
		{name: "favorites need a member", target: "/topics/favorites", addr: anonAddr, status: http.StatusFound},
		{name: "unknown scope", target: "/topics/nonsense", addr: bobAddr, status: http.StatusNotFound},
		{name: "node", target: "/nodes/" + itoa(tf.node.ID), addr: bobAddr, status: http.StatusOK},
		{name: "missing node", target: "/nodes/999", addr: bobAddr, status: http.StatusNotFound},
		{name: "show", target: topicURL(topic.ID), addr: anonAddr, status: http.StatusOK},
		{name: "missing topic", target: "/topics/999", addr: bobAddr, status: http.StatusNotFound},
		{name: "edit by owner", target: topicURL(topic.ID) + "/edit", addr: aliceAddr, status: http.StatusOK},
		{name: "edit by other", target: topicURL(topic.ID) + "/edit", addr: bobAddr, status: http.StatusForbidden},
		{name: "new", target: "/topics/new?node_id=" + itoa(tf.node.ID), addr: bobAddr, status: http.StatusOK},
		{name: "new anonymous", target: "/topics/new", addr: anonAddr, status: http.StatusFound},
		{name: "new missing node", target: "/topics/new?node_id=999", addr: bobAddr, status: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := tf.do(http.MethodGet, tt.target, tt.addr, nil)
			assert.Equal(t, tt.status, rr.Code, rr.Body.String())
		})
	}

	for _, page := range []string{"2/*", "3221225473"} {
		rr := tf.do(http.MethodGet, "/topics?page="+page, bobAddr, nil)
		list := decode[topicListJSON](t, rr)
		assert.Equal(t, 1, list.Page, page)
		assert.Len(t, list.Topics, 1, page)
	}

	rr := tf.do(http.MethodGet, "/topics?page=2147483647", bobAddr, nil)
	assert.Len(t, decode[topicListJSON](t, rr).Topics, 1)

	rr = tf.do(http.MethodGet, topicURL(topic.ID), anonAddr, nil)
	assert.Contains(t, decode[topicPageJSON](t, rr).Topic.BodyHTML, "<strong>world</strong>")
}

func TestTopicLifecycle(t *testing.T) {
	tf := newTestForum(t)

	rr := tf.do(http.MethodPost, "/topics", aliceAddr, url.Values{
		"title":   {"Hello there"},
		"body":    {"first"},
		"node_id": {itoa(tf.node.ID)},
	})
	require.Equal(t, http.StatusSeeOther, rr.Code)
	location := rr.Header().Get("Location")
	require.True(t, strings.HasPrefix(location, "/topics/"))

	rr = tf.do(http.MethodPost, "/topics", aliceAddr, url.Values{"title": {""}, "node_id": {itoa(tf.node.ID)}})
	require.Equal(t, http.StatusBadRequest, rr.Code)
	verr := decode[errorJSON](t, rr)
	assert.Contains(t, verr.Fields, "title")
	assert.Contains(t, verr.Fields, "body")

	rr = tf.do(http.MethodPost, location, aliceAddr, url.Values{"title": {"Hello again"}, "body": {"edited"}})
	require.Equal(t, http.StatusSeeOther, rr.Code)
	rr = tf.do(http.MethodPost, location, bobAddr, url.Values{"title": {"Hijacked"}, "body": {"x"}})
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = tf.do(http.MethodPost, location+"/replies", bobAddr, url.Values{"body": {"nice"}})
	require.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, location, rr.Header().Get("Location"))

	rr = tf.do(http.MethodGet, location, bobAddr, nil)
	page := decode[topicPageJSON](t, rr)
	assert.Equal(t, "Hello again", page.Topic.Title)
	assert.EqualValues(t, 1, page.Topic.RepliesCount)

	rr = tf.do(http.MethodPost, location+"/destroy", bobAddr, nil)
	assert.Equal(t, http.StatusForbidden, rr.Code)
	rr = tf.do(http.MethodDelete, location, adminAddr, nil)
	require.Equal(t, http.StatusFound, rr.Code)
	assert.Equal(t, "/topics", rr.Header().Get("Location"))

	rr = tf.do(http.MethodGet, location, bobAddr, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestFeed(t *testing.T) {
	tf := newTestForum(t)
	tf.topic(t, "hello <script>alert(1)</script>")

	for _, target := range []string{"/topics/feed", "/nodes/" + itoa(tf.node.ID) + "/feed"} {
		rr := tf.do(http.MethodGet, target, anonAddr, nil)
		require.Equal(t, http.StatusOK, rr.Code, target)
		assert.Equal(t, "application/xml; charset=utf-8", rr.Header().Get("Content-Type"))

		var feed rssFeed
		require.NoError(t, xml.Unmarshal(rr.Body.Bytes(), &feed))
		assert.Equal(t, "2.0", feed.Version)
		require.Len(t, feed.Channel.Items, 1)
		assert.Equal(t, "A topic title", feed.Channel.Items[0].Title)
		assert.NotContains(t, feed.Channel.Items[0].Description, "<script>")
	}

	rr := tf.do(http.MethodGet, "/nodes/999/feed", anonAddr, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestPreview(t *testing.T) {
	tf := newTestForum(t)

	rr := tf.do(http.MethodPost, "/topics/preview", bobAddr, url.Values{"body": {"**bold**\n\n<script>x</script>"}})
	require.Equal(t, http.StatusOK, rr.Code)
	out := decode[map[string]string](t, rr)
	assert.Contains(t, out["html"], "<strong>bold</strong>")
	assert.NotContains(t, out["html"], "<script>")
}

func TestAdmin(t *testing.T) {
	tf := newTestForum(t)

	rr := tf.do(http.MethodGet, "/admin", bobAddr, nil)
	assert.Equal(t, http.StatusForbidden, rr.Code)
	rr = tf.do(http.MethodGet, "/admin", anonAddr, nil)
	assert.Equal(t, http.StatusFound, rr.Code)

	rr = tf.do(http.MethodPost, "/admin", adminAddr, url.Values{
		"action": {"update_setting"},
		"key":    {forum.SettingBoardTitle},
		"value":  {"Tailnet Forum"},
	})
	require.Equal(t, http.StatusSeeOther, rr.Code)

	rr = tf.do(http.MethodGet, "/admin", adminAddr, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	admin := decode[struct {
		Settings map[string]string `json:"settings"`
		Version  string            `json:"version"`
	}](t, rr)
	assert.Equal(t, "Tailnet Forum", admin.Settings[forum.SettingBoardTitle])
	assert.Equal(t, "test", admin.Version)

	rr = tf.do(http.MethodGet, "/topics", bobAddr, nil)
	assert.Equal(t, "Tailnet Forum", decode[topicListJSON](t, rr).Title)

	tests := []struct {
		name   string
		form   url.Values
		status int
	}{
		{name: "unknown setting", form: url.Values{"action": {"update_setting"}, "key": {"nope"}, "value": {"1"}}, status: http.StatusBadRequest},
		{name: "bad newbie window", form: url.Values{"action": {"update_setting"}, "key": {forum.SettingNewbieLimitTime}, "value": {"soon"}}, status: http.StatusBadRequest},
		{name: "unknown action", form: url.Values{"action": {"delete_everything"}}, status: http.StatusBadRequest},
		{name: "block without member", form: url.Values{"action": {"block_member"}}, status: http.StatusBadRequest},
		{name: "block bad member id", form: url.Values{"action": {"block_member"}, "member_id": {"abc"}}, status: http.StatusBadRequest},
		{name: "block member", form: url.Values{"action": {"block_member"}, "member_id": {itoa(tf.bob.ID)}}, status: http.StatusSeeOther},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := tf.do(http.MethodPost, "/admin", adminAddr, tt.form)
			assert.Equal(t, tt.status, rr.Code, rr.Body.String())
		})
	}
}

func TestBlockedMemberCannotWrite(t *testing.T) {
	tf := newTestForum(t)
	topic := tf.topic(t, "hello")
	require.NoError(t, tf.board.Settings.BlockMember(context.Background(), tf.admin, tf.bob.ID))

	rr := tf.do(http.MethodPost, topicURL(topic.ID)+"/replies", bobAddr, url.Values{"body": {"let me in"}})
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = tf.do(http.MethodGet, topicURL(topic.ID), bobAddr, nil)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestSignIn(t *testing.T) {
	tf := newTestForum(t)

	rr := tf.do(http.MethodGet, "/signin?next=/topics/1", anonAddr, nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = tf.do(http.MethodGet, "/signin?next=/topics/1", bobAddr, nil)
	assert.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "/topics/1", rr.Header().Get("Location"))

	rr = tf.do(http.MethodGet, "/signin?next=//evil.example", bobAddr, nil)
	assert.Equal(t, "/", rr.Header().Get("Location"))
}

func TestHealthAndMetrics(t *testing.T) {
	tf := newTestForum(t)

	rr := tf.do(http.MethodGet, "/health", anonAddr, nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "OK", rr.Body.String())

	tf.pinger.Err = errors.New("database is down")
	rr = tf.do(http.MethodGet, "/health", anonAddr, nil)
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)

	rr = tf.do(http.MethodGet, "/_/metrics", "127.0.0.1:9999", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "tforum_http_request_duration_seconds")

	rr = tf.do(http.MethodGet, "/_/metrics", anonAddr, nil)
	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestRecoveryMiddleware(t *testing.T) {
	handler := RecoveryMiddleware(discardLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Contains(t, rr.Body.String(), "error id: ERR-")
}

func TestIsSensitiveField(t *testing.T) {
	for field, want := range map[string]bool{
		"password":     true,
		"csrf_token":   true,
		"API_KEY":      true,
		"ClientSecret": true,
		"body":         false,
		"reason_text":  false,
	} {
		assert.Equal(t, want, isSensitiveField(field), field)
	}
}
