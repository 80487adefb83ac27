package forum_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imeyer/tforum/pkg/forum"
)

func TestFavoriteIsIdempotent(t *testing.T) {
	f := newFixture(t)
	topic := f.topic(t, "hello")

	added, err := f.forum.Engagement.Favorite(f.ctx, f.other, topic.ID)
	require.NoError(t, err)
	assert.True(t, added)

	added, err = f.forum.Engagement.Favorite(f.ctx, f.other, topic.ID)
	require.NoError(t, err)
	assert.False(t, added)
	assert.Equal(t, 1, f.store.FavoriteCount(topic.ID))

	removed, err := f.forum.Engagement.Unfavorite(f.ctx, f.other, topic.ID)
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = f.forum.Engagement.Unfavorite(f.ctx, f.other, topic.ID)
	require.NoError(t, err)
	assert.False(t, removed)
	assert.Equal(t, 0, f.store.FavoriteCount(topic.ID))
}

func TestFollowIsIdempotent(t *testing.T) {
	f := newFixture(t)
	topic := f.topic(t, "hello")
	// the owner follows on create
	require.Equal(t, 1, f.store.FollowCount(topic.ID))

	for i := 0; i < 2; i++ {
		_, err := f.forum.Engagement.Follow(f.ctx, f.other, topic.ID)
		require.NoError(t, err)
	}
	assert.Equal(t, 2, f.store.FollowCount(topic.ID))

	for i := 0; i < 2; i++ {
		_, err := f.forum.Engagement.Unfollow(f.ctx, f.other, topic.ID)
		require.NoError(t, err)
	}
	assert.Equal(t, 1, f.store.FollowCount(topic.ID))
}

func TestEngagementIgnoresModerationState(t *testing.T) {
	f := newFixture(t)
	topic := f.topic(t, "hello")

	for _, a := range []forum.ActionType{forum.ActionBan, forum.ActionClose} {
		_, err := f.forum.Moderation.Apply(f.ctx, f.admin, topic.ID, forum.Moderation{Type: a})
		require.NoError(t, err)
	}

	_, err := f.forum.Engagement.Favorite(f.ctx, f.other, topic.ID)
	require.NoError(t, err)
	_, err = f.forum.Engagement.Follow(f.ctx, f.other, topic.ID)
	require.NoError(t, err)

	state, err := f.forum.Engagement.State(f.ctx, f.other, topic.ID)
	require.NoError(t, err)
	assert.True(t, state.Favorited)
	assert.True(t, state.Following)
}

func TestEngagementErrors(t *testing.T) {
	f := newFixture(t)
	topic := f.topic(t, "hello")

	toggles := map[string]func(forum.Actor, int64) (bool, error){
		"favorite": func(a forum.Actor, id int64) (bool, error) {
			return f.forum.Engagement.Favorite(f.ctx, a, id)
		},
		"unfavorite": func(a forum.Actor, id int64) (bool, error) {
			return f.forum.Engagement.Unfavorite(f.ctx, a, id)
		},
		"follow": func(a forum.Actor, id int64) (bool, error) {
			return f.forum.Engagement.Follow(f.ctx, a, id)
		},
		"unfollow": func(a forum.Actor, id int64) (bool, error) {
			return f.forum.Engagement.Unfollow(f.ctx, a, id)
		},
	}

	for name, toggle := range toggles {
		t.Run(name, func(t *testing.T) {
			_, err := toggle(forum.Actor{}, topic.ID)
			assert.True(t, forum.IsUnauthenticated(err))

			_, err = toggle(f.other, topic.ID+1000)
			assert.ErrorIs(t, err, forum.ErrNotFound)
		})
	}
}

func TestNewbiesMayEngage(t *testing.T) {
	f := newFixture(t)
	topic := f.topic(t, "hello")
	f.setNewbieWindow(t, "100000")

	newbie := actorOf(f.store.AddMember("fresh@example.com", false, f.now))
	_, err := f.forum.Engagement.Favorite(f.ctx, newbie, topic.ID)
	assert.NoError(t, err)
}
