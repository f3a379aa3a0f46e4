package main

import (
	"context"
	"net/http"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestControllerInitializeAndLike(t *testing.T) {
	api := &fakeAPI{posts: []Post{{ID: 1, Title: "A", Content: "B"}}}
	f := newControllerFixture(t, api, ControllerOptions{})
	ctx := context.Background()
	require.NoError(t, f.store.Set(ctx, endpointKey, "http://h/api"))

	require.NoError(t, f.controller.Initialize(ctx))
	assert.Equal(t, []string{"http://h/api"}, api.baseURLs)

	page := renderedPage(t, f.doc)
	assert.Equal(t, "http://h/api", page.Find("#api-base-url").AttrOr("value", ""))
	posts := page.Find("#post-container .post")
	require.Equal(t, 1, posts.Length())
	assert.Equal(t, "A", posts.Find("h2").Text())
	assert.Equal(t, "B", posts.Find("p").Text())
	assert.Equal(t, "0 Likes", page.Find("#like-count-1").Text())

	require.NoError(t, f.controller.LikePost(ctx, 1))
	assert.Equal(t, "1 Likes", renderedPage(t, f.doc).Find("#like-count-1").Text())
	value, ok, err := f.store.Get(ctx, "likes_1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "1", value)
}

func TestControllerInitializeWithoutEndpoint(t *testing.T) {
	api := &fakeAPI{posts: []Post{{ID: 1, Title: "A", Content: "B"}}}
	f := newControllerFixture(t, api, ControllerOptions{})

	require.NoError(t, f.controller.Initialize(context.Background()))

	assert.Equal(t, 0, api.lists())
	assert.Equal(t, 0, renderedPage(t, f.doc).Find("#post-container .post").Length())
}

func TestControllerLikeNTimes(t *testing.T) {
	api := &fakeAPI{posts: []Post{{ID: 7, Title: "T", Content: "C"}}}
	f := newControllerFixture(t, api, ControllerOptions{})
	ctx := context.Background()
	require.NoError(t, f.controller.LoadPosts(ctx))

	for i := 0; i < 5; i++ {
		require.NoError(t, f.controller.LikePost(ctx, 7))
	}

	assert.Equal(t, "5 Likes", renderedPage(t, f.doc).Find("#like-count-7").Text())
	n, err := f.controller.Likes().Get(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, 1, api.lists(), "likes never touch the API")
}

func TestControllerConcurrentLikes(t *testing.T) {
	api := &fakeAPI{posts: []Post{{ID: 3, Title: "T", Content: "C"}}}
	f := newControllerFixture(t, api, ControllerOptions{})
	ctx := context.Background()
	require.NoError(t, f.controller.LoadPosts(ctx))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = f.controller.LikePost(ctx, 3)
		}()
	}
	wg.Wait()

	assert.Equal(t, "50 Likes", renderedPage(t, f.doc).Find("#like-count-3").Text())
}

func TestControllerLikeOfUnrenderedPostIsStored(t *testing.T) {
	f := newControllerFixture(t, &fakeAPI{}, ControllerOptions{})
	ctx := context.Background()

	err := f.controller.LikePost(ctx, 42)
	assert.True(t, errors.Is(err, ErrElementNotFound))

	n, err := f.controller.Likes().Get(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestControllerMalformedCounterIsZero(t *testing.T) {
	api := &fakeAPI{posts: []Post{{ID: 1, Title: "A", Content: "B"}, {ID: 2, Title: "C", Content: "D"}}}
	f := newControllerFixture(t, api, ControllerOptions{})
	ctx := context.Background()
	require.NoError(t, f.store.Set(ctx, "likes_1", "abc"))
	require.NoError(t, f.store.Set(ctx, "likes_2", "-3"))

	require.NoError(t, f.controller.LoadPosts(ctx))
	page := renderedPage(t, f.doc)
	assert.Equal(t, "0 Likes", page.Find("#like-count-1").Text())
	assert.Equal(t, "0 Likes", page.Find("#like-count-2").Text())

	require.NoError(t, f.controller.LikePost(ctx, 1))
	assert.Equal(t, "1 Likes", renderedPage(t, f.doc).Find("#like-count-1").Text())
}

func TestControllerLoadPostsStoresEndpointUnconditionally(t *testing.T) {
	f := newControllerFixture(t, &fakeAPI{}, ControllerOptions{})
	ctx := context.Background()
	require.NoError(t, f.store.Set(ctx, endpointKey, "http://old/api"))

	require.NoError(t, f.controller.LoadPosts(ctx))

	value, ok, err := f.store.Get(ctx, endpointKey)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "", value)
}

func TestControllerLoadFailureKeepsView(t *testing.T) {
	api := &fakeAPI{posts: []Post{{ID: 1, Title: "A", Content: "B"}}}
	f := newControllerFixture(t, api, ControllerOptions{})
	ctx := context.Background()
	require.NoError(t, f.controller.LoadPosts(ctx))

	api.listErr = errors.New("connection refused")
	err := f.controller.LoadPosts(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")

	assert.Equal(t, 1, renderedPage(t, f.doc).Find("#post-container .post").Length())
}

func TestControllerAddPostRefreshesOnce(t *testing.T) {
	api := &fakeAPI{posts: []Post{{ID: 1, Title: "A", Content: "B"}}}
	f := newControllerFixture(t, api, ControllerOptions{})
	ctx := context.Background()
	require.NoError(t, f.doc.SetValue(titleFieldID, "New"))
	require.NoError(t, f.doc.SetValue(contentFieldID, "Body"))

	require.NoError(t, f.controller.AddPost(ctx))

	assert.Equal(t, 1, api.lists())
	posts := renderedPage(t, f.doc).Find("#post-container .post")
	require.Equal(t, 2, posts.Length())
	assert.Equal(t, "New", posts.Last().Find("h2").Text())
	assert.Equal(t, "Body", posts.Last().Find("p").Text())
}

func TestControllerAddPostFailureDoesNotRefresh(t *testing.T) {
	api := &fakeAPI{createErr: errors.New("boom")}
	f := newControllerFixture(t, api, ControllerOptions{})

	require.Error(t, f.controller.AddPost(context.Background()))
	assert.Equal(t, 0, api.lists())
}

func TestControllerDeletePost(t *testing.T) {
	t.Run("success refreshes without the post", func(t *testing.T) {
		api := &fakeAPI{posts: []Post{{ID: 1, Title: "A", Content: "B"}, {ID: 2, Title: "C", Content: "D"}}}
		f := newControllerFixture(t, api, ControllerOptions{})
		ctx := context.Background()
		require.NoError(t, f.controller.LoadPosts(ctx))

		require.NoError(t, f.controller.DeletePost(ctx, 1))

		assert.Equal(t, 2, api.lists())
		page := renderedPage(t, f.doc)
		assert.Equal(t, 1, page.Find("#post-container .post").Length())
		assert.Equal(t, 0, page.Find("#like-count-1").Length())
	})

	t.Run("failure keeps the list", func(t *testing.T) {
		api := &fakeAPI{posts: []Post{{ID: 1, Title: "A", Content: "B"}}}
		f := newControllerFixture(t, api, ControllerOptions{})
		ctx := context.Background()
		require.NoError(t, f.controller.LoadPosts(ctx))

		api.deleteErr = &APIError{StatusCode: http.StatusInternalServerError, Status: "500 Internal Server Error"}
		require.Error(t, f.controller.DeletePost(ctx, 1))

		assert.Equal(t, 1, api.lists())
		assert.Equal(t, 1, renderedPage(t, f.doc).Find("#like-count-1").Length())
	})

	t.Run("already deleted post still refreshes", func(t *testing.T) {
		api := &fakeAPI{posts: []Post{{ID: 1, Title: "A", Content: "B"}}}
		f := newControllerFixture(t, api, ControllerOptions{})

		require.NoError(t, f.controller.DeletePost(context.Background(), 99))
		assert.Equal(t, 1, api.lists())
	})
}

func TestControllerDeleteKeepsOrphanCounterByDefault(t *testing.T) {
	api := &fakeAPI{posts: []Post{{ID: 1, Title: "A", Content: "B"}}}
	f := newControllerFixture(t, api, ControllerOptions{})
	ctx := context.Background()
	require.NoError(t, f.store.Set(ctx, "likes_1", "4"))

	require.NoError(t, f.controller.DeletePost(ctx, 1))

	_, ok, err := f.store.Get(ctx, "likes_1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestControllerPurgeOnDelete(t *testing.T) {
	api := &fakeAPI{posts: []Post{{ID: 1, Title: "A", Content: "B"}}}
	f := newControllerFixture(t, api, ControllerOptions{PurgeOnDelete: true})
	ctx := context.Background()
	require.NoError(t, f.store.Set(ctx, "likes_1", "4"))

	require.NoError(t, f.controller.DeletePost(ctx, 1))

	_, ok, err := f.store.Get(ctx, "likes_1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestControllerPruneLikes(t *testing.T) {
	api := &fakeAPI{posts: []Post{{ID: 1, Title: "A", Content: "B"}, {ID: 2, Title: "C", Content: "D"}}}
	f := newControllerFixture(t, api, ControllerOptions{})
	ctx := context.Background()

	_, err := f.controller.PruneLikes(ctx)
	require.Error(t, err, "no endpoint stored yet")

	require.NoError(t, f.store.Set(ctx, endpointKey, "http://h/api"))
	for _, key := range []string{"likes_1", "likes_2", "likes_9", "likes_12"} {
		require.NoError(t, f.store.Set(ctx, key, "1"))
	}

	pruned, err := f.controller.PruneLikes(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{9, 12}, pruned)

	counters, err := f.controller.Likes().All(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[int64]int{1: 1, 2: 1}, counters)
}

func TestControllerRendersTextVerbatim(t *testing.T) {
	api := &fakeAPI{posts: []Post{{ID: 1, Title: "<b>bold</b> & co", Content: "a < b"}}}
	f := newControllerFixture(t, api, ControllerOptions{})

	require.NoError(t, f.controller.LoadPosts(context.Background()))

	post := renderedPage(t, f.doc).Find("#post-container .post")
	assert.Equal(t, "<b>bold</b> & co", post.Find("h2").Text())
	assert.Equal(t, "a < b", post.Find("p").Text())
	assert.Equal(t, 0, post.Find("b").Length())
}

func TestControllerExpandsEmoji(t *testing.T) {
	api := &fakeAPI{posts: []Post{{ID: 1, Title: "hi :smile:", Content: "plain"}}}
	f := newControllerFixture(t, api, ControllerOptions{ExpandEmoji: true})

	require.NoError(t, f.controller.LoadPosts(context.Background()))

	title := renderedPage(t, f.doc).Find("#post-container .post h2").Text()
	assert.NotContains(t, title, ":smile:")
	assert.Contains(t, title, "hi ")
}

func TestControllerSearchPosts(t *testing.T) {
	api := &fakeAPI{posts: []Post{{ID: 1, Title: "Alpha", Content: "x"}, {ID: 2, Title: "Beta", Content: "y"}}}
	f := newControllerFixture(t, api, ControllerOptions{})

	require.NoError(t, f.controller.SearchPosts(context.Background(), "Al", ""))

	posts := renderedPage(t, f.doc).Find("#post-container .post")
	require.Equal(t, 1, posts.Length())
	assert.Equal(t, "Alpha", posts.Find("h2").Text())
	assert.Equal(t, []Post{{ID: 1, Title: "Alpha", Content: "x"}}, f.controller.Listed())
}

func TestControllerUpdatePost(t *testing.T) {
	api := &fakeAPI{posts: []Post{{ID: 1, Title: "A", Content: "B"}}}
	f := newControllerFixture(t, api, ControllerOptions{})
	ctx := context.Background()
	require.NoError(t, f.doc.SetValue(titleFieldID, "A2"))
	require.NoError(t, f.doc.SetValue(contentFieldID, "B2"))

	require.NoError(t, f.controller.UpdatePost(ctx, 1))
	assert.Equal(t, "A2", renderedPage(t, f.doc).Find("#post-container .post h2").Text())

	assert.True(t, IsNotFound(f.controller.UpdatePost(ctx, 5)))
}
