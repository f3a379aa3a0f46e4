package main

import (
	"context"
	"io"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const (
	actionInitialize = "initialize"
	actionLoad       = "load"
	actionLike       = "like"
	actionAdd        = "add"
	actionDelete     = "delete"
	actionUpdate     = "update"
	actionSearch     = "search"
	actionSort       = "sort"
	actionPrune      = "prune"
)

// PostsAPI is the remote posts collection.
type PostsAPI interface {
	List(ctx context.Context, baseURL string, opts ListOptions) ([]Post, error)
	Search(ctx context.Context, baseURL, title, content string) ([]Post, error)
	Create(ctx context.Context, baseURL string, draft PostDraft) (Post, error)
	Update(ctx context.Context, baseURL string, postID int64, draft PostDraft) (Post, error)
	Delete(ctx context.Context, baseURL string, postID int64) error
}

type ControllerOptions struct {
	PurgeOnDelete bool
	ExpandEmoji   bool
}

// Controller keeps the document in sync with the posts API and the locally
// stored like counters. Every action re-reads its inputs from the document
// and the store.
type Controller struct {
	store    KVStore
	likes    *LikeCounters
	doc      Document
	api      PostsAPI
	renderer *PostRenderer
	logger   *zap.Logger
	metrics  *Metrics

	purgeOnDelete bool

	likeMu sync.Mutex

	listedMu sync.RWMutex
	listed   []Post
}

func NewController(store KVStore, doc Document, api PostsAPI, logger *zap.Logger, metrics *Metrics, opts ControllerOptions) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{
		store:         store,
		likes:         NewLikeCounters(store),
		doc:           doc,
		api:           api,
		renderer:      NewPostRenderer(opts.ExpandEmoji),
		logger:        logger,
		metrics:       metrics,
		purgeOnDelete: opts.PurgeOnDelete,
	}
}

func (c *Controller) finish(action string, err error) error {
	c.metrics.ObserveAction(action, err)
	if err != nil {
		c.logger.Error("action failed", zap.String("action", action), zap.Error(err))
	}
	return err
}

// Initialize restores the stored endpoint into the page and loads the posts.
// Without a stored endpoint the page stays empty.
func (c *Controller) Initialize(ctx context.Context) error {
	baseURL, ok, err := c.store.Get(ctx, endpointKey)
	if err != nil {
		return c.finish(actionInitialize, errors.Wrap(err, "can't read the stored endpoint"))
	}
	if !ok || baseURL == "" {
		c.logger.Debug("no stored endpoint")
		return c.finish(actionInitialize, nil)
	}
	if err := c.doc.SetValue(endpointFieldID, baseURL); err != nil {
		return c.finish(actionInitialize, err)
	}
	c.finish(actionInitialize, nil)
	return c.LoadPosts(ctx)
}

// LoadPosts stores the endpoint typed in the page, even if unchanged or
// empty, and redraws the post list from the API.
func (c *Controller) LoadPosts(ctx context.Context) error {
	return c.finish(actionLoad, c.load(ctx, ListOptions{}))
}

func (c *Controller) SortPosts(ctx context.Context, field, direction string) error {
	return c.finish(actionSort, c.load(ctx, ListOptions{Sort: field, Direction: direction}))
}

func (c *Controller) load(ctx context.Context, opts ListOptions) error {
	baseURL := c.doc.Value(endpointFieldID)
	if err := c.store.Set(ctx, endpointKey, baseURL); err != nil {
		c.logger.Warn("can't store the endpoint", zap.String("endpoint", baseURL), zap.Error(err))
	}

	posts, err := c.api.List(ctx, baseURL, opts)
	if err != nil {
		return errors.Wrap(err, "can't load posts")
	}
	return c.show(ctx, posts)
}

func (c *Controller) SearchPosts(ctx context.Context, title, content string) error {
	baseURL := c.doc.Value(endpointFieldID)
	posts, err := c.api.Search(ctx, baseURL, title, content)
	if err != nil {
		return c.finish(actionSearch, errors.Wrap(err, "can't search posts"))
	}
	return c.finish(actionSearch, c.show(ctx, posts))
}

func (c *Controller) show(ctx context.Context, posts []Post) error {
	views := make([]PostView, 0, len(posts))
	for _, post := range posts {
		likes, err := c.likes.Get(ctx, post.ID)
		if err != nil {
			return err
		}
		views = append(views, PostView{Post: post, Likes: likes})
	}

	if err := c.doc.SetHTML(postContainerID, c.renderer.Render(views)); err != nil {
		return err
	}

	c.listedMu.Lock()
	c.listed = append([]Post(nil), posts...)
	c.listedMu.Unlock()

	c.logger.Debug("posts rendered", zap.Int("count", len(posts)))
	return nil
}

// LikePost bumps the local counter of a post and updates its label in place.
func (c *Controller) LikePost(ctx context.Context, postID int64) error {
	c.likeMu.Lock()
	defer c.likeMu.Unlock()

	n, err := c.likes.Increment(ctx, postID)
	if err != nil {
		return c.finish(actionLike, err)
	}

	if err := c.doc.SetText(likeCountID(postID), likesText(n)); err != nil {
		return c.finish(actionLike, errors.Wrapf(err, "like count of post %d stored as %d but not shown", postID, n))
	}
	return c.finish(actionLike, nil)
}

func (c *Controller) draft() PostDraft {
	return PostDraft{
		Title:   c.doc.Value(titleFieldID),
		Content: c.doc.Value(contentFieldID),
	}
}

// AddPost creates a post from the form fields and reloads the list on success.
func (c *Controller) AddPost(ctx context.Context) error {
	baseURL := c.doc.Value(endpointFieldID)
	post, err := c.api.Create(ctx, baseURL, c.draft())
	if err != nil {
		return c.finish(actionAdd, errors.Wrap(err, "can't add post"))
	}
	c.logger.Info("post added", zap.Int64("id", post.ID), zap.String("title", post.Title))
	c.finish(actionAdd, nil)
	return c.LoadPosts(ctx)
}

func (c *Controller) UpdatePost(ctx context.Context, postID int64) error {
	baseURL := c.doc.Value(endpointFieldID)
	post, err := c.api.Update(ctx, baseURL, postID, c.draft())
	if err != nil {
		return c.finish(actionUpdate, errors.Wrapf(err, "can't update post %d", postID))
	}
	c.logger.Info("post updated", zap.Int64("id", post.ID))
	c.finish(actionUpdate, nil)
	return c.LoadPosts(ctx)
}

// DeletePost removes a post and reloads the list. A failed delete leaves the
// list as it is. A 404 means the post is already gone and counts as success.
func (c *Controller) DeletePost(ctx context.Context, postID int64) error {
	baseURL := c.doc.Value(endpointFieldID)
	err := c.api.Delete(ctx, baseURL, postID)
	switch {
	case IsNotFound(err):
		c.logger.Warn("post already deleted", zap.Int64("id", postID))
	case err != nil:
		return c.finish(actionDelete, errors.Wrapf(err, "can't delete post %d", postID))
	}

	if c.purgeOnDelete {
		if err := c.likes.Delete(ctx, postID); err != nil {
			c.logger.Warn("can't purge like counter", zap.Int64("id", postID), zap.Error(err))
		}
	}
	c.logger.Info("post deleted", zap.Int64("id", postID))
	c.finish(actionDelete, nil)
	return c.LoadPosts(ctx)
}

// PruneLikes drops the counters of posts that the stored endpoint no longer lists.
func (c *Controller) PruneLikes(ctx context.Context) ([]int64, error) {
	baseURL, ok, err := c.store.Get(ctx, endpointKey)
	if err != nil {
		return nil, c.finish(actionPrune, errors.Wrap(err, "can't read the stored endpoint"))
	}
	if !ok || baseURL == "" {
		return nil, c.finish(actionPrune, errors.New("no stored endpoint"))
	}

	posts, err := c.api.List(ctx, baseURL, ListOptions{})
	if err != nil {
		return nil, c.finish(actionPrune, errors.Wrap(err, "can't load posts"))
	}
	pruned, err := c.likes.Prune(ctx, posts)
	if len(pruned) > 0 {
		c.logger.Info("like counters pruned", zap.Int64s("ids", pruned))
	}
	return pruned, c.finish(actionPrune, err)
}

// Listed returns the posts of the last successful render.
func (c *Controller) Listed() []Post {
	c.listedMu.RLock()
	defer c.listedMu.RUnlock()
	return append([]Post(nil), c.listed...)
}

func (c *Controller) Likes() *LikeCounters {
	return c.likes
}

func (c *Controller) Render(w io.Writer) error {
	return c.doc.Render(w)
}
