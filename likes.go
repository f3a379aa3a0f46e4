package main

import (
	"context"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

const (
	endpointKey     = "apiBaseUrl"
	likesKeyPrefix  = "likes_"
	likesTextSuffix = " Likes"
)

// LikeCounters maps post ids to the locally tracked like counts kept in a
// KVStore under "likes_<id>".
type LikeCounters struct {
	store KVStore
}

func NewLikeCounters(store KVStore) *LikeCounters {
	return &LikeCounters{store: store}
}

func likesKey(postID int64) string {
	return likesKeyPrefix + strconv.FormatInt(postID, 10)
}

// decodeLikes treats anything that is not a non-negative integer as zero.
func decodeLikes(value string) int {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func encodeLikes(n int) string {
	return strconv.Itoa(n)
}

func (l *LikeCounters) Get(ctx context.Context, postID int64) (int, error) {
	value, ok, err := l.store.Get(ctx, likesKey(postID))
	if err != nil {
		return 0, errors.Wrapf(err, "can't read likes for post %d", postID)
	}
	if !ok {
		return 0, nil
	}
	return decodeLikes(value), nil
}

func (l *LikeCounters) Set(ctx context.Context, postID int64, n int) error {
	if n < 0 {
		return errors.Errorf("negative like count %d for post %d", n, postID)
	}
	return errors.Wrapf(l.store.Set(ctx, likesKey(postID), encodeLikes(n)), "can't store likes for post %d", postID)
}

// Increment is a plain read-modify-write; callers serialize it if they need to.
func (l *LikeCounters) Increment(ctx context.Context, postID int64) (int, error) {
	n, err := l.Get(ctx, postID)
	if err != nil {
		return 0, err
	}
	n++
	if err := l.Set(ctx, postID, n); err != nil {
		return 0, err
	}
	return n, nil
}

func (l *LikeCounters) Delete(ctx context.Context, postID int64) error {
	return errors.Wrapf(l.store.Delete(ctx, likesKey(postID)), "can't delete likes for post %d", postID)
}

// All returns every stored counter. Keys with a malformed id are skipped.
func (l *LikeCounters) All(ctx context.Context) (map[int64]int, error) {
	keys, err := l.store.Keys(ctx, likesKeyPrefix)
	if err != nil {
		return nil, errors.Wrap(err, "can't list like counters")
	}

	result := make(map[int64]int, len(keys))
	for _, key := range keys {
		postID, err := strconv.ParseInt(strings.TrimPrefix(key, likesKeyPrefix), 10, 64)
		if err != nil {
			continue
		}
		value, ok, err := l.store.Get(ctx, key)
		if err != nil {
			return nil, errors.Wrapf(err, "can't read %s", key)
		}
		if ok {
			result[postID] = decodeLikes(value)
		}
	}
	return result, nil
}

// Prune deletes the counters of posts missing from live and returns their ids.
func (l *LikeCounters) Prune(ctx context.Context, live []Post) ([]int64, error) {
	counters, err := l.All(ctx)
	if err != nil {
		return nil, err
	}

	alive := make(map[int64]struct{}, len(live))
	for _, post := range live {
		alive[post.ID] = struct{}{}
	}

	var pruned []int64
	for postID := range counters {
		if _, ok := alive[postID]; ok {
			continue
		}
		if err := l.Delete(ctx, postID); err != nil {
			return pruned, err
		}
		pruned = append(pruned, postID)
	}
	sort.Slice(pruned, func(i, j int) bool { return pruned[i] < pruned[j] })
	return pruned, nil
}

func likesText(n int) string {
	return strconv.Itoa(n) + likesTextSuffix
}
