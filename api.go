package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/go-chi/chi"
	"go.uber.org/zap"
)

var (
	validSortFields = []string{"title", "content"}
	validDirections = []string{"asc", "desc"}
)

func defaultPosts() []Post {
	return []Post{
		{ID: 1, Title: "First post", Content: "This is the first post."},
		{ID: 2, Title: "Second post", Content: "This is the second post."},
	}
}

// PostRepository is the in-memory post collection served by the posts API.
type PostRepository struct {
	mu    sync.RWMutex
	posts []Post
}

func NewPostRepository(seed []Post) *PostRepository {
	return &PostRepository{posts: append([]Post(nil), seed...)}
}

func (r *PostRepository) List(sortField string, desc bool) []Post {
	r.mu.RLock()
	posts := make([]Post, len(r.posts))
	copy(posts, r.posts)
	r.mu.RUnlock()

	if sortField != "" {
		key := func(p Post) string {
			if sortField == "content" {
				return strings.ToLower(p.Content)
			}
			return strings.ToLower(p.Title)
		}
		sort.SliceStable(posts, func(i, j int) bool {
			if desc {
				return key(posts[i]) > key(posts[j])
			}
			return key(posts[i]) < key(posts[j])
		})
	}
	return posts
}

func (r *PostRepository) Search(title, content string) []Post {
	title, content = strings.ToLower(title), strings.ToLower(content)

	r.mu.RLock()
	defer r.mu.RUnlock()
	matches := make([]Post, 0)
	for _, p := range r.posts {
		if title != "" && !strings.Contains(strings.ToLower(p.Title), title) {
			continue
		}
		if content != "" && !strings.Contains(strings.ToLower(p.Content), content) {
			continue
		}
		matches = append(matches, p)
	}
	return matches
}

func (r *PostRepository) Add(draft PostDraft) Post {
	r.mu.Lock()
	defer r.mu.Unlock()

	var maxID int64
	for _, p := range r.posts {
		if p.ID > maxID {
			maxID = p.ID
		}
	}
	post := Post{ID: maxID + 1, Title: draft.Title, Content: draft.Content}
	r.posts = append(r.posts, post)
	return post
}

func (r *PostRepository) Update(id int64, title, content *string) (Post, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.posts {
		if r.posts[i].ID != id {
			continue
		}
		if title != nil {
			r.posts[i].Title = *title
		}
		if content != nil {
			r.posts[i].Content = *content
		}
		return r.posts[i], true
	}
	return Post{}, false
}

func (r *PostRepository) Delete(id int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, p := range r.posts {
		if p.ID == id {
			r.posts = append(r.posts[:i], r.posts[i+1:]...)
			return true
		}
	}
	return false
}

func RouterPostsAPI(repo *PostRepository, logger *zap.Logger) http.Handler {
	router := &routerPostsAPI{
		repo:   repo,
		logger: logger,
	}
	r := chi.NewRouter()
	r.Get("/", router.list)
	r.Post("/", router.create)
	r.Get("/search", router.search)
	r.Put("/{postID}", router.update)
	r.Delete("/{postID}", router.delete)
	return r
}

type routerPostsAPI struct {
	repo   *PostRepository
	logger *zap.Logger
}

type apiError struct {
	Error   string   `json:"error"`
	Missing []string `json:"missing,omitempty"`
}

type apiMessage struct {
	Message string `json:"message"`
}

func (rp *routerPostsAPI) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		rp.logger.Warn("can't write response", zap.Error(err))
	}
}

func (rp *routerPostsAPI) list(w http.ResponseWriter, r *http.Request) {
	sortField := r.URL.Query().Get("sort")
	direction := r.URL.Query().Get("direction")

	if sortField != "" && !contains(validSortFields, sortField) {
		rp.writeJSON(w, http.StatusBadRequest, apiError{
			Error: fmt.Sprintf("Invalid sort field. Must be one of %v", validSortFields),
		})
		return
	}
	if direction != "" && !contains(validDirections, direction) {
		rp.writeJSON(w, http.StatusBadRequest, apiError{
			Error: fmt.Sprintf("Invalid sort direction. Must be one of %v", validDirections),
		})
		return
	}

	rp.writeJSON(w, http.StatusOK, rp.repo.List(sortField, direction == "desc"))
}

func (rp *routerPostsAPI) search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	rp.writeJSON(w, http.StatusOK, rp.repo.Search(q.Get("title"), q.Get("content")))
}

type postFields struct {
	Title   *string `json:"title"`
	Content *string `json:"content"`
}

func (rp *routerPostsAPI) create(w http.ResponseWriter, r *http.Request) {
	var body postFields
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		rp.logger.Debug("can't decode post body", zap.Error(err))
	}

	var missing []string
	if body.Title == nil {
		missing = append(missing, "title")
	}
	if body.Content == nil {
		missing = append(missing, "content")
	}
	if len(missing) > 0 {
		rp.writeJSON(w, http.StatusBadRequest, apiError{
			Error:   "Missing required fields",
			Missing: missing,
		})
		return
	}

	post := rp.repo.Add(PostDraft{Title: *body.Title, Content: *body.Content})
	rp.writeJSON(w, http.StatusCreated, post)
}

func (rp *routerPostsAPI) update(w http.ResponseWriter, r *http.Request) {
	postID, ok := rp.postID(w, r)
	if !ok {
		return
	}

	var body postFields
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		rp.writeJSON(w, http.StatusBadRequest, apiError{Error: "Invalid body"})
		return
	}

	post, found := rp.repo.Update(postID, body.Title, body.Content)
	if !found {
		rp.writeJSON(w, http.StatusNotFound, apiError{
			Error: fmt.Sprintf("Post with id %d not found.", postID),
		})
		return
	}
	rp.writeJSON(w, http.StatusOK, post)
}

func (rp *routerPostsAPI) delete(w http.ResponseWriter, r *http.Request) {
	postID, ok := rp.postID(w, r)
	if !ok {
		return
	}

	if !rp.repo.Delete(postID) {
		rp.writeJSON(w, http.StatusNotFound, apiError{
			Error: fmt.Sprintf("Post with id %d not found.", postID),
		})
		return
	}
	rp.writeJSON(w, http.StatusOK, apiMessage{
		Message: fmt.Sprintf("Post with id %d has been deleted successfully.", postID),
	})
}

func (rp *routerPostsAPI) postID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	postID, err := strconv.ParseInt(chi.URLParam(r, "postID"), 10, 64)
	if err != nil {
		rp.writeJSON(w, http.StatusNotFound, apiError{Error: "Invalid post id"})
		return 0, false
	}
	return postID, true
}

func contains(values []string, value string) bool {
	for _, v := range values {
		if v == value {
			return true
		}
	}
	return false
}
