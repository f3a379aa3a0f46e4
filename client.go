package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"io/ioutil"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/net/html/charset"
)

const postsPath = "/posts"

type ListOptions struct {
	Sort      string
	Direction string
}

func (o ListOptions) query() url.Values {
	q := url.Values{}
	if o.Sort != "" {
		q.Set("sort", o.Sort)
	}
	if o.Direction != "" {
		q.Set("direction", o.Direction)
	}
	return q
}

// APIError is returned for any response outside the 2xx range.
type APIError struct {
	Method     string
	URL        string
	StatusCode int
	Status     string
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s %s: unexpected status %s: %s", e.Method, e.URL, e.Status, e.Message)
	}
	return fmt.Sprintf("%s %s: unexpected status %s", e.Method, e.URL, e.Status)
}

// IsNotFound reports whether err carries a 404 from the posts API.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

type PostsClient struct {
	client *http.Client
}

func NewPostsClient(timeout time.Duration) *PostsClient {
	return &PostsClient{
		client: &http.Client{Timeout: timeout},
	}
}

func (c *PostsClient) List(ctx context.Context, baseURL string, opts ListOptions) ([]Post, error) {
	var posts []Post
	err := c.do(ctx, http.MethodGet, collectionURL(baseURL, "", opts.query()), nil, &posts)
	if err != nil {
		return nil, err
	}
	return posts, nil
}

func (c *PostsClient) Search(ctx context.Context, baseURL, title, content string) ([]Post, error) {
	q := url.Values{}
	if title != "" {
		q.Set("title", title)
	}
	if content != "" {
		q.Set("content", content)
	}

	var posts []Post
	err := c.do(ctx, http.MethodGet, collectionURL(baseURL, "/search", q), nil, &posts)
	if err != nil {
		return nil, err
	}
	return posts, nil
}

func (c *PostsClient) Create(ctx context.Context, baseURL string, draft PostDraft) (Post, error) {
	var post Post
	err := c.do(ctx, http.MethodPost, collectionURL(baseURL, "", nil), draft, &post)
	return post, err
}

func (c *PostsClient) Update(ctx context.Context, baseURL string, postID int64, draft PostDraft) (Post, error) {
	var post Post
	err := c.do(ctx, http.MethodPut, itemURL(baseURL, postID), draft, &post)
	return post, err
}

// Delete ignores the response body.
func (c *PostsClient) Delete(ctx context.Context, baseURL string, postID int64) error {
	return c.do(ctx, http.MethodDelete, itemURL(baseURL, postID), nil, nil)
}

func (c *PostsClient) do(ctx context.Context, method, target string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return errors.Wrapf(err, "can't encode the body for %s %s", method, target)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return errors.Wrapf(err, "can't create an http request for %s %s", method, target)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Cache-Control", "no-cache")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	r, err := c.client.Do(req)
	if err != nil {
		return errors.Wrapf(err, "can't reach %s", target)
	}
	defer func() { _ = r.Body.Close() }()

	reader, err := bodyReader(r)
	if err != nil {
		return errors.Wrapf(err, "can't decode the charset of %s response", target)
	}

	if r.StatusCode < 200 || r.StatusCode > 299 {
		apiErr := &APIError{
			Method:     method,
			URL:        target,
			StatusCode: r.StatusCode,
			Status:     r.Status,
		}
		var payload struct {
			Error string `json:"error"`
		}
		if content, readErr := ioutil.ReadAll(reader); readErr == nil && json.Unmarshal(content, &payload) == nil {
			apiErr.Message = payload.Error
		}
		return apiErr
	}

	if out == nil {
		_, _ = io.Copy(ioutil.Discard, reader)
		return nil
	}
	if err := json.NewDecoder(reader).Decode(out); err != nil {
		return errors.Wrapf(err, "can't parse the body of %s response", target)
	}
	return nil
}

// bodyReader converts the body to UTF-8 when the response names another charset.
func bodyReader(r *http.Response) (io.Reader, error) {
	_, params, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || params["charset"] == "" {
		return r.Body, nil
	}
	e, name := charset.Lookup(params["charset"])
	if e == nil {
		return nil, errors.Errorf("unsupported charset %q", params["charset"])
	}
	if name == "utf-8" {
		return r.Body, nil
	}
	return e.NewDecoder().Reader(r.Body), nil
}

func collectionURL(baseURL, suffix string, q url.Values) string {
	result := baseURL + postsPath + suffix
	if len(q) > 0 {
		result += "?" + q.Encode()
	}
	return result
}

func itemURL(baseURL string, postID int64) string {
	return baseURL + postsPath + "/" + strconv.FormatInt(postID, 10)
}
