package main

import (
	"io"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"github.com/pkg/errors"
	"golang.org/x/net/html"
)

const (
	endpointFieldID = "api-base-url"
	titleFieldID    = "post-title"
	contentFieldID  = "post-content"
	postContainerID = "post-container"
)

var ErrElementNotFound = errors.New("element not found")

// Document is the rendering surface the controller draws into.
type Document interface {
	Value(id string) string
	SetValue(id, value string) error
	SetText(id, text string) error
	SetHTML(id, markup string) error
	Render(w io.Writer) error
}

const pageTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Masterblog</title>
<link rel="alternate" type="application/rss+xml" title="Masterblog" href="/rss">
</head>
<body>
<div class="container">
<h1>Masterblog</h1>
<form class="endpoint-form" method="post" action="/endpoint">
<input type="text" id="api-base-url" name="api_base_url" placeholder="Enter API Base URL">
<button type="submit">Load Posts</button>
</form>
<form class="post-form" method="post" action="/posts">
<input type="text" id="post-title" name="title" placeholder="Post Title">
<textarea id="post-content" name="content" placeholder="Post Content"></textarea>
<button type="submit">Add Post</button>
</form>
<form class="search-form" method="get" action="/search">
<input type="text" name="title" placeholder="Title contains">
<input type="text" name="content" placeholder="Content contains">
<button type="submit">Search</button>
</form>
<div id="post-container"></div>
</div>
</body>
</html>
`

// HTMLDocument is a goquery-backed Document. It is safe for concurrent use.
type HTMLDocument struct {
	mu  sync.RWMutex
	doc *goquery.Document
}

func NewHTMLDocument() (*HTMLDocument, error) {
	return ParseHTMLDocument(strings.NewReader(pageTemplate))
}

func ParseHTMLDocument(r io.Reader) (*HTMLDocument, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, errors.Wrap(err, "can't parse page")
	}
	return &HTMLDocument{doc: doc}, nil
}

func (d *HTMLDocument) find(id string) (*goquery.Selection, error) {
	s := d.doc.Find("#" + id)
	if s.Length() == 0 {
		return nil, errors.Wrapf(ErrElementNotFound, "#%s", id)
	}
	return s.First(), nil
}

func (d *HTMLDocument) Value(id string) string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	s, err := d.find(id)
	if err != nil {
		return ""
	}
	if goquery.NodeName(s) == "textarea" {
		return s.Text()
	}
	return s.AttrOr("value", "")
}

func (d *HTMLDocument) SetValue(id, value string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	s, err := d.find(id)
	if err != nil {
		return err
	}
	if goquery.NodeName(s) == "textarea" {
		s.SetText(value)
	} else {
		s.SetAttr("value", value)
	}
	return nil
}

func (d *HTMLDocument) SetText(id, text string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	s, err := d.find(id)
	if err != nil {
		return err
	}
	s.SetText(text)
	return nil
}

func (d *HTMLDocument) SetHTML(id, markup string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	s, err := d.find(id)
	if err != nil {
		return err
	}
	s.SetHtml(markup)
	return nil
}

func (d *HTMLDocument) Render(w io.Writer) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	for _, n := range d.doc.Nodes {
		if err := html.Render(w, n); err != nil {
			return errors.Wrap(err, "can't render page")
		}
	}
	return nil
}
