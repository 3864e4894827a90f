// Package adapter holds the per-platform publishing capability behind a
// single contract. The dispatcher looks adapters up in a Registry by
// platform name and treats every adapter error as data for that platform
// only.
package adapter

import (
	"context"
	"errors"
	"sort"
)

// Content is the platform-independent body of one publish attempt.
type Content struct {
	ContentType string
	Title       string
	Caption     string
	MediaURL    string
}

// Credentials is the decrypted credential payload for one platform account.
type Credentials map[string]string

func (c Credentials) Get(key string) string {
	if c == nil {
		return ""
	}
	return c[key]
}

type PublishResult struct {
	PostURL    string
	ExternalID string
}

type Adapter interface {
	Publish(ctx context.Context, content *Content, creds Credentials) (*PublishResult, error)
	TestCredentials(ctx context.Context, creds Credentials) error
}

// ErrUnsupportedContent is returned by adapters for content types the
// platform cannot carry (a YouTube text post, for example). The dispatcher
// records it like any other per-platform failure.
var ErrUnsupportedContent = errors.New("unsupported content type for this platform")

type Registry struct {
	adapters map[string]Adapter
}

func NewRegistry() *Registry {
	return &Registry{adapters: make(map[string]Adapter)}
}

func (r *Registry) Register(platform string, a Adapter) {
	if platform == "" || a == nil {
		return
	}
	r.adapters[platform] = a
}

func (r *Registry) Lookup(platform string) (Adapter, bool) {
	a, ok := r.adapters[platform]
	return a, ok
}

func (r *Registry) Platforms() []string {
	names := make([]string, 0, len(r.adapters))
	for name := range r.adapters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
