// Package target holds the registry of demo targets.
//
// A Target is read-only input to the orchestrator: it is resolved once per
// request and never mutated. The registry is loaded from a file at startup.
package target

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"sync"
)

var (
	ErrNotFound      = errors.New("target not found")
	ErrInvalidTarget = errors.New("invalid target")
)

var slugPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{0,62}$`)

// Target is a registered external site that can be rendered as a demo.
type Target struct {
	Slug           string `json:"slug" yaml:"slug" toml:"slug"`
	Label          string `json:"label" yaml:"label" toml:"label"`
	BaseURL        string `json:"url" yaml:"url" toml:"url"`
	Embed          string `json:"embed" yaml:"embed" toml:"embed"`
	AllowEmbedding bool   `json:"allowEmbedding" yaml:"allowEmbedding" toml:"allowEmbedding"`
}

// Validate checks the slug and base address. The embed snippet is checked
// by the injector at use, since a bad snippet is reported per request.
func (t Target) Validate() error {
	if !slugPattern.MatchString(t.Slug) {
		return fmt.Errorf("%w: slug %q must match %s", ErrInvalidTarget, t.Slug, slugPattern)
	}
	u, err := url.Parse(t.BaseURL)
	if err != nil {
		return fmt.Errorf("%w: %s: url: %v", ErrInvalidTarget, t.Slug, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: %s: url %q must be an absolute http(s) address", ErrInvalidTarget, t.Slug, t.BaseURL)
	}
	if strings.TrimSpace(t.Embed) == "" {
		return fmt.Errorf("%w: %s: embed snippet is empty", ErrInvalidTarget, t.Slug)
	}
	return nil
}

// Origin returns scheme://host[:port] of the base address.
func (t Target) Origin() string {
	u, err := url.Parse(t.BaseURL)
	if err != nil {
		return ""
	}
	return u.Scheme + "://" + u.Host
}

// DisplayLabel returns the label, or the host when no label is set.
func (t Target) DisplayLabel() string {
	if t.Label != "" {
		return t.Label
	}
	if u, err := url.Parse(t.BaseURL); err == nil && u.Host != "" {
		return u.Host
	}
	return t.Slug
}

// Registry resolves slugs to targets.
type Registry interface {
	Lookup(slug string) (Target, error)
	List() []Target
}

// MemoryRegistry is an immutable-after-load slug index.
type MemoryRegistry struct {
	mu      sync.RWMutex
	targets map[string]Target
}

// NewMemoryRegistry validates and indexes targets. Duplicate slugs are rejected.
func NewMemoryRegistry(targets ...Target) (*MemoryRegistry, error) {
	r := &MemoryRegistry{targets: make(map[string]Target, len(targets))}
	for _, t := range targets {
		if err := t.Validate(); err != nil {
			return nil, err
		}
		if _, exists := r.targets[t.Slug]; exists {
			return nil, fmt.Errorf("%w: duplicate slug %q", ErrInvalidTarget, t.Slug)
		}
		r.targets[t.Slug] = t
	}
	return r, nil
}

// Lookup returns the target for slug or ErrNotFound.
func (r *MemoryRegistry) Lookup(slug string) (Target, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.targets[slug]
	if !ok {
		return Target{}, fmt.Errorf("%w: %q", ErrNotFound, slug)
	}
	return t, nil
}

// List returns all targets sorted by slug.
func (r *MemoryRegistry) List() []Target {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Target, 0, len(r.targets))
	for _, t := range r.targets {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Slug < out[j].Slug })
	return out
}
