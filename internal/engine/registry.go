package engine

import (
	"fmt"
	"sync"
)

// Registry holds all registered rulebooks, keyed by game-type tag.
type Registry struct {
	mu    sync.RWMutex
	books map[string]Rulebook
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{books: make(map[string]Rulebook)}
}

// Register adds a rulebook. Panics when a tag or alias collides with a
// different rulebook; aliases that normalize to one of the book's own keys
// collapse silently.
func (r *Registry) Register(book Rulebook) {
	r.mu.Lock()
	defer r.mu.Unlock()
	meta := book.Meta()
	seen := make(map[string]bool)
	for _, key := range append([]string{meta.ID}, meta.Aliases...) {
		id := ToID(key)
		if seen[id] {
			continue
		}
		seen[id] = true
		if _, exists := r.books[id]; exists {
			panic(fmt.Sprintf("game %q already registered", id))
		}
		r.books[id] = book
	}
}

// Get resolves a game tag or alias to its rulebook.
func (r *Registry) Get(name string) (Rulebook, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	book, ok := r.books[ToID(name)]
	return book, ok
}

// List returns metadata for all registered games, deduplicated by tag.
func (r *Registry) List() []Meta {
	r.mu.RLock()
	defer r.mu.RUnlock()
	seen := make(map[string]bool)
	metas := make([]Meta, 0, len(r.books))
	for _, book := range r.books {
		meta := book.Meta()
		if seen[meta.ID] {
			continue
		}
		seen[meta.ID] = true
		metas = append(metas, meta)
	}
	return metas
}
