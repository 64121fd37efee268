// Package registry caches the projects owned by the current credential.
package registry

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/marcus/mb/internal/models"
	"github.com/marcus/mb/internal/session"
)

// Lister fetches the authoritative project list.
type Lister interface {
	ListProjects(ctx context.Context) ([]models.Project, error)
}

// Validity reports whether the session may call the API.
type Validity interface {
	Valid() bool
}

// Registry is a read-through cache of the project list. Every refresh
// replaces the whole list; nothing is patched incrementally.
type Registry struct {
	lister  Lister
	session Validity

	mu          sync.RWMutex
	projects    []models.Project
	refreshedAt time.Time
}

// New creates an empty Registry.
func New(lister Lister, sess Validity) *Registry {
	return &Registry{lister: lister, session: sess}
}

// Refresh reloads the list. With an invalid session the list is left
// untouched and session.ErrInvalidSession is returned. On a fetch error
// the previous list is kept.
func (r *Registry) Refresh(ctx context.Context) error {
	if !r.session.Valid() {
		return session.ErrInvalidSession
	}

	projects, err := r.lister.ListProjects(ctx)
	if err != nil {
		return fmt.Errorf("list projects: %w", err)
	}

	r.mu.Lock()
	r.projects = projects
	r.refreshedAt = time.Now()
	r.mu.Unlock()

	slog.Debug("registry: refreshed", "projects", len(projects))
	return nil
}

// Projects returns a copy of the cached list in server order.
func (r *Registry) Projects() []models.Project {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.Project, len(r.projects))
	copy(out, r.projects)
	return out
}

// Lookup finds a cached project by slug, falling back to id.
func (r *Registry) Lookup(slugOrID string) (models.Project, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.projects {
		if p.Slug == slugOrID {
			return p, true
		}
	}
	for _, p := range r.projects {
		if p.ID.String() == slugOrID {
			return p, true
		}
	}
	return models.Project{}, false
}

// RefreshedAt returns when the list was last replaced.
func (r *Registry) RefreshedAt() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.refreshedAt
}
