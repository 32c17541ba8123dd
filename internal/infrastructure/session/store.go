// Package session keeps open facture editors in memory between HTTP requests.
package session

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"facturation/internal/core/apperror"
	"facturation/internal/core/id"
	"facturation/internal/domain/documents/facture"
	"facturation/pkg/logger"
)

// Session is one open editor.
type Session struct {
	ID        string
	Editor    *facture.Editor
	CreatedAt time.Time
}

// Store holds sessions with a sliding TTL: every Get extends the session.
type Store struct {
	items *gocache.Cache
	log   *logger.Logger
}

// NewStore creates a store whose idle sessions expire after ttl.
func NewStore(ttl time.Duration, log *logger.Logger) *Store {
	if log == nil {
		log = logger.Nop()
	}
	s := &Store{
		items: gocache.New(ttl, ttl/2),
		log:   log.WithComponent("session.store"),
	}
	s.items.OnEvicted(func(key string, v any) {
		sess := v.(*Session)
		s.log.Infow("editor session closed",
			"session_id", key,
			"unsaved_changes", sess.Editor.Dirty(),
			"age", time.Since(sess.CreatedAt).String(),
		)
	})
	return s
}

// Create registers editor under a fresh session id.
func (s *Store) Create(ctx context.Context, editor *facture.Editor) *Session {
	sess := &Session{
		ID:        id.New().String(),
		Editor:    editor,
		CreatedAt: time.Now(),
	}
	s.items.SetDefault(sess.ID, sess)
	logger.Debug(ctx, "editor session opened", "session_id", sess.ID, "facture_id", editor.ID().String())
	return sess
}

// Get returns the session and extends its lifetime.
func (s *Store) Get(sessionID string) (*Session, error) {
	v, found := s.items.Get(sessionID)
	if !found {
		return nil, apperror.NewSessionExpired(sessionID)
	}
	sess := v.(*Session)
	s.items.SetDefault(sessionID, sess)
	return sess, nil
}

// Delete discards the session.
func (s *Store) Delete(sessionID string) error {
	if _, found := s.items.Get(sessionID); !found {
		return apperror.NewSessionExpired(sessionID)
	}
	s.items.Delete(sessionID)
	return nil
}

// Count returns the number of open sessions, expired ones included until the next sweep.
func (s *Store) Count() int {
	return s.items.ItemCount()
}
