package tokenstore

import (
	"context"
	"sync"

	apperrors "github.com/felixgeelhaar/apporte/internal/errors"
	"github.com/felixgeelhaar/apporte/internal/log"
)

// Store is the single source of truth for the current bearer token.
//
// The in-memory value is authoritative; durable storage is a mirror that
// lets the next process pick up where this one stopped. A Store is safe
// for concurrent use.
type Store struct {
	mu      sync.RWMutex
	token   string
	storage Storage
	logger  *log.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for hydration and persistence warnings.
func WithLogger(logger *log.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// New creates a Store and hydrates it from storage. A nil storage keeps the
// token in memory only. Hydration never fails: an unreadable backend is
// logged and the store starts empty.
func New(ctx context.Context, storage Storage, opts ...Option) *Store {
	s := &Store{storage: storage}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = log.DefaultLogger()
	}

	if storage == nil {
		return s
	}

	token, ok, err := storage.Load(ctx, Key)
	if err != nil {
		s.logger.WithError(apperrors.Wrap(apperrors.ErrCodeStoreRead, "failed to hydrate token", err)).
			Warn("starting without a stored session", "storage", storage.Name())
		return s
	}
	if ok {
		s.token = token
		s.logger.Debug("token hydrated", "storage", storage.Name(), "token_fp", Fingerprint(token))
	}

	return s
}

// Token returns the current token, or "" when none is held.
func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// Set replaces the token and writes it to durable storage. An empty token
// clears the store. The in-memory value is updated even when persistence
// fails; the returned error reports the persistence failure.
func (s *Store) Set(ctx context.Context, token string) error {
	if token == "" {
		return s.Clear(ctx)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.token = token
	if s.storage == nil {
		return nil
	}

	if err := s.storage.Save(ctx, Key, token); err != nil {
		return apperrors.NewStoreWriteError(s.storage.Name(), err)
	}
	s.logger.Debug("token stored", "storage", s.storage.Name(), "token_fp", Fingerprint(token))
	return nil
}

// Clear drops the token from memory and durable storage.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	had := s.token != ""
	s.token = ""
	if s.storage == nil {
		return nil
	}

	if err := s.storage.Remove(ctx, Key); err != nil {
		return apperrors.NewStoreWriteError(s.storage.Name(), err)
	}
	if had {
		s.logger.Debug("token cleared", "storage", s.storage.Name())
	}
	return nil
}

// StorageName reports the durable backend, or "none".
func (s *Store) StorageName() string {
	if s.storage == nil {
		return "none"
	}
	return s.storage.Name()
}
