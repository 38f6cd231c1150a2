// Package memstore is an in-process photoauth.UserStore for tests, demos and
// the load tool.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/photoshare/photoauth"
)

type Store struct {
	mu      sync.RWMutex
	byID    map[string]*photoauth.Identity
	byEmail map[string]string
	now     func() time.Time
}

var _ photoauth.UserStore = (*Store)(nil)

func New() *Store {
	return &Store{
		byID:    make(map[string]*photoauth.Identity),
		byEmail: make(map[string]string),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (s *Store) FindByEmail(_ context.Context, email string) (*photoauth.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byEmail[email]
	if !ok {
		return nil, photoauth.ErrAccountNotFound
	}
	return clone(s.byID[id]), nil
}

func (s *Store) FindByID(_ context.Context, id string) (*photoauth.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.byID[id]
	if !ok {
		return nil, photoauth.ErrAccountNotFound
	}
	return clone(u), nil
}

func (s *Store) Create(_ context.Context, identity *photoauth.Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byEmail[identity.Email]; ok {
		return photoauth.ErrAccountExists
	}
	s.byID[identity.ID] = clone(identity)
	s.byEmail[identity.Email] = identity.ID
	return nil
}

// CreateAssigningRole checks for an empty store and inserts under the same
// write lock.
func (s *Store) CreateAssigningRole(_ context.Context, identity *photoauth.Identity, first photoauth.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byEmail[identity.Email]; ok {
		return photoauth.ErrAccountExists
	}
	if len(s.byID) == 0 {
		identity.Role = first
	}
	s.byID[identity.ID] = clone(identity)
	s.byEmail[identity.Email] = identity.ID
	return nil
}

func (s *Store) CountUsers(context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID), nil
}

func (s *Store) List(context.Context) ([]photoauth.Identity, error) {
	s.mu.RLock()
	out := make([]photoauth.Identity, 0, len(s.byID))
	for _, u := range s.byID {
		out = append(out, *u)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].Email < out[j].Email
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Store) UpdateRefreshToken(_ context.Context, id, token string) error {
	return s.mutate(id, func(u *photoauth.Identity) { u.RefreshToken = token })
}

// SwapRefreshToken compares and sets under the write lock.
func (s *Store) SwapRefreshToken(_ context.Context, id, current, next string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.byID[id]
	if !ok || u.RefreshToken != current {
		return false, nil
	}
	u.RefreshToken = next
	u.UpdatedAt = s.now()
	return true, nil
}

func (s *Store) UpdateConfirmed(_ context.Context, email string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byEmail[email]
	if !ok {
		return false, photoauth.ErrAccountNotFound
	}
	u := s.byID[id]
	if u.Confirmed {
		return false, nil
	}
	u.Confirmed = true
	u.UpdatedAt = s.now()
	return true, nil
}

func (s *Store) UpdateRole(_ context.Context, id string, role photoauth.Role) (*photoauth.Identity, error) {
	var out *photoauth.Identity
	err := s.mutate(id, func(u *photoauth.Identity) {
		u.Role = role
		out = clone(u)
	})
	return out, err
}

func (s *Store) UpdateAvatar(_ context.Context, email, avatar string) (*photoauth.Identity, error) {
	s.mu.RLock()
	id, ok := s.byEmail[email]
	s.mu.RUnlock()
	if !ok {
		return nil, photoauth.ErrAccountNotFound
	}

	var out *photoauth.Identity
	err := s.mutate(id, func(u *photoauth.Identity) {
		u.Avatar = avatar
		out = clone(u)
	})
	return out, err
}

func (s *Store) UpdatePasswordHash(_ context.Context, id, hash string) error {
	return s.mutate(id, func(u *photoauth.Identity) { u.PasswordHash = hash })
}

func (s *Store) mutate(id string, fn func(*photoauth.Identity)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.byID[id]
	if !ok {
		return photoauth.ErrAccountNotFound
	}
	u.UpdatedAt = s.now()
	fn(u)
	return nil
}

func clone(u *photoauth.Identity) *photoauth.Identity {
	out := *u
	return &out
}
