package oauth

import (
	"sync"
	"time"

	"github.com/239fd/wmsProjectBackend-sub001/internal/apperrors"
	"github.com/239fd/wmsProjectBackend-sub001/internal/models"
)

// StateStore holds the anti-forgery state between the authorize redirect and
// the provider callback. Consume removes the record: a state validates once.
type StateStore interface {
	Save(state models.OAuthState)
	Consume(state string) (models.OAuthState, error)
}

// TempRegistrationStore holds pending registrations between the provider
// callback and complete-registration. Consume removes the record: a
// temporary token produces at most one session.
type TempRegistrationStore interface {
	Save(reg models.TempRegistration)
	Consume(token string) (models.TempRegistration, error)
}

// The in-memory stores are arenas of records indexed by id, guarded by a
// mutex. Records do not survive a restart; acceptable because everything
// here is single-use and lives a few minutes at most.

type memStateStore struct {
	mu     sync.Mutex
	states map[string]models.OAuthState
}

func NewMemStateStore() StateStore {
	return &memStateStore{states: map[string]models.OAuthState{}}
}

func (s *memStateStore) Save(state models.OAuthState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sweep(s.states, func(st models.OAuthState) time.Time { return st.ExpiresAt })
	s.states[state.State] = state
}

func (s *memStateStore) Consume(state string) (models.OAuthState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.states[state]
	if !ok || st.ExpiresAt.Before(time.Now()) {
		delete(s.states, state)
		return models.OAuthState{}, apperrors.ErrOAuthStateInvalid
	}
	delete(s.states, state)
	return st, nil
}

type memTempRegistrationStore struct {
	mu   sync.Mutex
	regs map[string]models.TempRegistration
}

func NewMemTempRegistrationStore() TempRegistrationStore {
	return &memTempRegistrationStore{regs: map[string]models.TempRegistration{}}
}

func (s *memTempRegistrationStore) Save(reg models.TempRegistration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sweep(s.regs, func(r models.TempRegistration) time.Time { return r.ExpiresAt })
	s.regs[reg.Token] = reg
}

func (s *memTempRegistrationStore) Consume(token string) (models.TempRegistration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	reg, ok := s.regs[token]
	if !ok || reg.ExpiresAt.Before(time.Now()) {
		delete(s.regs, token)
		return models.TempRegistration{}, apperrors.ErrTempTokenNotFound
	}
	delete(s.regs, token)
	return reg, nil
}

// Drop expired records so abandoned flows do not accumulate
func sweep[T any](m map[string]T, expiresAt func(T) time.Time) {
	now := time.Now()
	for k, v := range m {
		if expiresAt(v).Before(now) {
			delete(m, k)
		}
	}
}
