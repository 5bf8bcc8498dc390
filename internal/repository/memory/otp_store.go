package memory

import (
	"context"
	"sync"
	"time"

	"otp-auth-service/internal/bucketing"
	"otp-auth-service/internal/model"
	"otp-auth-service/internal/repository"
)

const lockStripes = 64

// OTPStore is the default single-instance store. Per-email exclusion comes
// from striped mutexes; mu only guards the map itself.
type OTPStore struct {
	stripes *bucketing.KeyStripes
	mu      sync.RWMutex
	records map[string]model.OTPRecord
}

func NewOTPStore() *OTPStore {
	return &OTPStore{
		stripes: bucketing.NewKeyStripes(lockStripes),
		records: make(map[string]model.OTPRecord),
	}
}

func (s *OTPStore) Put(_ context.Context, rec *model.OTPRecord) error {
	unlock := s.stripes.Lock(rec.Email)
	defer unlock()

	s.mu.Lock()
	s.records[rec.Email] = *rec
	s.mu.Unlock()
	return nil
}

func (s *OTPStore) Get(_ context.Context, email string) (*model.OTPRecord, error) {
	s.mu.RLock()
	rec, ok := s.records[email]
	s.mu.RUnlock()
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &rec, nil
}

func (s *OTPStore) Delete(_ context.Context, email string) error {
	unlock := s.stripes.Lock(email)
	defer unlock()

	s.mu.Lock()
	delete(s.records, email)
	s.mu.Unlock()
	return nil
}

func (s *OTPStore) Update(_ context.Context, email string, fn repository.UpdateFunc) error {
	unlock := s.stripes.Lock(email)
	defer unlock()

	s.mu.RLock()
	rec, ok := s.records[email]
	s.mu.RUnlock()
	if !ok {
		return repository.ErrNotFound
	}

	mutation, fnErr := fn(&rec)

	switch mutation {
	case repository.Save:
		s.mu.Lock()
		s.records[email] = rec
		s.mu.Unlock()
	case repository.Delete:
		s.mu.Lock()
		delete(s.records, email)
		s.mu.Unlock()
	}

	return fnErr
}

func (s *OTPStore) SweepExpired(ctx context.Context, now time.Time) (int, error) {
	s.mu.RLock()
	var candidates []string
	for email, rec := range s.records {
		if rec.Expired(now) {
			candidates = append(candidates, email)
		}
	}
	s.mu.RUnlock()

	removed := 0
	for _, email := range candidates {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		// Re-check under the key's stripe: a concurrent Put may have
		// replaced the record with a fresh one.
		if s.deleteIfExpired(email, now) {
			removed++
		}
	}
	return removed, nil
}

func (s *OTPStore) deleteIfExpired(email string, now time.Time) bool {
	unlock := s.stripes.Lock(email)
	defer unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[email]
	if !ok || !rec.Expired(now) {
		return false
	}
	delete(s.records, email)
	return true
}

// Len returns the number of stored records.
func (s *OTPStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
