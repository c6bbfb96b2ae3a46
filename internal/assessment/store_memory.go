package assessment

import (
	"context"
	"sort"
	"sync"
)

// memoryStore keeps everything in process. It backs tests and single-node
// deployments; the same mutex serializes attempt-number assignment and the
// submit compare-and-swap, which is what the SQL store does with
// transactions.
type memoryStore struct {
	mu       sync.RWMutex
	tests    map[string]Test
	attempts map[string]Attempt
	results  map[string]TestResult // keyed by attempt id
}

// NewInMemoryStore returns a store serving both ports.
func NewInMemoryStore() interface {
	TestStore
	AttemptStore
} {
	return &memoryStore{
		tests:    map[string]Test{},
		attempts: map[string]Attempt{},
		results:  map[string]TestResult{},
	}
}

func (m *memoryStore) PutTest(_ context.Context, t Test) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tests[t.ID] = t
	return nil
}

func (m *memoryStore) GetTest(_ context.Context, id string) (Test, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tests[id]
	if !ok {
		return Test{}, ErrTestNotFound
	}
	return t, nil
}

func (m *memoryStore) SetTestStatus(_ context.Context, id string, from, to TestStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tests[id]
	if !ok {
		return ErrTestNotFound
	}
	if t.Status != from {
		return ErrInvalidTransition
	}
	t.Status = to
	m.tests[id] = t
	return nil
}

func (m *memoryStore) ListTests(_ context.Context, limit, offset int) ([]Test, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Test, 0, len(m.tests))
	for _, t := range m.tests {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt > out[j].CreatedAt })
	return page(out, limit, offset), nil
}

func (m *memoryStore) CreateAttempt(_ context.Context, a Attempt, maxAttempts int) (Attempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, existing := range m.attempts {
		if existing.TestID == a.TestID && existing.UserID == a.UserID {
			n++
		}
	}
	if maxAttempts > 0 && n >= maxAttempts {
		return Attempt{}, ErrAttemptLimitReached
	}
	a.AttemptNumber = n + 1
	m.attempts[a.ID] = a.Clone()
	return a, nil
}

func (m *memoryStore) GetAttempt(_ context.Context, id string) (Attempt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.attempts[id]
	if !ok {
		return Attempt{}, ErrAttemptNotFound
	}
	return a.Clone(), nil
}

func (m *memoryStore) UpdateAttempt(_ context.Context, a Attempt) (Attempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.attempts[a.ID]
	if !ok {
		return Attempt{}, ErrAttemptNotFound
	}
	if stored.Version != a.Version {
		return Attempt{}, ErrVersionConflict
	}
	a.Version++
	m.attempts[a.ID] = a.Clone()
	return a, nil
}

func (m *memoryStore) MarkSubmitted(_ context.Context, id string, atUnix int64) (Attempt, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.attempts[id]
	if !ok {
		return Attempt{}, false, ErrAttemptNotFound
	}
	if !CanTransition(a.State, AttemptSubmitted) {
		return a.Clone(), false, nil
	}
	a.State = AttemptSubmitted
	a.SubmittedAt = atUnix
	a.Version++
	m.attempts[id] = a
	return a.Clone(), true, nil
}

func (m *memoryStore) MarkExpired(_ context.Context, id string, atUnix int64) (Attempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.attempts[id]
	if !ok {
		return Attempt{}, ErrAttemptNotFound
	}
	if a.State == AttemptExpired {
		return a.Clone(), nil
	}
	if err := a.Transition(AttemptExpired); err != nil {
		return a.Clone(), err
	}
	a.Version++
	m.attempts[id] = a
	return a.Clone(), nil
}

func (m *memoryStore) MarkGraded(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.attempts[id]
	if !ok {
		return ErrAttemptNotFound
	}
	if err := a.Transition(AttemptGraded); err != nil {
		return err
	}
	a.Version++
	m.attempts[id] = a
	return nil
}

func (m *memoryStore) ListAttempts(_ context.Context, opts AttemptListOpts) ([]Attempt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Attempt
	for _, a := range m.attempts {
		if opts.TestID != "" && a.TestID != opts.TestID {
			continue
		}
		if opts.UserID != "" && a.UserID != opts.UserID {
			continue
		}
		if opts.State != "" && string(a.State) != opts.State {
			continue
		}
		out = append(out, a.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt > out[j].StartedAt })
	return page(out, opts.Limit, opts.Offset), nil
}

func (m *memoryStore) CountAttempts(_ context.Context, testID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, a := range m.attempts {
		if a.TestID == testID {
			n++
		}
	}
	return n, nil
}

func (m *memoryStore) SaveResult(_ context.Context, r TestResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.results[r.AttemptID]; exists {
		return nil
	}
	m.results[r.AttemptID] = r
	return nil
}

func (m *memoryStore) GetResult(_ context.Context, attemptID string) (TestResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.results[attemptID]
	if !ok {
		return TestResult{}, ErrNotGraded
	}
	return r, nil
}

func (m *memoryStore) ListResults(_ context.Context, testID string) ([]TestResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []TestResult
	for _, r := range m.results {
		if r.TestID == testID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CompletedAt > out[j].CompletedAt })
	return out, nil
}

func (m *memoryStore) ListUserResults(_ context.Context, userID string) ([]TestResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []TestResult
	for _, r := range m.results {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CompletedAt > out[j].CompletedAt })
	return out, nil
}

func page[T any](in []T, limit, offset int) []T {
	if offset >= len(in) {
		return nil
	}
	in = in[offset:]
	if limit > 0 && limit < len(in) {
		in = in[:limit]
	}
	return in
}
