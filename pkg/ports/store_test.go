package ports_test

import (
	"context"
	"sort"
	"sync"
	"testing"

	"github.com/aretw0/scenaria/pkg/domain"
	"github.com/aretw0/scenaria/pkg/ports"
)

// mockStore is a map-backed StateStore used to exercise the contract suite itself.
type mockStore struct {
	mu   sync.Mutex
	data map[string]*domain.SessionState
}

func newMockStore() *mockStore {
	return &mockStore{data: make(map[string]*domain.SessionState)}
}

func (m *mockStore) Save(ctx context.Context, sessionID string, state *domain.SessionState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[sessionID] = state.Clone()
	return nil
}

func (m *mockStore) Load(ctx context.Context, sessionID string) (*domain.SessionState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	state, ok := m.data[sessionID]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return state.Clone(), nil
}

func (m *mockStore) Delete(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, sessionID)
	return nil
}

func (m *mockStore) List(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.data))
	for id := range m.data {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func TestStateStore_Contract(t *testing.T) {
	ports.RunStateStoreContract(t, newMockStore())
}

func TestEvaluatorFunc(t *testing.T) {
	var got domain.EvaluationRequest
	ev := ports.EvaluatorFunc(func(ctx context.Context, req domain.EvaluationRequest) (domain.TurnVerdict, error) {
		got = req
		return domain.TurnVerdict{Signal: domain.SignalSuccess}, nil
	})

	v, err := ev.Evaluate(context.Background(), domain.EvaluationRequest{PhaseName: "welcome"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.Signal != domain.SignalSuccess || got.PhaseName != "welcome" {
		t.Errorf("EvaluatorFunc did not forward the call: %+v %+v", v, got)
	}
}
