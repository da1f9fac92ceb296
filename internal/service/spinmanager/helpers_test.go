package spinmanager

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/lucky-wheel/internal/domain/entity"
	apperrors "github.com/yourusername/lucky-wheel/internal/pkg/errors"
)

// ============================================================================
// Fakes
// ============================================================================

// memoryStore is an in-memory ParticipantStore
type memoryStore struct {
	mu           sync.Mutex
	participants map[string]entity.Participant
	setWinnerErr error
	setCalls     int
}

func newMemoryStore(ids ...string) *memoryStore {
	s := &memoryStore{participants: make(map[string]entity.Participant)}
	for _, id := range ids {
		s.participants[id] = entity.Participant{ID: id, Name: "name-" + id, Status: entity.ParticipantStatusActive}
	}
	return s
}

func (s *memoryStore) List(ctx context.Context) ([]entity.Participant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := make([]entity.Participant, 0, len(s.participants))
	for _, p := range s.participants {
		list = append(list, p)
	}
	return list, nil
}

func (s *memoryStore) SetWinner(ctx context.Context, id string, prizeRank int) (*entity.Participant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setCalls++
	if s.setWinnerErr != nil {
		err := s.setWinnerErr
		s.setWinnerErr = nil
		return nil, err
	}
	p, ok := s.participants[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	if !p.IsActive() {
		return nil, fmt.Errorf("%w: not active", apperrors.ErrConflict)
	}
	rank := prizeRank
	p.Status = entity.ParticipantStatusWinner
	p.PrizeRank = &rank
	s.participants[id] = p
	return &p, nil
}

func (s *memoryStore) ResetAll(ctx context.Context) ([]entity.Participant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var changed []entity.Participant
	for id, p := range s.participants {
		if p.IsWinner() {
			p.Status = entity.ParticipantStatusActive
			p.PrizeRank = nil
			s.participants[id] = p
			changed = append(changed, p)
		}
	}
	return changed, nil
}

func (s *memoryStore) remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.participants, id)
}

func (s *memoryStore) winners() map[int]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[int]string)
	for _, p := range s.participants {
		if p.PrizeRank != nil {
			out[*p.PrizeRank] = p.ID
		}
	}
	return out
}

func (s *memoryStore) setWinnerCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setCalls
}

type sentEvent struct {
	Type string
	Data interface{}
}

// recordingBroadcaster keeps every event it is asked to send
type recordingBroadcaster struct {
	mu     sync.Mutex
	events []sentEvent
}

func (b *recordingBroadcaster) BroadcastEvent(eventType string, data interface{}) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, sentEvent{Type: eventType, Data: data})
	return nil
}

func (b *recordingBroadcaster) types() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.events))
	for i, e := range b.events {
		out[i] = e.Type
	}
	return out
}

func (b *recordingBroadcaster) last(eventType string) (interface{}, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := len(b.events) - 1; i >= 0; i-- {
		if b.events[i].Type == eventType {
			return b.events[i].Data, true
		}
	}
	return nil, false
}

// MockGate implements CheckinGate
type MockGate struct {
	mock.Mock
}

func (m *MockGate) IsCheckinLocked(ctx context.Context) (bool, error) {
	args := m.Called(ctx)
	return args.Bool(0), args.Error(1)
}

// MockRecorder implements SpinRecorder
type MockRecorder struct {
	mock.Mock
}

func (m *MockRecorder) RecordSpin(ctx context.Context, record SpinRecord) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

func (m *MockRecorder) StartNewCycle(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// ============================================================================
// Helpers
// ============================================================================

func testConfig() *Config {
	cfg := DefaultConfig()
	cfg.FrameInterval = 100 * time.Millisecond
	return cfg
}

func waitForState(t *testing.T, o *Orchestrator, want State) {
	t.Helper()
	require.Eventually(t, func() bool { return o.Status().State == want }, 2*time.Second, 2*time.Millisecond,
		"expected state %s, got %s", want, o.Status().State)
}

// finishCountdown advances past the countdown once the timer is armed
func finishCountdown(t *testing.T, fc *clockwork.FakeClock, cfg *Config) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, fc.BlockUntilContext(ctx, 1))
	fc.Advance(cfg.CountdownDuration())
}

// finishAnimation advances the clock until cond holds
func finishAnimation(t *testing.T, fc *clockwork.FakeClock, cfg *Config, cond func() bool) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, fc.BlockUntilContext(ctx, 1))
	require.Eventually(t, func() bool {
		fc.Advance(cfg.SpinDuration)
		return cond()
	}, 2*time.Second, 2*time.Millisecond)
}
