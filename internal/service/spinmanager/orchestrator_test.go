package spinmanager

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/lucky-wheel/internal/domain/entity"
	apperrors "github.com/yourusername/lucky-wheel/internal/pkg/errors"
	"github.com/yourusername/lucky-wheel/internal/service/wheel"
	"github.com/yourusername/lucky-wheel/internal/websocket"
)

type orchestratorFixture struct {
	cfg      *Config
	clock    *clockwork.FakeClock
	store    *memoryStore
	bc       *recordingBroadcaster
	gate     *MockGate
	recorder *MockRecorder
	records  chan SpinRecord
	o        *Orchestrator
}

func newFixture(t *testing.T, ids ...string) *orchestratorFixture {
	t.Helper()
	f := &orchestratorFixture{
		cfg:      testConfig(),
		clock:    clockwork.NewFakeClock(),
		store:    newMemoryStore(ids...),
		bc:       &recordingBroadcaster{},
		gate:     new(MockGate),
		recorder: new(MockRecorder),
		records:  make(chan SpinRecord, 8),
	}
	f.gate.On("IsCheckinLocked", mock.Anything).Return(true, nil).Maybe()
	f.recorder.On("RecordSpin", mock.Anything, mock.Anything).Return(nil).Maybe().
		Run(func(args mock.Arguments) {
			select {
			case f.records <- args.Get(1).(SpinRecord):
			default:
			}
		})
	f.recorder.On("StartNewCycle", mock.Anything).Return(nil).Maybe()

	f.o = NewOrchestrator(f.cfg, &Dependencies{
		Store:       f.store,
		Broadcaster: f.bc,
		Gate:        f.gate,
		Recorder:    f.recorder,
		Clock:       f.clock,
		Rand:        rand.New(rand.NewSource(42)),
	})
	t.Cleanup(f.o.Close)
	return f
}

func (f *orchestratorFixture) runToIdle(t *testing.T) *SpinPayload {
	t.Helper()
	payload, err := f.o.RequestSpin(context.Background())
	require.NoError(t, err)
	finishCountdown(t, f.clock, f.cfg)
	waitForState(t, f.o, StateSpinning)
	finishAnimation(t, f.clock, f.cfg, func() bool {
		st := f.o.Status().State
		return st == StateIdle || st == StateComplete
	})
	return payload
}

func TestRequestSpin_RotationLandsOnSelectedWinner(t *testing.T) {
	f := newFixture(t, "a", "b", "c", "d", "e")

	payload, err := f.o.RequestSpin(context.Background())
	require.NoError(t, err)

	list, _ := f.store.List(context.Background())
	segments := wheel.Segments(list)
	require.Equal(t, len(segments), payload.SegmentCount)

	landed := wheel.SegmentUnderPointer(payload.Rotation, payload.SegmentCount)
	assert.Equal(t, payload.WinnerIndex, landed)
	assert.Equal(t, payload.WinnerID, segments[landed].ID)

	assert.GreaterOrEqual(t, payload.FullTurns, float64(f.cfg.MinFullTurns))
	assert.Less(t, payload.FullTurns, float64(f.cfg.MaxFullTurns))
	assert.Equal(t, payload.FullTurns, float64(int(payload.FullTurns)))
	assert.Equal(t, entity.PrizeThird, payload.PrizeRank)
	assert.Equal(t, 1, payload.Round)
	assert.Equal(t, []string{websocket.COUNTDOWN_START}, f.bc.types())
}

func TestRequestSpin_WheelSpinningOnlyAfterCountdown(t *testing.T) {
	f := newFixture(t, "a", "b", "c")

	_, err := f.o.RequestSpin(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateCountdownPending, f.o.Status().State)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, f.clock.BlockUntilContext(ctx, 1))

	f.clock.Advance(f.cfg.CountdownDuration() - 1)
	assert.NotContains(t, f.bc.types(), websocket.WHEEL_SPINNING)
	assert.Equal(t, StateCountdownPending, f.o.Status().State)

	f.clock.Advance(1)
	waitForState(t, f.o, StateSpinning)
	assert.Equal(t, []string{websocket.COUNTDOWN_START, websocket.WHEEL_SPINNING}, f.bc.types())
}

func TestOrchestrator_FullGame(t *testing.T) {
	f := newFixture(t, "a", "b", "c", "d")

	for round := 1; round <= 3; round++ {
		payload := f.runToIdle(t)
		assert.Equal(t, round, payload.Round)
		assert.Equal(t, entity.PrizeForRound(round), payload.PrizeRank)
		assert.Equal(t, payload.WinnerID, f.store.winners()[payload.PrizeRank])
	}

	st := f.o.Status()
	assert.Equal(t, StateComplete, st.State)
	assert.True(t, st.GameComplete)
	require.NotNil(t, st.LastWinner)
	assert.Equal(t, entity.PrizeFirst, st.LastWinner.PrizeRank)

	winners := f.store.winners()
	assert.Len(t, winners, 3)
	assert.NotEqual(t, winners[1], winners[2])
	assert.NotEqual(t, winners[2], winners[3])
	assert.NotEqual(t, winners[1], winners[3])

	_, err := f.o.RequestSpin(context.Background())
	assert.ErrorIs(t, err, ErrGameComplete)

	require.NoError(t, f.o.ResetGame(context.Background()))
	st = f.o.Status()
	assert.Equal(t, StateIdle, st.State)
	assert.Equal(t, 1, st.Round)
	assert.Empty(t, f.store.winners())
	f.recorder.AssertCalled(t, "StartNewCycle", mock.Anything)

	payload := f.runToIdle(t)
	assert.Equal(t, entity.PrizeThird, payload.PrizeRank)
}

func TestRequestSpin_Preconditions(t *testing.T) {
	t.Run("check-in unlocked", func(t *testing.T) {
		store := newMemoryStore("a", "b")
		gate := new(MockGate)
		gate.On("IsCheckinLocked", mock.Anything).Return(false, nil)
		bc := &recordingBroadcaster{}
		o := NewOrchestrator(testConfig(), &Dependencies{Store: store, Broadcaster: bc, Gate: gate, Clock: clockwork.NewFakeClock()})
		defer o.Close()

		_, err := o.RequestSpin(context.Background())
		assert.ErrorIs(t, err, ErrCheckinUnlocked)
		assert.ErrorIs(t, err, apperrors.ErrConflict)
		assert.Equal(t, StateIdle, o.Status().State)
		assert.Empty(t, bc.types())
	})

	t.Run("not enough participants", func(t *testing.T) {
		f := newFixture(t, "a")
		_, err := f.o.RequestSpin(context.Background())
		assert.ErrorIs(t, err, ErrNotEnoughParticipants)
		assert.Equal(t, StateIdle, f.o.Status().State)
	})

	t.Run("spin in progress", func(t *testing.T) {
		f := newFixture(t, "a", "b")
		first, err := f.o.RequestSpin(context.Background())
		require.NoError(t, err)

		_, err = f.o.RequestSpin(context.Background())
		assert.ErrorIs(t, err, ErrSpinInProgress)
		assert.Equal(t, first.SpinID, f.o.Status().CurrentSpin.SpinID)
	})

	t.Run("gate failure", func(t *testing.T) {
		gate := new(MockGate)
		gate.On("IsCheckinLocked", mock.Anything).Return(false, errors.New("redis down"))
		o := NewOrchestrator(testConfig(), &Dependencies{Store: newMemoryStore("a", "b"), Gate: gate, Clock: clockwork.NewFakeClock()})
		defer o.Close()

		_, err := o.RequestSpin(context.Background())
		assert.Error(t, err)
		assert.Equal(t, StateIdle, o.Status().State)
	})
}

func TestOrchestrator_CommitFailureDoesNotAdvanceRound(t *testing.T) {
	f := newFixture(t, "a", "b", "c")
	f.store.setWinnerErr = errors.New("connection reset")

	payload := f.runToIdle(t)

	st := f.o.Status()
	assert.Equal(t, StateIdle, st.State)
	assert.Equal(t, 1, st.Round)
	assert.Equal(t, entity.PrizeThird, st.PrizeRank)
	assert.Contains(t, st.LastError, "connection reset")
	require.NotNil(t, st.PendingCommit)
	assert.Equal(t, payload.WinnerID, st.PendingCommit.WinnerID)
	assert.Contains(t, f.bc.types(), websocket.SPIN_FAILED)
	assert.NotContains(t, f.bc.types(), websocket.WINNER_ANNOUNCED)
	assert.Empty(t, f.store.winners())

	// manual retry
	p, err := f.o.CommitWinner(context.Background(), payload.WinnerID, payload.PrizeRank)
	require.NoError(t, err)
	assert.True(t, p.IsWinner())

	st = f.o.Status()
	assert.Equal(t, 2, st.Round)
	assert.Nil(t, st.PendingCommit)
	assert.Empty(t, st.LastError)

	data, ok := f.bc.last(websocket.WINNER_ANNOUNCED)
	require.True(t, ok)
	assert.Equal(t, payload.SpinID, data.(*WinnerAnnouncement).SpinID)
}

func TestOrchestrator_WinnerRemovedDuringSpinAborts(t *testing.T) {
	f := newFixture(t, "a", "b", "c")

	payload, err := f.o.RequestSpin(context.Background())
	require.NoError(t, err)
	f.store.remove(payload.WinnerID)

	finishCountdown(t, f.clock, f.cfg)
	waitForState(t, f.o, StateSpinning)
	finishAnimation(t, f.clock, f.cfg, func() bool { return f.o.Status().State == StateIdle })

	st := f.o.Status()
	assert.Equal(t, 1, st.Round)
	assert.Nil(t, st.PendingCommit)
	assert.Empty(t, f.store.winners())

	data, ok := f.bc.last(websocket.SPIN_ABORTED)
	require.True(t, ok)
	assert.Equal(t, payload.WinnerID, data.(SpinNotice).WinnerID)
	assert.NotContains(t, f.bc.types(), websocket.WINNER_ANNOUNCED)
}

func TestOrchestrator_ResetCancelsSpinInFlight(t *testing.T) {
	f := newFixture(t, "a", "b", "c")

	_, err := f.o.RequestSpin(context.Background())
	require.NoError(t, err)
	finishCountdown(t, f.clock, f.cfg)
	waitForState(t, f.o, StateSpinning)

	require.NoError(t, f.o.ResetGame(context.Background()))
	assert.Equal(t, StateIdle, f.o.Status().State)

	// The cancelled animation must never commit.
	f.clock.Advance(f.cfg.SpinDuration * 2)
	assert.Never(t, func() bool { return f.store.setWinnerCalls() > 0 }, 50*time.Millisecond, 5*time.Millisecond)
	assert.Contains(t, f.bc.types(), websocket.GAME_RESET)
	assert.NotContains(t, f.bc.types(), websocket.WINNER_ANNOUNCED)
}

func TestOrchestrator_ResetDuringCountdown(t *testing.T) {
	f := newFixture(t, "a", "b")

	_, err := f.o.RequestSpin(context.Background())
	require.NoError(t, err)
	require.NoError(t, f.o.ResetGame(context.Background()))

	f.clock.Advance(f.cfg.CountdownDuration())
	assert.Never(t, func() bool {
		for _, tp := range f.bc.types() {
			if tp == websocket.WHEEL_SPINNING {
				return true
			}
		}
		return false
	}, 50*time.Millisecond, 5*time.Millisecond)

	// A new spin is accepted immediately after reset.
	_, err = f.o.RequestSpin(context.Background())
	assert.NoError(t, err)
}

func TestOrchestrator_RecordsSpinAsynchronously(t *testing.T) {
	f := newFixture(t, "a", "b", "c")

	payload, err := f.o.RequestSpin(context.Background())
	require.NoError(t, err)

	select {
	case rec := <-f.records:
		assert.Equal(t, payload.WinnerID, rec.Winner.ID)
		assert.Equal(t, payload.WinnerIndex, rec.WinnerIndex)
		assert.Equal(t, payload.PrizeRank, rec.PrizeRank)
		assert.Equal(t, 3, rec.ActiveCount)
		assert.Equal(t, 3, rec.TotalCount)
		assert.Len(t, rec.ActiveNames, 3)
	case <-time.After(2 * time.Second):
		t.Fatal("spin was not recorded")
	}
}

func TestCommitWinner_Validation(t *testing.T) {
	f := newFixture(t, "a", "b")

	_, err := f.o.CommitWinner(context.Background(), "a", 4)
	assert.ErrorIs(t, err, ErrInvalidPrizeRank)
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	_, err = f.o.RequestSpin(context.Background())
	require.NoError(t, err)
	_, err = f.o.CommitWinner(context.Background(), "a", 3)
	assert.ErrorIs(t, err, ErrSpinInProgress)
}

func TestCommitWinner_RequiresPendingCommit(t *testing.T) {
	f := newFixture(t, "a", "b", "c", "d")

	_, err := f.o.CommitWinner(context.Background(), "b", entity.PrizeSecond)
	assert.ErrorIs(t, err, ErrNoPendingCommit)
	assert.ErrorIs(t, err, apperrors.ErrConflict)
	assert.Zero(t, f.store.setWinnerCalls())
	assert.Empty(t, f.store.winners())

	st := f.o.Status()
	assert.Equal(t, StateIdle, st.State)
	assert.Equal(t, 1, st.Round)
	assert.Equal(t, entity.PrizeThird, st.PrizeRank)

	payload, err := f.o.RequestSpin(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, payload.Round)
	assert.Equal(t, entity.PrizeThird, payload.PrizeRank)
}

func TestCommitWinner_RetryMustMatchPending(t *testing.T) {
	f := newFixture(t, "a", "b", "c", "d")
	f.store.setWinnerErr = errors.New("connection reset")

	payload := f.runToIdle(t)
	calls := f.store.setWinnerCalls()

	other := "a"
	if payload.WinnerID == other {
		other = "b"
	}
	_, err := f.o.CommitWinner(context.Background(), other, payload.PrizeRank)
	assert.ErrorIs(t, err, ErrPendingMismatch)
	_, err = f.o.CommitWinner(context.Background(), payload.WinnerID, entity.PrizeFirst)
	assert.ErrorIs(t, err, ErrPendingMismatch)
	assert.Equal(t, calls, f.store.setWinnerCalls())
	require.NotNil(t, f.o.Status().PendingCommit)

	_, err = f.o.CommitWinner(context.Background(), payload.WinnerID, payload.PrizeRank)
	require.NoError(t, err)

	st := f.o.Status()
	assert.Equal(t, 2, st.Round)
	assert.Equal(t, entity.PrizeSecond, st.PrizeRank)

	_, err = f.o.CommitWinner(context.Background(), payload.WinnerID, payload.PrizeRank)
	assert.ErrorIs(t, err, ErrNoPendingCommit)
}

func TestCommitWinner_RoundFollowsStoredWinners(t *testing.T) {
	f := newFixture(t, "a", "b", "c", "d")
	// a winner written outside this orchestrator, without Restore
	_, err := f.store.SetWinner(context.Background(), "a", entity.PrizeThird)
	require.NoError(t, err)

	payload := f.runToIdle(t)
	assert.Equal(t, 2, payload.Round)
	assert.Equal(t, entity.PrizeSecond, payload.PrizeRank)

	st := f.o.Status()
	assert.Equal(t, StateIdle, st.State)
	assert.Equal(t, 3, st.Round)
	assert.Equal(t, entity.PrizeFirst, st.PrizeRank)
}

func TestRestore_DerivesRoundAndCompletion(t *testing.T) {
	f := newFixture(t, "a", "b", "c")
	_, err := f.store.SetWinner(context.Background(), "a", entity.PrizeThird)
	require.NoError(t, err)

	require.NoError(t, f.o.Restore(context.Background()))
	st := f.o.Status()
	assert.Equal(t, StateIdle, st.State)
	assert.Equal(t, 2, st.Round)
	assert.Equal(t, entity.PrizeSecond, st.PrizeRank)

	_, err = f.store.SetWinner(context.Background(), "b", entity.PrizeFirst)
	require.NoError(t, err)
	require.NoError(t, f.o.Restore(context.Background()))
	assert.Equal(t, StateComplete, f.o.Status().State)
}
