package srs

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/litdeck/litdeck/internal/model"
)

func fixedClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}

func TestScheduleInvariantNextEqualsLastPlusInterval(t *testing.T) {
	now := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	s := NewScheduler(DefaultConfig(), fixedClock(now))

	state := s.InitialState()
	for _, grade := range []Grade{GradeGood, GradeEasy, GradeHard, GradeGood} {
		state = s.Schedule(state, grade)
		require.Equal(t, state.LastReviewedAt+state.IntervalSeconds, state.NextReviewAt)
		require.GreaterOrEqual(t, state.EaseFactor, 1.3)
		require.LessOrEqual(t, state.EaseFactor, 3.0)
	}
}

func TestScheduleHardResetsRepetitionsAndInterval(t *testing.T) {
	now := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	s := NewScheduler(DefaultConfig(), fixedClock(now))

	state := s.InitialState()
	for i := 0; i < 5; i++ {
		state = s.Schedule(state, GradeGood)
	}
	require.Equal(t, 5, state.Repetitions)

	state = s.Schedule(state, GradeHard)
	require.Equal(t, 0, state.Repetitions)
	require.Equal(t, s.InitialIntervalSeconds(), state.IntervalSeconds)
	require.Equal(t, now.Unix(), state.LastReviewedAt)
}

func TestScheduleEasyGrowsUntilMaxThenPlateaus(t *testing.T) {
	now := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	cfg := DefaultConfig()
	s := NewScheduler(cfg, fixedClock(now))

	maxInterval := cfg.MaxIntervalDays * cfg.DaySeconds
	state := s.InitialState()
	previous := int64(0)
	for i := 0; i < 40; i++ {
		state = s.Schedule(state, GradeEasy)
		if state.IntervalSeconds == maxInterval {
			next := s.Schedule(state, GradeEasy)
			require.Equal(t, maxInterval, next.IntervalSeconds)
			return
		}
		require.Greater(t, state.IntervalSeconds, previous)
		previous = state.IntervalSeconds
	}
	t.Fatalf("interval never reached the configured maximum, last=%d", state.IntervalSeconds)
}

func TestScheduleGoodKeepsEaseStable(t *testing.T) {
	now := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	s := NewScheduler(DefaultConfig(), fixedClock(now))

	state := s.InitialState()
	before := state.EaseFactor
	state = s.Schedule(state, GradeGood)
	require.InDelta(t, before, state.EaseFactor, 1e-9)
}

func TestScheduleEaseFlooredOnRepeatedHard(t *testing.T) {
	now := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	s := NewScheduler(DefaultConfig(), fixedClock(now))

	state := s.InitialState()
	for i := 0; i < 10; i++ {
		state = s.Schedule(state, GradeHard)
	}
	require.Equal(t, 1.3, state.EaseFactor)
}

func TestScheduleThreeGoodGradesAdvanceDueDate(t *testing.T) {
	at := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	s := NewScheduler(DefaultConfig(), func() time.Time { return at })

	state := s.InitialState()
	previousDue := int64(0)
	for i := 0; i < 3; i++ {
		state = s.Schedule(state, GradeGood)
		require.Greater(t, state.NextReviewAt, previousDue)
		previousDue = state.NextReviewAt
		at = at.Add(time.Duration(state.IntervalSeconds) * time.Second)
	}
	require.Equal(t, 3, state.Repetitions)
}

func TestScheduleClampsBrokenInputs(t *testing.T) {
	now := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	s := NewScheduler(DefaultConfig(), fixedClock(now))

	state := s.Schedule(model.ReviewState{EaseFactor: 0.5, IntervalSeconds: -10}, GradeGood)
	require.GreaterOrEqual(t, state.EaseFactor, 1.3)
	require.Greater(t, state.IntervalSeconds, int64(0))
}

func TestParseGrade(t *testing.T) {
	for _, valid := range []string{"hard", "good", "easy"} {
		grade, ok := ParseGrade(valid)
		require.True(t, ok)
		require.Equal(t, Grade(valid), grade)
	}
	_, ok := ParseGrade("again")
	require.False(t, ok)
}
