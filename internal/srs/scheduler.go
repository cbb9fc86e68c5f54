package srs

import (
	"math"
	"time"

	"github.com/litdeck/litdeck/internal/model"
)

type Grade string

const (
	GradeHard Grade = "hard"
	GradeGood Grade = "good"
	GradeEasy Grade = "easy"
)

func ParseGrade(value string) (Grade, bool) {
	switch Grade(value) {
	case GradeHard, GradeGood, GradeEasy:
		return Grade(value), true
	}
	return "", false
}

type Config struct {
	LearningStepsSeconds []int64
	EasyBonus            float64
	DaySeconds           int64
	InitialEaseFactor    float64
	MinEaseFactor        float64
	MaxEaseFactor        float64
	MaxIntervalDays      int64
}

func DefaultConfig() Config {
	const day = 24 * 60 * 60
	return Config{
		LearningStepsSeconds: []int64{day, 3 * day},
		EasyBonus:            1.3,
		DaySeconds:           day,
		InitialEaseFactor:    2.5,
		MinEaseFactor:        1.3,
		MaxEaseFactor:        3.0,
		MaxIntervalDays:      365,
	}
}

// Scheduler computes the next review state from the current one and a grade.
// It is a pure function of (state, grade, now); the clock is injected so
// results are deterministic in tests.
type Scheduler struct {
	cfg   Config
	clock func() time.Time
}

func NewScheduler(cfg Config, clock func() time.Time) *Scheduler {
	if cfg.DaySeconds <= 0 {
		cfg.DaySeconds = DefaultConfig().DaySeconds
	}
	if cfg.InitialEaseFactor <= 0 {
		cfg.InitialEaseFactor = DefaultConfig().InitialEaseFactor
	}
	if cfg.MinEaseFactor <= 0 {
		cfg.MinEaseFactor = DefaultConfig().MinEaseFactor
	}
	if cfg.MaxEaseFactor < cfg.MinEaseFactor {
		cfg.MaxEaseFactor = DefaultConfig().MaxEaseFactor
	}
	if len(cfg.LearningStepsSeconds) == 0 {
		cfg.LearningStepsSeconds = []int64{cfg.DaySeconds}
	}
	if cfg.EasyBonus <= 0 {
		cfg.EasyBonus = DefaultConfig().EasyBonus
	}
	if cfg.MaxIntervalDays <= 0 {
		cfg.MaxIntervalDays = DefaultConfig().MaxIntervalDays
	}
	if clock == nil {
		clock = time.Now
	}
	return &Scheduler{cfg: cfg, clock: clock}
}

func (s *Scheduler) InitialIntervalSeconds() int64 {
	return s.cfg.LearningStepsSeconds[0]
}

// InitialState is the state of a reviewable that has never been graded.
func (s *Scheduler) InitialState() model.ReviewState {
	now := s.clock().Unix()
	interval := s.InitialIntervalSeconds()
	return model.ReviewState{
		EaseFactor:      s.cfg.InitialEaseFactor,
		IntervalSeconds: interval,
		Repetitions:     0,
		NextReviewAt:    now + interval,
	}
}

// Schedule applies one grade. Out-of-range ease and interval inputs are
// clamped rather than rejected; a negative repetitions count is a programmer
// error on the caller's side.
func (s *Scheduler) Schedule(state model.ReviewState, grade Grade) model.ReviewState {
	now := s.clock().Unix()
	ease := state.EaseFactor
	if ease < s.cfg.MinEaseFactor {
		ease = s.cfg.InitialEaseFactor
	}
	interval := state.IntervalSeconds
	if interval <= 0 {
		interval = s.InitialIntervalSeconds()
	}

	if grade == GradeHard {
		reset := s.InitialIntervalSeconds()
		return model.ReviewState{
			EaseFactor:      s.nextEase(ease, 2),
			IntervalSeconds: reset,
			Repetitions:     0,
			NextReviewAt:    now + reset,
			LastReviewedAt:  now,
		}
	}

	quality := 4
	if grade == GradeEasy {
		quality = 5
	}
	ease = s.nextEase(ease, quality)
	repetitions := state.Repetitions + 1
	interval = s.nextInterval(interval, repetitions, ease, grade)
	return model.ReviewState{
		EaseFactor:      ease,
		IntervalSeconds: interval,
		Repetitions:     repetitions,
		NextReviewAt:    now + interval,
		LastReviewedAt:  now,
	}
}

func (s *Scheduler) nextInterval(current int64, repetitions int, ease float64, grade Grade) int64 {
	steps := s.cfg.LearningStepsSeconds
	if repetitions <= len(steps) {
		index := repetitions - 1
		if index < 0 {
			index = 0
		}
		if index > len(steps)-1 {
			index = len(steps) - 1
		}
		return steps[index]
	}
	days := float64(current) / float64(s.cfg.DaySeconds)
	if days < 1 {
		days = 1
	}
	bonus := 1.0
	if grade == GradeEasy {
		bonus = s.cfg.EasyBonus
	}
	next := int64(math.Round(days * ease * bonus))
	if next < 1 {
		next = 1
	}
	if next > s.cfg.MaxIntervalDays {
		next = s.cfg.MaxIntervalDays
	}
	return next * s.cfg.DaySeconds
}

// SM-2 ease update: ef' = ef + (0.1 - (5-q)*(0.08 + (5-q)*0.02)), clamped.
func (s *Scheduler) nextEase(current float64, quality int) float64 {
	q := float64(quality)
	updated := current + (0.1 - (5-q)*(0.08+(5-q)*0.02))
	if updated < s.cfg.MinEaseFactor {
		return s.cfg.MinEaseFactor
	}
	if updated > s.cfg.MaxEaseFactor {
		return s.cfg.MaxEaseFactor
	}
	return updated
}
