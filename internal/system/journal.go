package system

import (
	"time"

	"go.uber.org/zap"

	coresys "github.com/talismans/server/internal/core/system"
)

// JournalStats exposes the effect journal's counters. *persist.Journal implements it.
type JournalStats interface {
	Dropped() uint64
	Written() uint64
	Failed() uint64
}

// JournalStatsSystem logs effect journal losses once per interval when they
// grow. Phase 2 (Persist).
type JournalStatsSystem struct {
	stats     JournalStats
	log       *zap.Logger
	tickCount int
	interval  int // check every N ticks

	lastDropped uint64
	lastFailed  uint64
}

func NewJournalStatsSystem(stats JournalStats, log *zap.Logger, intervalTicks int) *JournalStatsSystem {
	if intervalTicks <= 0 {
		intervalTicks = 1
	}
	return &JournalStatsSystem{stats: stats, log: log, interval: intervalTicks}
}

func (s *JournalStatsSystem) Phase() coresys.Phase { return coresys.PhasePersist }

func (s *JournalStatsSystem) Update(_ time.Duration) {
	s.tickCount++
	if s.tickCount < s.interval {
		return
	}
	s.tickCount = 0

	dropped, failed := s.stats.Dropped(), s.stats.Failed()
	if dropped == s.lastDropped && failed == s.lastFailed {
		return
	}
	s.log.Warn("effect journal 遺失紀錄",
		zap.Uint64("dropped", dropped-s.lastDropped),
		zap.Uint64("failed", failed-s.lastFailed),
		zap.Uint64("written", s.stats.Written()))
	s.lastDropped, s.lastFailed = dropped, failed
}
