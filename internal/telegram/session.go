package telegram

import (
	"sync"
	"time"

	"github.com/alanyoungcy/depthbot/internal/domain"
)

type stage int

const (
	stageStart stage = iota
	stageAwaitSymbol
	stageAwaitDepth
)

func (s stage) String() string {
	switch s {
	case stageAwaitSymbol:
		return "await_symbol"
	case stageAwaitDepth:
		return "await_depth"
	default:
		return "start"
	}
}

type session struct {
	stage   stage
	symbol  domain.Symbol
	touched time.Time
}

// sessions keeps one dialogue per chat in memory. Idle sessions fall back to
// the start stage.
type sessions struct {
	idle time.Duration
	now  func() time.Time

	mu sync.Mutex
	m  map[int64]session
}

func newSessions(idle time.Duration) *sessions {
	return &sessions{idle: idle, now: time.Now, m: make(map[int64]session)}
}

func (s *sessions) get(chatID int64) session {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.m[chatID]
	if !ok {
		return session{stage: stageStart}
	}
	if s.idle > 0 && s.now().Sub(sess.touched) > s.idle {
		delete(s.m, chatID)
		return session{stage: stageStart}
	}
	return sess
}

func (s *sessions) set(chatID int64, st stage, symbol domain.Symbol) {
	s.mu.Lock()
	s.m[chatID] = session{stage: st, symbol: symbol, touched: s.now()}
	s.mu.Unlock()
}

func (s *sessions) reset(chatID int64) {
	s.mu.Lock()
	delete(s.m, chatID)
	s.mu.Unlock()
}

// prune drops idle sessions and returns how many were removed.
func (s *sessions) prune() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.idle <= 0 {
		return 0
	}
	now := s.now()
	removed := 0
	for id, sess := range s.m {
		if now.Sub(sess.touched) > s.idle {
			delete(s.m, id)
			removed++
		}
	}
	return removed
}
