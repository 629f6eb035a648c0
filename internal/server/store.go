package server

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/jonathan/syllabus-analyzer/internal/observability"
	"github.com/jonathan/syllabus-analyzer/internal/session"
)

const (
	defaultSessionIdleTTL = 30 * time.Minute
	defaultSessionSweep   = time.Minute
)

type storedSession struct {
	sess       *session.Session
	lastAccess time.Time
}

// sessionStore keeps sessions in memory. Sessions idle for longer than
// idleTTL are evicted by a periodic sweep, except while an analysis runs.
type sessionStore struct {
	runner  session.Runner
	cfg     session.Config
	logger  *zap.Logger
	idleTTL time.Duration
	now     func() time.Time

	mu       sync.Mutex
	sessions map[string]*storedSession

	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

func newSessionStore(runner session.Runner, cfg session.Config, idleTTL time.Duration, logger *zap.Logger) *sessionStore {
	if idleTTL <= 0 {
		idleTTL = defaultSessionIdleTTL
	}
	return &sessionStore{
		runner:   runner,
		cfg:      cfg,
		logger:   logger,
		idleTTL:  idleTTL,
		now:      time.Now,
		sessions: make(map[string]*storedSession),
	}
}

func (st *sessionStore) create() *session.Session {
	sess := session.New(st.runner, st.cfg, st.logger)

	st.mu.Lock()
	st.sessions[sess.ID()] = &storedSession{sess: sess, lastAccess: st.now()}
	n := len(st.sessions)
	st.mu.Unlock()

	observability.SessionsActive.Set(float64(n))
	return sess
}

// Lookup implements middleware.SessionLookup. A hit counts as activity.
func (st *sessionStore) Lookup(id string) (*session.Session, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	entry, ok := st.sessions[id]
	if !ok {
		return nil, false
	}
	entry.lastAccess = st.now()
	return entry.sess, true
}

func (st *sessionStore) count() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.sessions)
}

// evictIdle removes sessions not looked up within idleTTL and returns how
// many were removed. Sessions in PROCESSING are kept.
func (st *sessionStore) evictIdle() int {
	cutoff := st.now().Add(-st.idleTTL)

	st.mu.Lock()
	removed := 0
	for id, entry := range st.sessions {
		if !entry.lastAccess.Before(cutoff) {
			continue
		}
		if entry.sess.Snapshot().Step == session.StepProcessing {
			continue
		}
		delete(st.sessions, id)
		removed++
	}
	n := len(st.sessions)
	st.mu.Unlock()

	if removed > 0 {
		observability.SessionsActive.Set(float64(n))
		st.logger.Debug("evicted idle sessions", zap.Int("evicted", removed), zap.Int("remaining", n))
	}
	return removed
}

// startSweeper runs evictIdle every interval until stopSweeper is called.
func (st *sessionStore) startSweeper(interval time.Duration) {
	if interval <= 0 {
		interval = defaultSessionSweep
	}
	st.stop = make(chan struct{})
	st.done = make(chan struct{})

	go func() {
		defer close(st.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				st.evictIdle()
			case <-st.stop:
				return
			}
		}
	}()
}

func (st *sessionStore) stopSweeper() {
	if st.stop == nil {
		return
	}
	st.stopOnce.Do(func() {
		close(st.stop)
		<-st.done
	})
}
