package registry

import (
	"iter"
	"sync"
	"sync/atomic"
	"time"

	"github.com/et1613/chitchatproject-sub001/internal/utils"
)

// Conn is the opaque send-capable handle the transport layer hands to the
// registry. The registry never parses frames; it only writes payloads and
// closes broken handles.
type Conn interface {
	Send(payload []byte) error
	Close() error
}

// Status describes a subject's live presence.
type Status struct {
	Online       bool      `json:"online"`
	SessionCount int       `json:"session_count"`
	LastSeen     time.Time `json:"last_seen,omitempty"`
}

// session is one live transport connection of a subject. A handle appears in
// at most one session; removal is idempotent.
type session struct {
	subjectID    string
	conn         Conn
	remoteAddr   string
	connectedAt  time.Time
	lastActivity time.Time
}

// Registry tracks which subjects currently hold live connections and fans
// payloads out to them. All methods are safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	bySubject map[string]map[Conn]*session
	byConn    map[Conn]*session

	sendTimeout time.Duration
	now         func() time.Time
}

func New(sendTimeout time.Duration) *Registry {
	return &Registry{
		bySubject:   make(map[string]map[Conn]*session),
		byConn:      make(map[Conn]*session),
		sendTimeout: sendTimeout,
		now:         time.Now,
	}
}

// AddSession registers a new live session. It returns false when the handle
// is already registered to any subject.
func (r *Registry) AddSession(subjectID string, conn Conn, remoteAddr string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.byConn[conn]; dup {
		return false
	}
	now := r.now()
	s := &session{
		subjectID:    subjectID,
		conn:         conn,
		remoteAddr:   remoteAddr,
		connectedAt:  now,
		lastActivity: now,
	}
	if r.bySubject[subjectID] == nil {
		r.bySubject[subjectID] = make(map[Conn]*session)
	}
	r.bySubject[subjectID][conn] = s
	r.byConn[conn] = s
	return true
}

// RemoveSession deregisters every session of the subject without closing the
// handles. No-op if the subject has none.
func (r *Registry) RemoveSession(subjectID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for conn := range r.bySubject[subjectID] {
		delete(r.byConn, conn)
	}
	delete(r.bySubject, subjectID)
}

// RemoveSessionByHandle deregisters a single session. No-op if absent.
func (r *Registry) RemoveSessionByHandle(conn Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removeConnNoLock(conn)
}

// Touch records transport activity for the session owning the handle.
func (r *Registry) Touch(conn Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.byConn[conn]; ok {
		s.lastActivity = r.now()
	}
}

// GetStatus reports presence for one subject. LastSeen is the most recent
// activity across the subject's sessions; zero when offline.
func (r *Registry) GetStatus(subjectID string) Status {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sessions := r.bySubject[subjectID]
	st := Status{SessionCount: len(sessions), Online: len(sessions) > 0}
	for _, s := range sessions {
		if s.lastActivity.After(st.LastSeen) {
			st.LastSeen = s.lastActivity
		}
	}
	return st
}

// ListActiveSubjects yields the subjects holding at least one live session.
// The sequence is a snapshot taken at call time: finite, restartable, and
// not affected by later connects or disconnects.
func (r *Registry) ListActiveSubjects() iter.Seq[string] {
	r.mu.RLock()
	snapshot := make([]string, 0, len(r.bySubject))
	for subjectID, sessions := range r.bySubject {
		if len(sessions) > 0 {
			snapshot = append(snapshot, subjectID)
		}
	}
	r.mu.RUnlock()

	return func(yield func(string) bool) {
		for _, subjectID := range snapshot {
			if !yield(subjectID) {
				return
			}
		}
	}
}

// SendToSubject delivers the payload to every live session of the subject.
// Dead or stalled handles are closed and pruned instead of failing the call.
// Returns the number of sessions that accepted the payload.
func (r *Registry) SendToSubject(subjectID string, payload []byte) int {
	r.mu.RLock()
	targets := make([]*session, 0, len(r.bySubject[subjectID]))
	for _, s := range r.bySubject[subjectID] {
		targets = append(targets, s)
	}
	r.mu.RUnlock()
	return r.dispatch(targets, payload)
}

// Broadcast delivers the payload to every live session system-wide.
// Best-effort and unordered across subjects, same prune-on-failure policy.
func (r *Registry) Broadcast(payload []byte) int {
	r.mu.RLock()
	targets := make([]*session, 0, len(r.byConn))
	for _, s := range r.byConn {
		targets = append(targets, s)
	}
	r.mu.RUnlock()
	return r.dispatch(targets, payload)
}

// dispatch writes to each target in its own goroutine bounded by the send
// timeout, so one stalled transport cannot stall the rest. Failed handles
// are pruned after the wave completes.
func (r *Registry) dispatch(targets []*session, payload []byte) int {
	if len(targets) == 0 {
		return 0
	}

	var (
		wg        sync.WaitGroup
		failedMu  sync.Mutex
		failed    []*session
		delivered atomic.Int64
	)

	for _, s := range targets {
		wg.Add(1)
		go func(s *session) {
			defer wg.Done()
			errCh := make(chan error, 1)
			go func() { errCh <- s.conn.Send(payload) }()
			select {
			case err := <-errCh:
				if err == nil {
					delivered.Add(1)
					return
				}
				utils.Logger.WithError(err).Debugf("dropping session of %s after failed send", s.subjectID)
			case <-time.After(r.sendTimeout):
				utils.Logger.Debugf("dropping session of %s after send timeout", s.subjectID)
			}
			failedMu.Lock()
			failed = append(failed, s)
			failedMu.Unlock()
		}(s)
	}
	wg.Wait()

	for _, s := range failed {
		_ = s.conn.Close()
	}
	if len(failed) > 0 {
		r.mu.Lock()
		for _, s := range failed {
			r.removeConnNoLock(s.conn)
		}
		r.mu.Unlock()
	}
	return int(delivered.Load())
}

// RevokeSessions force-closes and removes every session of the subject.
// This is the bridge from token revocation to live presence: a revoked
// subject must not keep an authenticated connection open. Returns the
// number of sessions dropped.
func (r *Registry) RevokeSessions(subjectID string) int {
	r.mu.Lock()
	sessions := r.bySubject[subjectID]
	conns := make([]Conn, 0, len(sessions))
	for conn := range sessions {
		conns = append(conns, conn)
		delete(r.byConn, conn)
	}
	delete(r.bySubject, subjectID)
	r.mu.Unlock()

	for _, conn := range conns {
		_ = conn.Close()
	}
	return len(conns)
}

// CleanupInactive closes and removes sessions idle past the threshold.
// Called by the background sweep, not by request handlers.
func (r *Registry) CleanupInactive(idleThreshold time.Duration) int {
	cutoff := r.now().Add(-idleThreshold)

	r.mu.Lock()
	var stale []*session
	for _, s := range r.byConn {
		if s.lastActivity.Before(cutoff) {
			stale = append(stale, s)
		}
	}
	for _, s := range stale {
		r.removeConnNoLock(s.conn)
	}
	r.mu.Unlock()

	for _, s := range stale {
		_ = s.conn.Close()
	}
	return len(stale)
}

// removeConnNoLock detaches one handle; caller must hold r.mu.
func (r *Registry) removeConnNoLock(conn Conn) {
	s, ok := r.byConn[conn]
	if !ok {
		return
	}
	delete(r.byConn, conn)
	if peers, ok := r.bySubject[s.subjectID]; ok {
		delete(peers, conn)
		if len(peers) == 0 {
			delete(r.bySubject, s.subjectID)
		}
	}
}
