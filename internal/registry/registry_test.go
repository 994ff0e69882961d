package registry

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	mu      sync.Mutex
	sent    [][]byte
	sendErr error
	closed  bool
}

func (f *fakeConn) Send(payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, payload)
	return nil
}

func (f *fakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeConn) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *fakeConn) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func TestAddSessionRejectsDuplicateHandle(t *testing.T) {
	r := New(time.Second)
	conn := &fakeConn{}

	require.True(t, r.AddSession("alice", conn, "10.0.0.1:1234"))
	require.False(t, r.AddSession("alice", conn, "10.0.0.1:1234"))
	require.False(t, r.AddSession("bob", conn, "10.0.0.1:1234"))

	st := r.GetStatus("alice")
	require.True(t, st.Online)
	require.Equal(t, 1, st.SessionCount)
}

func TestGetStatusOfflineSubject(t *testing.T) {
	r := New(time.Second)
	st := r.GetStatus("nobody")
	require.False(t, st.Online)
	require.Equal(t, 0, st.SessionCount)
	require.True(t, st.LastSeen.IsZero())
}

func TestRemoveSessionByHandleIsIdempotent(t *testing.T) {
	r := New(time.Second)
	conn := &fakeConn{}
	require.True(t, r.AddSession("alice", conn, ""))

	r.RemoveSessionByHandle(conn)
	require.False(t, r.GetStatus("alice").Online)

	// removing again is a no-op
	r.RemoveSessionByHandle(conn)

	// the handle can register again after removal
	require.True(t, r.AddSession("alice", conn, ""))
}

func TestRemoveSessionDropsAllOfSubject(t *testing.T) {
	r := New(time.Second)
	c1, c2 := &fakeConn{}, &fakeConn{}
	require.True(t, r.AddSession("alice", c1, ""))
	require.True(t, r.AddSession("alice", c2, ""))
	require.Equal(t, 2, r.GetStatus("alice").SessionCount)

	r.RemoveSession("alice")
	require.False(t, r.GetStatus("alice").Online)
	// RemoveSession deregisters without closing
	require.False(t, c1.isClosed())
	require.False(t, c2.isClosed())
}

func TestListActiveSubjectsIsASnapshot(t *testing.T) {
	r := New(time.Second)
	require.True(t, r.AddSession("alice", &fakeConn{}, ""))
	require.True(t, r.AddSession("bob", &fakeConn{}, ""))

	seq := r.ListActiveSubjects()

	// mutate after taking the sequence; the snapshot must not change
	require.True(t, r.AddSession("carol", &fakeConn{}, ""))

	seen := map[string]bool{}
	for subjectID := range seq {
		seen[subjectID] = true
	}
	require.Len(t, seen, 2)
	require.True(t, seen["alice"])
	require.True(t, seen["bob"])

	// the sequence is restartable
	count := 0
	for range seq {
		count++
	}
	require.Equal(t, 2, count)
}

func TestSendToSubjectDeliversToAllSessions(t *testing.T) {
	r := New(time.Second)
	c1, c2, other := &fakeConn{}, &fakeConn{}, &fakeConn{}
	require.True(t, r.AddSession("alice", c1, ""))
	require.True(t, r.AddSession("alice", c2, ""))
	require.True(t, r.AddSession("bob", other, ""))

	delivered := r.SendToSubject("alice", []byte("hello"))
	require.Equal(t, 2, delivered)
	require.Equal(t, 1, c1.sentCount())
	require.Equal(t, 1, c2.sentCount())
	require.Equal(t, 0, other.sentCount())

	require.Equal(t, 0, r.SendToSubject("nobody", []byte("hello")))
}

func TestSendPrunesFailedHandles(t *testing.T) {
	r := New(time.Second)
	good := &fakeConn{}
	bad := &fakeConn{sendErr: errors.New("broken pipe")}
	require.True(t, r.AddSession("alice", good, ""))
	require.True(t, r.AddSession("alice", bad, ""))

	delivered := r.SendToSubject("alice", []byte("hello"))
	require.Equal(t, 1, delivered)
	require.True(t, bad.isClosed())
	require.False(t, good.isClosed())

	st := r.GetStatus("alice")
	require.True(t, st.Online)
	require.Equal(t, 1, st.SessionCount)
}

func TestBroadcastReachesEverySubject(t *testing.T) {
	r := New(time.Second)
	c1, c2, c3 := &fakeConn{}, &fakeConn{}, &fakeConn{}
	require.True(t, r.AddSession("alice", c1, ""))
	require.True(t, r.AddSession("bob", c2, ""))
	require.True(t, r.AddSession("bob", c3, ""))

	delivered := r.Broadcast([]byte("announce"))
	require.Equal(t, 3, delivered)
	require.Equal(t, 1, c1.sentCount())
	require.Equal(t, 1, c2.sentCount())
	require.Equal(t, 1, c3.sentCount())
}

func TestRevokeSessionsClosesHandles(t *testing.T) {
	r := New(time.Second)
	c1, c2, other := &fakeConn{}, &fakeConn{}, &fakeConn{}
	require.True(t, r.AddSession("alice", c1, ""))
	require.True(t, r.AddSession("alice", c2, ""))
	require.True(t, r.AddSession("bob", other, ""))

	dropped := r.RevokeSessions("alice")
	require.Equal(t, 2, dropped)
	require.True(t, c1.isClosed())
	require.True(t, c2.isClosed())
	require.False(t, r.GetStatus("alice").Online)

	require.True(t, r.GetStatus("bob").Online)
	require.False(t, other.isClosed())

	require.Equal(t, 0, r.RevokeSessions("alice"))
}

func TestTouchUpdatesLastSeen(t *testing.T) {
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	r := New(time.Second)
	r.now = func() time.Time { return base }

	conn := &fakeConn{}
	require.True(t, r.AddSession("alice", conn, ""))
	require.Equal(t, base, r.GetStatus("alice").LastSeen)

	r.now = func() time.Time { return base.Add(5 * time.Minute) }
	r.Touch(conn)
	require.Equal(t, base.Add(5*time.Minute), r.GetStatus("alice").LastSeen)
}

func TestCleanupInactiveRemovesIdleSessions(t *testing.T) {
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	r := New(time.Second)
	r.now = func() time.Time { return base }

	idle := &fakeConn{}
	active := &fakeConn{}
	require.True(t, r.AddSession("alice", idle, ""))
	require.True(t, r.AddSession("bob", active, ""))

	// bob stays active, alice goes quiet
	r.now = func() time.Time { return base.Add(45 * time.Minute) }
	r.Touch(active)

	removed := r.CleanupInactive(30 * time.Minute)
	require.Equal(t, 1, removed)
	require.True(t, idle.isClosed())
	require.False(t, active.isClosed())
	require.False(t, r.GetStatus("alice").Online)
	require.True(t, r.GetStatus("bob").Online)
}
