package controllers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/require"

	"github.com/et1613/chitchatproject-sub001/internal/dtos"
	"github.com/et1613/chitchatproject-sub001/internal/registry"
)

type stubConn struct {
	sent int
}

func (s *stubConn) Send([]byte) error { s.sent++; return nil }
func (s *stubConn) Close() error      { return nil }

func newPresenceRouter(reg *registry.Registry) *mux.Router {
	ctrl := NewPresenceController(reg)
	router := mux.NewRouter()
	router.HandleFunc("/subjects", ctrl.ListActive).Methods("GET")
	router.HandleFunc("/subjects/{subjectID}/status", ctrl.GetStatus).Methods("GET")
	router.HandleFunc("/subjects/{subjectID}/send", ctrl.SendToSubject).Methods("POST")
	router.HandleFunc("/broadcast", ctrl.Broadcast).Methods("POST")
	return router
}

func TestPresenceStatusEndpoint(t *testing.T) {
	reg := registry.New(time.Second)
	router := newPresenceRouter(reg)

	require.True(t, reg.AddSession("alice", &stubConn{}, ""))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/subjects/alice/status", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var st dtos.PresenceStatusResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&st))
	require.Equal(t, "alice", st.SubjectID)
	require.True(t, st.Online)
	require.Equal(t, 1, st.SessionCount)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/subjects/nobody/status", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&st))
	require.False(t, st.Online)
}

func TestListActiveEndpoint(t *testing.T) {
	reg := registry.New(time.Second)
	router := newPresenceRouter(reg)

	// empty registry answers an empty array, not null
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/subjects", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"subjects":[]}`, rec.Body.String())

	require.True(t, reg.AddSession("alice", &stubConn{}, ""))
	require.True(t, reg.AddSession("bob", &stubConn{}, ""))

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/subjects", nil))
	var resp dtos.ActiveSubjectsResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.ElementsMatch(t, []string{"alice", "bob"}, resp.Subjects)
}

func TestSendAndBroadcastEndpoints(t *testing.T) {
	reg := registry.New(time.Second)
	router := newPresenceRouter(reg)

	aliceConn := &stubConn{}
	bobConn := &stubConn{}
	require.True(t, reg.AddSession("alice", aliceConn, ""))
	require.True(t, reg.AddSession("bob", bobConn, ""))

	body, _ := json.Marshal(dtos.SendMessageRequest{Payload: "hello"})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("POST", "/subjects/alice/send", bytes.NewReader(body)))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp dtos.SendMessageResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Equal(t, 1, resp.Delivered)
	require.Equal(t, 1, aliceConn.sent)
	require.Equal(t, 0, bobConn.sent)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("POST", "/broadcast", bytes.NewReader(body)))
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Equal(t, 2, resp.Delivered)

	// empty payload fails validation
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("POST", "/broadcast", bytes.NewReader([]byte(`{}`))))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
