package bridge

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDispatcher struct {
	mu    sync.Mutex
	lines []string
}

func (d *fakeDispatcher) Dispatch(_ context.Context, line string) (string, error) {
	d.mu.Lock()
	d.lines = append(d.lines, line)
	d.mu.Unlock()

	switch {
	case line == "getSimulationInfo":
		return "setSimulationInfo size:3", nil
	case strings.HasPrefix(line, "broken"):
		return "", errors.New("controller unavailable")
	default:
		return "ok method:" + strings.Fields(line)[0], nil
	}
}

func (d *fakeDispatcher) received() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.lines...)
}

func dial(t *testing.T, s *Server) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(s)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func roundTrip(t *testing.T, conn *websocket.Conn, line string) string {
	t.Helper()
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(line)))
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, b, err := conn.ReadMessage()
	require.NoError(t, err)
	return string(b)
}

func TestServer_RepliesToEachCommand(t *testing.T) {
	d := &fakeDispatcher{}
	conn := dial(t, NewServer(d, nil, 0))

	assert.Equal(t, "ok method:resetFlock", roundTrip(t, conn, "resetFlock size:3"))
	assert.Equal(t, "ok method:runSimulation", roundTrip(t, conn, "  runSimulation\n"))

	assert.Equal(t, []string{"resetFlock size:3", "runSimulation"}, d.received())
}

func TestServer_DispatchFailureBecomesErrorReply(t *testing.T) {
	conn := dial(t, NewServer(&fakeDispatcher{}, nil, 0))

	assert.Equal(t, `error message:"controller unavailable"`, roundTrip(t, conn, "broken"))
}

func TestServer_IgnoresBlankFrames(t *testing.T) {
	d := &fakeDispatcher{}
	conn := dial(t, NewServer(d, nil, 0))

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("   ")))
	assert.Equal(t, "ok method:pauseSimulation", roundTrip(t, conn, "pauseSimulation"))
	assert.Equal(t, []string{"pauseSimulation"}, d.received())
}

func TestServer_PushesInfo(t *testing.T) {
	conn := dial(t, NewServer(&fakeDispatcher{}, nil, 10*time.Millisecond))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, b, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, "setSimulationInfo size:3", string(b))
}

func TestServer_TracksClients(t *testing.T) {
	s := NewServer(&fakeDispatcher{}, nil, 0)
	conn := dial(t, s)

	require.Eventually(t, func() bool { return s.Clients() == 1 }, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	_ = conn.Close()

	assert.Eventually(t, func() bool { return s.Clients() == 0 }, 2*time.Second, 5*time.Millisecond)
}
