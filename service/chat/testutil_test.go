package chat

import (
	"encoding/json"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

// fakeConn implements Conn for tests: reads pop from a queued script, writes
// are captured.
type fakeConn struct {
	mu      sync.Mutex
	inbound [][]byte
	writes  [][]byte
	closed  bool
}

func (f *fakeConn) queue(frames ...[]byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inbound = append(f.inbound, frames...)
}

func (f *fakeConn) ReadMessage() (int, []byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.inbound) == 0 {
		return 0, nil, io.EOF
	}
	data := f.inbound[0]
	f.inbound = f.inbound[1:]
	return websocket.TextMessage, data, nil
}

func (f *fakeConn) WriteMessage(_ int, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	f.writes = append(f.writes, cp)
	return nil
}

func (f *fakeConn) SetReadDeadline(time.Time) error  { return nil }
func (f *fakeConn) SetWriteDeadline(time.Time) error { return nil }
func (f *fakeConn) SetPongHandler(func(string) error) {}

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

// newTestClient builds an authenticated client whose frames stay in the Send
// queue for inspection (WritePump is not started).
func newTestClient(userID, displayName string) *Client {
	c := NewClient("conn-"+userID, &fakeConn{}, 256, 0)
	c.UserID = userID
	c.DisplayName = displayName
	return c
}

// drainFrames empties a client's send queue into decoded frames.
func drainFrames(t *testing.T, c *Client) []Frame {
	t.Helper()
	var out []Frame
	for {
		select {
		case data := <-c.Send:
			var f Frame
			require.NoError(t, json.Unmarshal(data, &f))
			out = append(out, f)
		default:
			return out
		}
	}
}

// framesOfType filters drained frames by event type.
func framesOfType(frames []Frame, typ string) []Frame {
	var out []Frame
	for _, f := range frames {
		if f.Type == typ {
			out = append(out, f)
		}
	}
	return out
}

func decodePayload[T any](t *testing.T, f Frame) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(f.Payload, &v))
	return v
}

func mustFrame(t *testing.T, typ string, payload any) []byte {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	data, err := json.Marshal(Frame{Type: typ, Payload: raw})
	require.NoError(t, err)
	return data
}
