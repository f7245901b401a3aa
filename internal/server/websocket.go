package server

import (
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// wsTransport sends each line as one text frame.
type wsTransport struct {
	conn         *websocket.Conn
	addr         string
	writeTimeout time.Duration
	mu           sync.Mutex
}

func (t *wsTransport) WriteLine(line string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.writeTimeout > 0 {
		if err := t.conn.SetWriteDeadline(time.Now().Add(t.writeTimeout)); err != nil {
			return err
		}
	}
	return t.conn.WriteMessage(websocket.TextMessage, []byte(line))
}

// Close sends a best-effort close frame before dropping the connection.
func (t *wsTransport) Close() error {
	deadline := time.Now().Add(time.Second)
	_ = t.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
	return t.conn.Close()
}

func (t *wsTransport) RemoteAddr() string { return t.addr }

// wsReader yields lines from text frames. A frame holding several
// newline-separated lines yields each in turn.
type wsReader struct {
	conn    *websocket.Conn
	pending []string
}

func newWSReader(conn *websocket.Conn) *wsReader {
	return &wsReader{conn: conn}
}

func (r *wsReader) ReadLine() (string, error) {
	for len(r.pending) == 0 {
		_, data, err := r.conn.ReadMessage()
		if err != nil {
			return "", err
		}
		r.pending = strings.Split(strings.TrimRight(string(data), "\r\n"), "\n")
	}

	line := r.pending[0]
	r.pending = r.pending[1:]
	return strings.TrimSuffix(line, "\r"), nil
}
