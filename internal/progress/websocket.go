package progress

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const writeWait = 10 * time.Second

// WebsocketSink streams log lines as text messages and frames as binary
// messages over one websocket connection. It does not reconnect.
type WebsocketSink struct {
	mu     sync.Mutex
	conn   *websocket.Conn
	logger *zap.Logger
}

// DialWebsocket connects to url. header may be nil.
func DialWebsocket(ctx context.Context, url string, header http.Header, logger *zap.Logger) (*WebsocketSink, error) {
	dialer := &websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, url, header)
	if err != nil {
		return nil, fmt.Errorf("failed to dial progress channel: %w", err)
	}
	logger.Debug("progress channel connected", zap.String("url", url))

	s := &WebsocketSink{conn: conn, logger: logger}
	go s.drain()
	return s, nil
}

// drain discards inbound messages so control frames are still processed.
func (s *WebsocketSink) drain() {
	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *WebsocketSink) Log(ctx context.Context, line string) error {
	return s.write(ctx, websocket.TextMessage, []byte(line))
}

func (s *WebsocketSink) Frame(ctx context.Context, image []byte) error {
	return s.write(ctx, websocket.BinaryMessage, image)
}

func (s *WebsocketSink) write(ctx context.Context, kind int, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	deadline := time.Now().Add(writeWait)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = s.conn.SetWriteDeadline(deadline)

	if err := s.conn.WriteMessage(kind, data); err != nil {
		return fmt.Errorf("progress channel write failed: %w", err)
	}
	return nil
}

// Close sends a normal close frame and releases the connection.
func (s *WebsocketSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "run finished")
	_ = s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	return s.conn.Close()
}
