package voice

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// ErrWriterClosed enqueue attempted after Close
var ErrWriterClosed = errors.New("voice: writer closed")

const (
	writerQueueSize = 64
	writeWait       = 10 * time.Second
)

// ConnWriter serializes all outbound frames for one connection through
// a single goroutine, since gorilla/websocket permits only one
// concurrent writer.
type ConnWriter struct {
	conn   *websocket.Conn
	queue  chan []byte
	done   chan struct{}
	logger *zap.Logger

	closeOnce sync.Once
}

// NewConnWriter starts the write loop for conn
func NewConnWriter(conn *websocket.Conn, logger *zap.Logger) *ConnWriter {
	if logger == nil {
		logger = zap.L()
	}
	w := &ConnWriter{
		conn:   conn,
		queue:  make(chan []byte, writerQueueSize),
		done:   make(chan struct{}),
		logger: logger,
	}
	go w.writeLoop()
	return w
}

// Send encodes and enqueues one typed event. Returns ErrWriterClosed
// after Close; a full queue drops the frame rather than blocking the
// session pipeline.
func (w *ConnWriter) Send(eventType string, payload interface{}) error {
	frame, err := EncodeEvent(eventType, payload)
	if err != nil {
		return err
	}
	select {
	case <-w.done:
		return ErrWriterClosed
	default:
	}
	select {
	case w.queue <- frame:
		return nil
	case <-w.done:
		return ErrWriterClosed
	default:
		w.logger.Warn("outbound queue full, dropping frame", zap.String("event", eventType))
		return nil
	}
}

// Close stops the write loop. Queued frames are discarded.
func (w *ConnWriter) Close() {
	w.closeOnce.Do(func() {
		close(w.done)
	})
}

func (w *ConnWriter) writeLoop() {
	for {
		select {
		case <-w.done:
			return
		case frame := <-w.queue:
			w.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := w.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				w.logger.Debug("websocket write failed", zap.Error(err))
				w.Close()
				return
			}
		}
	}
}
