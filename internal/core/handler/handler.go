package handler

import (
	"errors"
	"io"
	"net"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"hellod/internal/core/stats"
)

// Response is written verbatim to every connection. The declared length and
// the LF line endings are kept exactly as served historically.
const Response = "HTTP/1.1 200 OK\nContent-Type: text/plain\nContent-Length: 12\n\nHello World!"

const DefaultBufferSize = 1024

var responseBytes = []byte(Response)

// Handler answers a single connection with Response.
type Handler struct {
	bufferSize int
	stats      *stats.Stats
}

// New 创建 Handler。bufferSize <= 0 时使用 DefaultBufferSize，st 可以为 nil。
func New(bufferSize int, st *stats.Stats) *Handler {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	return &Handler{
		bufferSize: bufferSize,
		stats:      st,
	}
}

// Handle takes ownership of conn: one read, one write, one close. The request
// content never influences the response.
func (h *Handler) Handle(conn net.Conn) {
	traceID := uuid.NewString()
	clientIP := "unknown"
	if addr := conn.RemoteAddr(); addr != nil {
		clientIP = addr.String()
	}
	l := log.With().Str("trace_id", traceID).Str("client_ip", clientIP).Logger()
	rec := stats.ConnRecord{TraceID: traceID, ClientIP: clientIP}

	defer func() {
		if err := conn.Close(); err != nil {
			l.Debug().Err(err).Msg("Close failed")
		}
		rec.Timestamp = time.Now()
		if h.stats != nil {
			h.stats.ConnClosed(rec)
		}
	}()

	buf := make([]byte, h.bufferSize)
	n, err := conn.Read(buf)
	if err != nil && !errors.Is(err, io.EOF) {
		l.Debug().Err(err).Msg("Read failed")
	}
	rec.BytesRead = n
	l.Info().Int("bytes", n).Str("request", string(buf[:n])).Msg("Request received")

	written, err := conn.Write(responseBytes)
	if err != nil {
		l.Debug().Err(err).Int("written", written).Msg("Write failed")
	}
	rec.BytesWritten = written
}
