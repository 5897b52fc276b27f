package listener

import (
	"errors"
	"net"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/net/netutil"

	"hellod/internal/core/stats"
	"hellod/internal/shared/logger"
	"hellod/internal/shared/types"
	"hellod/internal/sys/listen"
)

// ConnHandler 接管连接并负责关闭它。
type ConnHandler interface {
	Handle(conn net.Conn)
}

// Listener owns the listening socket and the accept loop. Handlers are
// started detached and are never awaited.
type Listener struct {
	cfg       types.ServerConf
	handler   ConnHandler
	stats     *stats.Stats
	listener  net.Listener
	closeOnce sync.Once
	closed    chan struct{}
	log       zerolog.Logger
}

func New(cfg types.ServerConf, handler ConnHandler, st *stats.Stats) *Listener {
	return &Listener{
		cfg:     cfg,
		handler: handler,
		stats:   st,
		closed:  make(chan struct{}),
		log:     logger.WithComponent("listener"),
	}
}

// InitializeListener 绑定端口并开始监听，但不阻塞。
// 它返回实际监听的端口号。
func (l *Listener) InitializeListener() (int, error) {
	ln, err := listen.TCP4(l.cfg.Port, l.cfg.Backlog)
	if err != nil {
		return 0, err
	}
	if l.cfg.MaxConnections > 0 {
		ln = netutil.LimitListener(ln, l.cfg.MaxConnections)
		l.log.Info().Int("max_connections", l.cfg.MaxConnections).Msg("Concurrent connection limit enabled.")
	}
	l.listener = ln

	port := ln.Addr().(*net.TCPAddr).Port
	l.log.Info().Str("listen_addr", ln.Addr().String()).Int("backlog", l.cfg.Backlog).Msgf("Server is listening on port %d...", port)
	return port, nil
}

// Addr returns the bound address, or nil before InitializeListener.
func (l *Listener) Addr() net.Addr {
	if l.listener == nil {
		return nil
	}
	return l.listener.Addr()
}

// Serve 启动阻塞的 accept 循环。必须在 InitializeListener 之后调用。
func (l *Listener) Serve() {
	if l.listener == nil {
		l.log.Error().Msg("Listener.Serve() called before InitializeListener()")
		return
	}
	for {
		conn, err := l.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) || l.isClosed() {
				l.log.Info().Msg("Listener is closing.")
				return
			}
			if l.stats != nil {
				l.stats.AcceptFailed()
			}
			l.log.Warn().Err(err).Msg("Accept failed")
			continue
		}

		if l.stats != nil {
			l.stats.ConnAccepted()
			conn = l.stats.Wrap(conn)
		}
		go l.handler.Handle(conn)
	}
}

func (l *Listener) isClosed() bool {
	select {
	case <-l.closed:
		return true
	default:
		return false
	}
}

// Close stops accepting. In-flight handlers keep running until they finish.
func (l *Listener) Close() {
	l.closeOnce.Do(func() {
		close(l.closed)
		if l.listener != nil {
			l.listener.Close()
		}
		l.log.Info().Msg("Listener has been shut down")
	})
}
