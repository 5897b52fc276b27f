package web

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"hellod/internal/shared/logger"
	"hellod/internal/shared/types"
)

// loggingListener logs accepted connections at debug level.
type loggingListener struct {
	net.Listener
	log zerolog.Logger
}

func (l loggingListener) Accept() (net.Conn, error) {
	conn, err := l.Listener.Accept()
	if err == nil {
		l.log.Debug().Str("remote_addr", conn.RemoteAddr().String()).Msg("Connection accepted")
	}
	return conn, err
}

// basicAuthMiddleware 在 user 和 password 都配置时强制执行 HTTP Basic Authentication。
func basicAuthMiddleware(next http.Handler, user, pass string) http.Handler {
	if user == "" || pass == "" {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || u != user || p != pass {
			w.Header().Set("WWW-Authenticate", `Basic realm="Restricted"`)
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte("Unauthorized.\n"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// NewMux builds the status server routes.
func NewMux(cfg types.WebConf, st StatsProvider, gatherer prometheus.Gatherer, hub *Hub) *http.ServeMux {
	handler := NewHandler(st)
	mux := http.NewServeMux()

	mux.Handle("/api/status", basicAuthMiddleware(http.HandlerFunc(handler.HandleStatus), cfg.User, cfg.Password))
	mux.Handle("/metrics", basicAuthMiddleware(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}), cfg.User, cfg.Password))

	// --- WebSocket Endpoint (公开，无需认证) ---
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		ServeWs(hub, w, r)
	})
	return mux
}

// StartServer starts the status server in the background. It returns nil
// when the server is disabled.
func StartServer(wg *sync.WaitGroup, cfg types.WebConf, st StatsProvider, gatherer prometheus.Gatherer, hub *Hub) (*http.Server, error) {
	log := logger.WithComponent("web")
	if cfg.Port <= 0 {
		log.Info().Msg("Status server is disabled (web port is 0 or not set).")
		return nil, nil
	}

	addr := fmt.Sprintf("0.0.0.0:%d", cfg.Port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to start status server on %s: %w", addr, err)
	}

	srv := &http.Server{Handler: NewMux(cfg, st, gatherer, hub)}
	log.Info().Msgf("Status server is listening on http://%s", listener.Addr())

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := srv.Serve(loggingListener{Listener: listener, log: log}); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("Status server error")
		}
		log.Info().Msg("Status server stopped.")
	}()
	return srv, nil
}
