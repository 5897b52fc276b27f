package app

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"hellod/internal/core/handler"
	"hellod/internal/core/listener"
	"hellod/internal/core/stats"
	"hellod/internal/service/web"
	"hellod/internal/shared/logger"
	"hellod/internal/shared/types"
)

const statsInterval = 2 * time.Second

// AppServer is the application's main struct.
type AppServer struct {
	cfg      *types.Config
	stats    *stats.Stats
	listener *listener.Listener
	hub      *web.Hub
	web      *http.Server

	quit      chan struct{}
	waitGroup sync.WaitGroup
	stopOnce  sync.Once
}

// New wires the listener, the handler and the status surface together.
func New(cfg *types.Config) *AppServer {
	st := stats.New(stats.DefaultHistorySize)
	s := &AppServer{
		cfg:   cfg,
		stats: st,
		hub:   web.NewHub(),
		quit:  make(chan struct{}),
	}
	s.listener = listener.New(cfg.ServerConf, handler.New(cfg.ServerConf.BufferSize, st), st)
	return s
}

// Start binds the listener and launches every background loop. The returned
// port is the one actually bound.
func (s *AppServer) Start() (int, error) {
	port, err := s.listener.InitializeListener()
	if err != nil {
		return 0, err
	}

	if s.cfg.WebConf.Port > 0 {
		s.stats.SetObserver(s.hub.BroadcastConnLog)
		go s.hub.Run()

		srv, err := web.StartServer(&s.waitGroup, s.cfg.WebConf, s.stats, s.stats.Registry(), s.hub)
		if err != nil {
			s.listener.Close()
			s.hub.Stop()
			return 0, err
		}
		s.web = srv

		s.waitGroup.Add(1)
		go s.statsLoop()
	}

	s.waitGroup.Add(1)
	go func() {
		defer s.waitGroup.Done()
		s.listener.Serve()
	}()
	return port, nil
}

// Run is the server's entry point. A setup failure is fatal.
func (s *AppServer) Run() {
	logger.Info().Msg("Starting server...")
	if _, err := s.Start(); err != nil {
		logger.Fatal().Err(err).Msg("Server bootstrap failed")
	}
	logger.Info().Str("addr", s.listener.Addr().String()).Msg("Server started.")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info().Str("signal", sig.String()).Msg("Received signal, shutting down.")
		s.Stop()
	}()

	s.Wait()
}

// Stats exposes the server counters.
func (s *AppServer) Stats() *stats.Stats {
	return s.stats
}

// Stop closes the listener and the status surface. Connection handlers are
// not awaited.
func (s *AppServer) Stop() {
	s.stopOnce.Do(func() {
		close(s.quit)
		s.listener.Close()
		if s.web != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := s.web.Shutdown(ctx); err != nil {
				logger.Warn().Err(err).Msg("Status server shutdown failed")
			}
			cancel()
		}
		s.stats.SetObserver(nil)
		s.hub.Stop()
	})
}

func (s *AppServer) Wait() {
	s.waitGroup.Wait()
}

// statsLoop 定期计算读写速率并广播
func (s *AppServer) statsLoop() {
	defer s.waitGroup.Done()
	ticker := time.NewTicker(statsInterval)
	defer ticker.Stop()

	var lastRead, lastWritten uint64
	var lastTimestamp time.Time

	for {
		select {
		case <-ticker.C:
			snap := s.stats.Snapshot()
			now := snap.Timestamp

			var readRate, writeRate uint64
			if !lastTimestamp.IsZero() {
				elapsed := now.Sub(lastTimestamp).Seconds()
				if elapsed > 0 {
					readRate = uint64(float64(snap.BytesRead-lastRead) / elapsed)
					writeRate = uint64(float64(snap.BytesWritten-lastWritten) / elapsed)
				}
			}
			lastRead = snap.BytesRead
			lastWritten = snap.BytesWritten
			lastTimestamp = now

			s.hub.BroadcastDashboardUpdate(&web.DashboardStats{
				Timestamp:         now,
				Accepted:          snap.Accepted,
				ActiveConnections: snap.ActiveConnections,
				ReadRate:          readRate,
				WriteRate:         writeRate,
				Viewers:           s.hub.ClientCount(),
			})
		case <-s.quit:
			return
		}
	}
}
