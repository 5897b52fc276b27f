// Package stats holds the observation-only counters of the server. Nothing on
// the data path reads them back.
package stats

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/eapache/queue"
	"github.com/prometheus/client_golang/prometheus"
)

const DefaultHistorySize = 64

// ConnRecord 描述一条已完成的连接
type ConnRecord struct {
	Timestamp    time.Time `json:"timestamp"`
	TraceID      string    `json:"trace_id"`
	ClientIP     string    `json:"client_ip"`
	BytesRead    int       `json:"bytes_read"`
	BytesWritten int       `json:"bytes_written"`
}

// Snapshot 是某一时刻的统计快照
type Snapshot struct {
	Timestamp         time.Time    `json:"timestamp"`
	Accepted          uint64       `json:"accepted"`
	AcceptErrors      uint64       `json:"accept_errors"`
	ActiveConnections int64        `json:"active_connections"`
	BytesRead         uint64       `json:"bytes_read"`
	BytesWritten      uint64       `json:"bytes_written"`
	Recent            []ConnRecord `json:"recent"`
}

// Stats aggregates server-wide counters.
type Stats struct {
	accepted     atomic.Uint64
	acceptErrors atomic.Uint64
	active       atomic.Int64

	// fed by connections returned from Wrap
	bytesRead    atomic.Uint64
	bytesWritten atomic.Uint64

	mu          sync.Mutex
	history     *queue.Queue
	historySize int
	observer    func(ConnRecord)

	registry *prometheus.Registry
}

// New 创建 Stats，historySize <= 0 时使用默认值。
func New(historySize int) *Stats {
	if historySize <= 0 {
		historySize = DefaultHistorySize
	}
	s := &Stats{
		history:     queue.New(),
		historySize: historySize,
		registry:    prometheus.NewRegistry(),
	}
	s.registerCollectors()
	return s
}

func (s *Stats) registerCollectors() {
	s.registry.MustRegister(
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "hellod_connections_accepted_total",
			Help: "Total number of accepted TCP connections",
		}, func() float64 { return float64(s.accepted.Load()) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "hellod_accept_errors_total",
			Help: "Total number of failed accept calls",
		}, func() float64 { return float64(s.acceptErrors.Load()) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "hellod_connections_active",
			Help: "Number of connections currently being handled",
		}, func() float64 { return float64(s.active.Load()) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "hellod_bytes_read_total",
			Help: "Total bytes read from clients",
		}, func() float64 { return float64(s.bytesRead.Load()) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "hellod_bytes_written_total",
			Help: "Total bytes written to clients",
		}, func() float64 { return float64(s.bytesWritten.Load()) }),
	)
}

// Registry exposes the private prometheus registry.
func (s *Stats) Registry() *prometheus.Registry {
	return s.registry
}

// SetObserver 注册连接完成回调，传 nil 取消。
func (s *Stats) SetObserver(fn func(ConnRecord)) {
	s.mu.Lock()
	s.observer = fn
	s.mu.Unlock()
}

func (s *Stats) ConnAccepted() {
	s.accepted.Add(1)
	s.active.Add(1)
}

func (s *Stats) AcceptFailed() {
	s.acceptErrors.Add(1)
}

// ConnClosed records a finished connection and notifies the observer.
func (s *Stats) ConnClosed(rec ConnRecord) {
	s.active.Add(-1)

	s.mu.Lock()
	s.history.Add(rec)
	for s.history.Length() > s.historySize {
		s.history.Remove()
	}
	observer := s.observer
	s.mu.Unlock()

	if observer != nil {
		observer(rec)
	}
}

// Snapshot returns the counters and the recent history, oldest first.
func (s *Stats) Snapshot() Snapshot {
	s.mu.Lock()
	recent := make([]ConnRecord, 0, s.history.Length())
	for i := 0; i < s.history.Length(); i++ {
		recent = append(recent, s.history.Get(i).(ConnRecord))
	}
	s.mu.Unlock()

	return Snapshot{
		Timestamp:         time.Now(),
		Accepted:          s.accepted.Load(),
		AcceptErrors:      s.acceptErrors.Load(),
		ActiveConnections: s.active.Load(),
		BytesRead:         s.bytesRead.Load(),
		BytesWritten:      s.bytesWritten.Load(),
		Recent:            recent,
	}
}
