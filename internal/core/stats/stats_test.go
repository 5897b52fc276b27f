package stats

import (
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStats_CountersTrackLifecycle(t *testing.T) {
	s := New(0)

	s.ConnAccepted()
	s.ConnAccepted()
	s.AcceptFailed()
	s.bytesRead.Add(18)
	s.bytesWritten.Add(73)
	s.ConnClosed(ConnRecord{TraceID: "a", BytesRead: 18, BytesWritten: 73})

	snap := s.Snapshot()
	assert.Equal(t, uint64(2), snap.Accepted)
	assert.Equal(t, uint64(1), snap.AcceptErrors)
	assert.Equal(t, int64(1), snap.ActiveConnections)
	assert.Equal(t, uint64(18), snap.BytesRead)
	assert.Equal(t, uint64(73), snap.BytesWritten)
	require.Len(t, snap.Recent, 1)
	assert.Equal(t, "a", snap.Recent[0].TraceID)
}

func TestStats_HistoryIsBounded(t *testing.T) {
	s := New(3)
	for i := 0; i < 5; i++ {
		s.ConnAccepted()
		s.ConnClosed(ConnRecord{TraceID: fmt.Sprintf("conn-%d", i)})
	}

	snap := s.Snapshot()
	require.Len(t, snap.Recent, 3)
	assert.Equal(t, "conn-2", snap.Recent[0].TraceID)
	assert.Equal(t, "conn-4", snap.Recent[2].TraceID)
	assert.Equal(t, int64(0), snap.ActiveConnections)
}

func TestStats_ObserverReceivesRecords(t *testing.T) {
	s := New(0)
	var got []string
	var mu sync.Mutex
	s.SetObserver(func(rec ConnRecord) {
		mu.Lock()
		got = append(got, rec.TraceID)
		mu.Unlock()
	})

	s.ConnAccepted()
	s.ConnClosed(ConnRecord{TraceID: "x"})
	s.SetObserver(nil)
	s.ConnAccepted()
	s.ConnClosed(ConnRecord{TraceID: "y"})

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"x"}, got)
}

func TestStats_ConcurrentUpdates(t *testing.T) {
	s := New(8)
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.ConnAccepted()
			s.ConnClosed(ConnRecord{})
		}()
	}
	wg.Wait()

	snap := s.Snapshot()
	assert.Equal(t, uint64(100), snap.Accepted)
	assert.Equal(t, int64(0), snap.ActiveConnections)
	assert.Len(t, snap.Recent, 8)
}

func TestStats_PrometheusExposition(t *testing.T) {
	s := New(0)
	s.ConnAccepted()
	s.AcceptFailed()

	expected := `
# HELP hellod_accept_errors_total Total number of failed accept calls
# TYPE hellod_accept_errors_total counter
hellod_accept_errors_total 1
# HELP hellod_connections_accepted_total Total number of accepted TCP connections
# TYPE hellod_connections_accepted_total counter
hellod_connections_accepted_total 1
`
	err := testutil.GatherAndCompare(s.Registry(), strings.NewReader(expected),
		"hellod_accept_errors_total", "hellod_connections_accepted_total")
	assert.NoError(t, err)
}
