// Command probe opens N concurrent connections against a running hellod and
// checks that every one of them receives the fixed response.
package main

import (
	"flag"
	"fmt"
	"io"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"hellod/internal/core/handler"
	"hellod/internal/shared/logger"
	"hellod/internal/shared/types"
)

func probe(address, request string, timeout time.Duration) error {
	conn, err := net.DialTimeout("tcp", address, timeout)
	if err != nil {
		return fmt.Errorf("dial failed: %w", err)
	}
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(timeout))

	if request != "" {
		if _, err := conn.Write([]byte(request)); err != nil {
			return fmt.Errorf("write failed: %w", err)
		}
	}
	if tcpConn, ok := conn.(*net.TCPConn); ok {
		tcpConn.CloseWrite()
	}

	response, err := io.ReadAll(conn)
	if err != nil {
		return fmt.Errorf("read failed: %w", err)
	}
	if string(response) != handler.Response {
		return fmt.Errorf("unexpected response %q", response)
	}
	return nil
}

func main() {
	address := flag.String("addr", "127.0.0.1:8080", "hellod address")
	clients := flag.Int("n", 100, "number of concurrent connections")
	empty := flag.Bool("empty", false, "send no request bytes, only half-close")
	timeout := flag.Duration("timeout", 5*time.Second, "per-connection timeout")
	flag.Parse()

	if err := logger.Init(types.LogConf{Level: "info"}); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal: Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	request := "GET / HTTP/1.1\r\n\r\n"
	if *empty {
		request = ""
	}

	var failed atomic.Int64
	var wg sync.WaitGroup
	start := time.Now()
	for i := 0; i < *clients; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			if err := probe(*address, request, *timeout); err != nil {
				failed.Add(1)
				logger.Warn().Int("client", id).Err(err).Msg("Probe failed")
			}
		}(i)
	}
	wg.Wait()

	logger.Info().
		Int("clients", *clients).
		Int64("failed", failed.Load()).
		Str("elapsed", time.Since(start).String()).
		Msg("Probe complete")
	if failed.Load() > 0 {
		os.Exit(1)
	}
}
