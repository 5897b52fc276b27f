package stats

import "net"

// countedConn feeds every byte that crosses the connection into Stats.
type countedConn struct {
	net.Conn
	stats *Stats
}

// Wrap returns conn with its reads and writes accounted in s.
func (s *Stats) Wrap(conn net.Conn) net.Conn {
	return &countedConn{Conn: conn, stats: s}
}

func (c *countedConn) Read(b []byte) (int, error) {
	n, err := c.Conn.Read(b)
	if n > 0 {
		c.stats.bytesRead.Add(uint64(n))
	}
	return n, err
}

func (c *countedConn) Write(b []byte) (int, error) {
	n, err := c.Conn.Write(b)
	if n > 0 {
		c.stats.bytesWritten.Add(uint64(n))
	}
	return n, err
}
