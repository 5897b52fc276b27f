//go:build !linux

package listen

import (
	"fmt"
	"net"
)

// TCP4 在非Linux系统上退化为 net.Listen，backlog 由系统决定。
func TCP4(port, _ int) (net.Listener, error) {
	ln, err := net.Listen("tcp4", fmt.Sprintf("0.0.0.0:%d", port))
	if err != nil {
		return nil, fmt.Errorf("listen failed on port %d: %w", port, err)
	}
	return ln, nil
}
