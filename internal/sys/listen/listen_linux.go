//go:build linux

package listen

import (
	"fmt"
	"net"
	"os"

	"golang.org/x/sys/unix"
)

// TCP4 creates a listening IPv4 socket bound to INADDR_ANY:port with the
// given accept backlog. net.Listen always uses the kernel maximum, so the
// socket is set up by hand and then handed to the runtime poller.
func TCP4(port, backlog int) (net.Listener, error) {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, unix.IPPROTO_TCP)
	if err != nil {
		return nil, fmt.Errorf("socket creation failed: %w", err)
	}

	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("failed to set SO_REUSEADDR: %w", err)
	}

	if err := unix.Bind(fd, &unix.SockaddrInet4{Port: port}); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("bind failed on port %d: %w", port, err)
	}

	if err := unix.Listen(fd, backlog); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("listen failed: %w", err)
	}

	// FileListener dups the descriptor, the original is released with f.
	f := os.NewFile(uintptr(fd), fmt.Sprintf("tcp4-listener:%d", port))
	defer f.Close()

	ln, err := net.FileListener(f)
	if err != nil {
		return nil, fmt.Errorf("failed to wrap listening socket: %w", err)
	}
	return ln, nil
}
