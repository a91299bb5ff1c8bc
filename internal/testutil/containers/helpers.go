package containers

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"
)

// WaitForTCP polls host:port every interval until a TCP connection succeeds
// or ctx is done.
func WaitForTCP(ctx context.Context, host string, port int, interval time.Duration) error {
	address := net.JoinHostPort(host, strconv.Itoa(port))
	dialer := net.Dialer{Timeout: 2 * time.Second}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		conn, err := dialer.DialContext(ctx, "tcp", address)
		if err == nil {
			_ = conn.Close()
			return nil
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("timeout waiting for TCP port %s: %w", address, ctx.Err())
		case <-ticker.C:
		}
	}
}

// mongoURL builds the connection URL for database on host:port.
func mongoURL(host string, port int, database string) string {
	return fmt.Sprintf("mongodb://%s/%s", net.JoinHostPort(host, strconv.Itoa(port)), database)
}
