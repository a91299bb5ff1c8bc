package containers

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWaitForTCP_Open(t *testing.T) {
	t.Parallel()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer func() { _ = ln.Close() }()

	port := ln.Addr().(*net.TCPAddr).Port

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	assert.NoError(t, WaitForTCP(ctx, "127.0.0.1", port, 50*time.Millisecond))
}

func TestWaitForTCP_Timeout(t *testing.T) {
	t.Parallel()

	// Grab a free port, then close it so nothing listens there.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	err = WaitForTCP(ctx, "127.0.0.1", port, 20*time.Millisecond)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timeout waiting for TCP port")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestMongoURL(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "mongodb://localhost:32768/spacex", mongoURL("localhost", 32768, "spacex"))
	assert.Equal(t, "mongodb://[::1]:27017/auth", mongoURL("::1", 27017, "auth"))
}
