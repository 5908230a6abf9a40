package queue

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/cinema-seat-engine/internal/logger"
)

// silentBroker accepts TCP connections and never answers the AMQP handshake.
func silentBroker(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	var mu sync.Mutex
	var conns []net.Conn
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			mu.Lock()
			conns = append(conns, c)
			mu.Unlock()
		}
	}()
	t.Cleanup(func() {
		_ = ln.Close()
		mu.Lock()
		defer mu.Unlock()
		for _, c := range conns {
			_ = c.Close()
		}
	})
	return "amqp://guest:guest@" + ln.Addr().String() + "/"
}

func TestPublishSeatsBooked_StalledBrokerHonoursDeadline(t *testing.T) {
	p := NewPublisher(silentBroker(t), logger.NewNop())
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := p.PublishSeatsBooked(ctx, SeatsBookedEvent{MessageID: "m-1", BookingRef: "B-1"})
	assert.Error(t, err)
	assert.Less(t, time.Since(start), 3*time.Second)
}

func TestPublishSeatsBooked_CancelledBeforeDial(t *testing.T) {
	p := NewPublisher(silentBroker(t), logger.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := p.PublishSeatsBooked(ctx, SeatsBookedEvent{MessageID: "m-2"})
	assert.ErrorContains(t, err, "dial broker")
}
