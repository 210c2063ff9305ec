package main

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eigerco/blocktransfer/internal/feed"
)

func startFeed(t *testing.T, pingEvery int) *feed.Conn {
	client, server := net.Pipe()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		defer close(done)
		serveFeed(ctx, feed.NewServerConn(server), zerolog.Nop(), time.Millisecond, pingEvery)
	}()

	conn := feed.NewConn(client)
	t.Cleanup(func() {
		cancel()
		_ = conn.Close()
		<-done
	})
	return conn
}

func recv(t *testing.T, conn *feed.Conn) feed.Update {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	u, err := conn.Recv(ctx)
	require.NoError(t, err)
	return u
}

func TestServeFeedPingCadence(t *testing.T) {
	conn := startFeed(t, 2)
	require.NoError(t, conn.Send(context.Background(), feed.SubscribeRequest{Filter: feed.FilterBlocks}))

	var (
		kinds []string
		slots []uint64
	)
	for len(kinds) < 6 {
		switch u := recv(t, conn).(type) {
		case feed.BlockUpdate:
			kinds = append(kinds, "block")
			slots = append(slots, u.Slot)
			assert.Equal(t, u.Slot-1, u.ParentSlot)
		case feed.Ping:
			kinds = append(kinds, "ping")
			assert.Equal(t, uint32(len(slots)), u.ID)
		default:
			t.Fatalf("unexpected update %T", u)
		}
	}

	assert.Equal(t, []string{"block", "block", "ping", "block", "block", "ping"}, kinds)
	for i := 1; i < len(slots); i++ {
		assert.Equal(t, slots[i-1]+1, slots[i])
	}
}

func TestServeFeedAnswersClientPing(t *testing.T) {
	conn := startFeed(t, 0)
	require.NoError(t, conn.Send(context.Background(), feed.SubscribeRequest{}))
	require.NoError(t, conn.Send(context.Background(), feed.Ping{ID: 77}))

	for i := 0; i < 100; i++ {
		switch u := recv(t, conn).(type) {
		case feed.Pong:
			assert.Equal(t, uint32(77), u.ID)
			return
		case feed.Ping:
			t.Fatal("server pinged with pings disabled")
		}
	}
	t.Fatal("no pong received")
}

func TestServeFeedRequiresSubscribe(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		serveFeed(context.Background(), feed.NewServerConn(server), zerolog.Nop(), time.Millisecond, 1)
	}()

	require.NoError(t, feed.NewConn(client).Send(context.Background(), feed.Ping{ID: 1}))
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("feed kept running without a subscribe request")
	}
}
