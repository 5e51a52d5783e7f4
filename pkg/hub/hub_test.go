package hub

import (
	"context"
	"testing"
	"time"
)

// The conn is only touched by the pumps, which these tests never start,
// so a nil conn is fine for registration tests.

func TestNewClient_RegistersWhileRunning(t *testing.T) {
	h := New("test")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.Run(ctx)

	client := NewClient(h, nil)
	if client == nil {
		t.Fatal("Expected a client while the hub is running")
	}

	deadline := time.After(time.Second)
	for h.ClientCount() != 1 {
		select {
		case <-deadline:
			t.Fatalf("client count: got %d, want 1", h.ClientCount())
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestNewClient_ReturnsNilAfterShutdown(t *testing.T) {
	h := New("test")
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)
	cancel()

	select {
	case <-h.done:
	case <-time.After(time.Second):
		t.Fatal("hub did not shut down")
	}

	got := make(chan *Client, 1)
	go func() { got <- NewClient(h, nil) }()

	select {
	case client := <-got:
		if client != nil {
			t.Error("Expected nil client after shutdown")
		}
	case <-time.After(time.Second):
		t.Fatal("NewClient blocked after shutdown")
	}
}

func TestRun_ClosesClientChannelsOnShutdown(t *testing.T) {
	h := New("test")
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)

	client := NewClient(h, nil)
	if client == nil {
		t.Fatal("Expected a client while the hub is running")
	}
	cancel()

	select {
	case _, ok := <-client.send:
		if ok {
			t.Error("Expected send channel to be closed, got a message")
		}
	case <-time.After(time.Second):
		t.Fatal("send channel not closed on shutdown")
	}
	if h.ClientCount() != 0 {
		t.Errorf("client count after shutdown: got %d, want 0", h.ClientCount())
	}
}
