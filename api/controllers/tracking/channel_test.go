package tracking

import (
	"context"
	"testing"
)

func TestWSChannelSendFailsWhenQueueFull(t *testing.T) {
	ch := &wsChannel{send: make(chan []byte, 1), done: make(chan struct{})}
	// Mark closed up front so close() never touches the nil connection.
	ch.closeOnce.Do(func() {})

	if err := ch.Send(context.Background(), []byte("a")); err != nil {
		t.Fatalf("first send: %v", err)
	}
	if err := ch.Send(context.Background(), []byte("b")); err != errSendQueueFull {
		t.Fatalf("expected queue full, got %v", err)
	}
}

func TestWSChannelSendFailsAfterClose(t *testing.T) {
	ch := &wsChannel{send: make(chan []byte, 1), done: make(chan struct{})}
	ch.closeOnce.Do(func() { close(ch.done) })

	if err := ch.Send(context.Background(), []byte("a")); err != errChannelClosed {
		t.Fatalf("expected closed, got %v", err)
	}
}
