package mcp

import (
	"context"
	"testing"
	"time"
)

func TestWatchParent_StopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	called := make(chan struct{}, 1)
	WatchParent(ctx, 10*time.Millisecond, func() { called <- struct{}{} })

	time.Sleep(30 * time.Millisecond)
	cancel()
	time.Sleep(30 * time.Millisecond)

	select {
	case <-called:
		t.Error("cancelFn called while parent is alive")
	default:
	}
}
