package mcp

import (
	"context"
	"os"
	"time"

	"cmaeval/internal/logging"
)

// WatchParent cancels ctx through cancelFn once the parent process exits, so
// a stdio server does not outlive the client that spawned it.
//
// It must not read stdin: the stdio transport owns it exclusively.
func WatchParent(ctx context.Context, interval time.Duration, cancelFn context.CancelFunc) {
	ppid := os.Getppid()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-time.After(interval):
				if os.Getppid() != ppid {
					logging.New("mcp").Warn("parent process exited, shutting down", "ppid", ppid)
					cancelFn()
					return
				}
			}
		}
	}()
}
