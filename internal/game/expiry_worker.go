package game

import (
	"context"
	"log"
	"time"
)

// StartExpiryWorker periodically removes tables whose turn window has
// passed. It stops when ctx is cancelled.
func StartExpiryWorker(ctx context.Context, m *Manager, interval time.Duration) {
	if m == nil || interval <= 0 {
		log.Println("[EXPIRY] Manager or interval missing; expiry worker not started")
		return
	}

	log.Printf("[EXPIRY] Expiry worker started (every %s)", interval)
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				log.Println("[EXPIRY] Expiry worker stopping")
				return
			case <-ticker.C:
				n, err := m.ExpireTables(ctx)
				if err != nil {
					log.Printf("[EXPIRY] Failed to fetch expired tables: %v", err)
					continue
				}
				if n > 0 {
					log.Printf("[EXPIRY] Removed %d expired tables", n)
				}
			}
		}
	}()
}
