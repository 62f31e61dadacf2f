package game

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestMemoryTableStoreConsumeOnce(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryTableStore()
	session := Session{LedgerTime: 1000, Seed: 1001}
	if err := store.Save(ctx, "256700000001", session, NewTable(session.Seed), 1180, time.Minute); err != nil {
		t.Fatalf("save: %v", err)
	}

	var wins int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := store.Consume(ctx, "256700000001", func(Session, Table) error { return nil })
			if err == nil {
				atomic.AddInt32(&wins, 1)
			} else if !errors.Is(err, ErrInvalidTable) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if wins != 1 {
		t.Errorf("table consumed %d times, want 1", wins)
	}
}

func TestMemoryTableStoreFailedCheckKeepsTable(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryTableStore()
	session := Session{LedgerTime: 1000, Seed: 1001}
	store.Save(ctx, "p", session, NewTable(session.Seed), 1180, time.Minute)

	rejected := errors.New("rejected")
	if _, _, err := store.Consume(ctx, "p", func(Session, Table) error { return rejected }); err != rejected {
		t.Fatalf("err = %v, want the check's error", err)
	}
	got, table, err := store.Load(ctx, "p")
	if err != nil {
		t.Fatalf("table removed by a failed check: %v", err)
	}
	if got != session || !table.Complete() {
		t.Errorf("stored table changed: %+v", got)
	}
}

func TestMemoryTableStoreCopiesTables(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryTableStore()
	table := NewTable(5)
	store.Save(ctx, "p", Session{}, table, 0, time.Minute)

	table.Balls[0].PositionX = -1
	_, loaded, _ := store.Load(ctx, "p")
	if loaded.Balls[0].PositionX == -1 {
		t.Errorf("store shares the caller's slice")
	}
}

func TestMemoryTableStoreTTL(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryTableStore()
	store.Save(ctx, "p", Session{}, NewTable(5), 0, -time.Second)

	if _, _, err := store.Load(ctx, "p"); err != ErrInvalidTable {
		t.Errorf("err = %v, want ErrInvalidTable for an evicted table", err)
	}
}

func TestMemoryTableStoreExpiredAndSequence(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryTableStore()
	store.Save(ctx, "early", Session{}, NewTable(1), 100, time.Minute)
	store.Save(ctx, "late", Session{}, NewTable(2), 300, time.Minute)

	due, err := store.Expired(ctx, 200)
	if err != nil {
		t.Fatal(err)
	}
	if len(due) != 1 || due[0] != "early" {
		t.Errorf("expired = %v, want [early]", due)
	}

	a, _ := store.NextSequence(ctx)
	b, _ := store.NextSequence(ctx)
	if a != 1 || b != 2 {
		t.Errorf("sequence = %d,%d, want 1,2", a, b)
	}
}

func TestMemoryTableStoreRestore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryTableStore()
	old := Session{LedgerTime: 1000, Seed: 1001}

	if ok, err := store.Restore(ctx, "p", old, NewTable(old.Seed), 1180, time.Minute); err != nil || !ok {
		t.Fatalf("restore into empty slot = %v, %v", ok, err)
	}

	newer := Session{LedgerTime: 1001, Seed: 1003}
	store.Save(ctx, "p", newer, NewTable(newer.Seed), 1181, time.Minute)
	if ok, _ := store.Restore(ctx, "p", old, NewTable(old.Seed), 1180, time.Minute); ok {
		t.Errorf("restore replaced a newer table")
	}
	if got, _, _ := store.Load(ctx, "p"); got != newer {
		t.Errorf("session = %+v, want %+v", got, newer)
	}
}
