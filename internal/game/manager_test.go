package game

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/playpool/snooker/internal/accounts"
	"github.com/playpool/snooker/internal/admin"
	"github.com/playpool/snooker/internal/config"
	"github.com/playpool/snooker/internal/models"
	"github.com/shopspring/decimal"
)

type fakeBootstrap struct {
	cfg *models.GameConfig
}

func (f *fakeBootstrap) Get(context.Context) (*models.GameConfig, error) {
	if f.cfg == nil {
		return nil, admin.ErrNoAdmin
	}
	return f.cfg, nil
}

type fakeLedger struct {
	mu       sync.Mutex
	balances map[string]decimal.Decimal
	failRefs map[string]bool // reference prefix -> fail
	before   func(reference string)
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{balances: map[string]decimal.Decimal{}, failRefs: map[string]bool{}}
}

func (l *fakeLedger) key(asset, owner string) string { return asset + "/" + owner }

func (l *fakeLedger) set(asset, owner string, v int64) {
	l.balances[l.key(asset, owner)] = decimal.NewFromInt(v)
}

func (l *fakeLedger) get(asset, owner string) int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[l.key(asset, owner)].IntPart()
}

func (l *fakeLedger) Transfer(_ context.Context, asset, from, to string, amount decimal.Decimal, reference string) error {
	if l.before != nil {
		l.before(reference)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	for prefix := range l.failRefs {
		if strings.HasPrefix(reference, prefix) {
			return errors.New("ledger unavailable")
		}
	}
	if l.balances[l.key(asset, from)].LessThan(amount) {
		return fmt.Errorf("%w: %s", accounts.ErrInsufficientFunds, from)
	}
	l.balances[l.key(asset, from)] = l.balances[l.key(asset, from)].Sub(amount)
	l.balances[l.key(asset, to)] = l.balances[l.key(asset, to)].Add(amount)
	return nil
}

func (l *fakeLedger) Balance(_ context.Context, asset, owner string) (decimal.Decimal, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[l.key(asset, owner)], nil
}

type recorder struct {
	mu     sync.Mutex
	plays  []models.Play
	events []Event
}

func (r *recorder) RecordPlay(_ context.Context, p models.Play) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.plays = append(r.plays, p)
	return nil
}

func (r *recorder) Publish(_ context.Context, ev Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *recorder) eventTypes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var types []string
	for _, ev := range r.events {
		types = append(types, ev.Type)
	}
	return types
}

const testPlayer = "256700000001"

type harness struct {
	mgr    *Manager
	ledger *fakeLedger
	rec    *recorder
	now    time.Time
}

func (h *harness) advance(d time.Duration) { h.now = h.now.Add(d) }

func newHarness(t *testing.T, payment, reward int64) *harness {
	t.Helper()
	h := &harness{
		ledger: newFakeLedger(),
		rec:    &recorder{},
		now:    time.Unix(1700000000, 0),
	}
	boot := &fakeBootstrap{cfg: &models.GameConfig{
		AdminPhone:    "256700000000",
		PaymentToken:  "XLM",
		PaymentAmount: decimal.NewFromInt(payment),
		RewardToken:   "SNK",
		RewardAmount:  decimal.NewFromInt(reward),
	}}
	h.mgr = NewManager(NewMemoryTableStore(), boot, h.ledger, h.rec, h.rec, &config.Config{TurnWindowSeconds: 180, TableTTLSeconds: 600})
	h.mgr.SetClock(func() time.Time { return h.now })
	return h
}

func maximumShot(table Table) []Ball {
	shot := make([]Ball, MaxBalls)
	for i := range shot {
		shot[i] = aimAt(table.Balls[i], table.Pockets[i])
	}
	return shot
}

func TestManagerRequiresConfiguration(t *testing.T) {
	mgr := NewManager(NewMemoryTableStore(), &fakeBootstrap{}, newFakeLedger(), nil, nil, nil)

	if _, _, err := mgr.InsertCoin(context.Background(), testPlayer); !errors.Is(err, admin.ErrNoAdmin) {
		t.Errorf("InsertCoin err = %v, want ErrNoAdmin", err)
	}
	if _, err := mgr.Play(context.Background(), testPlayer, make([]Ball, MaxBalls)); !errors.Is(err, admin.ErrNoAdmin) {
		t.Errorf("Play err = %v, want ErrNoAdmin", err)
	}
	if _, err := mgr.Withdraw(context.Background(), "256700000000", decimal.NewFromInt(1)); !errors.Is(err, admin.ErrNoAdmin) {
		t.Errorf("Withdraw err = %v, want ErrNoAdmin", err)
	}
}

func TestInsertCoinChargesAndDeals(t *testing.T) {
	h := newHarness(t, 3, 0)
	h.ledger.set("XLM", testPlayer, 10)

	session, table, err := h.mgr.InsertCoin(context.Background(), testPlayer)
	if err != nil {
		t.Fatalf("InsertCoin: %v", err)
	}

	if session.LedgerTime != 1700000000 || session.Seed != TableSeed(1700000000, 1) {
		t.Errorf("session = %+v", session)
	}
	want := NewTable(session.Seed)
	for i := 0; i < MaxBalls; i++ {
		if table.Balls[i] != want.Balls[i] || table.Pockets[i] != want.Pockets[i] {
			t.Fatalf("dealt table does not match the seed at index %d", i)
		}
	}
	if got := h.ledger.get("XLM", testPlayer); got != 7 {
		t.Errorf("player balance = %d, want 7", got)
	}
	if got := h.ledger.get("XLM", accounts.HouseAccount); got != 3 {
		t.Errorf("house balance = %d, want 3", got)
	}

	// The next table uses the next sequence number.
	session2, _, err := h.mgr.InsertCoin(context.Background(), testPlayer)
	if err != nil {
		t.Fatalf("second InsertCoin: %v", err)
	}
	if session2.Seed != session.Seed+1 {
		t.Errorf("second seed = %d, want %d", session2.Seed, session.Seed+1)
	}
}

func TestInsertCoinWithoutFundsDealsNothing(t *testing.T) {
	h := newHarness(t, 3, 0)
	h.ledger.set("XLM", testPlayer, 2)

	if _, _, err := h.mgr.InsertCoin(context.Background(), testPlayer); !errors.Is(err, accounts.ErrInsufficientFunds) {
		t.Fatalf("err = %v, want ErrInsufficientFunds", err)
	}
	if _, _, err := h.mgr.CurrentTable(context.Background(), testPlayer); !errors.Is(err, ErrInvalidTable) {
		t.Errorf("table stored after failed payment: %v", err)
	}
}

func TestPlayMaximumBreakPaysReward(t *testing.T) {
	h := newHarness(t, 0, 50)
	h.ledger.set("SNK", accounts.HouseAccount, 100)
	ctx := context.Background()

	_, table, err := h.mgr.InsertCoin(ctx, testPlayer)
	if err != nil {
		t.Fatalf("InsertCoin: %v", err)
	}

	h.advance(30 * time.Second)
	result, err := h.mgr.Play(ctx, testPlayer, maximumShot(table))
	if err != nil {
		t.Fatalf("Play: %v", err)
	}
	if result.Score != MaximumBreak || !result.RewardPaid {
		t.Fatalf("result = %+v, want a paid maximum break", result)
	}
	if got := h.ledger.get("SNK", testPlayer); got != 50 {
		t.Errorf("player reward balance = %d, want 50", got)
	}
	if got := h.ledger.get("SNK", accounts.HouseAccount); got != 50 {
		t.Errorf("house balance = %d, want 50", got)
	}

	if len(h.rec.plays) != 1 || h.rec.plays[0].Score != MaximumBreak || h.rec.plays[0].ID.String() != result.PlayID {
		t.Errorf("recorded plays = %+v", h.rec.plays)
	}
	types := h.rec.eventTypes()
	if len(types) != 2 || types[0] != EventPlayResult || types[1] != EventMaximumBreak {
		t.Errorf("events = %v", types)
	}

	// Single use.
	if _, err := h.mgr.Play(ctx, testPlayer, maximumShot(table)); !errors.Is(err, ErrInvalidTable) {
		t.Errorf("replay err = %v, want ErrInvalidTable", err)
	}
}

func TestPlayWithoutRewardConfigured(t *testing.T) {
	h := newHarness(t, 0, 0)
	ctx := context.Background()
	_, table, _ := h.mgr.InsertCoin(ctx, testPlayer)

	result, err := h.mgr.Play(ctx, testPlayer, maximumShot(table))
	if err != nil {
		t.Fatalf("Play: %v", err)
	}
	if result.Score != MaximumBreak || result.RewardPaid {
		t.Errorf("result = %+v, want unpaid maximum break", result)
	}
}

func TestPlayMissedShots(t *testing.T) {
	h := newHarness(t, 0, 50)
	h.ledger.set("SNK", accounts.HouseAccount, 100)
	ctx := context.Background()
	h.mgr.InsertCoin(ctx, testPlayer)

	result, err := h.mgr.Play(ctx, testPlayer, make([]Ball, MaxBalls))
	if err != nil {
		t.Fatalf("Play: %v", err)
	}
	if result.Score != 0 || result.RewardPaid {
		t.Errorf("result = %+v, want zero score", result)
	}
	if got := h.ledger.get("SNK", accounts.HouseAccount); got != 100 {
		t.Errorf("house balance = %d, want 100", got)
	}
	if types := h.rec.eventTypes(); len(types) != 1 || types[0] != EventPlayResult {
		t.Errorf("events = %v", types)
	}
}

func TestPlayStaleTable(t *testing.T) {
	h := newHarness(t, 0, 0)
	ctx := context.Background()
	_, table, _ := h.mgr.InsertCoin(ctx, testPlayer)

	h.advance(181 * time.Second)
	if _, err := h.mgr.Play(ctx, testPlayer, maximumShot(table)); !errors.Is(err, ErrInvalidTable) {
		t.Fatalf("err = %v, want ErrInvalidTable", err)
	}
	if _, _, err := h.mgr.CurrentTable(ctx, testPlayer); err != nil {
		t.Errorf("rejected play must not remove the table: %v", err)
	}
	if len(h.rec.plays) != 0 {
		t.Errorf("stale play recorded")
	}
}

func TestPlayWindowBoundary(t *testing.T) {
	h := newHarness(t, 0, 0)
	ctx := context.Background()
	_, table, _ := h.mgr.InsertCoin(ctx, testPlayer)

	h.advance(180 * time.Second)
	if _, err := h.mgr.Play(ctx, testPlayer, maximumShot(table)); err != nil {
		t.Errorf("play at the end of the window rejected: %v", err)
	}
}

func TestPlayWithoutTable(t *testing.T) {
	h := newHarness(t, 0, 0)
	if _, err := h.mgr.Play(context.Background(), testPlayer, make([]Ball, MaxBalls)); !errors.Is(err, ErrInvalidTable) {
		t.Errorf("err = %v, want ErrInvalidTable", err)
	}
}

func TestPlayShortShotKeepsTable(t *testing.T) {
	h := newHarness(t, 0, 0)
	ctx := context.Background()
	h.mgr.InsertCoin(ctx, testPlayer)

	if _, err := h.mgr.Play(ctx, testPlayer, make([]Ball, MaxBalls-1)); !errors.Is(err, ErrInvalidShot) {
		t.Fatalf("err = %v, want ErrInvalidShot", err)
	}
	if _, _, err := h.mgr.CurrentTable(ctx, testPlayer); err != nil {
		t.Errorf("table consumed by an invalid shot: %v", err)
	}
}

func TestPlayRewardFailureRestoresTable(t *testing.T) {
	h := newHarness(t, 0, 50)
	h.ledger.set("SNK", accounts.HouseAccount, 100)
	h.ledger.failRefs["reward:"] = true
	ctx := context.Background()
	_, table, _ := h.mgr.InsertCoin(ctx, testPlayer)

	if _, err := h.mgr.Play(ctx, testPlayer, maximumShot(table)); err == nil {
		t.Fatalf("expected reward failure")
	}
	if len(h.rec.plays) != 0 || len(h.rec.eventTypes()) != 0 {
		t.Errorf("failed turn was recorded or announced")
	}

	delete(h.ledger.failRefs, "reward:")
	result, err := h.mgr.Play(ctx, testPlayer, maximumShot(table))
	if err != nil {
		t.Fatalf("retry after restore: %v", err)
	}
	if !result.RewardPaid {
		t.Errorf("reward not paid on retry")
	}
}

func TestPlayRewardFailureKeepsNewerTable(t *testing.T) {
	h := newHarness(t, 0, 50)
	h.ledger.set("SNK", accounts.HouseAccount, 100)
	h.ledger.failRefs["reward:"] = true
	ctx := context.Background()
	_, table, _ := h.mgr.InsertCoin(ctx, testPlayer)

	var newer Table
	h.ledger.before = func(reference string) {
		if strings.HasPrefix(reference, "reward:") {
			h.advance(time.Second)
			_, newer, _ = h.mgr.InsertCoin(ctx, testPlayer)
		}
	}
	if _, err := h.mgr.Play(ctx, testPlayer, maximumShot(table)); err == nil {
		t.Fatalf("expected reward failure")
	}

	_, current, err := h.mgr.CurrentTable(ctx, testPlayer)
	if err != nil {
		t.Fatalf("newer table lost: %v", err)
	}
	if current.Balls[0] != newer.Balls[0] || current.Pockets[0] != newer.Pockets[0] {
		t.Errorf("failed turn overwrote the newer table")
	}
}

func TestInsertCoinReplacesUnplayedTable(t *testing.T) {
	h := newHarness(t, 0, 0)
	ctx := context.Background()
	h.mgr.InsertCoin(ctx, testPlayer)
	_, second, _ := h.mgr.InsertCoin(ctx, testPlayer)

	_, current, err := h.mgr.CurrentTable(ctx, testPlayer)
	if err != nil {
		t.Fatal(err)
	}
	if current.Balls[0] != second.Balls[0] || current.Pockets[0] != second.Pockets[0] {
		t.Errorf("current table is not the latest one")
	}
}

func TestWithdraw(t *testing.T) {
	h := newHarness(t, 0, 50)
	h.ledger.set("SNK", accounts.HouseAccount, 100)
	ctx := context.Background()

	balance, err := h.mgr.Withdraw(ctx, "GADMIN", decimal.NewFromInt(40))
	if err != nil {
		t.Fatalf("Withdraw: %v", err)
	}
	if balance.IntPart() != 100 {
		t.Errorf("returned balance = %s, want pre-transfer 100", balance)
	}
	if got := h.ledger.get("SNK", "GADMIN"); got != 40 {
		t.Errorf("withdrawn = %d, want 40", got)
	}

	balance, err = h.mgr.Withdraw(ctx, "GADMIN", decimal.NewFromInt(500))
	if err != nil {
		t.Fatalf("Withdraw over balance: %v", err)
	}
	if balance.IntPart() != 60 || h.ledger.get("SNK", accounts.HouseAccount) != 60 {
		t.Errorf("over-balance withdraw moved funds (balance=%s)", balance)
	}

	if _, err := h.mgr.Withdraw(ctx, "GADMIN", decimal.Zero); !errors.Is(err, accounts.ErrInvalidAmount) {
		t.Errorf("zero withdraw err = %v", err)
	}
	if _, err := h.mgr.Withdraw(ctx, "GADMIN", decimal.RequireFromString("1.5")); !errors.Is(err, accounts.ErrInvalidAmount) {
		t.Errorf("fractional withdraw err = %v, want ErrInvalidAmount", err)
	}
}

func TestExpireTables(t *testing.T) {
	h := newHarness(t, 0, 0)
	ctx := context.Background()
	h.mgr.InsertCoin(ctx, testPlayer)
	h.advance(100 * time.Second)
	h.mgr.InsertCoin(ctx, "256700000002")

	h.advance(100 * time.Second)
	n, err := h.mgr.ExpireTables(ctx)
	if err != nil {
		t.Fatalf("ExpireTables: %v", err)
	}
	if n != 1 {
		t.Errorf("expired %d tables, want 1", n)
	}
	if _, _, err := h.mgr.CurrentTable(ctx, testPlayer); !errors.Is(err, ErrInvalidTable) {
		t.Errorf("expired table still stored")
	}
	if _, _, err := h.mgr.CurrentTable(ctx, "256700000002"); err != nil {
		t.Errorf("fresh table removed: %v", err)
	}
	if len(h.rec.events) != 1 || h.rec.events[0].Type != EventTableExpired || h.rec.events[0].Player != testPlayer {
		t.Errorf("events = %+v", h.rec.events)
	}
}

func TestPublishersFanOut(t *testing.T) {
	a, b := &recorder{}, &recorder{}
	ps := Publishers{a, b}
	if err := ps.Publish(context.Background(), Event{Type: EventPlayResult}); err != nil {
		t.Fatal(err)
	}
	if len(a.events) != 1 || len(b.events) != 1 {
		t.Errorf("fan-out reached %d and %d publishers", len(a.events), len(b.events))
	}
}
