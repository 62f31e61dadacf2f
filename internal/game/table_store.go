package game

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	tableKeyPrefix   = "snooker:table:"
	sequenceKey      = "snooker:sequence"
	tableDeadlineKey = "snooker:table_deadlines"
)

// storedTable is the redis payload of a pending table.
type storedTable struct {
	Session Session `json:"session"`
	Table   Table   `json:"table"`
}

func tableKey(player string) string {
	return tableKeyPrefix + player
}

// RedisTableStore keeps pending tables in redis with a TTL, the same way
// temporary game state is kept out of postgres.
type RedisTableStore struct {
	rdb *redis.Client
}

// NewRedisTableStore returns a table store backed by rdb.
func NewRedisTableStore(rdb *redis.Client) *RedisTableStore {
	return &RedisTableStore{rdb: rdb}
}

func (s *RedisTableStore) Save(ctx context.Context, player string, session Session, table Table, deadline uint64, ttl time.Duration) error {
	data, err := json.Marshal(storedTable{Session: session, Table: table})
	if err != nil {
		return err
	}
	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SetEx(ctx, tableKey(player), data, ttl)
		pipe.ZAdd(ctx, tableDeadlineKey, redis.Z{Score: float64(deadline), Member: player})
		return nil
	})
	return err
}

func (s *RedisTableStore) Load(ctx context.Context, player string) (Session, Table, error) {
	raw, err := s.rdb.Get(ctx, tableKey(player)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Session{}, Table{}, ErrInvalidTable
		}
		return Session{}, Table{}, err
	}
	return decodeTable(raw)
}

// Consume watches the table key so that a concurrent consumer or a newly
// dealt table aborts this transaction instead of being deleted under it.
func (s *RedisTableStore) Consume(ctx context.Context, player string, check func(Session, Table) error) (Session, Table, error) {
	key := tableKey(player)
	var session Session
	var table Table

	err := s.rdb.Watch(ctx, func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return ErrInvalidTable
			}
			return err
		}
		session, table, err = decodeTable(raw)
		if err != nil {
			return err
		}
		if err := check(session, table); err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, key)
			pipe.ZRem(ctx, tableDeadlineKey, player)
			return nil
		})
		return err
	}, key)

	if errors.Is(err, redis.TxFailedErr) {
		return Session{}, Table{}, ErrInvalidTable
	}
	if err != nil {
		return Session{}, Table{}, err
	}
	return session, table, nil
}

// Restore writes the table back unless the key exists. A concurrent write to
// the key aborts the transaction and counts as a newer table.
func (s *RedisTableStore) Restore(ctx context.Context, player string, session Session, table Table, deadline uint64, ttl time.Duration) (bool, error) {
	key := tableKey(player)
	data, err := json.Marshal(storedTable{Session: session, Table: table})
	if err != nil {
		return false, err
	}

	err = s.rdb.Watch(ctx, func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return err
		}
		if n > 0 {
			return errTableReplaced
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.SetEx(ctx, key, data, ttl)
			pipe.ZAdd(ctx, tableDeadlineKey, redis.Z{Score: float64(deadline), Member: player})
			return nil
		})
		return err
	}, key)

	if errors.Is(err, errTableReplaced) || errors.Is(err, redis.TxFailedErr) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

var errTableReplaced = errors.New("table replaced")

func (s *RedisTableStore) NextSequence(ctx context.Context) (uint64, error) {
	n, err := s.rdb.Incr(ctx, sequenceKey).Result()
	if err != nil {
		return 0, err
	}
	return uint64(n), nil
}

// Expired claims due players with ZREM so that only one worker handles each.
func (s *RedisTableStore) Expired(ctx context.Context, now uint64) ([]string, error) {
	members, err := s.rdb.ZRangeByScore(ctx, tableDeadlineKey, &redis.ZRangeBy{
		Min: "-inf",
		Max: "(" + strconv.FormatUint(now, 10),
	}).Result()
	if err != nil {
		return nil, err
	}

	var claimed []string
	for _, m := range members {
		if removed, _ := s.rdb.ZRem(ctx, tableDeadlineKey, m).Result(); removed > 0 {
			claimed = append(claimed, m)
		}
	}
	return claimed, nil
}

func decodeTable(raw []byte) (Session, Table, error) {
	var st storedTable
	if err := json.Unmarshal(raw, &st); err != nil {
		return Session{}, Table{}, fmt.Errorf("decode table: %w", err)
	}
	return st.Session, st.Table, nil
}

// MemoryTableStore is an in-process TableStore for single-instance
// deployments without redis.
type MemoryTableStore struct {
	mu       sync.Mutex
	tables   map[string]memoryTable
	sequence uint64
}

type memoryTable struct {
	storedTable
	deadline uint64
	expires  time.Time
}

// NewMemoryTableStore returns an empty in-memory store.
func NewMemoryTableStore() *MemoryTableStore {
	return &MemoryTableStore{tables: make(map[string]memoryTable)}
}

func (s *MemoryTableStore) Save(_ context.Context, player string, session Session, table Table, deadline uint64, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tables[player] = memoryTable{
		storedTable: storedTable{Session: session, Table: cloneTable(table)},
		deadline:    deadline,
		expires:     time.Now().Add(ttl),
	}
	return nil
}

// lookup returns a live entry; callers hold mu.
func (s *MemoryTableStore) lookup(player string) (memoryTable, bool) {
	e, ok := s.tables[player]
	if !ok {
		return memoryTable{}, false
	}
	if time.Now().After(e.expires) {
		delete(s.tables, player)
		return memoryTable{}, false
	}
	return e, true
}

func (s *MemoryTableStore) Load(_ context.Context, player string) (Session, Table, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.lookup(player)
	if !ok {
		return Session{}, Table{}, ErrInvalidTable
	}
	return e.Session, cloneTable(e.Table), nil
}

func (s *MemoryTableStore) Consume(_ context.Context, player string, check func(Session, Table) error) (Session, Table, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.lookup(player)
	if !ok {
		return Session{}, Table{}, ErrInvalidTable
	}
	if err := check(e.Session, e.Table); err != nil {
		return Session{}, Table{}, err
	}
	delete(s.tables, player)
	return e.Session, e.Table, nil
}

func (s *MemoryTableStore) Restore(_ context.Context, player string, session Session, table Table, deadline uint64, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.lookup(player); ok {
		return false, nil
	}
	s.tables[player] = memoryTable{
		storedTable: storedTable{Session: session, Table: cloneTable(table)},
		deadline:    deadline,
		expires:     time.Now().Add(ttl),
	}
	return true, nil
}

func (s *MemoryTableStore) NextSequence(context.Context) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sequence++
	return s.sequence, nil
}

func (s *MemoryTableStore) Expired(_ context.Context, now uint64) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var due []string
	for player, e := range s.tables {
		if e.deadline < now {
			due = append(due, player)
		}
	}
	return due, nil
}

func cloneTable(t Table) Table {
	return Table{
		Balls:   append([]Ball(nil), t.Balls...),
		Pockets: append([]Pocket(nil), t.Pockets...),
	}
}
