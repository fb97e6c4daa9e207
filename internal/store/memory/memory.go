// Package memory – хранилище документов в памяти с оптимистичными транзакциями.
// Используется в тестах и при STORE_DRIVER=memory.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/rajivgeraev/scentswap-api/internal/store"
)

const (
	collSwaps    = "swaps"
	collUsers    = "users"
	collListings = "listings"
	collMessages = "messages"
)

type record struct {
	version int64
	data    []byte
}

// Store хранит документы как JSON с версиями. Транзакция запоминает версии
// прочитанных документов и коллекций и при фиксации сверяет их с текущими.
type Store struct {
	mu       sync.Mutex
	clock    int64
	docs     map[string]record
	colls    map[string]int64
	retry    store.RetryConfig
	commitFn func() // вызывается перед фиксацией, только в тестах
}

// Option настраивает Store
type Option func(*Store)

// WithRetry задаёт политику повтора транзакций
func WithRetry(cfg store.RetryConfig) Option {
	return func(s *Store) { s.retry = cfg }
}

// New создаёт пустое хранилище
func New(opts ...Option) *Store {
	s := &Store{
		docs:  make(map[string]record),
		colls: make(map[string]int64),
		retry: store.DefaultRetryConfig(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RunInTx выполняет fn в оптимистичной транзакции с повтором при конфликте
func (s *Store) RunInTx(ctx context.Context, fn store.TxFunc) error {
	return store.Retry(ctx, s.retry, func() error {
		if err := ctx.Err(); err != nil {
			return err
		}
		tx := newTx(s)
		if err := fn(ctx, tx); err != nil {
			return err
		}
		return s.commit(tx)
	})
}

// Close ничего не делает
func (s *Store) Close(context.Context) error { return nil }

func (s *Store) commit(tx *memTx) error {
	if s.commitFn != nil {
		s.commitFn()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for key, seen := range tx.reads {
		if s.docs[key].version != seen {
			return fmt.Errorf("документ %s изменён: %w", key, store.ErrConflict)
		}
	}
	for coll, seen := range tx.collReads {
		if s.colls[coll] != seen {
			return fmt.Errorf("коллекция %s изменена: %w", coll, store.ErrConflict)
		}
	}

	for _, key := range tx.order {
		w := tx.writes[key]
		_, exists := s.docs[key]
		if w.deleted {
			if exists {
				delete(s.docs, key)
				s.colls[collectionOf(key)]++
			}
			continue
		}
		s.clock++
		s.docs[key] = record{version: s.clock, data: w.data}
		if !exists {
			s.colls[collectionOf(key)]++
		}
	}
	return nil
}

// collectionOf: "messages/<swap>/<id>" -> "messages/<swap>", "swaps/<id>" -> "swaps"
func collectionOf(key string) string {
	i := strings.LastIndex(key, "/")
	if i < 0 {
		return ""
	}
	return key[:i]
}

type pending struct {
	data    []byte
	deleted bool
}

type memTx struct {
	s         *Store
	reads     map[string]int64
	collReads map[string]int64
	writes    map[string]pending
	order     []string
}

func newTx(s *Store) *memTx {
	return &memTx{
		s:         s,
		reads:     make(map[string]int64),
		collReads: make(map[string]int64),
		writes:    make(map[string]pending),
	}
}

func (tx *memTx) get(key string) ([]byte, bool) {
	if w, ok := tx.writes[key]; ok {
		if w.deleted {
			return nil, false
		}
		return w.data, true
	}

	tx.s.mu.Lock()
	rec, ok := tx.s.docs[key]
	tx.s.mu.Unlock()

	if _, seen := tx.reads[key]; !seen {
		tx.reads[key] = rec.version
	}
	if !ok {
		return nil, false
	}
	return rec.data, true
}

// scan возвращает документы коллекции в порядке ключей, с учётом собственных записей
func (tx *memTx) scan(coll string) [][]byte {
	prefix := coll + "/"
	found := make(map[string][]byte)

	tx.s.mu.Lock()
	if _, seen := tx.collReads[coll]; !seen {
		tx.collReads[coll] = tx.s.colls[coll]
	}
	for key, rec := range tx.s.docs {
		if collectionOf(key) != coll || !strings.HasPrefix(key, prefix) {
			continue
		}
		if _, seen := tx.reads[key]; !seen {
			tx.reads[key] = rec.version
		}
		found[key] = rec.data
	}
	tx.s.mu.Unlock()

	for key, w := range tx.writes {
		if collectionOf(key) != coll {
			continue
		}
		if w.deleted {
			delete(found, key)
		} else {
			found[key] = w.data
		}
	}

	keys := make([]string, 0, len(found))
	for k := range found {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([][]byte, 0, len(keys))
	for _, k := range keys {
		out = append(out, found[k])
	}
	return out
}

func (tx *memTx) put(key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("ошибка сериализации %s: %w", key, err)
	}
	if _, ok := tx.writes[key]; !ok {
		tx.order = append(tx.order, key)
	}
	tx.writes[key] = pending{data: data}
	return nil
}

func (tx *memTx) del(key string) {
	if _, ok := tx.writes[key]; !ok {
		tx.order = append(tx.order, key)
	}
	tx.writes[key] = pending{deleted: true}
}

func (tx *memTx) load(key string, dst any) error {
	data, ok := tx.get(key)
	if !ok {
		return store.ErrNotFound
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("ошибка разбора %s: %w", key, err)
	}
	return nil
}

func swapKey(id string) string            { return collSwaps + "/" + id }
func userKey(uid string) string           { return collUsers + "/" + uid }
func listingKey(id string) string         { return collListings + "/" + id }
func messagesColl(swapID string) string   { return collMessages + "/" + swapID }
func messageKey(swapID, id string) string { return messagesColl(swapID) + "/" + id }

var (
	_ store.Store = (*Store)(nil)
	_ store.Tx    = (*memTx)(nil)
)
