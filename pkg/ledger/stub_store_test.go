package ledger

import (
	"context"
	"fmt"
	"sync"
	"testing"
)

// stubStore is an in-memory Store with snapshot-rollback transactions and
// per-method error injection.
type stubStore struct {
	txMu sync.Mutex
	mu   sync.Mutex

	entries []Entry

	insertError  error
	getError     error
	findError    error
	updateError  error
	balanceError error
	sumError     error
	listError    error
}

func newStubStore(test *testing.T) *stubStore {
	test.Helper()
	return &stubStore{}
}

func (store *stubStore) WithTx(ctx context.Context, fn func(ctx context.Context, txStore Store) error) error {
	store.txMu.Lock()
	defer store.txMu.Unlock()
	store.mu.Lock()
	snapshot := make([]Entry, len(store.entries))
	copy(snapshot, store.entries)
	store.mu.Unlock()
	if err := fn(ctx, store); err != nil {
		store.mu.Lock()
		store.entries = snapshot
		store.mu.Unlock()
		return err
	}
	return nil
}

func (store *stubStore) InsertEntry(_ context.Context, entry Entry) error {
	if store.insertError != nil {
		return store.insertError
	}
	store.mu.Lock()
	defer store.mu.Unlock()
	for _, existing := range store.entries {
		if existing.IdempotencyKey == entry.IdempotencyKey {
			return fmt.Errorf("%w: %s", ErrDuplicateEntry, entry.IdempotencyKey)
		}
	}
	store.entries = append(store.entries, entry)
	return nil
}

func (store *stubStore) GetEntry(_ context.Context, entryID string) (Entry, error) {
	if store.getError != nil {
		return Entry{}, store.getError
	}
	store.mu.Lock()
	defer store.mu.Unlock()
	for _, entry := range store.entries {
		if entry.EntryID == entryID {
			return entry, nil
		}
	}
	return Entry{}, fmt.Errorf("%w: %s", ErrEntryNotFound, entryID)
}

func (store *stubStore) FindEntryByKey(_ context.Context, idempotencyKey string) (Entry, bool, error) {
	if store.findError != nil {
		return Entry{}, false, store.findError
	}
	store.mu.Lock()
	defer store.mu.Unlock()
	for _, entry := range store.entries {
		if entry.IdempotencyKey == idempotencyKey {
			return entry, true, nil
		}
	}
	return Entry{}, false, nil
}

func (store *stubStore) UpdateEntryStatus(_ context.Context, entryID string, from, to EntryStatus) (bool, error) {
	if store.updateError != nil {
		return false, store.updateError
	}
	store.mu.Lock()
	defer store.mu.Unlock()
	for index := range store.entries {
		if store.entries[index].EntryID == entryID && store.entries[index].Status == from {
			store.entries[index].Status = to
			return true, nil
		}
	}
	return false, nil
}

func (store *stubStore) SignedBalanceCents(_ context.Context, userID string) (int64, error) {
	if store.balanceError != nil {
		return 0, store.balanceError
	}
	store.mu.Lock()
	defer store.mu.Unlock()
	var signed int64
	for _, entry := range store.entries {
		if entry.UserID != userID || entry.Status != StatusConfirmed {
			continue
		}
		switch entry.Type {
		case EntryEarned:
			signed += entry.AmountCents.Int64()
		case EntryApplied, EntryExpired:
			signed -= entry.AmountCents.Int64()
		}
	}
	return signed, nil
}

func (store *stubStore) SumConfirmedCents(_ context.Context, userID string, entryType EntryType) (int64, error) {
	if store.sumError != nil {
		return 0, store.sumError
	}
	store.mu.Lock()
	defer store.mu.Unlock()
	var sum int64
	for _, entry := range store.entries {
		if entry.UserID == userID && entry.Status == StatusConfirmed && entry.Type == entryType {
			sum += entry.AmountCents.Int64()
		}
	}
	return sum, nil
}

func (store *stubStore) ListEntries(_ context.Context, userID string, filter Filter) ([]Entry, error) {
	if store.listError != nil {
		return nil, store.listError
	}
	store.mu.Lock()
	defer store.mu.Unlock()
	listed := make([]Entry, 0, filter.Limit)
	for index := len(store.entries) - 1; index >= 0; index-- {
		entry := store.entries[index]
		if entry.UserID != userID {
			continue
		}
		if filter.Type != "" && entry.Type != filter.Type {
			continue
		}
		if filter.Month != 0 && entry.Month != filter.Month {
			continue
		}
		if filter.Year != 0 && entry.Year != filter.Year {
			continue
		}
		listed = append(listed, entry)
		if len(listed) == filter.Limit {
			break
		}
	}
	return listed, nil
}

func (store *stubStore) entryCount() int {
	store.mu.Lock()
	defer store.mu.Unlock()
	return len(store.entries)
}

func (store *stubStore) entryAt(test *testing.T, index int) Entry {
	test.Helper()
	store.mu.Lock()
	defer store.mu.Unlock()
	if index >= len(store.entries) {
		test.Fatalf("entry index %d out of range (%d entries)", index, len(store.entries))
	}
	return store.entries[index]
}

func mustNewService(test *testing.T, store Store, options ...ServiceOption) *Service {
	test.Helper()
	service, err := NewService(store, func() int64 { return 1700000000 }, options...)
	if err != nil {
		test.Fatalf("service init: %v", err)
	}
	return service
}

// confirmEarned seeds a confirmed earned entry and returns its id.
func confirmEarned(test *testing.T, service *Service, userID string, amount AmountCents, refID string) string {
	test.Helper()
	entryID, err := service.CreateEntry(context.Background(), EntryInput{
		UserID:      userID,
		Type:        EntryEarned,
		AmountCents: amount,
		Month:       1,
		Year:        2024,
		RefID:       refID,
		RefType:     RefGeneration,
	})
	if err != nil {
		test.Fatalf("create earned entry: %v", err)
	}
	if err := service.ConfirmEntry(context.Background(), entryID); err != nil {
		test.Fatalf("confirm earned entry: %v", err)
	}
	return entryID
}
