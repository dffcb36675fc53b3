package badger

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/Layr-Labs/tezos-client-go/pkg/persistence"
	badgerdb "github.com/dgraph-io/badger/v3"
	"go.uber.org/zap"
)

// Key prefixes for namespacing
const (
	keyPrefixKeyEntry    = "key:"
	keyPrefixSubmission  = "submission:"
	keySchemaVersion     = "metadata:schema_version"
	currentSchemaVersion = "v1"

	gcInterval     = 5 * time.Minute
	gcDiscardRatio = 0.5
)

// BadgerPersistence stores key entries and submission records on disk.
type BadgerPersistence struct {
	db       *badgerdb.DB
	logger   *zap.Logger
	gcCancel context.CancelFunc
	gcWg     sync.WaitGroup
	mu       sync.RWMutex
	closed   bool
}

var _ persistence.IClientPersistence = (*BadgerPersistence)(nil)

// NewBadgerPersistence opens (or creates) the database at dataPath with
// synchronous writes and starts value log GC in the background.
func NewBadgerPersistence(dataPath string, logger *zap.Logger) (*BadgerPersistence, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	absPath, err := filepath.Abs(dataPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path: %w", err)
	}

	opts := badgerdb.DefaultOptions(absPath)
	opts.Logger = newZapBadgerLogger(logger)
	opts.SyncWrites = true
	opts.CompactL0OnClose = true
	opts.NumVersionsToKeep = 1

	db, err := badgerdb.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database at %s: %w", absPath, err)
	}

	bp := &BadgerPersistence{
		db:     db,
		logger: logger,
	}
	if err := bp.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	bp.gcCancel = cancel
	bp.gcWg.Add(1)
	go bp.runGC(ctx)

	logger.Sugar().Infow("Badger persistence initialized", "path", absPath)
	return bp, nil
}

func (b *BadgerPersistence) initSchema() error {
	return b.db.Update(func(txn *badgerdb.Txn) error {
		item, err := txn.Get([]byte(keySchemaVersion))
		if errors.Is(err, badgerdb.ErrKeyNotFound) {
			return txn.Set([]byte(keySchemaVersion), []byte(currentSchemaVersion))
		}
		if err != nil {
			return fmt.Errorf("failed to read schema version: %w", err)
		}

		var existing string
		if err := item.Value(func(val []byte) error {
			existing = string(val)
			return nil
		}); err != nil {
			return fmt.Errorf("failed to read schema version value: %w", err)
		}
		if existing != currentSchemaVersion {
			return fmt.Errorf("unsupported schema version: %s (expected: %s)", existing, currentSchemaVersion)
		}
		return nil
	})
}

func (b *BadgerPersistence) runGC(ctx context.Context) {
	defer b.gcWg.Done()

	ticker := time.NewTicker(gcInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			err := b.db.RunValueLogGC(gcDiscardRatio)
			if err != nil && !errors.Is(err, badgerdb.ErrNoRewrite) {
				b.logger.Sugar().Warnw("Badger GC error", "error", err)
			}
		case <-ctx.Done():
			return
		}
	}
}

// get returns a copy of the value at key, or nil when absent.
func (b *BadgerPersistence) get(key string) ([]byte, error) {
	var data []byte
	err := b.db.View(func(txn *badgerdb.Txn) error {
		item, err := txn.Get([]byte(key))
		if errors.Is(err, badgerdb.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	return data, err
}

func (b *BadgerPersistence) set(key string, data []byte) error {
	return b.db.Update(func(txn *badgerdb.Txn) error {
		return txn.Set([]byte(key), data)
	})
}

func (b *BadgerPersistence) delete(key string) error {
	return b.db.Update(func(txn *badgerdb.Txn) error {
		return txn.Delete([]byte(key))
	})
}

// scan calls fn with every value under prefix.
func (b *BadgerPersistence) scan(prefix string, fn func(key string, val []byte)) error {
	return b.db.View(func(txn *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.Prefix = []byte(prefix)

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			val, err := item.ValueCopy(nil)
			if err != nil {
				return fmt.Errorf("failed to read value: %w", err)
			}
			fn(string(item.KeyCopy(nil)), val)
		}
		return nil
	})
}

func (b *BadgerPersistence) SaveKeyEntry(entry *persistence.KeyEntry) error {
	if entry == nil {
		return fmt.Errorf("cannot save nil KeyEntry")
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return persistence.ErrClosed
	}

	data, err := persistence.MarshalKeyEntry(entry)
	if err != nil {
		return fmt.Errorf("cannot save KeyEntry: %w", err)
	}
	return b.set(keyPrefixKeyEntry+entry.Address, data)
}

func (b *BadgerPersistence) LoadKeyEntry(address string) (*persistence.KeyEntry, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil, persistence.ErrClosed
	}

	data, err := b.get(keyPrefixKeyEntry + address)
	if err != nil {
		return nil, fmt.Errorf("failed to load KeyEntry: %w", err)
	}
	if data == nil {
		return nil, nil
	}
	return persistence.UnmarshalKeyEntry(data)
}

func (b *BadgerPersistence) ListKeyEntries() ([]*persistence.KeyEntry, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil, persistence.ErrClosed
	}

	entries := make([]*persistence.KeyEntry, 0)
	err := b.scan(keyPrefixKeyEntry, func(key string, val []byte) {
		entry, err := persistence.UnmarshalKeyEntry(val)
		if err != nil {
			b.logger.Sugar().Warnw("Failed to unmarshal KeyEntry, skipping", "key", key, "error", err)
			return
		}
		entries = append(entries, entry)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list KeyEntries: %w", err)
	}
	persistence.SortKeyEntries(entries)
	return entries, nil
}

func (b *BadgerPersistence) DeleteKeyEntry(address string) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return persistence.ErrClosed
	}
	return b.delete(keyPrefixKeyEntry + address)
}

func (b *BadgerPersistence) SaveSubmission(record *persistence.SubmissionRecord) error {
	if record == nil {
		return fmt.Errorf("cannot save nil SubmissionRecord")
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return persistence.ErrClosed
	}

	data, err := persistence.MarshalSubmissionRecord(record)
	if err != nil {
		return fmt.Errorf("cannot save SubmissionRecord: %w", err)
	}
	return b.set(keyPrefixSubmission+record.ID, data)
}

func (b *BadgerPersistence) LoadSubmission(id string) (*persistence.SubmissionRecord, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil, persistence.ErrClosed
	}

	data, err := b.get(keyPrefixSubmission + id)
	if err != nil {
		return nil, fmt.Errorf("failed to load SubmissionRecord: %w", err)
	}
	if data == nil {
		return nil, nil
	}
	return persistence.UnmarshalSubmissionRecord(data)
}

func (b *BadgerPersistence) ListSubmissions() ([]*persistence.SubmissionRecord, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil, persistence.ErrClosed
	}

	records := make([]*persistence.SubmissionRecord, 0)
	err := b.scan(keyPrefixSubmission, func(key string, val []byte) {
		record, err := persistence.UnmarshalSubmissionRecord(val)
		if err != nil {
			b.logger.Sugar().Warnw("Failed to unmarshal SubmissionRecord, skipping", "key", key, "error", err)
			return
		}
		records = append(records, record)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list SubmissionRecords: %w", err)
	}
	persistence.SortSubmissions(records)
	return records, nil
}

func (b *BadgerPersistence) DeleteSubmission(id string) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return persistence.ErrClosed
	}
	return b.delete(keyPrefixSubmission + id)
}

func (b *BadgerPersistence) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()

	if b.gcCancel != nil {
		b.gcCancel()
	}
	b.gcWg.Wait()

	if err := b.db.Close(); err != nil {
		return fmt.Errorf("failed to close badger database: %w", err)
	}
	b.logger.Sugar().Info("Badger persistence closed")
	return nil
}

func (b *BadgerPersistence) HealthCheck() error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return persistence.ErrClosed
	}

	return b.db.View(func(txn *badgerdb.Txn) error {
		_, err := txn.Get([]byte(keySchemaVersion))
		if errors.Is(err, badgerdb.ErrKeyNotFound) {
			return fmt.Errorf("schema version not found - database may be corrupted")
		}
		return err
	})
}
