package redis

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Layr-Labs/tezos-client-go/pkg/persistence"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Key prefixes for namespacing in Redis
const (
	keyPrefixKeyEntry    = "tezos:key:"
	keyPrefixSubmission  = "tezos:submission:"
	keySchemaVersion     = "tezos:metadata:schema_version"
	currentSchemaVersion = "v1"

	// Index sets for listing; Redis has no cheap prefix iteration.
	keySetKeyEntries  = "tezos:keys:index"
	keySetSubmissions = "tezos:submissions:index"

	connectTimeout = 5 * time.Second
)

// RedisPersistence stores key entries and submission records in Redis.
type RedisPersistence struct {
	client    *redis.Client
	logger    *zap.Logger
	keyPrefix string
	mu        sync.RWMutex
	closed    bool
}

var _ persistence.IClientPersistence = (*RedisPersistence)(nil)

type RedisConfig struct {
	// Address is host:port.
	Address  string
	Password string
	// DB is the Redis database number (0-15).
	DB int
	// KeyPrefix is prepended to every key so several clients can share a
	// server, e.g. "alice:" gives "alice:tezos:key:tz1...".
	KeyPrefix string
}

func NewRedisPersistence(cfg *RedisConfig, logger *zap.Logger) (*RedisPersistence, error) {
	if cfg == nil {
		return nil, fmt.Errorf("redis config cannot be nil")
	}
	if cfg.Address == "" {
		return nil, fmt.Errorf("redis address cannot be empty")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.Address, err)
	}

	rp := &RedisPersistence{
		client:    client,
		logger:    logger,
		keyPrefix: cfg.KeyPrefix,
	}
	if err := rp.initSchema(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Sugar().Infow("Redis persistence initialized",
		"address", cfg.Address,
		"db", cfg.DB,
		"key_prefix", cfg.KeyPrefix,
	)
	return rp, nil
}

func (r *RedisPersistence) prefixKey(key string) string {
	return r.keyPrefix + key
}

func (r *RedisPersistence) initSchema(ctx context.Context) error {
	schemaKey := r.prefixKey(keySchemaVersion)

	existing, err := r.client.Get(ctx, schemaKey).Result()
	if errors.Is(err, redis.Nil) {
		return r.client.Set(ctx, schemaKey, currentSchemaVersion, 0).Err()
	}
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}
	if existing != currentSchemaVersion {
		return fmt.Errorf("unsupported schema version: %s (expected: %s)", existing, currentSchemaVersion)
	}
	return nil
}

func (r *RedisPersistence) save(ctx context.Context, prefix, indexSet, id string, data []byte) error {
	pipe := r.client.TxPipeline()
	pipe.Set(ctx, r.prefixKey(prefix+id), data, 0)
	pipe.SAdd(ctx, r.prefixKey(indexSet), id)
	_, err := pipe.Exec(ctx)
	return err
}

func (r *RedisPersistence) load(ctx context.Context, prefix, id string) ([]byte, error) {
	data, err := r.client.Get(ctx, r.prefixKey(prefix+id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	return data, err
}

func (r *RedisPersistence) remove(ctx context.Context, prefix, indexSet, id string) error {
	pipe := r.client.TxPipeline()
	pipe.Del(ctx, r.prefixKey(prefix+id))
	pipe.SRem(ctx, r.prefixKey(indexSet), id)
	_, err := pipe.Exec(ctx)
	return err
}

// list fetches every value named in indexSet, dropping index members
// whose value has disappeared.
func (r *RedisPersistence) list(ctx context.Context, prefix, indexSet string, fn func(key string, val []byte)) error {
	indexKey := r.prefixKey(indexSet)
	ids, err := r.client.SMembers(ctx, indexKey).Result()
	if err != nil {
		return fmt.Errorf("failed to read index %s: %w", indexSet, err)
	}
	if len(ids) == 0 {
		return nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = r.prefixKey(prefix + id)
	}
	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return fmt.Errorf("failed to fetch values: %w", err)
	}

	for i, val := range values {
		if val == nil {
			r.client.SRem(ctx, indexKey, ids[i])
			continue
		}
		data, ok := val.(string)
		if !ok {
			r.logger.Sugar().Warnw("Unexpected value type", "key", keys[i])
			continue
		}
		fn(keys[i], []byte(data))
	}
	return nil
}

func (r *RedisPersistence) SaveKeyEntry(entry *persistence.KeyEntry) error {
	if entry == nil {
		return fmt.Errorf("cannot save nil KeyEntry")
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return persistence.ErrClosed
	}

	data, err := persistence.MarshalKeyEntry(entry)
	if err != nil {
		return fmt.Errorf("cannot save KeyEntry: %w", err)
	}
	if err := r.save(context.Background(), keyPrefixKeyEntry, keySetKeyEntries, entry.Address, data); err != nil {
		return fmt.Errorf("failed to save KeyEntry: %w", err)
	}
	return nil
}

func (r *RedisPersistence) LoadKeyEntry(address string) (*persistence.KeyEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return nil, persistence.ErrClosed
	}

	data, err := r.load(context.Background(), keyPrefixKeyEntry, address)
	if err != nil {
		return nil, fmt.Errorf("failed to load KeyEntry: %w", err)
	}
	if data == nil {
		return nil, nil
	}
	return persistence.UnmarshalKeyEntry(data)
}

func (r *RedisPersistence) ListKeyEntries() ([]*persistence.KeyEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return nil, persistence.ErrClosed
	}

	entries := make([]*persistence.KeyEntry, 0)
	err := r.list(context.Background(), keyPrefixKeyEntry, keySetKeyEntries, func(key string, val []byte) {
		entry, err := persistence.UnmarshalKeyEntry(val)
		if err != nil {
			r.logger.Sugar().Warnw("Failed to unmarshal KeyEntry, skipping", "key", key, "error", err)
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

func (r *RedisPersistence) DeleteKeyEntry(address string) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return persistence.ErrClosed
	}
	return r.remove(context.Background(), keyPrefixKeyEntry, keySetKeyEntries, address)
}

func (r *RedisPersistence) SaveSubmission(record *persistence.SubmissionRecord) error {
	if record == nil {
		return fmt.Errorf("cannot save nil SubmissionRecord")
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return persistence.ErrClosed
	}

	data, err := persistence.MarshalSubmissionRecord(record)
	if err != nil {
		return fmt.Errorf("cannot save SubmissionRecord: %w", err)
	}
	if err := r.save(context.Background(), keyPrefixSubmission, keySetSubmissions, record.ID, data); err != nil {
		return fmt.Errorf("failed to save SubmissionRecord: %w", err)
	}
	return nil
}

func (r *RedisPersistence) LoadSubmission(id string) (*persistence.SubmissionRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return nil, persistence.ErrClosed
	}

	data, err := r.load(context.Background(), keyPrefixSubmission, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load SubmissionRecord: %w", err)
	}
	if data == nil {
		return nil, nil
	}
	return persistence.UnmarshalSubmissionRecord(data)
}

func (r *RedisPersistence) ListSubmissions() ([]*persistence.SubmissionRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return nil, persistence.ErrClosed
	}

	records := make([]*persistence.SubmissionRecord, 0)
	err := r.list(context.Background(), keyPrefixSubmission, keySetSubmissions, func(key string, val []byte) {
		record, err := persistence.UnmarshalSubmissionRecord(val)
		if err != nil {
			r.logger.Sugar().Warnw("Failed to unmarshal SubmissionRecord, skipping", "key", key, "error", err)
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

func (r *RedisPersistence) DeleteSubmission(id string) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return persistence.ErrClosed
	}
	return r.remove(context.Background(), keyPrefixSubmission, keySetSubmissions, id)
}

func (r *RedisPersistence) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	r.mu.Unlock()

	if err := r.client.Close(); err != nil {
		return fmt.Errorf("failed to close Redis client: %w", err)
	}
	r.logger.Sugar().Info("Redis persistence closed")
	return nil
}

func (r *RedisPersistence) HealthCheck() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return persistence.ErrClosed
	}

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis health check failed: %w", err)
	}
	_, err := r.client.Get(ctx, r.prefixKey(keySchemaVersion)).Result()
	if errors.Is(err, redis.Nil) {
		return fmt.Errorf("schema version not found - database may not be properly initialized")
	}
	if err != nil {
		return fmt.Errorf("failed to verify schema version: %w", err)
	}
	return nil
}
