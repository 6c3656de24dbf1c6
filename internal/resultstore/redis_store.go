package resultstore

import (
	"context"
	"crypto/rand"
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/crypto/chacha20poly1305"

	"github.com/ethyca-go/privacyrun/internal/jsonx"
	"github.com/ethyca-go/privacyrun/internal/model"
)

// addressIndexSuffix is appended to a request's key namespace to track
// which collection addresses have been written, so AllForRequest and
// Delete don't need to scan the whole keyspace.
const addressIndexSuffix = "__addresses"

// RedisStore is the two-tier (Ristretto L1, Redis L2) Store implementation,
// modeled on internal/masking's secret cache: hot reads served from the
// in-process tier, every tier sharing one Redis database so any runner
// process sees rows written by another.
type RedisStore struct {
	l1     *ristretto.Cache[string, []byte]
	l2     *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedisStore builds a RedisStore. ttl bounds how long a node's rows
// survive after they are written (reads do not extend it); it should comfortably outlast the longest
// paused-and-resumed request this store backs.
func NewRedisStore(redisClient *redis.Client, ttl time.Duration, logger *zap.Logger) (*RedisStore, error) {
	if ttl == 0 {
		ttl = 24 * time.Hour
	}
	l1, err := ristretto.NewCache(&ristretto.Config[string, []byte]{
		NumCounters: 1e5,
		MaxCost:     1 << 26,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("resultstore: failed to create L1 cache: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisStore{l1: l1, l2: redisClient, ttl: ttl, logger: logger.Named("resultstore")}, nil
}

func indexKey(requestID string) string {
	return "RESULTSTORE_INDEX__" + requestID + addressIndexSuffix
}

func (s *RedisStore) Put(ctx context.Context, requestID string, addr model.CollectionAddress, rows []Row, encryptionKey []byte) error {
	key := Key(requestID, addr)

	plain, err := jsonx.Marshal(rows)
	if err != nil {
		return fmt.Errorf("resultstore: encoding rows for %s: %w", key, err)
	}

	payload, err := encrypt(plain, encryptionKey)
	if err != nil {
		return fmt.Errorf("resultstore: encrypting rows for %s: %w", key, err)
	}

	s.l1.SetWithTTL(key, payload, int64(len(payload)), s.ttl)

	if s.l2 == nil {
		return nil
	}
	if err := s.l2.Set(ctx, key, payload, s.ttl).Err(); err != nil {
		return fmt.Errorf("resultstore: writing %s to L2: %w", key, err)
	}
	if err := s.l2.SAdd(ctx, indexKey(requestID), addr.String()).Err(); err != nil {
		s.logger.Warn("failed to record address in request index", zap.String("request_id", requestID), zap.Error(err))
	}
	s.l2.Expire(ctx, indexKey(requestID), s.ttl)
	return nil
}

func (s *RedisStore) Get(ctx context.Context, requestID string, addr model.CollectionAddress, encryptionKey []byte) ([]Row, bool, error) {
	key := Key(requestID, addr)

	var payload []byte
	if cached, ok := s.l1.Get(key); ok {
		payload = cached
	} else if s.l2 != nil {
		data, err := s.l2.Get(ctx, key).Bytes()
		if err == redis.Nil {
			return nil, false, nil
		}
		if err != nil {
			return nil, false, fmt.Errorf("resultstore: reading %s from L2: %w", key, err)
		}
		payload = data
		s.l1.SetWithTTL(key, payload, int64(len(payload)), s.ttl)
	} else {
		return nil, false, nil
	}

	plain, err := decrypt(payload, encryptionKey)
	if err != nil {
		return nil, false, fmt.Errorf("resultstore: decrypting %s: %w", key, err)
	}
	var rows []Row
	if err := jsonx.Unmarshal(plain, &rows); err != nil {
		return nil, false, fmt.Errorf("resultstore: decoding %s: %w", key, err)
	}
	return rows, true, nil
}

func (s *RedisStore) AllForRequest(ctx context.Context, requestID string, encryptionKey []byte) (map[model.CollectionAddress][]Row, error) {
	if s.l2 == nil {
		return nil, nil
	}
	collections, err := s.l2.SMembers(ctx, indexKey(requestID)).Result()
	if err != nil {
		return nil, fmt.Errorf("resultstore: listing addresses for %s: %w", requestID, err)
	}

	out := make(map[model.CollectionAddress][]Row, len(collections))
	for _, c := range collections {
		addr, ok := parseAddress(c)
		if !ok {
			continue
		}
		rows, ok, err := s.Get(ctx, requestID, addr, encryptionKey)
		if err != nil {
			return nil, err
		}
		if ok {
			out[addr] = rows
		}
	}
	return out, nil
}

func (s *RedisStore) Delete(ctx context.Context, requestID string) error {
	if s.l2 == nil {
		return nil
	}
	collections, err := s.l2.SMembers(ctx, indexKey(requestID)).Result()
	if err != nil {
		return fmt.Errorf("resultstore: listing addresses for %s: %w", requestID, err)
	}
	for _, c := range collections {
		addr, ok := parseAddress(c)
		if !ok {
			continue
		}
		key := Key(requestID, addr)
		s.l1.Del(key)
		s.l2.Del(ctx, key)
	}
	return s.l2.Del(ctx, indexKey(requestID)).Err()
}

func parseAddress(s string) (model.CollectionAddress, bool) {
	for i := 0; i < len(s); i++ {
		if s[i] == ':' {
			return model.CollectionAddress{Dataset: s[:i], Collection: s[i+1:]}, true
		}
	}
	return model.CollectionAddress{}, false
}

// encrypt seals plain with key under a fresh random nonce, prefixed onto the
// ciphertext, using ChaCha20-Poly1305. A nil key leaves plain untouched:
// not every deployment configures per-request encryption.
func encrypt(plain, key []byte) ([]byte, error) {
	if len(key) == 0 {
		return plain, nil
	}
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, fmt.Errorf("invalid encryption key: %w", err)
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generating nonce: %w", err)
	}
	return aead.Seal(nonce, nonce, plain, nil), nil
}

// decrypt reverses encrypt. A nil key means the payload was never sealed.
func decrypt(payload, key []byte) ([]byte, error) {
	if len(key) == 0 {
		return payload, nil
	}
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, fmt.Errorf("invalid encryption key: %w", err)
	}
	if len(payload) < aead.NonceSize() {
		return nil, fmt.Errorf("ciphertext shorter than nonce")
	}
	nonce, ciphertext := payload[:aead.NonceSize()], payload[aead.NonceSize():]
	return aead.Open(nil, nonce, ciphertext, nil)
}
