package resultstore

import (
	"context"
	"sync"

	"github.com/ethyca-go/privacyrun/internal/jsonx"
	"github.com/ethyca-go/privacyrun/internal/model"
)

// MemStore is an in-process Store implementation used by this module's own
// tests to drive the runner end to end without Redis. It applies the same
// encryption boundary as RedisStore so encrypted-at-rest behavior is
// exercised identically in tests.
type MemStore struct {
	mu   sync.Mutex
	rows map[string]map[model.CollectionAddress][]byte
}

// NewMemStore returns an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{rows: map[string]map[model.CollectionAddress][]byte{}}
}

func (s *MemStore) Put(ctx context.Context, requestID string, addr model.CollectionAddress, rows []Row, encryptionKey []byte) error {
	plain, err := marshalRows(rows)
	if err != nil {
		return err
	}
	payload, err := encrypt(plain, encryptionKey)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rows[requestID] == nil {
		s.rows[requestID] = map[model.CollectionAddress][]byte{}
	}
	s.rows[requestID][addr] = payload
	return nil
}

func (s *MemStore) Get(ctx context.Context, requestID string, addr model.CollectionAddress, encryptionKey []byte) ([]Row, bool, error) {
	s.mu.Lock()
	payload, ok := s.rows[requestID][addr]
	s.mu.Unlock()
	if !ok {
		return nil, false, nil
	}
	plain, err := decrypt(payload, encryptionKey)
	if err != nil {
		return nil, false, err
	}
	rows, err := unmarshalRows(plain)
	if err != nil {
		return nil, false, err
	}
	return rows, true, nil
}

func (s *MemStore) AllForRequest(ctx context.Context, requestID string, encryptionKey []byte) (map[model.CollectionAddress][]Row, error) {
	s.mu.Lock()
	addrs := make([]model.CollectionAddress, 0, len(s.rows[requestID]))
	for addr := range s.rows[requestID] {
		addrs = append(addrs, addr)
	}
	s.mu.Unlock()

	out := make(map[model.CollectionAddress][]Row, len(addrs))
	for _, addr := range addrs {
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

func (s *MemStore) Delete(ctx context.Context, requestID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rows, requestID)
	return nil
}

func marshalRows(rows []Row) ([]byte, error) {
	return jsonx.Marshal(rows)
}

func unmarshalRows(data []byte) ([]Row, error) {
	var rows []Row
	if err := jsonx.Unmarshal(data, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}
