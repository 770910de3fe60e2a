package storage

import (
	"context"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/imulab-x/client-service/internal/models"
	"github.com/imulab-x/client-service/internal/oauth"
)

// MemoryClientStorage 是进程内实现，适合本地开发与测试。
// 存取时均做深拷贝，调用方持有的记录与内部状态互不影响。
type MemoryClientStorage struct {
	mu      sync.RWMutex
	clients map[string]models.ClientRecord
}

func NewMemoryClientStorage() *MemoryClientStorage {
	return &MemoryClientStorage{clients: map[string]models.ClientRecord{}}
}

func (s *MemoryClientStorage) Get(_ context.Context, id string) (models.ClientRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.clients[id]
	if !ok {
		return models.ClientRecord{}, oauth.UnknownClient(id)
	}
	return rec.Clone(), nil
}

func (s *MemoryClientStorage) Insert(_ context.Context, rec models.ClientRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.clients[rec.ID]; ok {
		return oauth.ServerError("Client already exists.", nil)
	}
	s.clients[rec.ID] = rec.Clone()
	return nil
}

func (s *MemoryClientStorage) Update(_ context.Context, rec models.ClientRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.clients[rec.ID]; !ok {
		log.WithField("client_id", rec.ID).Debug("update matched no client")
		return nil
	}
	s.clients[rec.ID] = rec.Clone()
	return nil
}

func (s *MemoryClientStorage) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.clients[id]; !ok {
		log.WithField("client_id", id).Debug("delete matched no client")
		return nil
	}
	delete(s.clients, id)
	return nil
}

// Len 返回当前记录数。
func (s *MemoryClientStorage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}
