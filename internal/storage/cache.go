package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/imulab-x/client-service/internal/models"
)

const (
	clientCachePrefix = "client:"
	clientGenPrefix   = "client-gen:"

	// 单次回源的上限，与发起调用方的取消无关
	cacheLoadTimeout = 10 * time.Second
)

// errStaleLoad 表示回源期间该 id 已被写入或删除，本次结果不得回填。
var errStaleLoad = errors.New("client changed during cache load")

// CachedClientStorage 在任意 ClientStorage 之前加一层 Redis 读穿缓存。
// 写操作先落库，再递增该 id 的版本号并失效缓存；回填时若版本号已变化则放弃。
// Redis 故障只记录告警，不影响主流程。
type CachedClientStorage struct {
	inner ClientStorage
	rdb   *redis.Client
	ttl   time.Duration

	// 同一 id 的并发未命中只回源一次
	loads singleflight.Group
}

func NewCachedClientStorage(inner ClientStorage, rdb *redis.Client, ttl time.Duration) *CachedClientStorage {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &CachedClientStorage{inner: inner, rdb: rdb, ttl: ttl}
}

func cacheKey(id string) string { return clientCachePrefix + id }

func genKey(id string) string { return clientGenPrefix + id }

// Get 先查缓存，未命中时合并回源。共享的回源不继承任何调用方的取消，
// 每个调用方只在自己的 ctx 结束时提前返回。
func (s *CachedClientStorage) Get(ctx context.Context, id string) (models.ClientRecord, error) {
	if rec, ok := s.load(ctx, id); ok {
		return rec, nil
	}
	ch := s.loads.DoChan(id, func() (any, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cacheLoadTimeout)
		defer cancel()

		gen, genOK := s.generation(loadCtx, id)
		rec, err := s.inner.Get(loadCtx, id)
		if err != nil {
			return nil, err
		}
		if genOK {
			s.storeIfCurrent(loadCtx, rec, gen)
		}
		return rec, nil
	})
	select {
	case <-ctx.Done():
		return models.ClientRecord{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return models.ClientRecord{}, res.Err
		}
		return res.Val.(models.ClientRecord).Clone(), nil
	}
}

func (s *CachedClientStorage) Insert(ctx context.Context, rec models.ClientRecord) error {
	return s.inner.Insert(ctx, rec)
}

func (s *CachedClientStorage) Update(ctx context.Context, rec models.ClientRecord) error {
	if err := s.inner.Update(ctx, rec); err != nil {
		return err
	}
	s.invalidate(ctx, rec.ID)
	return nil
}

func (s *CachedClientStorage) Delete(ctx context.Context, id string) error {
	if err := s.inner.Delete(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx, id)
	return nil
}

func (s *CachedClientStorage) load(ctx context.Context, id string) (models.ClientRecord, bool) {
	b, err := s.rdb.Get(ctx, cacheKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return models.ClientRecord{}, false
	}
	if err != nil {
		log.WithError(err).WithField("client_id", id).Warn("client cache read failed")
		return models.ClientRecord{}, false
	}
	var doc ClientDocument
	if err := json.Unmarshal(b, &doc); err != nil {
		log.WithError(err).WithField("client_id", id).Warn("client cache entry corrupt")
		s.evict(ctx, id)
		return models.ClientRecord{}, false
	}
	rec, err := doc.Record()
	if err != nil {
		s.evict(ctx, id)
		return models.ClientRecord{}, false
	}
	return rec, true
}

// generation 读取 id 当前的版本号，不存在视为 0。读取失败时返回 false，调用方不应回填。
func (s *CachedClientStorage) generation(ctx context.Context, id string) (int64, bool) {
	n, err := s.rdb.Get(ctx, genKey(id)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, true
	}
	if err != nil {
		log.WithError(err).WithField("client_id", id).Warn("client cache generation read failed")
		return 0, false
	}
	return n, true
}

// storeIfCurrent 在 WATCH 版本号的事务里回填，版本号与回源前不一致时放弃。
func (s *CachedClientStorage) storeIfCurrent(ctx context.Context, rec models.ClientRecord, gen int64) {
	b, err := json.Marshal(ToDocument(rec))
	if err != nil {
		return
	}
	gk := genKey(rec.ID)
	err = s.rdb.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := tx.Get(ctx, gk).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if cur != gen {
			return errStaleLoad
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Set(ctx, cacheKey(rec.ID), b, s.ttl)
			return nil
		})
		return err
	}, gk)
	switch {
	case err == nil:
	case errors.Is(err, errStaleLoad), errors.Is(err, redis.TxFailedErr):
		log.WithField("client_id", rec.ID).Debug("client changed during load, cache fill skipped")
	default:
		log.WithError(err).WithField("client_id", rec.ID).Warn("client cache write failed")
	}
}

// invalidate 递增版本号并删除缓存。写库已成功，不再受调用方取消影响。
// 版本号的过期时间长于任何一次回源，过期后读到的 0 也与在途回源的值不同。
func (s *CachedClientStorage) invalidate(ctx context.Context, id string) {
	ctx = context.WithoutCancel(ctx)
	_, err := s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Incr(ctx, genKey(id))
		p.Expire(ctx, genKey(id), s.ttl+cacheLoadTimeout)
		p.Del(ctx, cacheKey(id))
		return nil
	})
	if err != nil {
		log.WithError(fmt.Errorf("invalidate %s: %w", id, err)).Warn("client cache invalidate failed")
	}
}

func (s *CachedClientStorage) evict(ctx context.Context, id string) {
	if err := s.rdb.Del(ctx, cacheKey(id)).Err(); err != nil {
		log.WithError(fmt.Errorf("evict %s: %w", id, err)).Warn("client cache evict failed")
	}
}
