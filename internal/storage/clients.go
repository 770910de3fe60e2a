package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/imulab-x/client-service/internal/models"
	"github.com/imulab-x/client-service/internal/oauth"
)

// ClientStorage 是客户端记录的持久化接口。
//   - Get：未命中返回 oauth.UnknownClient
//   - Update：记录不存在时为无操作
//   - Delete：幂等
type ClientStorage interface {
	Get(ctx context.Context, id string) (models.ClientRecord, error)
	Insert(ctx context.Context, rec models.ClientRecord) error
	Update(ctx context.Context, rec models.ClientRecord) error
	Delete(ctx context.Context, id string) error
}

// GormClientStorage 基于 GORM（MySQL）的实现。
type GormClientStorage struct {
	db *gorm.DB
}

func NewGormClientStorage(db *gorm.DB) *GormClientStorage {
	return &GormClientStorage{db: db}
}

func (s *GormClientStorage) Get(ctx context.Context, id string) (models.ClientRecord, error) {
	var doc ClientDocument
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&doc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.ClientRecord{}, oauth.UnknownClient(id)
	}
	if err != nil {
		return models.ClientRecord{}, oauth.ServerError("Failed to read client.", fmt.Errorf("get client %s: %w", id, err))
	}
	rec, err := doc.Record()
	if err != nil {
		return models.ClientRecord{}, oauth.ServerError("Failed to read client.", fmt.Errorf("decode client %s: %w", id, err))
	}
	return rec, nil
}

func (s *GormClientStorage) Insert(ctx context.Context, rec models.ClientRecord) error {
	doc := ToDocument(rec)
	if err := s.db.WithContext(ctx).Create(&doc).Error; err != nil {
		var me *mysql.MySQLError
		if errors.As(err, &me) && me.Number == 1062 {
			return oauth.ServerError("Client already exists.", fmt.Errorf("insert client %s: %w", rec.ID, err))
		}
		return oauth.ServerError("Failed to save client.", fmt.Errorf("insert client %s: %w", rec.ID, err))
	}
	return nil
}

// Update 整体替换已有记录；id 不存在时记录调试日志后返回 nil。
func (s *GormClientStorage) Update(ctx context.Context, rec models.ClientRecord) error {
	doc := ToDocument(rec)
	res := s.db.WithContext(ctx).Model(&doc).Select("*").Omit("id").Updates(&doc)
	if res.Error != nil {
		return oauth.ServerError("Failed to save client.", fmt.Errorf("update client %s: %w", rec.ID, res.Error))
	}
	if res.RowsAffected == 0 {
		log.WithField("client_id", rec.ID).Debug("update matched no client")
	}
	return nil
}

func (s *GormClientStorage) Delete(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Where("id = ?", id).Delete(&ClientDocument{})
	if res.Error != nil {
		return oauth.ServerError("Failed to delete client.", fmt.Errorf("delete client %s: %w", id, res.Error))
	}
	if res.RowsAffected == 0 {
		log.WithField("client_id", id).Debug("delete matched no client")
	}
	return nil
}

// Ping 检查数据库连接，供健康检查使用。
func (s *GormClientStorage) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
