package services

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/tgdrive/filestore/internal/cache"
	"github.com/tgdrive/filestore/internal/database"
	"github.com/tgdrive/filestore/internal/logging"
	"github.com/tgdrive/filestore/pkg/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const defaultCacheTTL = 30 * time.Minute

// FileService is the record store for uploaded files. Every method runs in
// a single transaction and reports missing ids as database.ErrNotFound.
type FileService struct {
	db    *gorm.DB
	cache cache.Cacher
	ttl   time.Duration
}

func NewFileService(db *gorm.DB, cacher cache.Cacher, ttl time.Duration) *FileService {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &FileService{db: db, cache: cacher, ttl: ttl}
}

func (fs *FileService) Create(ctx context.Context, fileName, title, url string) (*models.File, error) {
	file := &models.File{
		FileName:       fileName,
		Title:          title,
		PublicAccess:   true,
		PrivateContent: false,
		URL:            url,
	}
	if err := fs.db.WithContext(ctx).Create(file).Error; err != nil {
		return nil, errors.Wrap(err, "create file")
	}
	fs.forget(ctx, file)
	return file, nil
}

func (fs *FileService) GetByID(ctx context.Context, id int64) (*models.File, error) {
	return cache.Fetch(fs.cache, cache.KeyFile(id), fs.ttl, func() (*models.File, error) {
		var file models.File
		if err := fs.db.WithContext(ctx).Where("id = ?", id).First(&file).Error; err != nil {
			return nil, notFound(err)
		}
		return &file, nil
	})
}

// GetByFileName returns the newest record stored under name. It always reads
// the database because the result decides public access.
func (fs *FileService) GetByFileName(ctx context.Context, name string) (*models.File, error) {
	var file models.File
	if err := fs.db.WithContext(ctx).Where("file_name = ?", name).Order("id desc").First(&file).Error; err != nil {
		return nil, notFound(err)
	}
	return &file, nil
}

func (fs *FileService) Update(ctx context.Context, id int64, title, description string) (*models.File, error) {
	return fs.mutate(ctx, id, map[string]any{
		"title":       title,
		"description": description,
	})
}

func (fs *FileService) SetAccess(ctx context.Context, id int64, public bool) (*models.File, error) {
	return fs.mutate(ctx, id, map[string]any{"public_access": public})
}

func (fs *FileService) SetURL(ctx context.Context, id int64, url string) (*models.File, error) {
	return fs.mutate(ctx, id, map[string]any{"url": url})
}

func (fs *FileService) Delete(ctx context.Context, id int64) error {
	var file models.File
	err := fs.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", id).First(&file).Error; err != nil {
			return notFound(err)
		}
		return tx.Delete(&models.File{}, id).Error
	})
	if err != nil {
		return err
	}
	fs.forget(ctx, &file)
	return nil
}

func (fs *FileService) mutate(ctx context.Context, id int64, values map[string]any) (*models.File, error) {
	var file models.File
	err := fs.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.File{}).Where("id = ?", id).Updates(values)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return database.ErrNotFound
		}
		return tx.Where("id = ?", id).First(&file).Error
	})
	if err != nil {
		return nil, notFound(err)
	}
	fs.forget(ctx, &file)
	return &file, nil
}

func (fs *FileService) forget(ctx context.Context, file *models.File) {
	if err := fs.cache.Delete(cache.KeyFile(file.ID)); err != nil {
		logging.FromContext(ctx).Warn("cache invalidation failed", zap.Int64("id", file.ID), zap.Error(err))
	}
}

func notFound(err error) error {
	if database.IsRecordNotFoundErr(err) {
		return database.ErrNotFound
	}
	return err
}
