package repository

import (
	"context"
	"errors"
	"strings"

	"VoxNote/model"

	"gorm.io/gorm"
)

// FolderRepository 文件夹数据访问接口
type FolderRepository interface {
	Create(ctx context.Context, folder *model.Folder) error
	GetByID(ctx context.Context, id int64) (*model.Folder, error)
	GetByName(ctx context.Context, userID int64, name string) (*model.Folder, error)
	ListByUser(ctx context.Context, userID int64) ([]*model.Folder, error)
	Rename(ctx context.Context, folder *model.Folder, name string) error
	Delete(ctx context.Context, id int64) error
}

// gormFolderRepository GORM 实现
type gormFolderRepository struct {
	db *gorm.DB
}

// NewGormFolderRepository 创建 GORM 文件夹仓库
func NewGormFolderRepository(db *gorm.DB) FolderRepository {
	return &gormFolderRepository{db: db}
}

// Create 创建文件夹，同名（不区分大小写）时返回 ErrFolderExists
func (r *gormFolderRepository) Create(ctx context.Context, folder *model.Folder) error {
	folder.Name = strings.TrimSpace(folder.Name)
	existing, err := r.GetByName(ctx, folder.UserID, folder.Name)
	if err != nil {
		return err
	}
	if existing != nil {
		return ErrFolderExists
	}

	if err := r.db.WithContext(ctx).Create(folder).Error; err != nil {
		if isDuplicateKey(err) {
			return ErrFolderExists
		}
		return err
	}
	return nil
}

// GetByID 根据ID获取文件夹，不存在时返回 nil
func (r *gormFolderRepository) GetByID(ctx context.Context, id int64) (*model.Folder, error) {
	return findFolder(r.db.WithContext(ctx).Where("id = ?", id))
}

// GetByName 按规范化名称查找用户的文件夹
func (r *gormFolderRepository) GetByName(ctx context.Context, userID int64, name string) (*model.Folder, error) {
	return findFolder(r.db.WithContext(ctx).
		Where("user_id = ? AND normalized_name = ?", userID, model.NormalizeFolderName(name)))
}

// ListByUser 列出用户的全部文件夹
func (r *gormFolderRepository) ListByUser(ctx context.Context, userID int64) ([]*model.Folder, error) {
	var folders []*model.Folder
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("name ASC").
		Find(&folders).Error
	return folders, err
}

// Rename 重命名文件夹
func (r *gormFolderRepository) Rename(ctx context.Context, folder *model.Folder, name string) error {
	name = strings.TrimSpace(name)
	existing, err := r.GetByName(ctx, folder.UserID, name)
	if err != nil {
		return err
	}
	if existing != nil && existing.ID != folder.ID {
		return ErrFolderExists
	}

	err = r.db.WithContext(ctx).Model(&model.Folder{}).
		Where("id = ?", folder.ID).
		Updates(map[string]interface{}{
			"name":            name,
			"normalized_name": model.NormalizeFolderName(name),
		}).Error
	if err != nil {
		if isDuplicateKey(err) {
			return ErrFolderExists
		}
		return err
	}
	folder.Name = name
	folder.NormalizedName = model.NormalizeFolderName(name)
	return nil
}

// Delete 删除文件夹及其中的笔记
func (r *gormFolderRepository) Delete(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("folder_id = ?", id).Delete(&model.Note{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).Delete(&model.Folder{}).Error
	})
}

func findFolder(q *gorm.DB) (*model.Folder, error) {
	var folder model.Folder
	if err := q.First(&folder).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &folder, nil
}
