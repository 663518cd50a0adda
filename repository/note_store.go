package repository

import (
	"context"
	"errors"

	"VoxNote/logger"
	"VoxNote/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// NoteStore 音频流水线写入笔记时依赖的最小接口。
// Transaction 内的所有操作在同一个事务中提交或回滚。
type NoteStore interface {
	GetFolder(ctx context.Context, folderID int64) (*model.Folder, error)
	GetOrCreateUncategorizedFolder(ctx context.Context, userID int64) (*model.Folder, error)
	CreateNote(ctx context.Context, note *model.Note) error
	Transaction(ctx context.Context, fn func(tx NoteStore) error) error
}

// gormNoteStore GORM 实现
type gormNoteStore struct {
	db *gorm.DB
}

// NewGormNoteStore 创建流水线使用的笔记存储
func NewGormNoteStore(db *gorm.DB) NoteStore {
	return &gormNoteStore{db: db}
}

// GetFolder 获取文件夹，不存在时返回 nil
func (s *gormNoteStore) GetFolder(ctx context.Context, folderID int64) (*model.Folder, error) {
	return findFolder(s.db.WithContext(ctx).Where("id = ?", folderID))
}

// GetOrCreateUncategorizedFolder 获取或创建用户的默认文件夹。
// 按规范化名称查找，因此 "uncategorized" 与 "Uncategorized" 视为同一个文件夹；
// 并发创建导致唯一键冲突时重新读取已提交的记录。
func (s *gormNoteStore) GetOrCreateUncategorizedFolder(ctx context.Context, userID int64) (*model.Folder, error) {
	normalized := model.NormalizeFolderName(model.UncategorizedFolderName)
	db := s.db.WithContext(ctx)

	folder, err := findFolder(db.Where("user_id = ? AND normalized_name = ?", userID, normalized))
	if err != nil || folder != nil {
		return folder, err
	}

	folder = &model.Folder{UserID: userID, Name: model.UncategorizedFolderName}
	if err := db.Create(folder).Error; err != nil {
		if !isDuplicateKey(err) {
			return nil, err
		}
		logger.Debug("[NoteStore] 默认文件夹已被并发创建，重新读取", logger.Int64("userId", userID))
		folder, err = findFolder(db.Clauses(clause.Locking{Strength: "SHARE"}).
			Where("user_id = ? AND normalized_name = ?", userID, normalized))
		if err != nil {
			return nil, err
		}
		if folder == nil {
			return nil, errors.New("uncategorized folder vanished after duplicate insert")
		}
	}
	return folder, nil
}

// CreateNote 写入笔记
func (s *gormNoteStore) CreateNote(ctx context.Context, note *model.Note) error {
	return s.db.WithContext(ctx).Create(note).Error
}

// Transaction 在单个事务中执行 fn
func (s *gormNoteStore) Transaction(ctx context.Context, fn func(tx NoteStore) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormNoteStore{db: tx})
	})
}
