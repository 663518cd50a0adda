package repository

import (
	"context"
	"errors"

	"VoxNote/model"

	"gorm.io/gorm"
)

// NoteRepository 笔记数据访问接口
type NoteRepository interface {
	GetByID(ctx context.Context, id int64) (*model.Note, error)
	ListByUser(ctx context.Context, userID int64, page, perPage int) (*model.NotePage, error)
	ListByFolder(ctx context.Context, folderID int64, skip, limit int) ([]*model.Note, error)
	Update(ctx context.Context, id int64, upd model.NoteUpdate) (*model.Note, error)
	TogglePin(ctx context.Context, id int64) (*model.Note, error)
	ToggleArchive(ctx context.Context, id int64) (*model.Note, error)
	Delete(ctx context.Context, id int64) error
}

// gormNoteRepository GORM 实现
type gormNoteRepository struct {
	db *gorm.DB
}

// NewGormNoteRepository 创建 GORM 笔记仓库
func NewGormNoteRepository(db *gorm.DB) NoteRepository {
	return &gormNoteRepository{db: db}
}

// GetByID 根据ID获取笔记，不存在时返回 nil
func (r *gormNoteRepository) GetByID(ctx context.Context, id int64) (*model.Note, error) {
	var note model.Note
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&note).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &note, nil
}

// ListByUser 分页列出用户笔记，置顶优先、新建优先
func (r *gormNoteRepository) ListByUser(ctx context.Context, userID int64, page, perPage int) (*model.NotePage, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 10
	}

	byUser := func() *gorm.DB {
		return r.db.WithContext(ctx).Model(&model.Note{}).Where("user_id = ?", userID)
	}

	var total int64
	if err := byUser().Count(&total).Error; err != nil {
		return nil, err
	}

	items := make([]*model.Note, 0, perPage)
	err := byUser().Order("is_pinned DESC").Order("created_at DESC").Order("id DESC").
		Offset((page - 1) * perPage).
		Limit(perPage).
		Find(&items).Error
	if err != nil {
		return nil, err
	}

	return &model.NotePage{
		Items:   items,
		Total:   total,
		Page:    page,
		PerPage: perPage,
		Pages:   (total + int64(perPage) - 1) / int64(perPage),
	}, nil
}

// ListByFolder 列出文件夹内的笔记
func (r *gormNoteRepository) ListByFolder(ctx context.Context, folderID int64, skip, limit int) ([]*model.Note, error) {
	if limit <= 0 {
		limit = 100
	}
	notes := make([]*model.Note, 0)
	err := r.db.WithContext(ctx).
		Where("folder_id = ?", folderID).
		Order("created_at DESC").Order("id DESC").
		Offset(skip).
		Limit(limit).
		Find(&notes).Error
	return notes, err
}

// Update 部分更新笔记并返回最新记录
func (r *gormNoteRepository) Update(ctx context.Context, id int64, upd model.NoteUpdate) (*model.Note, error) {
	if fields := upd.Fields(); len(fields) > 0 {
		err := r.db.WithContext(ctx).Model(&model.Note{}).Where("id = ?", id).Updates(fields).Error
		if err != nil {
			return nil, err
		}
	}
	return r.GetByID(ctx, id)
}

// TogglePin 切换置顶状态
func (r *gormNoteRepository) TogglePin(ctx context.Context, id int64) (*model.Note, error) {
	return r.toggle(ctx, id, "is_pinned")
}

// ToggleArchive 切换归档状态
func (r *gormNoteRepository) ToggleArchive(ctx context.Context, id int64) (*model.Note, error) {
	return r.toggle(ctx, id, "is_archived")
}

func (r *gormNoteRepository) toggle(ctx context.Context, id int64, column string) (*model.Note, error) {
	err := r.db.WithContext(ctx).Model(&model.Note{}).
		Where("id = ?", id).
		Update(column, gorm.Expr("NOT "+column)).Error
	if err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

// Delete 删除笔记
func (r *gormNoteRepository) Delete(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&model.Note{}).Error
}
