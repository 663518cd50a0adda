package model

import "time"

// Note 由音频处理流水线生成的笔记
type Note struct {
	ID              int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	UserID          int64     `json:"user_id" gorm:"index;not null"`
	FolderID        int64     `json:"folder_id" gorm:"index;not null"`
	Title           string    `json:"title" gorm:"size:255;index"`
	Content         string    `json:"content" gorm:"type:text"`
	Summary         string    `json:"summary" gorm:"type:text"`
	RecordingURL    string    `json:"recording_url" gorm:"size:2048"`
	DurationSeconds float64   `json:"duration"`
	IsPinned        bool      `json:"is_pinned" gorm:"default:false"`
	IsArchived      bool      `json:"is_archived" gorm:"default:false"`
	Color           *string   `json:"color,omitempty" gorm:"size:32"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// TableName 指定表名
func (Note) TableName() string {
	return "notes"
}

// NoteUpdate 笔记的部分更新，nil 字段保持不变
type NoteUpdate struct {
	Title        *string `json:"title"`
	Content      *string `json:"content"`
	Summary      *string `json:"summary"`
	RecordingURL *string `json:"recording_url"`
	Color        *string `json:"color"`
	FolderID     *int64  `json:"folder_id"`
}

// Fields 转换为 GORM Updates 使用的列映射
func (u NoteUpdate) Fields() map[string]interface{} {
	fields := make(map[string]interface{})
	if u.Title != nil {
		fields["title"] = *u.Title
	}
	if u.Content != nil {
		fields["content"] = *u.Content
	}
	if u.Summary != nil {
		fields["summary"] = *u.Summary
	}
	if u.RecordingURL != nil {
		fields["recording_url"] = *u.RecordingURL
	}
	if u.Color != nil {
		fields["color"] = *u.Color
	}
	if u.FolderID != nil {
		fields["folder_id"] = *u.FolderID
	}
	return fields
}

// NotePage 分页的笔记列表
type NotePage struct {
	Items   []*Note `json:"items"`
	Total   int64   `json:"total"`
	Page    int     `json:"page"`
	PerPage int     `json:"per_page"`
	Pages   int64   `json:"pages"`
}
