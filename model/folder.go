package model

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

// UncategorizedFolderName 未指定文件夹时笔记默认归入的文件夹
const UncategorizedFolderName = "Uncategorized"

// Folder 用户的笔记文件夹，名称在同一用户下不区分大小写唯一
type Folder struct {
	ID             int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	UserID         int64     `json:"user_id" gorm:"not null;uniqueIndex:uq_folder_user_name,priority:1"`
	Name           string    `json:"name" gorm:"size:255;not null"`
	NormalizedName string    `json:"-" gorm:"size:255;not null;uniqueIndex:uq_folder_user_name,priority:2"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// TableName 指定表名
func (Folder) TableName() string {
	return "folders"
}

// NormalizeFolderName 统一文件夹名称的比较形式
func NormalizeFolderName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// BeforeSave 保存前同步规范化名称
func (f *Folder) BeforeSave(tx *gorm.DB) error {
	f.NormalizedName = NormalizeFolderName(f.Name)
	return nil
}
