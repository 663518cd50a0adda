package model

import "time"

// User represents an account that owns folders and notes.
type User struct {
	ID           int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	Email        string    `json:"email" gorm:"size:255;uniqueIndex;not null"`
	FullName     string    `json:"full_name" gorm:"size:255"`
	PasswordHash string    `json:"-" gorm:"size:255;not null"` // Not exposed in API responses
	IsActive     bool      `json:"is_active" gorm:"default:true"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// TableName 指定表名
func (User) TableName() string {
	return "users"
}
