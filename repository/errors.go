package repository

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
	"gorm.io/gorm"
)

var (
	// ErrFolderExists 同一用户下已存在同名（不区分大小写）文件夹
	ErrFolderExists = errors.New("folder with this name already exists")
	// ErrUserExists 邮箱已被注册
	ErrUserExists = errors.New("email already registered")
)

// isDuplicateKey 判断是否为唯一键冲突
func isDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) && myErr.Number == 1062 {
		return true
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
