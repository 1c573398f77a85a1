package repository

import (
	"errors"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// dbDialectName 获取数据库方言名称，默认按 sqlite 处理。
func dbDialectName(db *gorm.DB) string {
	if db == nil || db.Dialector == nil {
		return "sqlite"
	}
	name := strings.ToLower(strings.TrimSpace(db.Dialector.Name()))
	if name == "" {
		return "sqlite"
	}
	return name
}

// lockForUpdate 在支持行锁的方言上追加 FOR UPDATE。
func lockForUpdate(db *gorm.DB) *gorm.DB {
	if supportsRowLock(dbDialectName(db)) {
		return db.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return db
}

func supportsRowLock(dialect string) bool {
	switch dialect {
	case "postgres", "postgresql", "mysql":
		return true
	default:
		// sqlite 为库级写锁，无需行锁
		return false
	}
}

// IsUniqueViolation 判断是否为唯一约束冲突，兼容 sqlite 与 postgres。
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "unique constraint failed"):
		return true
	case strings.Contains(msg, "duplicate key value"):
		return true
	case strings.Contains(msg, "sqlstate 23505"):
		return true
	default:
		return false
	}
}
