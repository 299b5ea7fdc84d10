package specification

import (
	"time"

	"gorm.io/gorm"
)

// ByUserID filters rows owned by a user.
type ByUserID struct {
	UserID string
}

func (s ByUserID) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("user_id = ?", s.UserID)
}

// ExpiredBefore matches study sessions whose expiry has passed.
type ExpiredBefore struct {
	Time time.Time
}

func (s ExpiredBefore) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("expires_at < ?", s.Time)
}
