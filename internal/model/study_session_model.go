package model

import (
	"time"

	"github.com/google/uuid"
)

const (
	StudySessionPending  = "pending"
	StudySessionReady    = "ready"
	StudySessionDegraded = "degraded" // local tier ready, remote upsert failed
	StudySessionFailed   = "failed"
)

type StudySession struct {
	Id        uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserId    string    `gorm:"type:varchar(128);not null;default:'';index"`
	Name      string    `gorm:"type:varchar(255);not null;default:''"`
	Source    string    `gorm:"type:text;not null"`
	Status    string    `gorm:"type:varchar(32);not null;default:'pending'"`
	Summary   *string   `gorm:"type:text"`
	Chunks    int       `gorm:"default:0"`
	ExpiresAt time.Time
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

func (StudySession) TableName() string {
	return "study_sessions"
}
