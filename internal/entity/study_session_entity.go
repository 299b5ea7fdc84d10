package entity

import (
	"time"

	"github.com/google/uuid"
)

type StudySession struct {
	Id        uuid.UUID
	UserId    string
	Name      string
	Source    string
	Status    string
	Summary   *string
	Chunks    int
	ExpiresAt time.Time
	CreatedAt time.Time
	UpdatedAt *time.Time
}
