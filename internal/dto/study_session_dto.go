package dto

import (
	"time"

	"github.com/google/uuid"
)

type CreateStudySessionRequest struct {
	Name string `json:"name" validate:"required,max=255"`
	// Source is a local path under the upload dir or an http(s) URL.
	Source string `json:"source" validate:"required"`
}

type StudySessionResponse struct {
	Id        uuid.UUID  `json:"id"`
	Name      string     `json:"name"`
	Source    string     `json:"source"`
	Status    string     `json:"status"`
	Chunks    int        `json:"chunks"`
	Summary   *string    `json:"summary,omitempty"`
	ExpiresAt time.Time  `json:"expires_at"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

type EmbeddingStatusResponse struct {
	SessionId     uuid.UUID `json:"session_id"`
	HasEmbeddings bool      `json:"has_embeddings"`
}

type TierResultDTO struct {
	Removed int    `json:"removed"`
	Error   string `json:"error,omitempty"`
}

type DeleteStudySessionResponse struct {
	SessionId uuid.UUID     `json:"session_id"`
	Complete  bool          `json:"complete"`
	Cache     TierResultDTO `json:"cache"`
	Local     TierResultDTO `json:"local"`
	Remote    TierResultDTO `json:"remote"`
	Source    string        `json:"source_error,omitempty"`
}

type ConsistencyReportResponse struct {
	SessionId     uuid.UUID `json:"session_id"`
	Chunks        int       `json:"chunks"`
	MissingLocal  []int     `json:"missing_local"`
	MissingCache  []int     `json:"missing_cache"`
	MissingRemote []int     `json:"missing_remote"`
	Repaired      []int     `json:"repaired"`
	RepairError   string    `json:"repair_error,omitempty"`
	Consistent    bool      `json:"consistent"`
}

// PublishIngestStudySessionMessage is the watermill payload of an ingestion job.
type PublishIngestStudySessionMessage struct {
	SessionId uuid.UUID `json:"session_id"`
	UserId    string    `json:"user_id"`
	Source    string    `json:"source"`
}
