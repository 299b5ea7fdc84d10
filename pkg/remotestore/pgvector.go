package remotestore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SessionVector is the row layout of the pgvector tier.
type SessionVector struct {
	ID         string          `gorm:"type:text;primaryKey"`
	SessionID  string          `gorm:"type:text;not null;index"`
	ChunkIndex int             `gorm:"not null;default:0"`
	Embedding  pgvector.Vector `gorm:"type:vector"`
	Metadata   datatypes.JSON  `gorm:"type:jsonb"`
	CreatedAt  time.Time       `gorm:"autoCreateTime"`
	UpdatedAt  time.Time       `gorm:"autoUpdateTime"`
}

func (SessionVector) TableName() string {
	return "session_vectors"
}

type metadata struct {
	SessionID  string `json:"session_id"`
	ChunkIndex int    `json:"chunk_index"`
	Text       string `json:"text"`
}

// PgvectorStore keeps remote vectors in PostgreSQL with the pgvector extension.
type PgvectorStore struct {
	db *gorm.DB
}

func NewPgvectorStore(db *gorm.DB) *PgvectorStore {
	return &PgvectorStore{db: db}
}

// Migrate enables the vector extension and creates the table.
func (s *PgvectorStore) Migrate(ctx context.Context) error {
	db := s.db.WithContext(ctx)
	if err := db.Exec("CREATE EXTENSION IF NOT EXISTS vector").Error; err != nil {
		return fmt.Errorf("enable pgvector: %w", err)
	}
	return db.AutoMigrate(&SessionVector{})
}

func (s *PgvectorStore) Upsert(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	rows := make([]SessionVector, len(records))
	for i, r := range records {
		meta, err := json.Marshal(metadata{SessionID: r.Session, ChunkIndex: r.ChunkIndex, Text: r.Text})
		if err != nil {
			return err
		}
		rows[i] = SessionVector{
			ID:         r.ID,
			SessionID:  r.Session,
			ChunkIndex: r.ChunkIndex,
			Embedding:  pgvector.NewVector(r.Vector),
			Metadata:   datatypes.JSON(meta),
		}
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"session_id", "chunk_index", "embedding", "metadata", "updated_at"}),
	}).Create(&rows).Error
}

func (s *PgvectorStore) Fetch(ctx context.Context, ids []string) (map[string][]float32, error) {
	out := make(map[string][]float32, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []SessionVector
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, r := range rows {
		out[r.ID] = r.Embedding.Slice()
	}
	return out, nil
}

func (s *PgvectorStore) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Where("id IN ?", ids).Delete(&SessionVector{}).Error
}

// Query orders by L2 distance (the pgvector <-> operator).
func (s *PgvectorStore) Query(ctx context.Context, vector []float32, topK int, filter Filter) ([]Match, error) {
	if topK <= 0 {
		topK = 3
	}
	type row struct {
		SessionVector
		Distance float32
	}
	var rows []row

	q := pgvector.NewVector(vector)
	db := s.db.WithContext(ctx).
		Table("session_vectors").
		Select("session_vectors.*, embedding <-> ? AS distance", q)
	if filter.Session != "" {
		db = db.Where("session_id = ?", filter.Session)
	}
	if err := db.Order("distance").Limit(topK).Scan(&rows).Error; err != nil {
		return nil, err
	}

	matches := make([]Match, len(rows))
	for i, r := range rows {
		var meta metadata
		if len(r.Metadata) > 0 {
			if err := json.Unmarshal(r.Metadata, &meta); err != nil {
				return nil, fmt.Errorf("decode metadata of %s: %w", r.ID, err)
			}
		}
		matches[i] = Match{
			ID:         r.ID,
			Session:    r.SessionID,
			ChunkIndex: r.ChunkIndex,
			Distance:   r.Distance,
			Text:       meta.Text,
		}
	}
	return matches, nil
}
