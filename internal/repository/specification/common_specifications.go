package specification

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ByID filters by primary key.
type ByID struct {
	ID uuid.UUID
}

func (s ByID) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("id = ?", s.ID)
}

// sortable lists the columns OrderBy accepts; anything else falls back to created_at.
var sortable = map[string]bool{
	"created_at": true,
	"updated_at": true,
	"expires_at": true,
	"name":       true,
}

type OrderBy struct {
	Field string
	Desc  bool
}

func (s OrderBy) Apply(db *gorm.DB) *gorm.DB {
	field := s.Field
	if !sortable[field] {
		field = "created_at"
	}
	return db.Order(clause.OrderByColumn{Column: clause.Column{Name: field}, Desc: s.Desc})
}
