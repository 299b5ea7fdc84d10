package specification

import "gorm.io/gorm"

// Specification narrows a gorm query. The in-memory repository matches the same values by type.
type Specification interface {
	Apply(db *gorm.DB) *gorm.DB
}

// ApplyAll chains specs onto db in order.
func ApplyAll(db *gorm.DB, specs ...Specification) *gorm.DB {
	for _, spec := range specs {
		if spec != nil {
			db = spec.Apply(db)
		}
	}
	return db
}
