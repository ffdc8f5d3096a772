package database

import (
	"time"

	"immoradar/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// listingColumns are the columns re-ingestion is allowed to replace. Workflow
// columns (status, notes, is_favorite) and created_at stay untouched when a
// URL conflicts with an existing row.
var listingColumns = []string{
	"id", "source", "title", "location", "price", "surface", "rooms",
	"bedrooms", "bathrooms", "property_type", "description", "energy_rating",
	"energy_ordinal", "posted_date", "updated_at",
}

// UpsertBatch persists a batch of validated properties inside the given
// transaction, deduplicating by URL atomically. Records without a price are
// skipped; the validator drops them before they reach the pipeline.
func UpsertBatch(tx *gorm.DB, batch []*models.Property) error {
	now := time.Now().UTC()

	rows := make([]*models.Property, 0, len(batch))
	for _, p := range batch {
		if p.Price <= 0 {
			continue
		}
		if p.Status == "" {
			p.Status = models.StatusAvailable
		}
		p.CreatedAt = now
		p.UpdatedAt = now
		rows = append(rows, p)
	}
	if len(rows) == 0 {
		return nil
	}

	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "url"}},
		DoUpdates: clause.AssignmentColumns(listingColumns),
	}).Create(rows).Error
}
