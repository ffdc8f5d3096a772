package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"immoradar/internal/models"

	_ "github.com/mattn/go-sqlite3"
)

// ErrMissingPrice rejects records that reach the store without a resolvable
// price. Such records are invalid and must be dropped upstream.
var ErrMissingPrice = errors.New("property has no price")

// StorageError wraps a storage-layer fault. It is surfaced to callers rather
// than swallowed because it means the durability guarantee may be broken.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error during %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func storageErr(op string, err error) error {
	return &StorageError{Op: op, Err: err}
}

type Database struct {
	db *sql.DB
}

func NewDatabase(dbPath string) (*Database, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	// Enable foreign keys
	_, err = db.Exec("PRAGMA foreign_keys = ON")
	if err != nil {
		return nil, err
	}

	// Serialize concurrent writers instead of failing fast
	_, err = db.Exec("PRAGMA busy_timeout = 5000")
	if err != nil {
		return nil, err
	}

	return &Database{db: db}, nil
}

// InitSchema creates the tables and indexes if they do not exist yet.
func (d *Database) InitSchema() error {
	_, err := d.db.Exec(`
		CREATE TABLE IF NOT EXISTS properties (
			id TEXT PRIMARY KEY,
			source TEXT NOT NULL,
			url TEXT UNIQUE NOT NULL,
			title TEXT NOT NULL DEFAULT '',
			location TEXT NOT NULL DEFAULT '',
			price REAL NOT NULL,
			surface REAL,
			rooms INTEGER,
			bedrooms INTEGER,
			bathrooms INTEGER,
			property_type TEXT NOT NULL DEFAULT '',
			description TEXT NOT NULL DEFAULT '',
			energy_rating TEXT NOT NULL DEFAULT '',
			energy_ordinal INTEGER NOT NULL DEFAULT 6,
			posted_date TIMESTAMP,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL,
			status TEXT NOT NULL DEFAULT 'available',
			notes TEXT NOT NULL DEFAULT '',
			is_favorite BOOLEAN NOT NULL DEFAULT 0
		);
	`)
	if err != nil {
		return fmt.Errorf("failed to create properties table: %w", err)
	}

	_, err = d.db.Exec(`
		CREATE TABLE IF NOT EXISTS property_history (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			property_id TEXT NOT NULL,
			old_status TEXT NOT NULL,
			new_status TEXT NOT NULL,
			notes TEXT NOT NULL DEFAULT '',
			changed_at TIMESTAMP NOT NULL,
			FOREIGN KEY (property_id) REFERENCES properties(id)
		);
	`)
	if err != nil {
		return fmt.Errorf("failed to create property_history table: %w", err)
	}

	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_properties_source ON properties(source)",
		"CREATE INDEX IF NOT EXISTS idx_properties_status ON properties(status)",
		"CREATE INDEX IF NOT EXISTS idx_properties_price ON properties(price)",
		"CREATE INDEX IF NOT EXISTS idx_properties_energy ON properties(energy_ordinal)",
		"CREATE INDEX IF NOT EXISTS idx_properties_location ON properties(location)",
		"CREATE INDEX IF NOT EXISTS idx_properties_created_at ON properties(created_at)",
		"CREATE INDEX IF NOT EXISTS idx_history_property ON property_history(property_id, changed_at)",
	}
	for _, idx := range indexes {
		if _, err := d.db.Exec(idx); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}

	return nil
}

// UpsertProperty inserts a property or replaces the listing fields of the row
// with the same URL. Workflow fields (status, notes, is_favorite) and
// created_at are never modified by re-ingestion. Returns whether a new row
// was created.
func (d *Database) UpsertProperty(p *models.Property) (bool, error) {
	if p.Price <= 0 {
		return false, ErrMissingPrice
	}

	now := time.Now().UTC()

	tx, err := d.db.Begin()
	if err != nil {
		return false, storageErr("upsert", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(`
		INSERT OR IGNORE INTO properties
		(id, source, url, title, location, price, surface, rooms, bedrooms,
		 bathrooms, property_type, description, energy_rating, energy_ordinal,
		 posted_date, created_at, updated_at, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		p.ID, p.Source, p.URL, p.Title, p.Location, p.Price, p.Surface,
		p.Rooms, p.Bedrooms, p.Bathrooms, p.PropertyType, p.Description,
		p.EnergyRating, p.EnergyOrdinal, p.PostedDate, now, now,
		models.StatusAvailable,
	)
	if err != nil {
		return false, storageErr("upsert", err)
	}

	inserted, err := res.RowsAffected()
	if err != nil {
		return false, storageErr("upsert", err)
	}

	if inserted == 0 {
		// Known URL: refresh the listing fields only
		_, err = tx.Exec(`
			UPDATE properties SET
				id = ?, source = ?, title = ?, location = ?, price = ?,
				surface = ?, rooms = ?, bedrooms = ?, bathrooms = ?,
				property_type = ?, description = ?, energy_rating = ?,
				energy_ordinal = ?, posted_date = ?, updated_at = ?
			WHERE url = ?
		`,
			p.ID, p.Source, p.Title, p.Location, p.Price, p.Surface,
			p.Rooms, p.Bedrooms, p.Bathrooms, p.PropertyType, p.Description,
			p.EnergyRating, p.EnergyOrdinal, p.PostedDate, now, p.URL,
		)
		if err != nil {
			return false, storageErr("upsert", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, storageErr("upsert", err)
	}

	return inserted > 0, nil
}

// Exists reports whether a property with the given URL is already stored.
func (d *Database) Exists(url string) (bool, error) {
	var exists bool
	err := d.db.QueryRow(
		"SELECT EXISTS(SELECT 1 FROM properties WHERE url = ? LIMIT 1)", url,
	).Scan(&exists)
	if err != nil {
		return false, storageErr("exists", err)
	}
	return exists, nil
}

// buildFilterClause translates a PropertyFilter into a WHERE clause and its
// arguments. QueryProperties and GetStatistics both go through here so that
// listings and aggregates always agree on the candidate set.
func buildFilterClause(filter models.PropertyFilter) (string, []interface{}) {
	clause := " WHERE 1=1"
	var args []interface{}

	if filter.PriceMin != nil {
		clause += " AND price >= ?"
		args = append(args, *filter.PriceMin)
	}
	if filter.PriceMax != nil {
		clause += " AND price <= ?"
		args = append(args, *filter.PriceMax)
	}
	if filter.EnergyRatingMax != "" {
		clause += " AND energy_ordinal <= ?"
		args = append(args, models.EnergyRatingOrdinal(filter.EnergyRatingMax))
	}
	if filter.Location != "" {
		clause += " AND location LIKE ?"
		args = append(args, "%"+filter.Location+"%")
	}
	if filter.Status != "" {
		clause += " AND status = ?"
		args = append(args, filter.Status)
	}
	if filter.FavoritesOnly {
		clause += " AND is_favorite = 1"
	}

	return clause, args
}

func orderClause(orderBy string) string {
	switch orderBy {
	case models.OrderPriceAsc:
		return " ORDER BY price ASC"
	case models.OrderPriceDesc:
		return " ORDER BY price DESC"
	case models.OrderDateAsc:
		return " ORDER BY posted_date ASC"
	case models.OrderDateDesc:
		return " ORDER BY posted_date DESC"
	default:
		return " ORDER BY created_at DESC"
	}
}

const propertyColumns = `
	id, source, url, title, location, price, surface, rooms, bedrooms,
	bathrooms, property_type, description, energy_rating, energy_ordinal,
	posted_date, created_at, updated_at, status, notes, is_favorite`

// QueryProperties returns the stored records matching the filter, in the
// filter's requested order (most recently created first by default).
func (d *Database) QueryProperties(filter models.PropertyFilter) ([]models.Property, error) {
	where, args := buildFilterClause(filter)
	query := "SELECT" + propertyColumns + " FROM properties" + where + orderClause(filter.OrderBy)

	rows, err := d.db.Query(query, args...)
	if err != nil {
		return nil, storageErr("query", err)
	}
	defer rows.Close()

	var properties []models.Property
	for rows.Next() {
		p, err := scanProperty(rows)
		if err != nil {
			return nil, storageErr("query", err)
		}
		properties = append(properties, p)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("query", err)
	}
	return properties, nil
}

func scanProperty(rows *sql.Rows) (models.Property, error) {
	var p models.Property
	var surface sql.NullFloat64
	var rooms, bedrooms, bathrooms sql.NullInt64
	var postedDate sql.NullTime

	err := rows.Scan(
		&p.ID,
		&p.Source,
		&p.URL,
		&p.Title,
		&p.Location,
		&p.Price,
		&surface,
		&rooms,
		&bedrooms,
		&bathrooms,
		&p.PropertyType,
		&p.Description,
		&p.EnergyRating,
		&p.EnergyOrdinal,
		&postedDate,
		&p.CreatedAt,
		&p.UpdatedAt,
		&p.Status,
		&p.Notes,
		&p.IsFavorite,
	)
	if err != nil {
		return p, err
	}

	if surface.Valid {
		s := surface.Float64
		p.Surface = &s
	}
	if rooms.Valid {
		r := int(rooms.Int64)
		p.Rooms = &r
	}
	if bedrooms.Valid {
		b := int(bedrooms.Int64)
		p.Bedrooms = &b
	}
	if bathrooms.Valid {
		b := int(bathrooms.Int64)
		p.Bathrooms = &b
	}
	if postedDate.Valid {
		t := postedDate.Time
		p.PostedDate = &t
	}

	return p, nil
}

// GetProperty returns a single record by id, or nil when it does not exist.
func (d *Database) GetProperty(id string) (*models.Property, error) {
	query := "SELECT" + propertyColumns + " FROM properties WHERE id = ?"
	rows, err := d.db.Query(query, id)
	if err != nil {
		return nil, storageErr("get", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	p, err := scanProperty(rows)
	if err != nil {
		return nil, storageErr("get", err)
	}
	return &p, nil
}

// SetStatus changes a record's workflow status and appends an audit entry,
// in one transaction. Returns false when no record has the given id.
func (d *Database) SetStatus(id, status, notes string) (bool, error) {
	if !models.IsValidStatus(status) {
		return false, fmt.Errorf("invalid status %q", status)
	}

	tx, err := d.db.Begin()
	if err != nil {
		return false, storageErr("set_status", err)
	}
	defer tx.Rollback()

	var oldStatus string
	err = tx.QueryRow("SELECT status FROM properties WHERE id = ?", id).Scan(&oldStatus)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, storageErr("set_status", err)
	}

	now := time.Now().UTC()
	_, err = tx.Exec(`
		UPDATE properties SET status = ?, notes = ?, updated_at = ?
		WHERE id = ?
	`, status, notes, now, id)
	if err != nil {
		return false, storageErr("set_status", err)
	}

	_, err = tx.Exec(`
		INSERT INTO property_history (property_id, old_status, new_status, notes, changed_at)
		VALUES (?, ?, ?, ?, ?)
	`, id, oldStatus, status, notes, now)
	if err != nil {
		return false, storageErr("set_status", err)
	}

	if err := tx.Commit(); err != nil {
		return false, storageErr("set_status", err)
	}
	return true, nil
}

// GetHistory returns a record's status transitions in chronological order.
func (d *Database) GetHistory(propertyID string) ([]models.StatusChange, error) {
	rows, err := d.db.Query(`
		SELECT id, property_id, old_status, new_status, notes, changed_at
		FROM property_history
		WHERE property_id = ?
		ORDER BY changed_at ASC, id ASC
	`, propertyID)
	if err != nil {
		return nil, storageErr("history", err)
	}
	defer rows.Close()

	var history []models.StatusChange
	for rows.Next() {
		var c models.StatusChange
		if err := rows.Scan(&c.ID, &c.PropertyID, &c.OldStatus, &c.NewStatus, &c.Notes, &c.ChangedAt); err != nil {
			return nil, storageErr("history", err)
		}
		history = append(history, c)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("history", err)
	}
	return history, nil
}

// MarkFavorite flags or unflags a record. Returns false when the id is unknown.
func (d *Database) MarkFavorite(id string, favorite bool) (bool, error) {
	res, err := d.db.Exec(`
		UPDATE properties SET is_favorite = ?, updated_at = ?
		WHERE id = ?
	`, favorite, time.Now().UTC(), id)
	if err != nil {
		return false, storageErr("mark_favorite", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, storageErr("mark_favorite", err)
	}
	return affected > 0, nil
}

// GetStatistics aggregates the records matching the filter. It applies the
// exact filter semantics of QueryProperties, so a filter always produces the
// same candidate set for listings and for statistics.
func (d *Database) GetStatistics(filter models.PropertyFilter) (models.PropertyStats, error) {
	stats := models.PropertyStats{
		BySource: make(map[string]int),
		ByStatus: make(map[string]int),
	}

	where, args := buildFilterClause(filter)

	var avgPrice, minPrice, maxPrice sql.NullFloat64
	err := d.db.QueryRow(`
		SELECT COUNT(*), AVG(price), MIN(price), MAX(price)
		FROM properties`+where, args...,
	).Scan(&stats.TotalCount, &avgPrice, &minPrice, &maxPrice)
	if err != nil {
		return stats, storageErr("statistics", err)
	}
	stats.AvgPrice = avgPrice.Float64
	stats.MinPrice = minPrice.Float64
	stats.MaxPrice = maxPrice.Float64

	rows, err := d.db.Query(`
		SELECT source, COUNT(*) FROM properties`+where+` GROUP BY source`, args...)
	if err != nil {
		return stats, storageErr("statistics", err)
	}
	defer rows.Close()
	for rows.Next() {
		var source string
		var count int
		if err := rows.Scan(&source, &count); err != nil {
			return stats, storageErr("statistics", err)
		}
		stats.BySource[source] = count
	}
	if err := rows.Err(); err != nil {
		return stats, storageErr("statistics", err)
	}

	statusRows, err := d.db.Query(`
		SELECT status, COUNT(*) FROM properties`+where+` GROUP BY status`, args...)
	if err != nil {
		return stats, storageErr("statistics", err)
	}
	defer statusRows.Close()
	for statusRows.Next() {
		var status string
		var count int
		if err := statusRows.Scan(&status, &count); err != nil {
			return stats, storageErr("statistics", err)
		}
		stats.ByStatus[status] = count
	}
	if err := statusRows.Err(); err != nil {
		return stats, storageErr("statistics", err)
	}

	return stats, nil
}

// GetRecentProperties returns records created within the last N hours, most
// recent first. The notifier reads new listings through this.
func (d *Database) GetRecentProperties(hours int) ([]models.Property, error) {
	cutoff := time.Now().UTC().Add(-time.Duration(hours) * time.Hour)
	query := "SELECT" + propertyColumns + ` FROM properties
		WHERE created_at >= ?
		ORDER BY created_at DESC`

	rows, err := d.db.Query(query, cutoff)
	if err != nil {
		return nil, storageErr("recent", err)
	}
	defer rows.Close()

	var properties []models.Property
	for rows.Next() {
		p, err := scanProperty(rows)
		if err != nil {
			return nil, storageErr("recent", err)
		}
		properties = append(properties, p)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("recent", err)
	}
	return properties, nil
}

// PurgeStale deletes records older than the given number of days whose
// workflow reached a terminal status. Deletion is always explicit; nothing
// else removes rows.
func (d *Database) PurgeStale(olderThanDays int) (int64, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -olderThanDays)

	tx, err := d.db.Begin()
	if err != nil {
		return 0, storageErr("purge", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		DELETE FROM property_history
		WHERE property_id IN (
			SELECT id FROM properties
			WHERE created_at < ? AND status IN (?, ?)
		)
	`, cutoff, models.StatusRejected, models.StatusPurchased)
	if err != nil {
		return 0, storageErr("purge", err)
	}

	res, err := tx.Exec(`
		DELETE FROM properties
		WHERE created_at < ? AND status IN (?, ?)
	`, cutoff, models.StatusRejected, models.StatusPurchased)
	if err != nil {
		return 0, storageErr("purge", err)
	}

	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, storageErr("purge", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, storageErr("purge", err)
	}
	return deleted, nil
}

func (d *Database) GetDB() *sql.DB {
	return d.db
}

func (d *Database) Close() error {
	return d.db.Close()
}
