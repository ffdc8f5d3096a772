package models

import "time"

// Property statuses. Rejected and purchased are terminal: records in these
// states are eligible for retention purging.
const (
	StatusAvailable = "available"
	StatusContacted = "contacted"
	StatusVisited   = "visited"
	StatusRejected  = "rejected"
	StatusPurchased = "purchased"
)

// EnergyRatingUnknown is the ordinal assigned to records without a rating.
// It equals the worst rating (G), so any ceiling filter below G excludes them.
const EnergyRatingUnknown = 6

// energyRatingOrdinals maps the A..G scale to ordinals, A best.
var energyRatingOrdinals = map[string]int{
	"A": 0, "B": 1, "C": 2, "D": 3, "E": 4, "F": 5, "G": 6,
}

// EnergyRatingOrdinal returns the ordinal for a rating letter. Unknown or
// empty ratings map to EnergyRatingUnknown.
func EnergyRatingOrdinal(rating string) int {
	if v, ok := energyRatingOrdinals[rating]; ok {
		return v
	}
	return EnergyRatingUnknown
}

// IsValidEnergyRating reports whether rating is on the A..G scale.
func IsValidEnergyRating(rating string) bool {
	_, ok := energyRatingOrdinals[rating]
	return ok
}

// IsValidStatus reports whether s is one of the workflow statuses.
func IsValidStatus(s string) bool {
	switch s {
	case StatusAvailable, StatusContacted, StatusVisited, StatusRejected, StatusPurchased:
		return true
	}
	return false
}

// IsTerminalStatus reports whether s ends a record's workflow.
func IsTerminalStatus(s string) bool {
	return s == StatusRejected || s == StatusPurchased
}

// Property is the canonical listing record produced by the scrapers and
// persisted by the store. Listing fields are owned by ingestion and replaced
// on re-scrape; Status, Notes and IsFavorite are owned by the store and only
// change through explicit status operations.
type Property struct {
	ID            string     `json:"id" gorm:"primaryKey;column:id"`
	Source        string     `json:"source" gorm:"column:source"`
	URL           string     `json:"url" gorm:"column:url"`
	Title         string     `json:"title" gorm:"column:title"`
	Location      string     `json:"location" gorm:"column:location"`
	Price         float64    `json:"price" gorm:"column:price"`
	Surface       *float64   `json:"surface" gorm:"column:surface"`
	Rooms         *int       `json:"rooms" gorm:"column:rooms"`
	Bedrooms      *int       `json:"bedrooms" gorm:"column:bedrooms"`
	Bathrooms     *int       `json:"bathrooms" gorm:"column:bathrooms"`
	PropertyType  string     `json:"property_type" gorm:"column:property_type"`
	Description   string     `json:"description" gorm:"column:description"`
	EnergyRating  string     `json:"energy_rating" gorm:"column:energy_rating"`
	EnergyOrdinal int        `json:"energy_ordinal" gorm:"column:energy_ordinal"`
	PostedDate    *time.Time `json:"posted_date" gorm:"column:posted_date"`
	CreatedAt     time.Time  `json:"created_at" gorm:"column:created_at;autoCreateTime:false"`
	UpdatedAt     time.Time  `json:"updated_at" gorm:"column:updated_at;autoUpdateTime:false"`
	Status        string     `json:"status" gorm:"column:status"`
	Notes         string     `json:"notes" gorm:"column:notes"`
	IsFavorite    bool       `json:"is_favorite" gorm:"column:is_favorite"`
}

// TableName keeps gorm on the same table the raw-SQL store manages.
func (Property) TableName() string {
	return "properties"
}

// PricePerArea computes price per square metre on demand. It is never stored:
// the persisted price and surface are the ground truth.
func (p *Property) PricePerArea() *float64 {
	if p.Surface == nil || *p.Surface <= 0 || p.Price <= 0 {
		return nil
	}
	v := p.Price / *p.Surface
	return &v
}

// RawProperty is the loose record shape adapters emit before normalization.
// Numeric fields are strings because listing sites format them per locale.
type RawProperty struct {
	Source       string `json:"source"`
	URL          string `json:"url"`
	Title        string `json:"title"`
	Location     string `json:"location"`
	Price        string `json:"price"`
	Surface      string `json:"surface"`
	Rooms        string `json:"rooms"`
	PropertyType string `json:"property_type"`
	Description  string `json:"description"`
	EnergyRating string `json:"energy_rating"`
	PostedDate   string `json:"posted_date"`
}

// SearchCriteria is passed explicitly into every scrape call. Adapters ignore
// fields they cannot express rather than erroring.
type SearchCriteria struct {
	PriceMin        float64  `json:"price_min"`
	PriceMax        float64  `json:"price_max"`
	EnergyRatingMax string   `json:"energy_rating_max"`
	Zones           []string `json:"zones"`
}

// Supported OrderBy values for PropertyFilter. The default (empty) order is
// most recently created first.
const (
	OrderPriceAsc  = "price_asc"
	OrderPriceDesc = "price_desc"
	OrderDateAsc   = "posted_asc"
	OrderDateDesc  = "posted_desc"
)

// PropertyFilter selects stored records. Nil/zero fields mean no constraint
// on that dimension; set fields combine with AND semantics.
type PropertyFilter struct {
	PriceMin        *float64 `json:"price_min"`
	PriceMax        *float64 `json:"price_max"`
	EnergyRatingMax string   `json:"energy_rating_max"`
	Location        string   `json:"location"`
	Status          string   `json:"status"`
	FavoritesOnly   bool     `json:"favorites_only"`
	OrderBy         string   `json:"order_by"`
}

// PropertyStats aggregates the store over a filtered subset.
type PropertyStats struct {
	TotalCount int            `json:"total_count"`
	BySource   map[string]int `json:"by_source"`
	ByStatus   map[string]int `json:"by_status"`
	AvgPrice   float64        `json:"avg_price"`
	MinPrice   float64        `json:"min_price"`
	MaxPrice   float64        `json:"max_price"`
}

// StatusChange is one audit entry in a record's workflow history.
type StatusChange struct {
	ID         int64     `json:"id"`
	PropertyID string    `json:"property_id"`
	OldStatus  string    `json:"old_status"`
	NewStatus  string    `json:"new_status"`
	Notes      string    `json:"notes"`
	ChangedAt  time.Time `json:"changed_at"`
}
