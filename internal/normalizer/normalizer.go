package normalizer

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"

	"immoradar/internal/models"
	"immoradar/internal/scrapers"
)

// NormalizationError rejects a single raw record during canonicalization.
// It never propagates past the per-record handling loop.
type NormalizationError struct {
	Field  string
	Reason string
}

func (e *NormalizationError) Error() string {
	return fmt.Sprintf("cannot normalize field %s: %s", e.Field, e.Reason)
}

// ValidationError rejects a canonical record missing required data.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid record: field %s %s", e.Field, e.Reason)
}

// numberCleaner strips currency signs, unit suffixes and the assorted space
// characters French listing sites pad numbers with.
var numberCleaner = strings.NewReplacer(
	"€", "",
	"m²", "",
	"m2", "",
	" ", "", // no-break space
	" ", "", // narrow no-break space
	" ", "",
)

// ParseLocaleFloat coerces a locale-formatted numeric string. It accepts
// thousands separators (spaces or dots) and decimal commas: "1 234,56",
// "1.234.567", "320000 €", "85,5 m²".
func ParseLocaleFloat(s string) (float64, error) {
	cleaned := numberCleaner.Replace(strings.TrimSpace(s))
	if cleaned == "" {
		return 0, fmt.Errorf("empty value")
	}

	hasComma := strings.Contains(cleaned, ",")
	hasDot := strings.Contains(cleaned, ".")

	switch {
	case hasComma && hasDot:
		// The rightmost separator is the decimal mark
		if strings.LastIndex(cleaned, ",") > strings.LastIndex(cleaned, ".") {
			cleaned = strings.ReplaceAll(cleaned, ".", "")
			cleaned = strings.Replace(cleaned, ",", ".", 1)
		} else {
			cleaned = strings.ReplaceAll(cleaned, ",", "")
		}
	case hasComma:
		if strings.Count(cleaned, ",") > 1 {
			cleaned = strings.ReplaceAll(cleaned, ",", "")
		} else {
			cleaned = strings.Replace(cleaned, ",", ".", 1)
		}
	case hasDot:
		// A single dot followed by exactly three digits is a thousands
		// separator ("1.234"); anything else is a decimal point
		if strings.Count(cleaned, ".") > 1 {
			cleaned = strings.ReplaceAll(cleaned, ".", "")
		} else if idx := strings.Index(cleaned, "."); len(cleaned)-idx-1 == 3 {
			cleaned = strings.ReplaceAll(cleaned, ".", "")
		}
	}

	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, fmt.Errorf("unparseable number %q", s)
	}
	return v, nil
}

var postedDateLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
	"02/01/2006",
}

func parsePostedDate(s string) *time.Time {
	for _, layout := range postedDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}

// Normalize maps a raw adapter record into the canonical schema. Numeric
// fields that are present but unparseable fail the record; absent optional
// fields stay nil.
func Normalize(raw models.RawProperty) (models.Property, error) {
	var p models.Property

	url := strings.TrimSpace(raw.URL)
	if url == "" {
		return p, &NormalizationError{Field: "url", Reason: "missing"}
	}
	source := strings.TrimSpace(raw.Source)
	if source == "" {
		return p, &NormalizationError{Field: "source", Reason: "missing"}
	}

	price, err := ParseLocaleFloat(raw.Price)
	if err != nil {
		return p, &NormalizationError{Field: "price", Reason: err.Error()}
	}

	p.ID = scrapers.ListingID(source, url)
	p.Source = source
	p.URL = url
	p.Title = strings.TrimSpace(raw.Title)
	p.Location = normalizeLocation(raw.Location)
	p.Price = price
	p.PropertyType = strings.TrimSpace(raw.PropertyType)
	p.Description = strings.TrimSpace(raw.Description)
	p.Status = models.StatusAvailable

	if strings.TrimSpace(raw.Surface) != "" {
		surface, err := ParseLocaleFloat(raw.Surface)
		if err != nil {
			return p, &NormalizationError{Field: "surface", Reason: err.Error()}
		}
		p.Surface = &surface
	}

	if strings.TrimSpace(raw.Rooms) != "" {
		rooms, err := ParseLocaleFloat(raw.Rooms)
		if err != nil {
			return p, &NormalizationError{Field: "rooms", Reason: err.Error()}
		}
		r := int(rooms)
		p.Rooms = &r
	}

	rating := strings.ToUpper(strings.TrimSpace(raw.EnergyRating))
	if models.IsValidEnergyRating(rating) {
		p.EnergyRating = rating
	}
	// Missing or out-of-scale ratings keep the worst-case ordinal
	p.EnergyOrdinal = models.EnergyRatingOrdinal(p.EnergyRating)

	if raw.PostedDate != "" {
		p.PostedDate = parsePostedDate(strings.TrimSpace(raw.PostedDate))
	}

	return p, nil
}

// Validate checks a canonical record for the fields the store requires.
func Validate(p models.Property) error {
	if p.URL == "" {
		return &ValidationError{Field: "url", Reason: "is required"}
	}
	if p.ID == "" {
		return &ValidationError{Field: "id", Reason: "is required"}
	}
	if p.Source == "" {
		return &ValidationError{Field: "source", Reason: "is required"}
	}
	if p.Price <= 0 {
		return &ValidationError{Field: "price", Reason: "must be positive"}
	}
	return nil
}

// normalizeLocation title-cases a locality name: "paris 15" -> "Paris 15",
// "hauts-de-seine" -> "Hauts-De-Seine".
func normalizeLocation(location string) string {
	lower := strings.ToLower(strings.TrimSpace(location))
	var b strings.Builder
	upperNext := true
	for _, r := range lower {
		if upperNext && unicode.IsLetter(r) {
			b.WriteRune(unicode.ToUpper(r))
			upperNext = false
			continue
		}
		if r == ' ' || r == '-' || r == '\'' {
			upperNext = true
		}
		b.WriteRune(r)
	}
	return b.String()
}
