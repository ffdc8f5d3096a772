package config

import "strings"

// Zone represents a searchable zone configuration
type Zone struct {
	Name            string `json:"name"`
	DepartementCode string `json:"departement_code"`
}

// SupportedZones is a list of zones supported by the application
var SupportedZones = []Zone{
	{
		Name:            "Paris",
		DepartementCode: "75",
	},
	{
		Name:            "Hauts-de-Seine",
		DepartementCode: "92",
	},
	{
		Name:            "Val-de-Marne",
		DepartementCode: "94",
	},
	// Add more zones here as needed
}

// GetZoneNames returns a list of supported zone names
func GetZoneNames() []string {
	names := make([]string, len(SupportedZones))
	for i, zone := range SupportedZones {
		names[i] = zone.Name
	}
	return names
}

// GetZoneByName returns a zone configuration by name, case-insensitively
func GetZoneByName(name string) *Zone {
	for _, zone := range SupportedZones {
		if strings.EqualFold(zone.Name, name) {
			return &zone
		}
	}
	return nil
}

// NormalizeZone lowercases a zone name and replaces whitespace runs with
// hyphens so adapters can embed it in URLs
func NormalizeZone(name string) string {
	normalized := strings.ToLower(strings.TrimSpace(name))
	normalized = strings.ReplaceAll(normalized, "'", "")
	fields := strings.Fields(normalized)
	return strings.Join(fields, "-")
}
