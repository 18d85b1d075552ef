// Package status maps the raw alarm states persisted in the historical
// database to the four canonical states used by the review workflow.
package status

import "strings"

type Status string

const (
	Pending    Status = "pending"
	Suspicious Status = "suspicious"
	Confirmed  Status = "confirmed"
	Rejected   Status = "rejected"
)

// storageVariants lists every spelling observed in the historical data for
// each canonical state. New variants are added only when observed in the
// database, never inferred.
var storageVariants = map[Status][]string{
	Pending:    {"Pendiente"},
	Suspicious: {"Sospechosa"},
	Confirmed:  {"Confirmada", "confirmed"},
	Rejected:   {"Rechazada", "rejected"},
}

// canonicalOrder keeps Normalize deterministic regardless of map iteration.
var canonicalOrder = []Status{Pending, Suspicious, Confirmed, Rejected}

// Normalize resolves a raw persisted status string to a canonical state.
// Matching is case-insensitive and ignores surrounding whitespace. Empty or
// unrecognized input resolves to Pending.
func Normalize(raw string) Status {
	trimmed := strings.ToLower(strings.TrimSpace(raw))
	if trimmed == "" {
		return Pending
	}
	for _, canonical := range canonicalOrder {
		for _, variant := range storageVariants[canonical] {
			if strings.ToLower(variant) == trimmed {
				return canonical
			}
		}
	}
	return Pending
}

// StorageValues returns every raw spelling that may represent the given
// canonical state, for use in `estado IN (...)` filters.
func StorageValues(s Status) []string {
	variants := storageVariants[s]
	out := make([]string, len(variants))
	copy(out, variants)
	return out
}

// StorageValue returns the spelling written back to the database when the
// review workflow moves an alarm into the given state.
func StorageValue(s Status) string {
	return storageVariants[s][0]
}

// VideoProcessing reports whether an alarm should be presented as still
// waiting for its video: suspicious with no video URL yet.
func VideoProcessing(rawStatus, videoURL string) bool {
	return Normalize(rawStatus) == Suspicious && strings.TrimSpace(videoURL) == ""
}
