// Package entity defines the domain models for the feargreed feature.
package entity

import "time"

// ClassificationUnknown is the placeholder label used when the provider
// omits or garbles the classification.
const ClassificationUnknown = "Unknown"

// FearGreed is one day's sentiment index value.
type FearGreed struct {
	Timestamp      time.Time // UTC day the value applies to (primary key)
	Value          int       // Index value clamped into [0, 100]
	Classification string    // Provider label (e.g., "Extreme Fear")
	IngestedAt     time.Time // When this row was written (UTC)
}
