// Package usecase implements the business logic for the markets feature.
package usecase

import "errors"

var (
	// ErrQuotaExceeded is returned when the monthly call budget cannot cover
	// an ingestion pass. It is signaled before any network call is made and
	// means "skip this cycle", never a process fault.
	ErrQuotaExceeded = errors.New("monthly call quota exceeded")

	// ErrDataUnavailable is returned when the provider call failed and no
	// seed fallback is configured.
	ErrDataUnavailable = errors.New("market data unavailable")
)
