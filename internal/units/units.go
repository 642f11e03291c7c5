// Package units implements the four practical stock-unit conversions used by
// the ledger: g<->kg and ml<->L, each a factor of 1000. Any other pairing is
// incompatible (mass never converts to volume).
package units

import (
	"errors"

	"warungpos/backend/internal/domain"
)

var ErrIncompatible = errors.New("incompatible units")

func IsKnown(unit string) bool {
	switch unit {
	case domain.UnitGram, domain.UnitKilogram, domain.UnitMilliliter, domain.UnitLiter:
		return true
	}
	return false
}

// IsBase reports whether unit is one of the two base intake units (ml, g)
// accepted by inventory replenishment.
func IsBase(unit string) bool {
	return unit == domain.UnitGram || unit == domain.UnitMilliliter
}

// Convert expresses qty (denominated in from) in the to unit.
func Convert(qty float64, from string, to string) (float64, error) {
	if !IsKnown(from) || !IsKnown(to) {
		return 0, ErrIncompatible
	}
	if from == to {
		return qty, nil
	}
	switch {
	case from == domain.UnitGram && to == domain.UnitKilogram:
		return qty / 1000, nil
	case from == domain.UnitKilogram && to == domain.UnitGram:
		return qty * 1000, nil
	case from == domain.UnitMilliliter && to == domain.UnitLiter:
		return qty / 1000, nil
	case from == domain.UnitLiter && to == domain.UnitMilliliter:
		return qty * 1000, nil
	}
	return 0, ErrIncompatible
}

// Display normalizes a quantity upward for presentation: 1000 g or more reads
// as kg, 1000 ml or more reads as L. The stored record is never mutated.
func Display(qty float64, unit string) (float64, string) {
	switch unit {
	case domain.UnitGram:
		if qty >= 1000 {
			return qty / 1000, domain.UnitKilogram
		}
	case domain.UnitMilliliter:
		if qty >= 1000 {
			return qty / 1000, domain.UnitLiter
		}
	}
	return qty, unit
}
