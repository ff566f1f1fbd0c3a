// Package filter turns a user's hierarchical filter selection into a
// deduplicated, deterministically ordered set of estimate ids.
package filter

import (
	"fmt"

	derrors "github.com/moseshope/scraping-admin-dashboard/internal/errors"
)

// All is the wildcard value accepted for cities and business types.
const All = "All"

// Mode selects between scraping the entire dataset and a filtered subset.
type Mode string

const (
	// ModeEntire selects every estimate in the reference dataset.
	ModeEntire Mode = "entire"
	// ModeFiltered selects estimates matching the per-state filters.
	ModeFiltered Mode = "filtered"
)

// CityFilter narrows a state selection to one city, optionally constrained to
// specific business types. City == All matches every city in the state.
// BusinessTypes containing All disables the category constraint and must not
// be combined with literal types.
type CityFilter struct {
	City          string   `json:"city"`
	BusinessTypes []string `json:"businessTypes"`
}

// StateFilter selects estimates within one state. An empty Cities list means
// "all cities in the state".
type StateFilter struct {
	State  string       `json:"state"`
	Cities []CityFilter `json:"filters"`
}

// Spec is the user's filter selection. It is a tagged variant: ModeEntire
// ignores States entirely; ModeFiltered requires at least one state entry.
type Spec struct {
	Mode   Mode          `json:"mode"`
	States []StateFilter `json:"states,omitempty"`
}

// EntireDataset returns a Spec selecting the whole reference dataset.
func EntireDataset() Spec {
	return Spec{Mode: ModeEntire}
}

// Validate checks structural invariants of the spec. Unknown states or cities
// are NOT validation errors; they resolve to empty contributions.
func (s Spec) Validate() error {
	switch s.Mode {
	case ModeEntire:
		return nil
	case ModeFiltered:
		if len(s.States) == 0 {
			return fmt.Errorf("%w: filtered mode requires at least one state", derrors.ErrInvalidInput)
		}
		for i, sf := range s.States {
			if sf.State == "" {
				return fmt.Errorf("%w: state entry %d has an empty state name", derrors.ErrInvalidInput, i)
			}
			for _, cf := range sf.Cities {
				if cf.City == "" {
					return fmt.Errorf("%w: state %q has a city filter with an empty city", derrors.ErrInvalidInput, sf.State)
				}
				if err := validateBusinessTypes(sf.State, cf); err != nil {
					return err
				}
			}
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown filter mode %q", derrors.ErrInvalidInput, s.Mode)
	}
}

// validateBusinessTypes enforces the "All" exclusivity invariant: the
// wildcard may not be combined with literal business types.
func validateBusinessTypes(state string, cf CityFilter) error {
	hasAll := false
	for _, bt := range cf.BusinessTypes {
		if bt == "" {
			return fmt.Errorf("%w: state %q city %q has an empty business type", derrors.ErrInvalidInput, state, cf.City)
		}
		if bt == All {
			hasAll = true
		}
	}
	if hasAll && len(cf.BusinessTypes) > 1 {
		return fmt.Errorf("%w: state %q city %q combines %q with literal business types", derrors.ErrInvalidInput, state, cf.City, All)
	}
	return nil
}

// constrainsCategory reports whether the filter carries an effective business
// type constraint. An empty list or the All wildcard means unconstrained.
func (cf CityFilter) constrainsCategory() bool {
	if len(cf.BusinessTypes) == 0 {
		return false
	}
	for _, bt := range cf.BusinessTypes {
		if bt == All {
			return false
		}
	}
	return true
}
