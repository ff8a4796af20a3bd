// Package status derives a participation's lifecycle status from its
// current snapshot. Derivation is a pure function over the property
// bag and an injected clock: it performs no I/O and never mutates its
// input, so the same snapshot always yields the same status. Callers
// persist the result only when it differs from the stored value.
package status

import (
	"time"

	"github.com/ConductionNL/taalhuizen-service-sub000/objectstore"
)

// Status is a participation's lifecycle status. It is derived, never
// set directly by callers except at creation.
type Status string

const (
	// Referred means the participation has been handed over but no
	// provider, mentor or group is attached yet.
	Referred Status = "REFERRED"
	// Active means a mentor, group or named provider is attached.
	Active Status = "ACTIVE"
	// Completed means the presence end date lies strictly in the past.
	Completed Status = "COMPLETED"
)

// Participation properties the deriver inspects.
const (
	PropertyStatus          = "status"
	PropertyMentor          = "mentor"
	PropertyGroup           = "group"
	PropertyProviderName    = "providerName"
	PropertyProviderNote    = "providerNote"
	PropertyPresenceEndDate = "presenceEndDate"
)

// Clock supplies "now" so completion checks are testable.
type Clock func() time.Time

// Derive recomputes the status for a participation snapshot.
//
// Rules, in order:
//   - mentor or group set: Active, unless presenceEndDate is strictly
//     in the past, then Completed
//   - a named provider attached: Active
//   - otherwise: Referred
func Derive(participation objectstore.PropertyBag, now Clock) Status {
	if now == nil {
		now = time.Now
	}

	if hasRef(participation, PropertyMentor) || hasRef(participation, PropertyGroup) {
		if end, ok := participation.GetTime(PropertyPresenceEndDate); ok && end.Before(now()) {
			return Completed
		}
		return Active
	}

	if hasValue(participation, PropertyProviderName) || hasValue(participation, PropertyProviderNote) {
		return Active
	}

	return Referred
}

// Current reads the stored status, defaulting to Referred for bags
// written before status derivation existed.
func Current(participation objectstore.PropertyBag) Status {
	if s, ok := participation.GetString(PropertyStatus); ok && s != "" {
		return Status(s)
	}
	return Referred
}

// hasRef reports whether a single-valued reference property is set.
func hasRef(bag objectstore.PropertyBag, key string) bool {
	s, ok := bag.GetString(key)
	return ok && s != ""
}

// hasValue reports whether a free-text property is non-empty.
func hasValue(bag objectstore.PropertyBag, key string) bool {
	s, ok := bag.GetString(key)
	return ok && s != ""
}
