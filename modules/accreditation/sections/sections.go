// Package sections is the catalog of warehouse application sections. Section
// identity flows through rejections, assignments and resubmission tracking as
// strings produced by several services, so resolution is centralized here.
package sections

import "strings"

// Type is the stable canonical identifier of an application section.
type Type string

const (
	Facility             Type = "facility"
	Contact              Type = "contact"
	Jurisdiction         Type = "jurisdiction"
	SecurityFireSafety   Type = "security-fire-safety"
	Weighing             Type = "weighing"
	TechnicalQualitative Type = "technical-qualitative"
	HumanResources       Type = "human-resources"
	Checklist            Type = "checklist"
)

// displayNames maps each canonical type to the name reviewers see and
// rejection rows store in unlocked_sections.
var displayNames = map[Type]string{
	Facility:             "Facility Information",
	Contact:              "Contact Information",
	Jurisdiction:         "Jurisdiction",
	SecurityFireSafety:   "Security and Fire Safety",
	Weighing:             "Weighing",
	TechnicalQualitative: "Technical and Qualitative",
	HumanResources:       "Human Resources",
	Checklist:            "Checklist",
}

// resolutionOrder lists types longest-name-first so the substring fallback
// cannot match "Security" before "Security and Fire Safety".
var resolutionOrder = []Type{
	TechnicalQualitative,
	SecurityFireSafety,
	HumanResources,
	Facility,
	Contact,
	Jurisdiction,
	Weighing,
	Checklist,
}

// All returns every canonical section type.
func All() []Type {
	out := make([]Type, len(resolutionOrder))
	copy(out, resolutionOrder)
	return out
}

// DisplayName returns the reviewer-facing name for t, or the raw identifier
// when t is not canonical.
func DisplayName(t Type) string {
	if name, ok := displayNames[t]; ok {
		return name
	}
	return string(t)
}

// Resolve maps a section name, as produced by any upstream service, to its
// canonical type. Exact matches on the identifier or display name are
// preferred; substring matching in both directions is kept only for
// historical naming drift.
func Resolve(name string) (Type, bool) {
	normalized := normalize(name)
	if normalized == "" {
		return "", false
	}

	for t, display := range displayNames {
		if normalized == normalize(string(t)) || normalized == normalize(display) {
			return t, true
		}
	}

	for _, t := range resolutionOrder {
		id := normalize(string(t))
		display := normalize(displayNames[t])
		if strings.Contains(normalized, id) || strings.Contains(id, normalized) ||
			strings.Contains(normalized, display) || strings.Contains(display, normalized) {
			return t, true
		}
	}
	return "", false
}

// Matches reports whether an unlocked-section entry refers to t.
func Matches(entry string, t Type) bool {
	resolved, ok := Resolve(entry)
	return ok && resolved == t
}

func normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, "_", " ")
	s = strings.ReplaceAll(s, "-", " ")
	return s
}
