package sections_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/regworks/accredit-sdk/modules/accreditation/sections"
)

func TestResolve_ExactIdentifier(t *testing.T) {
	got, ok := sections.Resolve("facility")
	require.True(t, ok)
	require.Equal(t, sections.Facility, got)
}

func TestResolve_DisplayName(t *testing.T) {
	got, ok := sections.Resolve("Security and Fire Safety")
	require.True(t, ok)
	require.Equal(t, sections.SecurityFireSafety, got)
}

func TestResolve_NamingDriftFallback(t *testing.T) {
	cases := map[string]sections.Type{
		"facility_information":        sections.Facility,
		"Contact":                     sections.Contact,
		"technical qualitative":       sections.TechnicalQualitative,
		"HUMAN-RESOURCES":             sections.HumanResources,
		"security and fire safety ":   sections.SecurityFireSafety,
		"Technical and Qualitative x": sections.TechnicalQualitative,
	}
	for in, want := range cases {
		got, ok := sections.Resolve(in)
		require.True(t, ok, in)
		require.Equal(t, want, got, in)
	}
}

func TestResolve_FireSafetyDoesNotShadowOtherSections(t *testing.T) {
	// "Security and Fire Safety" must not be claimed by a shorter match.
	got, ok := sections.Resolve("Security and Fire Safety")
	require.True(t, ok)
	require.Equal(t, sections.SecurityFireSafety, got)
}

func TestResolve_Unknown(t *testing.T) {
	_, ok := sections.Resolve("warehouse dogs")
	require.False(t, ok)
	_, ok = sections.Resolve("")
	require.False(t, ok)
}

func TestMatches(t *testing.T) {
	require.True(t, sections.Matches("Facility Information", sections.Facility))
	require.False(t, sections.Matches("Facility Information", sections.Contact))
}

func TestDisplayName(t *testing.T) {
	require.Equal(t, "Human Resources", sections.DisplayName(sections.HumanResources))
	require.Equal(t, "mystery", sections.DisplayName(sections.Type("mystery")))
}
