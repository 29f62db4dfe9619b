package nuclide

import (
	"fmt"
	"strings"
)

// =============================================================================
// Decay Type
// =============================================================================

// DecayType is the physical process carrying a parent to a daughter.
type DecayType int

const (
	DecayUnknown DecayType = iota
	DecayBetaMinus
	DecayBetaPlus
	DecayAlpha
	DecayElectronCapture
	DecayIsomericTransition
	DecaySpontaneousFission
)

// String returns the string representation of a decay type
func (d DecayType) String() string {
	if name, ok := decayTypeStrings()[d]; ok {
		return name
	}
	return "unknown"
}

type decayTypeStringMap map[DecayType]string

func decayTypeStrings() decayTypeStringMap {
	return decayTypeStringMap{
		DecayBetaMinus:          "beta-",
		DecayBetaPlus:           "beta+",
		DecayAlpha:              "alpha",
		DecayElectronCapture:    "ec",
		DecayIsomericTransition: "it",
		DecaySpontaneousFission: "sf",
	}
}

// ParseDecayType accepts the codes used in datasheets ("β-", "b-", "EC",
// "ε", "α", "IT", ...). Matching is case-insensitive.
func ParseDecayType(s string) (DecayType, error) {
	code := strings.ToLower(strings.TrimSpace(s))
	if d, ok := decayTypeCodes[code]; ok {
		return d, nil
	}
	return DecayUnknown, fmt.Errorf("unknown decay type %q", s)
}

var decayTypeCodes = map[string]DecayType{
	"β-":      DecayBetaMinus,
	"b-":      DecayBetaMinus,
	"beta-":   DecayBetaMinus,
	"β+":      DecayBetaPlus,
	"b+":      DecayBetaPlus,
	"beta+":   DecayBetaPlus,
	"α":       DecayAlpha,
	"a":       DecayAlpha,
	"alpha":   DecayAlpha,
	"ec":      DecayElectronCapture,
	"ε":       DecayElectronCapture,
	"e":       DecayElectronCapture,
	"ec+β+":   DecayElectronCapture,
	"ec+b+":   DecayElectronCapture,
	"it":      DecayIsomericTransition,
	"sf":      DecaySpontaneousFission,
	"fission": DecaySpontaneousFission,
}

// =============================================================================
// Radiation Type
// =============================================================================

// RadiationType classifies an emission line.
type RadiationType int

const (
	RadiationOther RadiationType = iota
	RadiationGamma
	RadiationXK
	RadiationXL
	RadiationConversionElectron
	RadiationAugerElectron
	RadiationBetaMinus
	RadiationBetaPlus
	RadiationAlpha
)

// String returns the string representation of a radiation type
func (r RadiationType) String() string {
	if name, ok := radiationTypeStrings()[r]; ok {
		return name
	}
	return "other"
}

type radiationTypeStringMap map[RadiationType]string

func radiationTypeStrings() radiationTypeStringMap {
	return radiationTypeStringMap{
		RadiationGamma:              "gamma",
		RadiationXK:                 "xk",
		RadiationXL:                 "xl",
		RadiationConversionElectron: "ce",
		RadiationAugerElectron:      "auger",
		RadiationBetaMinus:          "betaminus",
		RadiationBetaPlus:           "betaplus",
		RadiationAlpha:              "alpha",
		RadiationOther:              "other",
	}
}

// IsPhoton reports whether the radiation is a gamma or X-ray.
func (r RadiationType) IsPhoton() bool {
	return r == RadiationGamma || r == RadiationXK || r == RadiationXL
}

// ParseRadiationType classifies a datasheet type code ("g", "XKa1", "XL",
// "ec K", "eAK", "b-", ...). Unrecognized codes map to RadiationOther; the
// raw code is kept on the line so nothing is lost.
func ParseRadiationType(code string) RadiationType {
	c := strings.ToLower(strings.TrimSpace(code))
	switch {
	case c == "g" || c == "γ" || c == "gamma":
		return RadiationGamma
	case strings.HasPrefix(c, "xk"):
		return RadiationXK
	case strings.HasPrefix(c, "xl"):
		return RadiationXL
	case strings.HasPrefix(c, "ea") || strings.HasPrefix(c, "auger"):
		return RadiationAugerElectron
	case strings.HasPrefix(c, "ec") || strings.HasPrefix(c, "ce"):
		return RadiationConversionElectron
	case c == "b-" || c == "β-":
		return RadiationBetaMinus
	case c == "b+" || c == "β+":
		return RadiationBetaPlus
	case c == "a" || c == "α":
		return RadiationAlpha
	default:
		return RadiationOther
	}
}

// RadiationTypeFromName is the inverse of RadiationType.String.
func RadiationTypeFromName(name string) (RadiationType, bool) {
	for r, n := range radiationTypeStrings() {
		if n == strings.ToLower(strings.TrimSpace(name)) {
			return r, true
		}
	}
	return RadiationOther, false
}
