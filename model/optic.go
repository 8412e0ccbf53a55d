package model

import "strings"

// ElementKind selects the computed defaults for an optical element.
type ElementKind int

const (
	KindDielectric ElementKind = iota
	KindMirror
	KindPrimary
	KindApertureStop
)

func (k ElementKind) String() string {
	switch k {
	case KindMirror:
		return "mirror"
	case KindPrimary:
		return "primary"
	case KindApertureStop:
		return "aperture"
	default:
		return "dielectric"
	}
}

// KindFromName infers the element kind from its name tag. Primary is checked
// before Mirror so that "Primary Mirror" gets the primary spillover model.
func KindFromName(name string) ElementKind {
	n := strings.ToLower(name)
	switch {
	case strings.Contains(n, "primary"):
		return KindPrimary
	case strings.Contains(n, "mirror"):
		return KindMirror
	case strings.Contains(n, "aperture"), strings.Contains(n, "lyot"), strings.Contains(n, "stop"):
		return KindApertureStop
	default:
		return KindDielectric
	}
}

// IsHWP reports whether the element name tags a half-wave plate.
func IsHWP(name string) bool {
	return strings.Contains(strings.ToUpper(name), "HWP")
}

// BandCurve is a measured per-frequency transmission curve. Freq is in Hz
// and strictly increasing; Spread may be nil.
type BandCurve struct {
	Freq   []float64
	Eff    []float64
	Spread []float64
}

// OpticSpec describes one physical element of a camera's optical chain.
// Units are SI: kelvin, metres, siemens per metre.
type OpticSpec struct {
	Name string
	// Kind overrides the name-based inference when HasKind is set.
	Kind    ElementKind
	HasKind bool

	Temperature  Parameter
	Absorption   Parameter
	Reflection   Parameter
	Thickness    Parameter
	Index        Parameter
	LossTangent  Parameter
	Conductivity Parameter
	SurfaceRough Parameter
	Spillover    Parameter
	SpillTemp    Parameter
	ScatterFrac  Parameter
	ScatterTemp  Parameter

	Band *BandCurve
}

// ResolvedKind returns the explicit kind, or the one inferred from Name.
func (o OpticSpec) ResolvedKind() ElementKind {
	if o.HasKind {
		return o.Kind
	}
	return KindFromName(o.Name)
}
