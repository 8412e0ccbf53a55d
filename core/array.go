package core

import (
	"fmt"
	"math"
)

// Program is the observing program of a telescope. ObsTime is in seconds.
type Program struct {
	ObsTime   float64
	SkyFrac   float64
	ObsEff    float64
	NETMargin float64
}

// ArrayNET is the NET of numDet detectors of which a fraction yield work.
func ArrayNET(net, numDet, yield float64) float64 {
	return net / math.Sqrt(numDet*yield)
}

// MappingSpeed is 1/arrayNET^2, in 1/(K^2 s). Yield enters once, through
// the array NET.
func MappingSpeed(arrayNET float64) float64 {
	return 1 / (arrayNET * arrayNET)
}

// MapDepth is the map-depth sensitivity in K*arcmin of an array observing a
// sky fraction fsky for obsTime seconds at efficiency obsEff.
func MapDepth(arrayNET, fsky, obsTime, obsEff float64) float64 {
	return math.Sqrt(4*math.Pi*fsky*2*arrayNET*arrayNET/(obsTime*obsEff)) * (10800 / math.Pi)
}

// ArrayResult is the array-level figure of merit of a channel.
type ArrayResult struct {
	NETArray     float64
	MappingSpeed float64
	Sensitivity  float64
}

// Aggregate scales a single-detector NET to the array.
func Aggregate(net, numDet, yield float64, prog Program) (ArrayResult, error) {
	if !(numDet*yield > 0) {
		return ArrayResult{}, fmt.Errorf("no working detectors (count %g, yield %g): %w", numDet, yield, ErrNonPhysical)
	}
	if !(prog.ObsTime*prog.ObsEff > 0) || prog.SkyFrac < 0 {
		return ArrayResult{}, fmt.Errorf("observing time %g s, efficiency %g, sky fraction %g: %w",
			prog.ObsTime, prog.ObsEff, prog.SkyFrac, ErrMalformedSpec)
	}
	arr := ArrayNET(net, numDet, yield)
	return ArrayResult{
		NETArray:     arr,
		MappingSpeed: MappingSpeed(arr),
		Sensitivity:  MapDepth(arr, prog.SkyFrac, prog.ObsTime, prog.ObsEff),
	}, nil
}
