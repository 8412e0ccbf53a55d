package model

// ChannelSpec is one frequency channel of a camera. Frequencies are in Hz,
// lengths in metres, powers in watts, NEI in A/sqrt(Hz).
type ChannelSpec struct {
	// Tag identifies the channel for merging. Empty means "use the nominal
	// band center".
	Tag     string
	BandID  int
	PixelID int

	BandCenter  Parameter
	FracBW      Parameter
	PixelSize   Parameter
	WaistFactor Parameter

	NumDetPerWafer Parameter
	NumWaferPerOT  Parameter
	NumOT          Parameter
	Yield          Parameter

	DetEff        Parameter
	Psat          Parameter
	PsatFactor    Parameter
	CarrierIndex  Parameter
	Tc            Parameter
	TcFrac        Parameter
	NEI           Parameter
	BoloR         Parameter
	ReadNoiseFrac Parameter

	DetBand *BandCurve
}

// CameraSpec groups channels that share an optical chain and focal plane.
type CameraSpec struct {
	Name            string
	OpticalCoupling Parameter
	FNumber         Parameter
	BathTemp        Parameter
	Optics          []OpticSpec
	Channels        []ChannelSpec
}

// ForegroundSpec holds the galactic foreground amplitudes.
type ForegroundSpec struct {
	DustTemp  Parameter
	DustIndex Parameter
	DustAmp   Parameter
	DustFreq  Parameter
	SyncIndex Parameter
	SyncAmp   Parameter
}

// SkySpec configures the sky model of a telescope site. Elevation is in
// degrees and PWV in millimetres; NA means "draw from the distribution".
type SkySpec struct {
	Elevation Parameter
	PWV       Parameter
	// Atmosphere disables the atmosphere term entirely when false.
	Atmosphere bool
	// AtmosphereFile pins a single fixed spectrum instead of the
	// elevation/PWV lookup.
	AtmosphereFile string
	Foregrounds    *ForegroundSpec
}

// TelescopeSpec carries the observing program and the cameras of one
// telescope. ObsTime is in seconds.
type TelescopeSpec struct {
	Name      string
	ObsTime   Parameter
	SkyFrac   Parameter
	ObsEff    Parameter
	NETMargin Parameter
	Sky       SkySpec
	Cameras   []CameraSpec
}

// ExperimentSpec is the root of the instrument description.
type ExperimentSpec struct {
	Name       string
	Telescopes []TelescopeSpec
}

// ChannelCount returns the total number of channels in the experiment.
func (e ExperimentSpec) ChannelCount() int {
	n := 0
	for _, t := range e.Telescopes {
		for _, c := range t.Cameras {
			n += len(c.Channels)
		}
	}
	return n
}
