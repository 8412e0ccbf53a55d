package kb

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/signalsfoundry/sensitivity-calculator/core"
)

// ErrSpectrumNotFound is returned when no atmosphere spectrum is stored for
// an (elevation, PWV) pair.
var ErrSpectrumNotFound = errors.New("atmosphere spectrum not found")

// EventType indicates what kind of change happened in the KB.
type EventType int

const (
	EventSpectrumAdded EventType = iota
	EventCorrelationAdded
)

// Event is emitted to subscribers when a table is added.
type Event struct {
	Type EventType
	Key  Key
	Name string
}

// Spectrum is an atmosphere spectrum: frequency in Hz, brightness
// temperature in K and transmission, column-aligned.
type Spectrum struct {
	Freq  []float64
	Temp  []float64
	Trans []float64
}

// Validate checks column lengths and ordering.
func (s Spectrum) Validate() error {
	if len(s.Freq) < 2 || len(s.Temp) != len(s.Freq) || len(s.Trans) != len(s.Freq) {
		return fmt.Errorf("spectrum needs aligned columns with at least 2 rows (got %d/%d/%d): %w",
			len(s.Freq), len(s.Temp), len(s.Trans), core.ErrMalformedSpec)
	}
	for i := 1; i < len(s.Freq); i++ {
		if !(s.Freq[i] > s.Freq[i-1]) {
			return fmt.Errorf("spectrum frequencies not increasing at row %d: %w", i, core.ErrMalformedSpec)
		}
	}
	return nil
}

// Key identifies a tabulated atmosphere: elevation rounded to the degree
// and PWV rounded to 0.1 mm.
type Key struct {
	ElevationDeg int
	PWVTenthMM   int
}

// KeyFor rounds an (elevation deg, PWV mm) pair onto the table key.
func KeyFor(elevation, pwv float64) Key {
	return Key{ElevationDeg: int(math.Round(elevation)), PWVTenthMM: int(math.Round(pwv * 10))}
}

func (k Key) String() string {
	return fmt.Sprintf("%d deg / %.1f mm", k.ElevationDeg, float64(k.PWVTenthMM)/10)
}

// Correlation table names.
const (
	ApertureCoherent   = "aperture-coherent"
	ApertureIncoherent = "aperture-incoherent"
	StopCoherent       = "stop-coherent"
	StopIncoherent     = "stop-incoherent"
)

// KnowledgeBase is an in-memory, thread-safe store for the read-only lookup
// tables shared by every trial: atmosphere spectra and photon correlation
// tables. It is filled once before a run and only read afterwards.
type KnowledgeBase struct {
	mu sync.RWMutex

	spectra      map[Key]*Spectrum
	fixed        *Spectrum
	correlations map[string]*core.CorrelationTable

	subs []func(Event)
}

// NewKnowledgeBase constructs an empty KB.
func NewKnowledgeBase() *KnowledgeBase {
	return &KnowledgeBase{
		spectra:      make(map[Key]*Spectrum),
		correlations: make(map[string]*core.CorrelationTable),
	}
}

// AddSpectrum stores the atmosphere for an (elevation, PWV) pair. It returns
// an error if the key already exists.
func (kb *KnowledgeBase) AddSpectrum(elevation, pwv float64, s Spectrum) error {
	if err := s.Validate(); err != nil {
		return err
	}
	key := KeyFor(elevation, pwv)
	kb.mu.Lock()
	if _, exists := kb.spectra[key]; exists {
		kb.mu.Unlock()
		return fmt.Errorf("spectrum for %s already exists", key)
	}
	kb.spectra[key] = &s
	subs := append([]func(Event){}, kb.subs...)
	kb.mu.Unlock()

	notify(subs, Event{Type: EventSpectrumAdded, Key: key})
	return nil
}

// SetFixedSpectrum pins one spectrum that is returned for every lookup,
// regardless of elevation and PWV.
func (kb *KnowledgeBase) SetFixedSpectrum(s Spectrum) error {
	if err := s.Validate(); err != nil {
		return err
	}
	kb.mu.Lock()
	defer kb.mu.Unlock()
	kb.fixed = &s
	return nil
}

// HasAtmosphere reports whether any atmosphere source is loaded.
func (kb *KnowledgeBase) HasAtmosphere() bool {
	kb.mu.RLock()
	defer kb.mu.RUnlock()
	return kb.fixed != nil || len(kb.spectra) > 0
}

// Spectrum returns the atmosphere for an elevation and PWV. The returned
// value must not be modified.
func (kb *KnowledgeBase) Spectrum(elevation, pwv float64) (*Spectrum, error) {
	kb.mu.RLock()
	defer kb.mu.RUnlock()
	if kb.fixed != nil {
		return kb.fixed, nil
	}
	key := KeyFor(elevation, pwv)
	s, ok := kb.spectra[key]
	if !ok {
		return nil, fmt.Errorf("%s: %w", key, ErrSpectrumNotFound)
	}
	return s, nil
}

// Keys returns the stored spectrum keys ordered by elevation then PWV.
func (kb *KnowledgeBase) Keys() []Key {
	kb.mu.RLock()
	defer kb.mu.RUnlock()

	res := make([]Key, 0, len(kb.spectra))
	for k := range kb.spectra {
		res = append(res, k)
	}
	sort.Slice(res, func(i, j int) bool {
		if res[i].ElevationDeg != res[j].ElevationDeg {
			return res[i].ElevationDeg < res[j].ElevationDeg
		}
		return res[i].PWVTenthMM < res[j].PWVTenthMM
	})
	return res
}

// AddCorrelationTable stores a named correlation table, replacing the
// built-in table of the same name.
func (kb *KnowledgeBase) AddCorrelationTable(name string, t *core.CorrelationTable) error {
	switch name {
	case ApertureCoherent, ApertureIncoherent, StopCoherent, StopIncoherent:
	default:
		return fmt.Errorf("unknown correlation table %q", name)
	}
	kb.mu.Lock()
	kb.correlations[name] = t
	subs := append([]func(Event){}, kb.subs...)
	kb.mu.Unlock()

	notify(subs, Event{Type: EventCorrelationAdded, Name: name})
	return nil
}

// CorrelationModel returns the stored correlation tables, with the
// built-in tables filling any that were not loaded.
func (kb *KnowledgeBase) CorrelationModel() core.CorrelationModel {
	m := core.DefaultCorrelationModel()
	kb.mu.RLock()
	defer kb.mu.RUnlock()
	if t, ok := kb.correlations[ApertureCoherent]; ok {
		m.Aperture[core.Coherent] = t
	}
	if t, ok := kb.correlations[ApertureIncoherent]; ok {
		m.Aperture[core.Incoherent] = t
	}
	if t, ok := kb.correlations[StopCoherent]; ok {
		m.Stop[core.Coherent] = t
	}
	if t, ok := kb.correlations[StopIncoherent]; ok {
		m.Stop[core.Incoherent] = t
	}
	return m
}

// Subscribe registers a callback for KB events. It returns an unsubscribe function.
func (kb *KnowledgeBase) Subscribe(fn func(Event)) (unsubscribe func()) {
	kb.mu.Lock()
	defer kb.mu.Unlock()
	kb.subs = append(kb.subs, fn)
	idx := len(kb.subs) - 1

	return func() {
		kb.mu.Lock()
		defer kb.mu.Unlock()
		if idx < 0 || idx >= len(kb.subs) {
			return
		}
		kb.subs = append(kb.subs[:idx], kb.subs[idx+1:]...)
		idx = -1
	}
}

// Notify subscribers outside the lock to avoid deadlocks.
func notify(subs []func(Event), ev Event) {
	for _, sub := range subs {
		sub(ev)
	}
}
