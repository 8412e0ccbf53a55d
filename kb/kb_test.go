package kb

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/signalsfoundry/sensitivity-calculator/core"
)

func testSpectrum(temp float64) Spectrum {
	return Spectrum{
		Freq:  []float64{20e9, 100e9, 300e9},
		Temp:  []float64{temp, temp, temp},
		Trans: []float64{0.99, 0.97, 0.9},
	}
}

func TestAddAndGetSpectrum(t *testing.T) {
	store := NewKnowledgeBase()
	if err := store.AddSpectrum(50, 1.0, testSpectrum(10)); err != nil {
		t.Fatalf("AddSpectrum error: %v", err)
	}
	// Lookup rounds to the degree and to 0.1 mm.
	got, err := store.Spectrum(50.2, 0.96)
	if err != nil {
		t.Fatalf("Spectrum error: %v", err)
	}
	if got.Temp[0] != 10 {
		t.Fatalf("Spectrum returned %#v", got)
	}
}

func TestAddSpectrumDuplicate(t *testing.T) {
	store := NewKnowledgeBase()
	if err := store.AddSpectrum(45, 0.5, testSpectrum(10)); err != nil {
		t.Fatalf("first AddSpectrum error: %v", err)
	}
	if err := store.AddSpectrum(45.3, 0.52, testSpectrum(11)); err == nil {
		t.Fatalf("expected duplicate AddSpectrum to fail")
	}
}

func TestSpectrumNotFound(t *testing.T) {
	store := NewKnowledgeBase()
	if _, err := store.Spectrum(60, 1); !errors.Is(err, ErrSpectrumNotFound) {
		t.Fatalf("err = %v, want ErrSpectrumNotFound", err)
	}
	if store.HasAtmosphere() {
		t.Fatalf("empty KB reports an atmosphere")
	}
}

func TestFixedSpectrumOverridesLookup(t *testing.T) {
	store := NewKnowledgeBase()
	if err := store.AddSpectrum(60, 1, testSpectrum(10)); err != nil {
		t.Fatal(err)
	}
	if err := store.SetFixedSpectrum(testSpectrum(42)); err != nil {
		t.Fatal(err)
	}
	got, err := store.Spectrum(30, 7.9)
	if err != nil || got.Temp[0] != 42 {
		t.Fatalf("Spectrum = %v, %v; want the fixed spectrum", got, err)
	}
}

func TestSpectrumValidate(t *testing.T) {
	bad := testSpectrum(10)
	bad.Freq = []float64{20e9, 10e9, 300e9}
	if err := NewKnowledgeBase().AddSpectrum(50, 1, bad); !errors.Is(err, core.ErrMalformedSpec) {
		t.Fatalf("err = %v, want ErrMalformedSpec", err)
	}
}

func TestKeysSorted(t *testing.T) {
	store := NewKnowledgeBase()
	for _, k := range [][2]float64{{60, 2}, {45, 1}, {60, 0.5}} {
		if err := store.AddSpectrum(k[0], k[1], testSpectrum(10)); err != nil {
			t.Fatal(err)
		}
	}
	keys := store.Keys()
	want := []Key{{45, 10}, {60, 5}, {60, 20}}
	if fmt.Sprint(keys) != fmt.Sprint(want) {
		t.Fatalf("Keys = %v, want %v", keys, want)
	}
}

func TestConcurrentReads(t *testing.T) {
	store := NewKnowledgeBase()
	for e := 30; e < 70; e += 5 {
		if err := store.AddSpectrum(float64(e), 1, testSpectrum(float64(e))); err != nil {
			t.Fatal(err)
		}
	}
	var wg sync.WaitGroup
	for i := range 16 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			e := 30 + 5*(i%8)
			s, err := store.Spectrum(float64(e), 1)
			if err != nil || s.Temp[0] != float64(e) {
				t.Errorf("goroutine %d: %v %v", i, s, err)
			}
		}(i)
	}
	wg.Wait()
}

func TestSubscribe(t *testing.T) {
	store := NewKnowledgeBase()
	var events []Event
	unsub := store.Subscribe(func(ev Event) { events = append(events, ev) })
	_ = store.AddSpectrum(50, 1, testSpectrum(10))
	tab, _ := core.NewCorrelationTable([]float64{0, 1}, []float64{1, 0})
	_ = store.AddCorrelationTable(StopCoherent, tab)
	unsub()
	_ = store.AddSpectrum(55, 1, testSpectrum(10))

	if len(events) != 2 || events[0].Type != EventSpectrumAdded || events[1].Name != StopCoherent {
		t.Fatalf("events = %#v", events)
	}
}

func TestCorrelationModelOverrides(t *testing.T) {
	store := NewKnowledgeBase()
	tab, err := core.NewCorrelationTable([]float64{0, 10}, []float64{0.5, 0.5})
	if err != nil {
		t.Fatal(err)
	}
	if err := store.AddCorrelationTable(ApertureIncoherent, tab); err != nil {
		t.Fatal(err)
	}
	if err := store.AddCorrelationTable("sky", tab); err == nil {
		t.Fatalf("expected unknown table name to fail")
	}
	m := store.CorrelationModel()
	if got := m.Aperture[core.Incoherent].At(3); got != 0.5 {
		t.Fatalf("override not applied: %g", got)
	}
	if got := m.Aperture[core.Coherent].At(0); got != 1 {
		t.Fatalf("built-in table missing: %g", got)
	}
}

func TestReadSpectrum(t *testing.T) {
	in := `# freq | tau | Tb | tran
90.0 | 0.01 | 12.5 | 0.97
100.0 | 0.02 | 13.0 | 0.96
`
	s, err := ReadSpectrum(strings.NewReader(in))
	if err != nil {
		t.Fatalf("ReadSpectrum: %v", err)
	}
	if s.Freq[1] != 100e9 || s.Temp[0] != 12.5 || s.Trans[1] != 0.96 {
		t.Fatalf("ReadSpectrum = %#v", s)
	}
}

func TestReadColumnsRagged(t *testing.T) {
	if _, err := ReadColumns(strings.NewReader("1 2 3\n4 5\n")); !errors.Is(err, core.ErrMalformedSpec) {
		t.Fatalf("err = %v, want ErrMalformedSpec", err)
	}
}

func TestLoadAtmosphereDir(t *testing.T) {
	dir := t.TempDir()
	body := "90 0 12 0.97\n100 0 13 0.96\n"
	for _, name := range []string{"atm_45deg_1000um.txt", "atm_60deg_0500um.txt", "README.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	store := NewKnowledgeBase()
	n, err := LoadAtmosphereDir(store, dir)
	if err != nil || n != 2 {
		t.Fatalf("LoadAtmosphereDir = %d, %v", n, err)
	}
	if _, err := store.Spectrum(60, 0.5); err != nil {
		t.Fatalf("Spectrum(60, 0.5): %v", err)
	}
}

func TestReadCorrelationCSV(t *testing.T) {
	in := "pitch,factor\n0,1\n1,0.4\n2,0.1\n"
	tab, err := ReadCorrelationCSV(strings.NewReader(in))
	if err != nil {
		t.Fatalf("ReadCorrelationCSV: %v", err)
	}
	if got := tab.At(1.5); got < 0.249 || got > 0.251 {
		t.Fatalf("At(1.5) = %g, want 0.25", got)
	}
	if _, err := ReadCorrelationCSV(strings.NewReader("0,1\n1,x\n")); !errors.Is(err, core.ErrMalformedSpec) {
		t.Fatalf("err = %v, want ErrMalformedSpec", err)
	}
}
