package kb

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/signalsfoundry/sensitivity-calculator/core"
)

// ReadColumns parses a whitespace- or '|'-separated numeric table. Blank
// lines and lines starting with '#' are skipped; every row must have the
// same number of columns. The result is column-major.
func ReadColumns(r io.Reader) ([][]float64, error) {
	var cols [][]float64
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		fields := strings.FieldsFunc(text, func(r rune) bool {
			return r == '|' || r == ' ' || r == '\t' || r == ','
		})
		if cols == nil {
			cols = make([][]float64, len(fields))
		}
		if len(fields) != len(cols) {
			return nil, fmt.Errorf("line %d: %d columns, want %d: %w", line, len(fields), len(cols), core.ErrMalformedSpec)
		}
		for i, f := range fields {
			v, err := strconv.ParseFloat(f, 64)
			if err != nil {
				return nil, fmt.Errorf("line %d column %d: %v: %w", line, i+1, err, core.ErrMalformedSpec)
			}
			cols[i] = append(cols[i], v)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("empty table: %w", core.ErrMalformedSpec)
	}
	return cols, nil
}

// ReadSpectrum parses an atmosphere file with columns
// freq [GHz] | (unused) | brightness temperature [K] | transmission.
func ReadSpectrum(r io.Reader) (Spectrum, error) {
	cols, err := ReadColumns(r)
	if err != nil {
		return Spectrum{}, err
	}
	if len(cols) < 4 {
		return Spectrum{}, fmt.Errorf("atmosphere table has %d columns, want 4: %w", len(cols), core.ErrMalformedSpec)
	}
	s := Spectrum{
		Freq:  make([]float64, len(cols[0])),
		Temp:  cols[2],
		Trans: cols[3],
	}
	for i, ghz := range cols[0] {
		s.Freq[i] = ghz * 1e9
	}
	return s, s.Validate()
}

var atmFileName = regexp.MustCompile(`^atm_(\d+)deg_(\d+)um\.txt$`)

// LoadAtmosphereDir adds every atm_<elev>deg_<pwv um>um.txt file in dir to
// the KB and returns how many were loaded. Other files are ignored.
func LoadAtmosphereDir(kb *KnowledgeBase, dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("LoadAtmosphereDir: %w", err)
	}
	n := 0
	for _, e := range entries {
		m := atmFileName.FindStringSubmatch(e.Name())
		if e.IsDir() || m == nil {
			continue
		}
		elev, _ := strconv.Atoi(m[1])
		pwvUM, _ := strconv.Atoi(m[2])
		s, err := readSpectrumFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return n, fmt.Errorf("LoadAtmosphereDir: %s: %w", e.Name(), err)
		}
		if err := kb.AddSpectrum(float64(elev), float64(pwvUM)*1e-3, s); err != nil {
			return n, fmt.Errorf("LoadAtmosphereDir: %s: %w", e.Name(), err)
		}
		n++
	}
	return n, nil
}

// LoadFixedAtmosphere pins the spectrum in path as the only atmosphere.
func LoadFixedAtmosphere(kb *KnowledgeBase, path string) error {
	s, err := readSpectrumFile(path)
	if err != nil {
		return fmt.Errorf("LoadFixedAtmosphere: %w", err)
	}
	return kb.SetFixedSpectrum(s)
}

func readSpectrumFile(path string) (Spectrum, error) {
	f, err := os.Open(path)
	if err != nil {
		return Spectrum{}, err
	}
	defer f.Close()
	return ReadSpectrum(f)
}

// ReadCorrelationCSV parses a two-column "pitch,factor" CSV with an
// optional header row. Pitch is in units of F*lambda.
func ReadCorrelationCSV(r io.Reader) (*core.CorrelationTable, error) {
	cr := csv.NewReader(r)
	cr.Comment = '#'
	cr.FieldsPerRecord = 2
	cr.TrimLeadingSpace = true
	recs, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("correlation table: %v: %w", err, core.ErrMalformedSpec)
	}
	var pitch, factor []float64
	for i, rec := range recs {
		p, perr := strconv.ParseFloat(rec[0], 64)
		f, ferr := strconv.ParseFloat(rec[1], 64)
		if perr != nil || ferr != nil {
			if i == 0 {
				continue
			}
			return nil, fmt.Errorf("correlation table row %d: not numeric: %w", i+1, core.ErrMalformedSpec)
		}
		pitch = append(pitch, p)
		factor = append(factor, f)
	}
	return core.NewCorrelationTable(pitch, factor)
}

// LoadCorrelationFile reads a correlation CSV and stores it under name.
func LoadCorrelationFile(kb *KnowledgeBase, name, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("LoadCorrelationFile: %w", err)
	}
	defer f.Close()
	t, err := ReadCorrelationCSV(f)
	if err != nil {
		return fmt.Errorf("LoadCorrelationFile: %s: %w", path, err)
	}
	return kb.AddCorrelationTable(name, t)
}
