package report

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/signalsfoundry/sensitivity-calculator/internal/runner"
)

// Output file names inside the output directory.
const (
	SensitivityFile = "sensitivity.txt"
	BreakdownFile   = "power_breakdown.txt"
	PlotFileBase    = "net_array"
)

// WriteDir writes the sensitivity tables, the power breakdowns and, unless
// plotFormat is empty or "none", the NET plot into dir. It returns the
// paths written.
func WriteDir(dir string, rep *runner.Report, plotFormat string) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	var written []string

	path := filepath.Join(dir, SensitivityFile)
	err := writeFile(path, func(w *bufio.Writer) error {
		fmt.Fprintf(w, "# run %s: %d trials completed, %d failed\n\n", rep.RunID, rep.Completed, len(rep.Failures))
		return WriteTables(w, rep.Tables)
	})
	if err != nil {
		return written, err
	}
	written = append(written, path)

	path = filepath.Join(dir, BreakdownFile)
	err = writeFile(path, func(w *bufio.Writer) error {
		for _, b := range rep.Breakdowns {
			if err := WriteBreakdown(w, b); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return written, err
	}
	written = append(written, path)

	format := strings.ToLower(plotFormat)
	if format == "" || format == "none" {
		return written, nil
	}
	path = filepath.Join(dir, PlotFileBase+"."+format)
	err = writeFile(path, func(w *bufio.Writer) error {
		return WritePlot(w, rep.Tables, format)
	})
	if errors.Is(err, ErrNothingToPlot) {
		_ = os.Remove(path)
		return written, nil
	}
	if err != nil {
		return written, err
	}
	return append(written, path), nil
}

func writeFile(path string, fill func(*bufio.Writer) error) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	w := bufio.NewWriter(f)
	if err := fill(w); err != nil {
		return fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return w.Flush()
}
