package config

import (
	"fmt"
	"sort"

	"github.com/signalsfoundry/sensitivity-calculator/internal/trial"
	"github.com/signalsfoundry/sensitivity-calculator/kb"
	"github.com/signalsfoundry/sensitivity-calculator/model"
)

// BuildTables loads the atmosphere and correlation tables a run reads.
// The atmosphere directory and correlation files go into the shared
// tables; a telescope with its own atmosphere file gets a private table
// holding only that spectrum.
func BuildTables(exp model.ExperimentSpec, s Settings) (trial.Tables, error) {
	shared := kb.NewKnowledgeBase()
	if s.AtmosphereDir != "" {
		n, err := kb.LoadAtmosphereDir(shared, s.AtmosphereDir)
		if err != nil {
			return trial.Tables{}, fmt.Errorf("%v: %w", err, ErrInvalidConfig)
		}
		if n == 0 {
			return trial.Tables{}, fmt.Errorf("no atmosphere files in %s: %w", s.AtmosphereDir, ErrInvalidConfig)
		}
	}

	names := make([]string, 0, len(s.CorrelationFiles))
	for name := range s.CorrelationFiles {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := kb.LoadCorrelationFile(shared, name, s.CorrelationFiles[name]); err != nil {
			return trial.Tables{}, fmt.Errorf("%v: %w", err, ErrInvalidConfig)
		}
	}

	tables := trial.Tables{Default: shared, Telescope: map[string]*kb.KnowledgeBase{}}
	for _, tel := range exp.Telescopes {
		if tel.Sky.AtmosphereFile == "" {
			continue
		}
		own := kb.NewKnowledgeBase()
		if err := kb.LoadFixedAtmosphere(own, tel.Sky.AtmosphereFile); err != nil {
			return trial.Tables{}, fmt.Errorf("telescope %q: %v: %w", tel.Name, err, ErrInvalidConfig)
		}
		tables.Telescope[tel.Name] = own
	}
	return tables, nil
}
