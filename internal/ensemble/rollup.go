package ensemble

import "github.com/signalsfoundry/sensitivity-calculator/model"

// Level is the scope of a summary table.
type Level int

const (
	LevelCamera Level = iota
	LevelTelescope
	LevelExperiment
)

func (l Level) String() string {
	switch l {
	case LevelCamera:
		return "camera"
	case LevelTelescope:
		return "telescope"
	default:
		return "experiment"
	}
}

// Table is a merged sensitivity table for one camera, telescope or the
// whole experiment.
type Table struct {
	Level     Level
	Telescope string
	Camera    string
	Channels  []model.SensitivityRecord
	Total     model.SensitivityRecord
}

// Name is the display name of the table's scope.
func (t Table) Name() string {
	switch t.Level {
	case LevelCamera:
		return t.Telescope + "/" + t.Camera
	case LevelTelescope:
		return t.Telescope
	default:
		return "experiment"
	}
}

// Rollup builds the camera, telescope and experiment tables from
// per-channel records. Every level merges from the per-channel records
// directly.
func Rollup(recs []model.SensitivityRecord) ([]Table, error) {
	var tables []Table

	type camKey struct{ tel, cam string }
	var camOrder []camKey
	var telOrder []string
	byCam := make(map[camKey][]model.SensitivityRecord)
	byTel := make(map[string][]model.SensitivityRecord)
	for _, r := range recs {
		k := camKey{r.Telescope, r.Camera}
		if _, ok := byCam[k]; !ok {
			camOrder = append(camOrder, k)
		}
		if _, ok := byTel[r.Telescope]; !ok {
			telOrder = append(telOrder, r.Telescope)
		}
		byCam[k] = append(byCam[k], r)
		byTel[r.Telescope] = append(byTel[r.Telescope], r)
	}

	build := func(level Level, tel, cam string, rs []model.SensitivityRecord) error {
		merged, err := MergeByTag(rs)
		if err != nil {
			return err
		}
		tables = append(tables, Table{
			Level:     level,
			Telescope: tel,
			Camera:    cam,
			Channels:  merged,
			Total:     Total(merged),
		})
		return nil
	}
	for _, k := range camOrder {
		if err := build(LevelCamera, k.tel, k.cam, byCam[k]); err != nil {
			return nil, err
		}
	}
	for _, tel := range telOrder {
		if err := build(LevelTelescope, tel, "", byTel[tel]); err != nil {
			return nil, err
		}
	}
	if err := build(LevelExperiment, "", "", recs); err != nil {
		return nil, err
	}
	return tables, nil
}
