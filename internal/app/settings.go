package app

import (
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/ayusman/flowcog/internal/flow"
)

// trackerPrefix namespaces tracker tuning in the settings table.
const trackerPrefix = "tracker."

// trackerSettings flattens cfg into setting keys.
func trackerSettings(cfg flow.Config) map[string]string {
	return map[string]string{
		trackerPrefix + "min_dir_length":   strconv.FormatFloat(cfg.MinDirLength, 'g', -1, 64),
		trackerPrefix + "angle_range":      strconv.Itoa(cfg.AngleRange),
		trackerPrefix + "min_dirs_in_list": strconv.Itoa(cfg.MinDirsInList),
		trackerPrefix + "max_without_dirs": strconv.Itoa(cfg.MaxWithoutDirs),
		trackerPrefix + "min_move_report":  strconv.Itoa(cfg.MinMoveReport),
		trackerPrefix + "max_corners":      strconv.Itoa(cfg.MaxCorners),
	}
}

// applyTrackerSettings overlays the tracker keys found in values onto cfg.
// Keys outside the tracker namespace are ignored; unknown tracker keys are
// logged and skipped.
func applyTrackerSettings(cfg flow.Config, values map[string]string) (flow.Config, error) {
	for key, value := range values {
		name, ok := strings.CutPrefix(key, trackerPrefix)
		if !ok {
			continue
		}

		if name == "min_dir_length" {
			f, err := strconv.ParseFloat(value, 64)
			if err != nil {
				return cfg, fmt.Errorf("setting %s: %w", key, err)
			}
			cfg.MinDirLength = f
			continue
		}

		var field *int
		switch name {
		case "angle_range":
			field = &cfg.AngleRange
		case "min_dirs_in_list":
			field = &cfg.MinDirsInList
		case "max_without_dirs":
			field = &cfg.MaxWithoutDirs
		case "min_move_report":
			field = &cfg.MinMoveReport
		case "max_corners":
			field = &cfg.MaxCorners
		default:
			log.Printf("Ignoring unknown setting %s", key)
			continue
		}

		n, err := strconv.Atoi(value)
		if err != nil {
			return cfg, fmt.Errorf("setting %s: %w", key, err)
		}
		*field = n
	}
	return cfg, nil
}
