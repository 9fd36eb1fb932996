package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/inkwellapp/inkwell/internal/flagx"
	"github.com/inkwellapp/inkwell/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. It relies on
// timex.Duration so JSON can specify the retention window either as a string
// like "720h" or as integer nanoseconds. After parsing, values are copied
// into the runtime Config (which uses time.Duration).
type JsonConfig struct {
	DatabasePath   string         `json:"database_path"`
	TrashRetention timex.Duration `json:"trash_retention"`
}

// parseJson overlays Config with values loaded from a JSON file.
//
// The file path comes from the -c or -config flags via
// flagx.JsonConfigFlags(); when neither is given, no JSON is loaded. Only
// fields present in the file override the defaults.
//
// Intended usage is: defaults -> parseJson -> parseFlags, where later stages
// override earlier ones.
func parseJson(cfg *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	var jc JsonConfig

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	if jc.DatabasePath != "" {
		cfg.DatabasePath = jc.DatabasePath
	}
	if jc.TrashRetention.Duration != 0 {
		cfg.TrashRetention = time.Duration(jc.TrashRetention.Duration)
	}
}
