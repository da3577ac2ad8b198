package config

import "time"

// Env is the SUBSIFT_* environment view shared by the CLI and the API.
// Values here override the settings file; the file overrides built-in defaults
type Env struct {
	Language       string
	ProfilesDir    string
	SettingsFile   string
	Workers        int
	MinKeepRatio   float64
	APIPort        string
	APIProfiler    bool
	APICORSOrigins []string
	APIMaxBytes    int64
	APITimeout     time.Duration
}

// DefaultAPIMaxBytes caps request bodies (subtitle files are small)
const DefaultAPIMaxBytes int64 = 8 << 20

// LoadEnv reads the SUBSIFT_ namespace. Unset values keep their zero value so the
// caller can tell "not configured" from an explicit setting, except API transport
// knobs which always carry a usable default
func LoadEnv() Env {
	c := New().Prefix("SUBSIFT_")
	api := c.Prefix("API_")
	return Env{
		Language:       c.MayString("LANGUAGE", ""),
		ProfilesDir:    c.MayString("PROFILES_DIR", ""),
		SettingsFile:   c.MayString("SETTINGS", ""),
		Workers:        c.MayInt("WORKERS", 0),
		MinKeepRatio:   c.MayFloat64("MIN_KEEP_RATIO", -1),
		APIPort:        api.MayPort("PORT", 8088),
		APIProfiler:    api.MayBool("PROFILER", false),
		APICORSOrigins: api.MayCSV("CORS_ORIGINS", []string{"*"}),
		APIMaxBytes:    api.MayInt64("MAX_BYTES", DefaultAPIMaxBytes),
		APITimeout:     api.MayDuration("TIMEOUT", 30*time.Second),
	}
}
