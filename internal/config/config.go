package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/bluesky-social/indigo/atproto/syntax"
	"github.com/go-playground/validator/v10"

	"github.com/blackmichael/caughtup/internal/domain"
)

// DefaultKeywords are the spoiler keywords used when SPOILER_KEYWORDS is unset.
var DefaultKeywords = []string{
	"pacers",
	"indiana pacers",
	"haliburton",
	"tyrese",
	"turner",
	"siakam",
	"carlisle",
	"fieldhouse",
	"aaron nesmith",
	"andrew nembhard",
	"ben sheppard",
	"bennedict mathurin",
	"ethan thompson",
	"isaiah jackson",
	"jarace walker",
	"jay huff",
	"johnny furphy",
	"kam jones",
	"micah potter",
	"obi toppin",
	"pascal siakam",
	"quenton jackson",
	"t.j. mcconnell",
	"tj mcconnell",
	"taelon peter",
	"tony bradley",
	"tyrese haliburton",
}

// DefaultBlockedHandles are hidden when BLOCKED_HANDLES is unset.
var DefaultBlockedHandles = []string{
	"tonyreast.bsky.social",
	"ipacers.bsky.social",
}

// Config holds all configuration for the application.
type Config struct {
	// Port is the HTTP server port.
	Port int `validate:"min=1,max=65535"`

	// PDS is the base URL of the account's PDS, used for XRPC calls.
	PDS string `validate:"required,url"`

	// Handle and AppPassword authenticate the viewer. Use an App Password,
	// not the account password.
	Handle      string `validate:"required"`
	AppPassword string `validate:"required"`

	// DatabasePath is the SQLite file holding preferences and cursors.
	DatabasePath string `validate:"required"`

	// FirehoseURL is the Jetstream WebSocket endpoint.
	FirehoseURL string `validate:"required,url"`

	// LiveEnabled starts the Jetstream subscriber for the live feed.
	LiveEnabled bool

	// HideSpoilers is the toggle used until a preference has been saved.
	HideSpoilers bool

	Keywords       []string `validate:"min=1,dive,required"`
	BlockedHandles []string `validate:"dive,required"`

	// ThreadMaxDepth is how many reply levels are shown below a thread root.
	ThreadMaxDepth int `validate:"min=0,max=6"`
}

// FilterSettings returns the static part of the filter configuration.
func (c *Config) FilterSettings() domain.FilterSettings {
	return domain.FilterSettings{
		DefaultHideSpoilers: c.HideSpoilers,
		Keywords:            c.Keywords,
		BlockedHandles:      c.BlockedHandles,
		ThreadDepth:         c.ThreadMaxDepth,
	}
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (*Config, error) {
	return load(os.Getenv)
}

func load(getenv func(string) string) (*Config, error) {
	port, err := intEnv(getenv, "PORT", 3000)
	if err != nil {
		return nil, err
	}

	depth, err := intEnv(getenv, "THREAD_MAX_DEPTH", domain.DefaultThreadDepth)
	if err != nil {
		return nil, err
	}

	liveEnabled, err := boolEnv(getenv, "LIVE_ENABLED", true)
	if err != nil {
		return nil, err
	}

	hide, err := boolEnv(getenv, "HIDE_SPOILERS", true)
	if err != nil {
		return nil, err
	}

	pds := getenv("BLUESKY_PDS")
	if pds == "" {
		pds = "https://bsky.social"
	}

	dbPath := getenv("DATABASE_PATH")
	if dbPath == "" {
		dbPath = "caughtup.db"
	}

	firehoseURL := getenv("FIREHOSE_URL")
	if firehoseURL == "" {
		firehoseURL = "wss://jetstream1.us-east.bsky.network/subscribe"
	}

	handle := strings.TrimPrefix(strings.TrimSpace(getenv("BLUESKY_HANDLE")), "@")
	if handle == "" {
		return nil, fmt.Errorf("BLUESKY_HANDLE is required")
	}
	h, err := syntax.ParseHandle(handle)
	if err != nil {
		return nil, fmt.Errorf("invalid BLUESKY_HANDLE: %w", err)
	}

	password := getenv("BLUESKY_APP_PASSWORD")
	if password == "" {
		return nil, fmt.Errorf("BLUESKY_APP_PASSWORD is required")
	}

	cfg := &Config{
		Port:           port,
		PDS:            strings.TrimRight(pds, "/"),
		Handle:         h.Normalize().String(),
		AppPassword:    password,
		DatabasePath:   dbPath,
		FirehoseURL:    firehoseURL,
		LiveEnabled:    liveEnabled,
		HideSpoilers:   hide,
		Keywords:       listEnv(getenv, "SPOILER_KEYWORDS", DefaultKeywords),
		BlockedHandles: listEnv(getenv, "BLOCKED_HANDLES", DefaultBlockedHandles),
		ThreadMaxDepth: depth,
	}

	if err := validator.New(validator.WithRequiredStructEnabled()).Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func intEnv(getenv func(string) string, key string, def int) (int, error) {
	v := getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func boolEnv(getenv func(string) string, key string, def bool) (bool, error) {
	v := getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}

// listEnv splits a comma separated variable, dropping blank entries.
func listEnv(getenv func(string) string, key string, def []string) []string {
	v := getenv(key)
	if strings.TrimSpace(v) == "" {
		return append([]string(nil), def...)
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
