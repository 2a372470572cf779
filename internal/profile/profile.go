package profile

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// Profile is the configuration to start the main server.
type Profile struct {
	// Mode can be "prod" or "dev" or "demo"
	Mode string
	// Addr is the binding address for server
	Addr string
	// Port is the binding port for server
	Port int
	// Data is the data directory
	Data string
	// DSN points to where voicecal stores its own data
	DSN string
	// Driver is the event store backend ("memory" or "sqlite")
	Driver string
	// Version is the current version of server
	Version string

	// JWTSecret verifies bearer tokens on the API surface.
	JWTSecret string
	// AuthBypass disables token verification and serves everything
	// under a fixed dev user. Dev/demo only.
	AuthBypass bool

	// Interpreter configuration
	OpenAIAPIKey  string // VOICECAL_OPENAI_API_KEY
	OpenAIBaseURL string // VOICECAL_OPENAI_BASE_URL (default: https://api.openai.com/v1)
	LLMModel      string // VOICECAL_LLM_MODEL (default: gpt-4o-mini)
	// InterpreterBypass forces the deterministic rule-based
	// interpreter even when an API key is configured.
	InterpreterBypass bool

	// DefaultTimezone is used when a request carries no timezone.
	DefaultTimezone string

	// ReminderCron is the cron spec for the reminder scan runner.
	// Empty disables the runner.
	ReminderCron string
}

func (p *Profile) IsDev() bool {
	return p.Mode != "prod"
}

// IsLLMEnabled returns true if the external interpreter is configured
// and not explicitly bypassed.
func (p *Profile) IsLLMEnabled() bool {
	return p.OpenAIAPIKey != "" && !p.InterpreterBypass
}

func checkDataDir(dataDir string) (string, error) {
	// Convert to absolute path if relative path is supplied.
	if !filepath.IsAbs(dataDir) {
		relativeDir := filepath.Join(filepath.Dir(os.Args[0]), dataDir)
		absDir, err := filepath.Abs(relativeDir)
		if err != nil {
			return "", err
		}
		dataDir = absDir
	}

	// Trim trailing \ or / in case user supplies
	dataDir = strings.TrimRight(dataDir, "\\/")
	if _, err := os.Stat(dataDir); err != nil {
		return "", errors.Wrapf(err, "unable to access data folder %s", dataDir)
	}
	return dataDir, nil
}

func (p *Profile) Validate() error {
	if p.Mode != "demo" && p.Mode != "dev" && p.Mode != "prod" {
		p.Mode = "demo"
	}

	if p.Driver == "" {
		p.Driver = "memory"
	}
	if p.Driver != "memory" && p.Driver != "sqlite" {
		return errors.Errorf("unknown store driver %q: only 'memory' and 'sqlite' are supported", p.Driver)
	}

	if p.OpenAIBaseURL == "" {
		p.OpenAIBaseURL = "https://api.openai.com/v1"
	}
	if p.LLMModel == "" {
		p.LLMModel = "gpt-4o-mini"
	}
	if p.DefaultTimezone == "" {
		p.DefaultTimezone = "America/Los_Angeles"
	}

	if !p.AuthBypass && p.JWTSecret == "" {
		if p.Mode == "prod" {
			return errors.New("JWT secret is required in prod mode unless auth bypass is enabled")
		}
		p.AuthBypass = true
	}

	// The sqlite backend needs a data directory for its database file.
	if p.Driver == "sqlite" {
		dataDir, err := checkDataDir(p.Data)
		if err != nil {
			return errors.Wrap(err, "failed to check data dir")
		}
		p.Data = dataDir
		if p.DSN == "" {
			dbFile := fmt.Sprintf("voicecal_%s.db", p.Mode)
			p.DSN = filepath.Join(dataDir, dbFile)
		}
	}

	return nil
}
