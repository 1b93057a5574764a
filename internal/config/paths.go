package config

import (
	"os"
	"path/filepath"
)

const defaultBaseDir = ".rewardbot"

// Paths holds resolved filesystem paths for rewardbot data.
type Paths struct {
	Base    string // ~/.rewardbot
	Config  string // ~/.rewardbot/config.yaml
	Env     string // ~/.rewardbot/.env
	Logs    string // ~/.rewardbot/logs
	Data    string // ~/.rewardbot/data
	History string // ~/.rewardbot/data/history.db
}

// ResolvePaths computes all standard paths from the home directory.
// If REWARDBOT_HOME is set, it overrides the default base directory.
func ResolvePaths() (Paths, error) {
	base := os.Getenv("REWARDBOT_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return Paths{}, err
		}
		base = filepath.Join(home, defaultBaseDir)
	}

	data := filepath.Join(base, "data")
	return Paths{
		Base:    base,
		Config:  filepath.Join(base, "config.yaml"),
		Env:     filepath.Join(base, ".env"),
		Logs:    filepath.Join(base, "logs"),
		Data:    data,
		History: filepath.Join(data, "history.db"),
	}, nil
}

// EnsureDirs creates all standard directories if they don't exist.
func (p Paths) EnsureDirs() error {
	for _, d := range []string{p.Base, p.Logs, p.Data} {
		if err := os.MkdirAll(d, 0o700); err != nil {
			return err
		}
	}
	return nil
}
