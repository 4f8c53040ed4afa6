package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config holds defaults read from the configuration file.
// For example:
//
//	project = "fuel"
//	affects_only = ["fuel", "mos"]
//	backend = "launchpad"
//
//	[github]
//	token_file = "~/.github-issue-token"
type Config struct {
	Project     string   `toml:"project"`
	AffectsOnly []string `toml:"affects_only"`
	Backend     string   `toml:"backend"`
	ServiceRoot string   `toml:"service_root"`
	GitHub      struct {
		BaseURL   string `toml:"base_url"`
		TokenFile string `toml:"token_file"`
	} `toml:"github"`
}

func readConfig(name string) (*Config, error) {
	var conf Config
	md, err := toml.DecodeFile(name, &conf)
	if err != nil {
		return nil, err
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i := range undecoded {
			keys[i] = undecoded[i].String()
		}
		sort.Strings(keys)
		return nil, fmt.Errorf("%s: unknown configuration keys %s", name, strings.Join(keys, ", "))
	}
	return &conf, nil
}

// loadConfig reads the configuration file at name, or from the
// default location if name is empty. A missing file at the default
// location is not an error.
func loadConfig(name string, getenv func(string) string) (*Config, error) {
	if name == "" {
		name = getenv("LPBUG_CONFIG")
	}
	if name != "" {
		return readConfig(expandHome(name))
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return &Config{}, nil
	}
	conf, err := readConfig(filepath.Join(dir, "lpbug", "config.toml"))
	if errors.Is(err, fs.ErrNotExist) {
		return &Config{}, nil
	}
	return conf, err
}

// expandHome replaces a leading "~/" in name with the user's home directory.
func expandHome(name string) string {
	rest, ok := strings.CutPrefix(name, "~/")
	if !ok {
		return name
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return name
	}
	return filepath.Join(home, rest)
}
