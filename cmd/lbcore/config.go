package main

import (
	"os"

	"gopkg.in/yaml.v3"
)

// fileConfig is the on-disk shape of an optional --config file, letting a
// scripted integration run pin data-dir/api-url without repeating flags on
// every invocation.
type fileConfig struct {
	DataDir string `yaml:"dataDir"`
	APIURL  string `yaml:"apiUrl"`
}

// loadConfig reads path and applies any fields it sets over the current
// flag defaults. A missing path is not an error; only explicit --config is
// read.
func loadConfig(path string) error {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var cfg fileConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return err
	}
	if cfg.DataDir != "" {
		dataDir = cfg.DataDir
	}
	if cfg.APIURL != "" {
		apiURL = cfg.APIURL
	}
	return nil
}
