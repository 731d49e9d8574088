// Package config loads configuration from the environment and from env files.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Load fills target (a pointer to a struct with mapstructure tags) with the variables
// that have the given prefix, like "AQLC_".
//
// After the prefix is removed, every "_" of a variable name separates nested keys:
// AQLC_ARANGO_ENDPOINT is the key "endpoint" of the struct tagged "arango".
// Variables are read from the given env files (".env" if none is given, missing files
// are ignored) and then from the process environment, which takes precedence.
//
// Fields with no variable keep the value they had, so defaults are set on target
// before calling Load. Durations are parsed with [time.ParseDuration].
func Load(prefix string, target any, files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	prefix = strings.ToUpper(prefix)
	v := viper.New()

	for _, file := range files {
		settings, err := readEnvFile(file)
		if err != nil {
			return err
		}
		for name, value := range settings {
			set(v, prefix, name, value)
		}
	}
	for _, env := range os.Environ() {
		name, value, _ := strings.Cut(env, "=")
		set(v, prefix, name, value)
	}

	if err := v.Unmarshal(target); err != nil {
		return fmt.Errorf("config: decoding %s variables: %w", prefix, err)
	}
	return nil
}

func set(v *viper.Viper, prefix, name string, value any) {
	name = strings.ToUpper(name)
	if !strings.HasPrefix(name, prefix) {
		return
	}
	key := strings.ToLower(strings.ReplaceAll(strings.TrimPrefix(name, prefix), "_", "."))
	key = strings.Trim(key, ".")
	if key == "" {
		return
	}
	v.Set(key, value)
}

func readEnvFile(path string) (map[string]any, error) {
	f := viper.New()
	f.SetConfigFile(path)
	f.SetConfigType("env")
	if err := f.ReadInConfig(); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	return f.AllSettings(), nil
}
