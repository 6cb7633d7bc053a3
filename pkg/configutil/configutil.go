// Package configutil loads json5 config files with local overrides and fills secrets from
// the environment.
package configutil

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"dario.cat/mergo"
	"github.com/joho/godotenv"
	"github.com/titanous/json5"
)

// localName turns "dir/config.json5" into "dir/config.local.json5".
func localName(name string) string {
	ext := filepath.Ext(name)
	return strings.TrimSuffix(name, ext) + ".local" + ext
}

// readJson5 decodes a file into out, it reports false when the file is missing or empty.
func readJson5(name string, out any) (bool, error) {
	contents, err := os.ReadFile(name)
	if errors.Is(err, os.ErrNotExist) || len(contents) == 0 {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	err = json5.Unmarshal(contents, out)
	if err != nil {
		return false, fmt.Errorf("parse %s: %w", name, err)
	}
	return true, nil
}

// ReadConfig reads `name` and merges `<name without ext>.local.<ext>` over it, values set
// in the local file win. It returns os.ErrNotExist when neither file exists.
func ReadConfig[T any](name string) (T, error) {
	var out T
	found, err := readJson5(name, &out)
	if err != nil {
		return out, err
	}

	local := localName(name)
	var override T
	foundLocal, err := readJson5(local, &override)
	if err != nil {
		return out, err
	}
	if foundLocal {
		err = mergo.Merge(&out, override, mergo.WithOverride)
		if err != nil {
			return out, err
		}
		slog.Info("merging config with local overrides", "local", local)
	}

	if !found && !foundLocal {
		return out, os.ErrNotExist
	}
	return out, nil
}

// ReadRecursively is ReadConfig for a relative name, looked up in the working directory and
// then in every parent up to the root.
func ReadRecursively[T any](name string) (T, error) {
	var empty T
	current, err := os.Getwd()
	if err != nil {
		return empty, err
	}
	for {
		config, err := ReadConfig[T](filepath.Join(current, name))
		if !errors.Is(err, os.ErrNotExist) {
			return config, err
		}
		parent := filepath.Dir(current)
		if parent == current {
			return empty, os.ErrNotExist
		}
		current = parent
	}
}

// LoadEnv loads the given dotenv files into the process environment, missing files are
// ignored and variables already set in the environment win.
func LoadEnv(files ...string) error {
	for _, f := range files {
		err := godotenv.Load(f)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return fmt.Errorf("load env %s: %w", f, err)
		}
	}
	return nil
}

// EnvDefault sets *target to the value of the environment variable `key` if *target is
// still empty.
func EnvDefault(target *string, key string) {
	if *target != "" {
		return
	}
	*target = os.Getenv(key)
}
