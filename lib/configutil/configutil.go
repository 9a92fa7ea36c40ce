// Package configutil reads json5 configuration files with an optional
// `.local` overlay, the layering used for config.json5 and
// telemetry.json5: the committed file carries shared defaults, the
// overlay carries per-machine overrides and stays untracked.
package configutil

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"dario.cat/mergo"
	"github.com/titanous/json5"
)

// readLayer decodes one file into out. A missing or empty file is not
// an error, it reports found=false.
func readLayer(path string, out any) (bool, error) {
	contents, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if len(contents) == 0 {
		return false, nil
	}
	return true, json5.Unmarshal(contents, out)
}

func localPath(name string) string {
	ext := filepath.Ext(name)
	return strings.TrimSuffix(name, ext) + ".local" + ext
}

// ReadConfig reads <name> and merges its `.local` sibling over it, the
// overlay winning on conflicts. When neither file exists the error is
// os.ErrNotExist, so callers can treat absence separately from a
// malformed file.
func ReadConfig[T any](name string) (T, error) {
	var config T

	found, err := readLayer(name, &config)
	if err != nil {
		return config, err
	}

	overlayPath := localPath(name)
	var overlay T
	foundOverlay, err := readLayer(overlayPath, &overlay)
	if err != nil {
		return config, err
	}
	if foundOverlay {
		if err := mergo.Merge(&config, overlay, mergo.WithOverride); err != nil {
			return config, err
		}
		slog.Debug("merged local config overlay", "path", overlayPath)
	}

	if !found && !foundOverlay {
		return config, os.ErrNotExist
	}
	return config, nil
}

// ReadOptional reads a config that may legitimately be absent, like
// the crawl command's config.json5. Absence yields the zero value and
// found=false rather than an error.
func ReadOptional[T any](name string) (T, bool, error) {
	config, err := ReadConfig[T](name)
	if os.IsNotExist(err) {
		var zero T
		return zero, false, nil
	}
	if err != nil {
		return config, false, err
	}
	return config, true, nil
}

// ReadRecursively walks from the working directory up to the
// filesystem root and reads the first matching config it finds.
func ReadRecursively[T any](name string) (T, error) {
	var zero T

	dir, err := os.Getwd()
	if err != nil {
		return zero, err
	}

	for {
		config, err := ReadConfig[T](filepath.Join(dir, name))
		if err == nil {
			return config, nil
		}
		if !os.IsNotExist(err) {
			return zero, err
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return zero, os.ErrNotExist
		}
		dir = parent
	}
}
