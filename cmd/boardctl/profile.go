package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// env is the process surface the commands touch, swapped out in tests.
type env struct {
	out       io.Writer
	errOut    io.Writer
	lookupEnv func(string) (string, bool)
	configDir func() (string, error)
}

func defaultEnv() env {
	return env{
		out:       os.Stdout,
		errOut:    os.Stderr,
		lookupEnv: os.LookupEnv,
		configDir: os.UserConfigDir,
	}
}

// resolveProfile picks the profile id from the flag, then TUBEBOARD_PROFILE,
// then the id saved under the user config dir. A new id is saved on first
// use so favourites survive between runs.
func resolveProfile(flagValue string, e env) (string, error) {
	if flagValue != "" {
		return parseProfile(flagValue)
	}
	if v, ok := e.lookupEnv("TUBEBOARD_PROFILE"); ok && v != "" {
		return parseProfile(v)
	}

	dir, err := e.configDir()
	if err != nil {
		return "", fmt.Errorf("failed to locate config dir: %w", err)
	}
	path := filepath.Join(dir, "tubeboard", "profile")

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if id, err := uuid.Parse(strings.TrimSpace(string(data))); err == nil {
			return id.String(), nil
		}
	case !errors.Is(err, os.ErrNotExist):
		return "", fmt.Errorf("failed to read profile: %w", err)
	}

	id := uuid.NewString()
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return "", fmt.Errorf("failed to save profile: %w", err)
	}
	if err := os.WriteFile(path, []byte(id+"\n"), 0o600); err != nil {
		return "", fmt.Errorf("failed to save profile: %w", err)
	}
	return id, nil
}

func parseProfile(raw string) (string, error) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("invalid profile %q: %w", raw, err)
	}
	return id.String(), nil
}
