package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
)

// LoadDotEnv loads .env files from the given directories, in order.
// Variables already present in the environment are never overwritten, so an
// earlier file wins over a later one. Missing files are skipped.
// It returns the paths that were loaded.
func LoadDotEnv(dirs ...string) ([]string, error) {
	var loaded []string
	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		path := filepath.Join(dir, ".env")
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			return loaded, err
		}
		loaded = append(loaded, path)
	}
	return loaded, nil
}

// DotEnvDirs returns the default .env search directories: the working
// directory, then the XDG config directory.
func DotEnvDirs() []string {
	dirs := make([]string, 0, 2)
	if cwd, err := os.Getwd(); err == nil {
		dirs = append(dirs, cwd)
	}
	return append(dirs, XDGConfigDir())
}

// ResolveAPIKey returns the flag value when set, else the APIKeyEnv variable.
func ResolveAPIKey(flagValue string) (string, error) {
	if key := strings.TrimSpace(flagValue); key != "" {
		return key, nil
	}
	if key := strings.TrimSpace(os.Getenv(APIKeyEnv)); key != "" {
		return key, nil
	}
	return "", ErrNoAPIKey
}

// ResolveBaseURL returns the flag value when set, else BaseURLEnv, else DefaultBaseURL.
func ResolveBaseURL(flagValue string) string {
	if u := strings.TrimSpace(flagValue); u != "" {
		return u
	}
	if u := strings.TrimSpace(os.Getenv(BaseURLEnv)); u != "" {
		return u
	}
	return DefaultBaseURL
}
