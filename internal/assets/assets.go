// Package assets resolves and verifies the server's on-disk asset
// directory (spec.md §6 "Asset resolution"): environment override
// first, then the OS-standard per-user data directory, then an
// optional development-mode fallback to the working directory.
package assets

import (
	"fmt"
	"os"
	"path/filepath"
)

// EnvDirOverride is the environment variable that, if set, names the
// asset directory outright.
const EnvDirOverride = "TANKWAR_ASSET_DIR"

// appDirName is the subdirectory created under the OS-standard user
// config location.
const appDirName = "tankwar-server"

// Required lists the files VerifyRequired checks for: the TLS
// certificate/key pair the listener needs at startup (spec.md §6
// "Exit codes: ... non-zero on asset or TLS setup failure").
var Required = []string{"server.crt", "server.key"}

// Resolve returns the asset directory to use, per spec.md's fallback
// order. devMode enables the last-resort current-working-directory
// fallback; it must never be enabled in production, since it makes
// asset resolution depend on the process's launch directory.
func Resolve(devMode bool) (string, error) {
	if dir := os.Getenv(EnvDirOverride); dir != "" {
		return dir, nil
	}

	if base, err := os.UserConfigDir(); err == nil {
		dir := filepath.Join(base, appDirName)
		if info, statErr := os.Stat(dir); statErr == nil && info.IsDir() {
			return dir, nil
		}
	}

	if devMode {
		cwd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("assets: resolving dev-mode fallback: %w", err)
		}
		return cwd, nil
	}

	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("assets: no %s override, no dev mode, and no OS user config dir: %w", EnvDirOverride, err)
	}
	return filepath.Join(base, appDirName), nil
}

// VerifyRequired checks that every file in Required exists and is
// readable under dir, returning an error naming the first one that
// isn't (spec.md §6 "A startup check verifies all required assets are
// present").
func VerifyRequired(dir string) error {
	for _, name := range Required {
		path := filepath.Join(dir, name)
		info, err := os.Stat(path)
		if err != nil {
			return fmt.Errorf("assets: required file %s: %w", path, err)
		}
		if info.IsDir() {
			return fmt.Errorf("assets: required file %s is a directory", path)
		}
	}
	return nil
}
