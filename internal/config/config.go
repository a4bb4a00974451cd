// Copyright (C) 2025 Dyne.org foundation
// designed, written and maintained by Denis Roio <jaromil@dyne.org>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package config

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"asroot/internal/fileops"
	"asroot/internal/paths"
)

// Compiled-in defaults. They are variables so a packager can pin different
// values with -ldflags "-X asroot/internal/config.DefaultMobilePrefix=...".
var (
	DefaultMobilePrefix = "/var/mobile/Library/Logs/CrashReporter"
	DefaultRootPrefix   = "/Library/Logs/CrashReporter"
	DefaultTempPrefix   = "/tmp"
	DefaultTempTemplate = "CrashReporter.temp."
	DefaultConfigPath   = "/etc/as_root/config.json"
)

const (
	maxBufferSize  = 1 << 20
	maxConfigBytes = 64 * 1024
)

// Config is the process-wide configuration. It is built once at startup and
// treated as read-only afterwards.
type Config struct {
	Prefixes     Prefixes `json:"prefixes"`
	TempTemplate string   `json:"temp_template,omitempty"`
	StrictPaths  bool     `json:"strict_paths"`
	Confine      bool     `json:"confine"`
	AuditLog     string   `json:"audit_log,omitempty"`
	BufferSize   int      `json:"buffer_size,omitempty"`
}

// Prefixes names the three allowed path prefixes.
type Prefixes struct {
	Mobile string `json:"mobile,omitempty"`
	Root   string `json:"root,omitempty"`
	Temp   string `json:"temp,omitempty"`
}

// DefaultConfig returns a config with default values
func DefaultConfig() *Config {
	return &Config{
		Prefixes: Prefixes{
			Mobile: DefaultMobilePrefix,
			Root:   DefaultRootPrefix,
			Temp:   DefaultTempPrefix,
		},
		TempTemplate: DefaultTempTemplate,
		StrictPaths:  true,
		Confine:      true,
		BufferSize:   fileops.DefaultBufferSize,
	}
}

// LoadConfig loads configuration from a JSON file and validates it. A missing
// file yields the defaults. An existing file is only trusted when it is a
// regular file owned by trustedUID and not writable by group or others.
func LoadConfig(path string, trustedUID int) (*Config, error) {
	config := DefaultConfig()

	f, err := os.OpenFile(path, os.O_RDONLY|syscall.O_NOFOLLOW, 0)
	if err != nil {
		if os.IsNotExist(err) {
			return config, config.check()
		}
		return nil, fmt.Errorf("open config %s: %w", path, err)
	}
	defer f.Close()

	if err := checkTrusted(f, trustedUID); err != nil {
		return nil, err
	}

	data, err := io.ReadAll(io.LimitReader(f, maxConfigBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if len(data) > maxConfigBytes {
		return nil, fmt.Errorf("config %s exceeds %d bytes", path, maxConfigBytes)
	}
	normalized, err := normalizeConfigJSON(data)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(normalized, config); err != nil {
		return nil, err
	}

	if err := config.check(); err != nil {
		return nil, err
	}
	return config, nil
}

func checkTrusted(f *os.File, trustedUID int) error {
	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat config %s: %w", f.Name(), err)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("config %s is not a regular file", f.Name())
	}
	stat, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return fmt.Errorf("unable to determine ownership of config %s", f.Name())
	}
	if int(stat.Uid) != trustedUID {
		return fmt.Errorf("config %s is owned by uid %d, expected %d", f.Name(), stat.Uid, trustedUID)
	}
	if mode := info.Mode().Perm(); mode&0o022 != 0 {
		return fmt.Errorf("config %s must not be writable by group or others, mode is %o", f.Name(), mode)
	}
	return nil
}

// check enforces the invariants the rest of the tool relies on.
func (c *Config) check() error {
	if c.Prefixes.Temp == "" {
		return fmt.Errorf("prefixes.temp is required")
	}
	for _, p := range c.namedPrefixes() {
		if p.value == "" {
			continue
		}
		if !filepath.IsAbs(p.value) {
			return fmt.Errorf("%s must be an absolute path, got %q", p.field, p.value)
		}
		if filepath.Clean(p.value) == "/" {
			return fmt.Errorf("%s must not be the filesystem root", p.field)
		}
		if err := paths.ValidatePathString(p.value, paths.MaxPathLength); err != nil {
			return fmt.Errorf("%s: %w", p.field, err)
		}
	}
	if c.TempTemplate == "" || strings.ContainsRune(c.TempTemplate, '/') || c.TempTemplate == ".." {
		return fmt.Errorf("temp_template must be a non-empty file name, got %q", c.TempTemplate)
	}
	if c.BufferSize <= 0 || c.BufferSize > maxBufferSize {
		return fmt.Errorf("buffer_size must be between 1 and %d, got %d", maxBufferSize, c.BufferSize)
	}
	if c.AuditLog != "" && !filepath.IsAbs(c.AuditLog) {
		return fmt.Errorf("audit_log must be an absolute path, got %q", c.AuditLog)
	}
	return nil
}

type namedPrefix struct {
	field, value string
}

func (c *Config) namedPrefixes() []namedPrefix {
	return []namedPrefix{
		{"prefixes.mobile", c.Prefixes.Mobile},
		{"prefixes.root", c.Prefixes.Root},
		{"prefixes.temp", c.Prefixes.Temp},
	}
}

// PrefixSet converts the configured prefixes for the path validator.
func (c *Config) PrefixSet() paths.PrefixSet {
	return paths.PrefixSet{
		Mobile: c.Prefixes.Mobile,
		Root:   c.Prefixes.Root,
		Temp:   c.Prefixes.Temp,
	}
}

// Validator builds the path validator described by the config.
func (c *Config) Validator() *paths.Validator {
	return paths.NewValidator(c.PrefixSet(), paths.WithStrict(c.StrictPaths))
}

// ValidationWarning represents a non-fatal configuration issue
type ValidationWarning struct {
	Field   string
	Message string
}

// Validate checks the configuration for common issues and returns warnings
func (c *Config) Validate() []ValidationWarning {
	var warnings []ValidationWarning

	for _, p := range c.namedPrefixes() {
		if p.value == "" {
			continue
		}
		if _, err := os.Stat(p.value); err != nil {
			warnings = append(warnings, ValidationWarning{
				Field:   p.field,
				Message: fmt.Sprintf("prefix %q is not accessible: %v", p.value, err),
			})
		}
	}

	if !c.StrictPaths {
		warnings = append(warnings, ValidationWarning{
			Field:   "strict_paths",
			Message: "paths with \"..\" segments are accepted when they match a prefix",
		})
	}

	if !c.Confine {
		warnings = append(warnings, ValidationWarning{
			Field:   "confine",
			Message: "filesystem confinement is disabled",
		})
	}

	return warnings
}
