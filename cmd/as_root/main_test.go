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

package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"asroot/internal/config"
	apperrors "asroot/internal/errors"
)

type fakeCredentials struct {
	setuidErr error
	calls     int
}

func (f *fakeCredentials) Getuid() int  { return os.Getuid() }
func (f *fakeCredentials) Geteuid() int { return os.Getuid() }
func (f *fakeCredentials) Setuid(int) error {
	f.calls++
	return f.setuidErr
}

type harness struct {
	dir    string
	stdout bytes.Buffer
	stderr bytes.Buffer
	creds  *fakeCredentials
	app    *app
}

// newHarness points every allowed prefix into a fresh temp directory.
func newHarness(t *testing.T, extra string) *harness {
	t.Helper()
	h := &harness{dir: t.TempDir(), creds: &fakeCredentials{}}
	cfgDir := t.TempDir()
	cfgPath := filepath.Join(cfgDir, "config.json")
	content := fmt.Sprintf(`{"prefixes": {"mobile": %q, "root": %q, "temp": %q}, "confine": false%s}`,
		filepath.Join(h.dir, "mobile"), filepath.Join(h.dir, "root"), filepath.Join(h.dir, "tmp"), extra)
	require.NoError(t, os.WriteFile(cfgPath, []byte(content), 0o644))
	require.NoError(t, os.Chmod(cfgPath, 0o644))
	for _, sub := range []string{"mobile", "root", "tmp"} {
		require.NoError(t, os.MkdirAll(filepath.Join(h.dir, sub), 0o755))
	}
	h.app = &app{stdout: &h.stdout, stderr: &h.stderr, creds: h.creds, configPath: cfgPath}
	return h
}

func (h *harness) path(parts ...string) string {
	return filepath.Join(append([]string{h.dir}, parts...)...)
}

func (h *harness) write(t *testing.T, content string, parts ...string) string {
	t.Helper()
	p := h.path(parts...)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestUnknownOperationPrintsUsage(t *testing.T) {
	h := newHarness(t, "")
	target := h.write(t, "data", "tmp", "x")

	code := h.app.run([]string{"frobnicate", target})
	assert.Equal(t, 0, code)
	assert.Contains(t, h.stderr.String(), "Usage: as_root chmod <filepath> <mode>")
	assert.Contains(t, h.stderr.String(), fmt.Sprintf("* %q", h.path("tmp")))
	assert.Empty(t, h.stdout.String())
	assert.FileExists(t, target)
}

func TestWrongArgumentCountPrintsUsage(t *testing.T) {
	h := newHarness(t, "")

	assert.Equal(t, 0, h.app.run([]string{"copy", h.path("tmp", "a")}))
	assert.Contains(t, h.stderr.String(), "Usage:")
}

func TestNoArgumentsPrintsUsage(t *testing.T) {
	h := newHarness(t, "")

	assert.Equal(t, 0, h.app.run(nil))
	assert.Contains(t, h.stderr.String(), "Usage:")
}

func TestUnknownFlagPrintsUsage(t *testing.T) {
	h := newHarness(t, "")

	assert.Equal(t, 0, h.app.run([]string{"-x", "read", h.path("tmp", "a")}))
	assert.Contains(t, h.stderr.String(), "Usage:")
}

func TestElevationFailureStopsBeforeAnythingElse(t *testing.T) {
	h := newHarness(t, "")
	h.creds.setuidErr = syscall.EPERM
	// An untrusted config would fail loudly if it were ever read.
	require.NoError(t, os.Chmod(h.app.configPath, 0o666))
	src := h.write(t, "data", "tmp", "a")

	code := h.app.run([]string{"delete", src})
	assert.Equal(t, 1, code)
	assert.Equal(t, 1, h.creds.calls)
	assert.Contains(t, h.stderr.String(), "unable to assume root powers")
	assert.Contains(t, h.stderr.String(), fmt.Sprintf("errno=%d", int(syscall.EPERM)))
	assert.NotContains(t, h.stderr.String(), "config")
	assert.FileExists(t, src)
}

func TestUntrustedConfigFails(t *testing.T) {
	h := newHarness(t, "")
	require.NoError(t, os.Chmod(h.app.configPath, 0o666))

	assert.Equal(t, 1, h.app.run([]string{"read", h.path("tmp", "a")}))
	assert.Contains(t, h.stderr.String(), "unable to load configuration")
}

func TestMalformedInvocationWithUntrustedConfigPrintsUsage(t *testing.T) {
	h := newHarness(t, "")
	require.NoError(t, os.Chmod(h.app.configPath, 0o666))
	target := h.write(t, "data", "tmp", "x")

	assert.Equal(t, 0, h.app.run([]string{"frobnicate", target}))
	assert.Contains(t, h.stderr.String(), "Usage: as_root chmod <filepath> <mode>")
	assert.Contains(t, h.stderr.String(), fmt.Sprintf("* %q", config.DefaultMobilePrefix))
	assert.Contains(t, h.stderr.String(), "configuration ignored")
	assert.FileExists(t, target)
}

func TestExampleConfigFlag(t *testing.T) {
	h := newHarness(t, "")

	assert.Equal(t, 0, h.app.run([]string{"-example-config"}))
	var cfg map[string]interface{}
	require.NoError(t, json.Unmarshal(h.stdout.Bytes(), &cfg))
	assert.Contains(t, cfg, "prefixes")
	assert.Zero(t, h.creds.calls)
}

func TestConfigSchemaFlag(t *testing.T) {
	h := newHarness(t, "")

	assert.Equal(t, 0, h.app.run([]string{"-config-schema"}))
	var schema map[string]interface{}
	require.NoError(t, json.Unmarshal(h.stdout.Bytes(), &schema))
	assert.Contains(t, schema, "properties")
	assert.Zero(t, h.creds.calls)
}

func TestChmodMissingFileFails(t *testing.T) {
	h := newHarness(t, "")

	assert.Equal(t, 1, h.app.run([]string{"chmod", h.path("tmp", "missing"), "644"}))
	assert.Contains(t, h.stderr.String(), "failed to change mode of file")
	assert.Contains(t, h.stderr.String(), fmt.Sprintf("errno=%d", int(syscall.ENOENT)))
}

func TestCopy(t *testing.T) {
	h := newHarness(t, "")
	src := h.write(t, "Incident Identifier: 1", "mobile", "a.plist")
	dst := h.path("root", "a.plist")

	assert.Equal(t, 0, h.app.run([]string{"copy", src, dst}))
	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "Incident Identifier: 1", string(data))
	assert.Empty(t, h.stdout.String())
	assert.Empty(t, h.stderr.String())
}

func TestCopyOutsidePrefixesFails(t *testing.T) {
	h := newHarness(t, "")
	src := h.write(t, "data", "mobile", "a")
	outside := filepath.Join(t.TempDir(), "b")

	assert.Equal(t, 1, h.app.run([]string{"copy", src, outside}))
	assert.Contains(t, h.stderr.String(), "not allowed")
	assert.NoFileExists(t, outside)
}

func TestCopyMissingSourceReportsErrno(t *testing.T) {
	h := newHarness(t, "")

	assert.Equal(t, 1, h.app.run([]string{"copy", h.path("tmp", "missing"), h.path("tmp", "b")}))
	assert.Contains(t, h.stderr.String(), fmt.Sprintf("errno=%d", int(syscall.ENOENT)))
	assert.NoFileExists(t, h.path("tmp", "b"))
}

func TestChmodOutsidePrefixesLeavesMode(t *testing.T) {
	h := newHarness(t, "")
	outside := filepath.Join(t.TempDir(), "f")
	require.NoError(t, os.WriteFile(outside, []byte("x"), 0o600))
	require.NoError(t, os.Chmod(outside, 0o600))

	assert.Equal(t, 1, h.app.run([]string{"chmod", outside, "644"}))
	info, err := os.Stat(outside)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestMoveSamePathIsNoop(t *testing.T) {
	h := newHarness(t, "")
	p := h.write(t, "data", "root", "a")

	assert.Equal(t, 0, h.app.run([]string{"MOVE", p, p}))
	assert.FileExists(t, p)
}

func TestMove(t *testing.T) {
	h := newHarness(t, "")
	from := h.write(t, "data", "root", "a")
	to := h.path("root", "b")

	assert.Equal(t, 0, h.app.run([]string{"move", from, to}))
	assert.NoFileExists(t, from)
	data, err := os.ReadFile(to)
	require.NoError(t, err)
	assert.Equal(t, "data", string(data))
}

func TestRead(t *testing.T) {
	h := newHarness(t, "")
	src := h.write(t, "Exception Type: SIGSEGV", "root", "LatestCrash.plist")

	assert.Equal(t, 0, h.app.run([]string{"read", src}))
	out := h.stdout.String()
	require.True(t, strings.HasSuffix(out, "\n"))
	lines := strings.Split(strings.TrimSuffix(out, "\n"), "\n")
	require.Len(t, lines, 1)
	assert.True(t, strings.HasPrefix(lines[0], h.path("tmp", "CrashReporter.temp.")))

	data, err := os.ReadFile(lines[0])
	require.NoError(t, err)
	assert.Equal(t, "Exception Type: SIGSEGV", string(data))
}

func TestDeleteMissingFails(t *testing.T) {
	h := newHarness(t, "")

	assert.Equal(t, 1, h.app.run([]string{"delete", h.path("tmp", "missing")}))
	assert.Contains(t, h.stderr.String(), "failed to delete file")
}

func TestDebugFlag(t *testing.T) {
	h := newHarness(t, "")
	p := h.write(t, "data", "tmp", "a")

	assert.Equal(t, 0, h.app.run([]string{"-d", "delete", p}))
	assert.Contains(t, h.stderr.String(), "DEBUG:")
	assert.NoFileExists(t, p)
}

func TestAuditLogRecordsOperations(t *testing.T) {
	auditPath := filepath.Join(t.TempDir(), "audit.log")
	h := newHarness(t, fmt.Sprintf(`, "audit_log": %q`, auditPath))
	p := h.write(t, "data", "tmp", "a")

	assert.Equal(t, 0, h.app.run([]string{"delete", p}))
	assert.Empty(t, h.stderr.String())

	data, err := os.ReadFile(auditPath)
	require.NoError(t, err)
	var record map[string]interface{}
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(data), &record))
	assert.Equal(t, "delete", record["op"])
	assert.Equal(t, p, record["path"])
	assert.Equal(t, float64(os.Getuid()), record["caller_uid"])
}

func TestInitLoggerFiltersStderr(t *testing.T) {
	var stderr, audit bytes.Buffer
	logger := initLogger(false, &stderr, &audit)

	logger.Info().Msg("quiet")
	logger.Error().Msg("loud")

	assert.NotContains(t, stderr.String(), "quiet")
	assert.Contains(t, stderr.String(), "ERROR: loud")
	assert.Contains(t, audit.String(), `"message":"quiet"`)
	assert.Contains(t, audit.String(), `"message":"loud"`)
}

func TestReportErrorIncludesErrno(t *testing.T) {
	var stderr bytes.Buffer
	logger := initLogger(false, &stderr, nil)

	reportError(logger, apperrors.Wrap(apperrors.CodeOperation, "failed to rename file", syscall.EXDEV))
	assert.Contains(t, stderr.String(), "failed to rename file")
	assert.Contains(t, stderr.String(), fmt.Sprintf("errno=%d", int(syscall.EXDEV)))
	assert.Contains(t, stderr.String(), "kind=operation")
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, 0, exitCode(nil))
	assert.Equal(t, 0, exitCode(apperrors.New(apperrors.CodeUsage, "usage")))
	assert.Equal(t, 1, exitCode(apperrors.New(apperrors.CodeInvalidPath, "no")))
	assert.Equal(t, 1, exitCode(apperrors.New(apperrors.CodeElevation, "no")))
	assert.Equal(t, 1, exitCode(fmt.Errorf("plain")))
}

func TestLoggerLevelWithDebug(t *testing.T) {
	logger := initLogger(true, &bytes.Buffer{}, nil)
	assert.Equal(t, zerolog.DebugLevel, logger.GetLevel())
}
