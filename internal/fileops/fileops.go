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

// Package fileops implements the privileged file operations. Every handler
// checks each path it receives against the validator before the first
// syscall on it.
package fileops

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	apperrors "asroot/internal/errors"
	"asroot/internal/paths"
)

const (
	// ReadFileMode lets the unprivileged caller read the snapshot made by Read.
	ReadFileMode os.FileMode = 0o644

	copyFileMode  os.FileMode = 0o666
	tempAttempts              = 3
	permBitsMask              = 0o7777
	keepOwnership             = -1
)

// Runner executes file operations on validated paths.
type Runner struct {
	validator    *paths.Validator
	sys          Syscalls
	stdout       io.Writer
	logger       zerolog.Logger
	tempDir      string
	tempTemplate string
	bufferSize   int
	newName      func() string
}

// Option configures a Runner.
type Option func(*Runner)

// WithSyscalls replaces the kernel-backed primitives.
func WithSyscalls(sys Syscalls) Option {
	return func(r *Runner) { r.sys = sys }
}

// WithStdout sets where Read prints the temporary filepath.
func WithStdout(w io.Writer) Option {
	return func(r *Runner) { r.stdout = w }
}

// WithLogger sets the logger used for debug and audit records.
func WithLogger(logger zerolog.Logger) Option {
	return func(r *Runner) { r.logger = logger }
}

// WithTempFile sets the directory and name template of Read snapshots.
func WithTempFile(dir, template string) Option {
	return func(r *Runner) {
		r.tempDir = dir
		r.tempTemplate = template
	}
}

// WithBufferSize sets the chunk size of the copy primitive.
func WithBufferSize(size int) Option {
	return func(r *Runner) { r.bufferSize = size }
}

// WithNameGenerator replaces the random suffix source of Read snapshots.
func WithNameGenerator(gen func() string) Option {
	return func(r *Runner) { r.newName = gen }
}

// NewRunner creates a Runner bound to validator.
func NewRunner(validator *paths.Validator, opts ...Option) *Runner {
	r := &Runner{
		validator:    validator,
		sys:          System(),
		stdout:       os.Stdout,
		logger:       zerolog.Nop(),
		tempDir:      os.TempDir(),
		tempTemplate: "CrashReporter.temp.",
		bufferSize:   DefaultBufferSize,
		newName:      func() string { return ulid.Make().String() },
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Chmod applies the octal mode in modeText to path.
func (r *Runner) Chmod(path, modeText string) error {
	if err := r.validator.Check(path); err != nil {
		return err
	}
	mode, err := strconv.ParseUint(modeText, 8, 32)
	if err != nil || mode&^permBitsMask != 0 {
		return invalidArgument("invalid mode", modeText)
	}
	if err := r.sys.Chmod(path, uint32(mode)); err != nil {
		return apperrors.Wrap(apperrors.CodeOperation, "failed to change mode of file", err)
	}
	r.logger.Info().Str("op", "chmod").Str("path", path).Str("mode", fmt.Sprintf("%04o", mode)).Msg("mode changed")
	return nil
}

// Chown changes the owner and group of path without following a final
// symbolic link. Ids are plain integers; -1 leaves the id unchanged.
func (r *Runner) Chown(path, ownerText, groupText string) error {
	if err := r.validator.Check(path); err != nil {
		return err
	}
	uid, err := parseID(ownerText)
	if err != nil {
		return invalidArgument("invalid owner", ownerText)
	}
	gid, err := parseID(groupText)
	if err != nil {
		return invalidArgument("invalid group", groupText)
	}
	if err := r.sys.Lchown(path, uid, gid); err != nil {
		return apperrors.Wrap(apperrors.CodeOperation, "failed to change ownership of file", err)
	}
	r.logger.Info().Str("op", "chown").Str("path", path).Int("uid", uid).Int("gid", gid).Msg("ownership changed")
	return nil
}

// Copy replaces the content of to with the content of from.
func (r *Runner) Copy(from, to string) error {
	if err := r.validator.CheckAll(from, to); err != nil {
		return err
	}
	n, err := copyFile(from, to, truncateFlags, copyFileMode, r.bufferSize)
	if err != nil {
		return copyFailure(err)
	}
	r.logger.Info().Str("op", "copy").Str("from", from).Str("to", to).Int64("bytes", n).Msg("file copied")
	return nil
}

// Move renames from to to. Identical paths are a no-op. There is no copy
// fallback when the rename fails.
func (r *Runner) Move(from, to string) error {
	if err := r.validator.CheckAll(from, to); err != nil {
		return err
	}
	if from == to {
		r.logger.Debug().Str("op", "move").Str("path", from).Msg("source and destination are identical")
		return nil
	}
	if err := r.sys.Rename(from, to); err != nil {
		return apperrors.Wrap(apperrors.CodeOperation, "failed to rename file", err)
	}
	r.logger.Info().Str("op", "move").Str("from", from).Str("to", to).Msg("file moved")
	return nil
}

// Delete removes the file at path.
func (r *Runner) Delete(path string) error {
	if err := r.validator.Check(path); err != nil {
		return err
	}
	if err := r.sys.Unlink(path); err != nil {
		return apperrors.Wrap(apperrors.CodeOperation, "failed to delete file", err)
	}
	r.logger.Info().Str("op", "delete").Str("path", path).Msg("file deleted")
	return nil
}

// Read snapshots path into a new file under the temp directory and prints
// that file's path. The caller owns the snapshot and must delete it.
func (r *Runner) Read(path string) (string, error) {
	if err := r.validator.Check(path); err != nil {
		return "", err
	}

	var (
		tempPath string
		n        int64
		err      error
	)
	for attempt := 0; attempt < tempAttempts; attempt++ {
		tempPath = filepath.Join(r.tempDir, r.tempTemplate+r.newName())
		if checkErr := r.validator.Check(tempPath); checkErr != nil {
			return "", apperrors.Wrap(apperrors.CodeOperation, "unable to create temporary filepath", checkErr)
		}
		n, err = copyFile(path, tempPath, exclusiveFlags, ReadFileMode, r.bufferSize)
		if !errors.Is(err, os.ErrExist) {
			break
		}
	}
	if err != nil {
		return "", copyFailure(err)
	}

	if _, err := fmt.Fprintln(r.stdout, tempPath); err != nil {
		return "", apperrors.Wrap(apperrors.CodeOperation, "unable to print temporary filepath", err)
	}
	r.logger.Info().Str("op", "read").Str("path", path).Str("temp", tempPath).Int64("bytes", n).Msg("file snapshot created")
	return tempPath, nil
}

// parseID accepts ids that fit a 32-bit id_t without wrapping; -1 is the
// only negative value.
func parseID(text string) (int, error) {
	id, err := strconv.ParseInt(text, 10, 32)
	if err != nil {
		return 0, err
	}
	if id < keepOwnership {
		return 0, fmt.Errorf("id %d out of range", id)
	}
	return int(id), nil
}

func invalidArgument(message, value string) error {
	return apperrors.Wrap(apperrors.CodeOperation, message, fmt.Errorf("%q: %w", value, syscall.EINVAL))
}

func copyFailure(err error) error {
	var ce *copyError
	if errors.As(err, &ce) {
		return apperrors.Wrap(apperrors.CodeOperation, ce.step, ce.err)
	}
	return apperrors.Wrap(apperrors.CodeOperation, "failure while copying file", err)
}
