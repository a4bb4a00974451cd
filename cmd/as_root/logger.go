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
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/term"

	apperrors "asroot/internal/errors"
)

// initLogger builds the diagnostic logger. stderr only sees warnings and
// errors (debug with -d); audit, when set, receives every record as JSON.
func initLogger(debug bool, stderr io.Writer, audit io.Writer) zerolog.Logger {
	stderrLevel := zerolog.WarnLevel
	level := zerolog.InfoLevel
	if debug {
		stderrLevel = zerolog.DebugLevel
		level = zerolog.DebugLevel
	}

	console := zerolog.ConsoleWriter{
		Out:          stderr,
		NoColor:      !isTerminal(stderr),
		PartsExclude: []string{zerolog.TimestampFieldName},
		FormatLevel: func(i interface{}) string {
			return strings.ToUpper(fmt.Sprintf("%s:", i))
		},
	}
	writers := []io.Writer{
		&zerolog.FilteredLevelWriter{
			Writer: zerolog.LevelWriterAdapter{Writer: console},
			Level:  stderrLevel,
		},
	}
	if audit != nil {
		writers = append(writers, audit)
	}

	return zerolog.New(zerolog.MultiLevelWriter(writers...)).Level(level).With().Timestamp().Logger()
}

// openAuditLog opens the append-only audit log named by the config.
func openAuditLog(path string) (*os.File, error) {
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// reportError writes err to the diagnostic log with its errno, if any.
func reportError(logger zerolog.Logger, err error) {
	event := logger.Error()
	if code := apperrors.CodeOf(err); code != "" {
		event = event.Str("kind", string(code))
	}
	if errno := apperrors.Errno(err); errno != 0 {
		event = event.Int("errno", errno)
	}
	event.Msg(err.Error())
}

// exitCode maps an outcome to the process exit status. Malformed invocations
// print usage and still exit 0; existing callers rely on it.
func exitCode(err error) int {
	if err == nil || apperrors.HasCode(err, apperrors.CodeUsage) {
		return 0
	}
	return 1
}
