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

// Command as_root performs a fixed set of file operations as root for an
// unprivileged caller, restricted to a whitelist of path prefixes.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"

	"asroot/internal/commands"
	"asroot/internal/config"
	apperrors "asroot/internal/errors"
	"asroot/internal/fileops"
	"asroot/internal/privilege"
	"asroot/internal/sandbox"
)

type app struct {
	stdout     io.Writer
	stderr     io.Writer
	creds      privilege.Credentials
	configPath string
}

func main() {
	a := &app{
		stdout:     os.Stdout,
		stderr:     os.Stderr,
		creds:      privilege.System(),
		configPath: config.DefaultConfigPath,
	}
	os.Exit(a.run(os.Args[1:]))
}

func (a *app) run(args []string) int {
	flags := flag.NewFlagSet("as_root", flag.ContinueOnError)
	flags.SetOutput(io.Discard)
	debugMode := flags.Bool("d", false, "Enable debug diagnostics on stderr")
	exampleConfig := flags.Bool("example-config", false, "Print an example config.json and exit")
	schema := flags.Bool("config-schema", false, "Print the config.json schema and exit")
	flagErr := flags.Parse(args)

	logger := initLogger(*debugMode, a.stderr, nil)

	if flagErr == nil && (*exampleConfig || *schema) {
		text := config.ExampleConfigJSON()
		if *schema {
			text = config.SchemaJSON()
		}
		if _, err := fmt.Fprintln(a.stdout, text); err != nil {
			reportError(logger, apperrors.Wrap(apperrors.CodeOperation, "unable to print configuration", err))
			return 1
		}
		return 0
	}

	// Nothing touches the filesystem before this point.
	identity, err := privilege.Elevate(a.creds)
	if err != nil {
		reportError(logger, err)
		return exitCode(err)
	}

	var inv commands.Invocation
	usageErr := flagErr
	if usageErr != nil {
		usageErr = apperrors.Wrap(apperrors.CodeUsage, "invalid flags", flagErr)
	} else {
		inv, usageErr = commands.Parse(flags.Args())
	}

	cfg, err := config.LoadConfig(a.configPath, identity.UID)
	if err != nil {
		err = apperrors.Wrap(apperrors.CodeConfig, "unable to load configuration", err)
		if usageErr == nil {
			reportError(logger, err)
			return exitCode(err)
		}
		// The banner still lists the compiled-in prefixes.
		logger.Warn().Err(err).Msg("configuration ignored")
		cfg = config.DefaultConfig()
	}

	if usageErr != nil {
		logger.Debug().Err(usageErr).Msg("malformed invocation")
		commands.WriteUsage(a.stderr, cfg.Validator().Prefixes())
		return exitCode(usageErr)
	}

	if cfg.AuditLog != "" {
		audit, err := openAuditLog(cfg.AuditLog)
		if err != nil {
			err = apperrors.Wrap(apperrors.CodeConfig, "unable to open audit log", err)
			reportError(logger, err)
			return exitCode(err)
		}
		defer audit.Close()
		logger = initLogger(*debugMode, a.stderr, audit)
	}
	logger = logger.With().Int("caller_uid", identity.CallerUID).Int("pid", os.Getpid()).Logger()

	for _, w := range cfg.Validate() {
		logger.Debug().Str("field", w.Field).Msg(w.Message)
	}

	validator := cfg.Validator()

	if cfg.Confine {
		if err := confine(logger, validator.Prefixes()); err != nil {
			reportError(logger, err)
			return exitCode(err)
		}
	}

	runner := fileops.NewRunner(validator,
		fileops.WithStdout(a.stdout),
		fileops.WithLogger(logger),
		fileops.WithTempFile(cfg.Prefixes.Temp, cfg.TempTemplate),
		fileops.WithBufferSize(cfg.BufferSize),
	)
	registry := commands.NewRegistry(validator, runner)

	logger.Debug().Str("op", inv.Op.String()).Strs("args", inv.Args).Msg("dispatching")
	if err := registry.Execute(inv); err != nil {
		logger = logger.With().Str("op", inv.Op.String()).Logger()
		reportError(logger, err)
		return exitCode(err)
	}
	return 0
}

func confine(logger zerolog.Logger, prefixes []string) error {
	skipped, err := sandbox.Confine(prefixes)
	if errors.Is(err, sandbox.ErrUnsupported) {
		logger.Debug().Msg("filesystem confinement unavailable on this platform")
		return nil
	}
	for _, p := range skipped {
		logger.Debug().Str("prefix", p).Msg("prefix not revealed")
	}
	if err != nil {
		return apperrors.Wrap(apperrors.CodeElevation, "unable to confine process", err)
	}
	return nil
}
