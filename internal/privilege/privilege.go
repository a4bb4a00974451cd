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

// Package privilege turns the effective identity granted by a setuid-root
// install into the process's real identity.
package privilege

import (
	"fmt"

	"golang.org/x/sys/unix"

	apperrors "asroot/internal/errors"
)

// Credentials is the slice of the process credential syscalls Elevate needs.
type Credentials interface {
	Getuid() int
	Geteuid() int
	Setuid(uid int) error
}

type unixCredentials struct{}

func (unixCredentials) Getuid() int          { return unix.Getuid() }
func (unixCredentials) Geteuid() int         { return unix.Geteuid() }
func (unixCredentials) Setuid(uid int) error { return unix.Setuid(uid) }

// System returns the credentials of the running process.
func System() Credentials {
	return unixCredentials{}
}

// Identity records the ids observed around elevation.
type Identity struct {
	CallerUID int
	UID       int
}

// Elevate sets the real uid to the effective uid. A failure is returned as a
// CodeElevation error and must stop the process.
func Elevate(creds Credentials) (Identity, error) {
	caller := creds.Getuid()
	euid := creds.Geteuid()
	if err := creds.Setuid(euid); err != nil {
		return Identity{CallerUID: caller, UID: caller}, apperrors.Wrap(apperrors.CodeElevation,
			"unable to assume root powers", fmt.Errorf("setuid(%d): %w", euid, err))
	}
	return Identity{CallerUID: caller, UID: euid}, nil
}
