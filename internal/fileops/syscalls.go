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

package fileops

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// Syscalls is the set of single-path filesystem primitives the handlers use.
// Errors carry the underlying errno.
type Syscalls interface {
	Chmod(path string, mode uint32) error
	Lchown(path string, uid, gid int) error
	Rename(from, to string) error
	Unlink(path string) error
}

type unixSyscalls struct{}

// System returns the Syscalls backed by the running kernel.
func System() Syscalls {
	return unixSyscalls{}
}

func (unixSyscalls) Chmod(path string, mode uint32) error {
	if err := unix.Chmod(path, mode); err != nil {
		return fmt.Errorf("chmod %s: %w", path, err)
	}
	return nil
}

func (unixSyscalls) Lchown(path string, uid, gid int) error {
	if err := unix.Lchown(path, uid, gid); err != nil {
		return fmt.Errorf("lchown %s: %w", path, err)
	}
	return nil
}

func (unixSyscalls) Rename(from, to string) error {
	if err := unix.Rename(from, to); err != nil {
		return fmt.Errorf("rename %s %s: %w", from, to, err)
	}
	return nil
}

func (unixSyscalls) Unlink(path string) error {
	if err := unix.Unlink(path); err != nil {
		return fmt.Errorf("unlink %s: %w", path, err)
	}
	return nil
}
