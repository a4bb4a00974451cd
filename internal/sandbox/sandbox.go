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

// Package sandbox confines the elevated process to the allowed prefixes.
//
// On OpenBSD, Confine uses:
//
//   - unveil(2): each allowed prefix is revealed with "rwc" and the list is
//     then locked, so nothing outside the prefixes can be opened, created,
//     renamed or removed even through symbolic links or ".." segments.
//
//   - pledge(2): the process keeps only "stdio rpath wpath cpath fattr chown",
//     enough for the six file operations and nothing else.
//
// Confine must run after elevation and after every file the process needs
// outside the prefixes (config, audit log) has been opened.
//
// On other platforms Confine returns ErrUnsupported and leaves the process
// unchanged.
package sandbox

import "errors"

// ErrUnsupported is returned where the kernel offers no confinement primitive.
var ErrUnsupported = errors.New("filesystem confinement not supported on this platform")

// Promises are the pledge(2) promises kept after confinement.
const Promises = "stdio rpath wpath cpath fattr chown"
