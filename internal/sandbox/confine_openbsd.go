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

//go:build openbsd

package sandbox

import (
	"fmt"
	"sync"

	"golang.org/x/sys/unix"
)

var (
	mu       sync.Mutex
	confined bool
)

// Confine reveals only prefixes and drops every promise but Promises.
// Prefixes that do not exist are skipped and reported in the returned list.
func Confine(prefixes []string) (skipped []string, err error) {
	mu.Lock()
	defer mu.Unlock()

	if confined {
		return nil, fmt.Errorf("sandbox already confined")
	}

	revealed := 0
	for _, prefix := range prefixes {
		if err := unix.Unveil(prefix, "rwc"); err != nil {
			skipped = append(skipped, prefix)
			continue
		}
		revealed++
	}
	if revealed == 0 {
		return skipped, fmt.Errorf("unveil: no allowed prefix could be revealed")
	}

	if err := unix.UnveilBlock(); err != nil {
		return skipped, fmt.Errorf("unveil lock failed: %w", err)
	}
	if err := unix.PledgePromises(Promises); err != nil {
		return skipped, fmt.Errorf("pledge failed: %w", err)
	}

	confined = true
	return skipped, nil
}
