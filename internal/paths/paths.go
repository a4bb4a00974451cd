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

package paths

import (
	"errors"
	"fmt"
	"strings"

	apperrors "asroot/internal/errors"
)

// MaxPathLength bounds raw path arguments; PATH_MAX on Linux.
const MaxPathLength = 4096

var (
	// ErrPathNotAllowed indicates a path is outside every allowed prefix.
	ErrPathNotAllowed = errors.New("path not allowed")

	// ErrPathTraversal indicates a path carries a ".." segment.
	ErrPathTraversal = errors.New("path contains parent directory reference")
)

// PrefixSet is the fixed set of directory prefixes the tool may operate under.
type PrefixSet struct {
	Mobile string
	Root   string
	Temp   string
}

// List returns the prefixes in banner order, skipping empty entries.
func (s PrefixSet) List() []string {
	var out []string
	for _, p := range []string{s.Mobile, s.Root, s.Temp} {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validator checks path arguments against a PrefixSet. It holds no mutable
// state and is safe to share.
type Validator struct {
	prefixes PrefixSet
	strict   bool
}

// Option configures a Validator.
type Option func(*Validator)

// WithStrict toggles rejection of ".." segments in Check.
func WithStrict(strict bool) Option {
	return func(v *Validator) {
		v.strict = strict
	}
}

// NewValidator builds a validator over prefixes. Strict mode is on unless
// disabled with WithStrict(false).
func NewValidator(prefixes PrefixSet, opts ...Option) *Validator {
	v := &Validator{prefixes: prefixes, strict: true}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Prefixes returns the allowed prefixes in banner order.
func (v *Validator) Prefixes() []string {
	return v.prefixes.List()
}

// IsValid reports whether path starts with one of the allowed prefixes. The
// comparison is a plain string prefix match; nothing is cleaned or resolved.
func (v *Validator) IsValid(path string) bool {
	for _, prefix := range v.prefixes.List() {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// Check is the gate every handler runs before touching path.
func (v *Validator) Check(path string) error {
	if err := ValidatePathString(path, MaxPathLength); err != nil {
		return apperrors.Wrap(apperrors.CodeInvalidPath, "specified filepath is not allowed", err)
	}
	if !v.IsValid(path) {
		return apperrors.Wrap(apperrors.CodeInvalidPath, "specified filepath is not allowed",
			fmt.Errorf("%w: %q", ErrPathNotAllowed, path))
	}
	if v.strict && hasParentSegment(path) {
		return apperrors.Wrap(apperrors.CodeInvalidPath, "specified filepath is not allowed",
			fmt.Errorf("%w: %q", ErrPathTraversal, path))
	}
	return nil
}

// CheckAll runs Check on every path and returns the first failure.
func (v *Validator) CheckAll(paths ...string) error {
	for _, p := range paths {
		if err := v.Check(p); err != nil {
			return err
		}
	}
	return nil
}

// ValidatePathString validates raw path input before any prefix check.
func ValidatePathString(path string, maxLen int) error {
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("path cannot be empty")
	}
	if strings.IndexByte(path, 0) != -1 {
		return fmt.Errorf("path contains null byte")
	}
	if maxLen > 0 && len(path) > maxLen {
		return fmt.Errorf("path exceeds maximum length of %d characters", maxLen)
	}
	return nil
}

func hasParentSegment(path string) bool {
	for _, seg := range strings.Split(path, "/") {
		if seg == ".." {
			return true
		}
	}
	return false
}
