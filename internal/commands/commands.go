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

// Package commands decodes an invocation into one of the supported operations
// and dispatches it to its handler.
package commands

import (
	"fmt"
	"io"
	"strings"

	apperrors "asroot/internal/errors"
)

// Op enumerates the supported operations.
type Op int

const (
	OpChmod Op = iota + 1
	OpChown
	OpCopy
	OpMove
	OpDelete
	OpRead
)

// Ops lists every operation in usage order.
var Ops = []Op{OpChmod, OpChown, OpCopy, OpDelete, OpMove, OpRead}

// ParseOp decodes an operation name, ignoring case.
func ParseOp(name string) (Op, bool) {
	for _, op := range Ops {
		if strings.EqualFold(name, op.String()) {
			return op, true
		}
	}
	return 0, false
}

func (o Op) String() string {
	switch o {
	case OpChmod:
		return "chmod"
	case OpChown:
		return "chown"
	case OpCopy:
		return "copy"
	case OpMove:
		return "move"
	case OpDelete:
		return "delete"
	case OpRead:
		return "read"
	default:
		return fmt.Sprintf("Op(%d)", int(o))
	}
}

// Params names the arguments that follow the operation name.
func (o Op) Params() []string {
	switch o {
	case OpChmod:
		return []string{"filepath", "mode"}
	case OpChown:
		return []string{"filepath", "owner", "group"}
	case OpCopy, OpMove:
		return []string{"from_filepath", "to_filepath"}
	case OpDelete, OpRead:
		return []string{"filepath"}
	default:
		return nil
	}
}

// Arity is the number of arguments after the operation name.
func (o Op) Arity() int {
	return len(o.Params())
}

// PathArgs returns the indexes of the arguments that are filepaths.
func (o Op) PathArgs() []int {
	switch o {
	case OpCopy, OpMove:
		return []int{0, 1}
	case OpChmod, OpChown, OpDelete, OpRead:
		return []int{0}
	default:
		return nil
	}
}

// Usage renders the command form, e.g. "as_root copy <from_filepath> <to_filepath>".
func (o Op) Usage() string {
	var b strings.Builder
	b.WriteString("as_root ")
	b.WriteString(o.String())
	for _, p := range o.Params() {
		b.WriteString(" <")
		b.WriteString(p)
		b.WriteString(">")
	}
	return b.String()
}

// Invocation is a decoded request. It is not modified after Parse.
type Invocation struct {
	Op   Op
	Args []string
}

// Paths returns the filepath arguments of the invocation.
func (inv Invocation) Paths() []string {
	idx := inv.Op.PathArgs()
	out := make([]string, 0, len(idx))
	for _, i := range idx {
		out = append(out, inv.Args[i])
	}
	return out
}

// Parse decodes args (without the program name). Unknown operations and wrong
// argument counts return a CodeUsage error.
func Parse(args []string) (Invocation, error) {
	if len(args) == 0 {
		return Invocation{}, apperrors.New(apperrors.CodeUsage, "missing operation")
	}
	op, ok := ParseOp(args[0])
	if !ok {
		return Invocation{}, apperrors.New(apperrors.CodeUsage, fmt.Sprintf("unknown operation %q", args[0]))
	}
	rest := args[1:]
	if len(rest) != op.Arity() {
		return Invocation{}, apperrors.New(apperrors.CodeUsage,
			fmt.Sprintf("%s expects %d arguments, got %d", op, op.Arity(), len(rest)))
	}
	return Invocation{Op: op, Args: append([]string(nil), rest...)}, nil
}

// WriteUsage prints the usage banner with the allowed prefixes.
func WriteUsage(w io.Writer, prefixes []string) {
	for i, op := range Ops {
		lead := "       "
		if i == 0 {
			lead = "Usage: "
		}
		fmt.Fprintf(w, "%s%s\n", lead, op.Usage())
	}
	fmt.Fprintf(w, "\n       Note that only filepaths with the following prefixes are permitted:\n")
	for _, p := range prefixes {
		fmt.Fprintf(w, "       * %q\n", p)
	}
}
