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

package commands

import (
	"fmt"

	apperrors "asroot/internal/errors"
	"asroot/internal/fileops"
	"asroot/internal/paths"
)

// Handler runs one operation with the invocation's arguments.
type Handler func(args []string) error

// Command binds an operation to its handler.
type Command struct {
	Op      Op
	Handler Handler
}

// Registry holds the handler of every operation.
type Registry struct {
	validator *paths.Validator
	commands  map[Op]*Command
}

// NewRegistry creates a registry wired to runner. Execute pre-checks path
// arguments against validator; each Runner method checks them again right
// before its syscall, and that check is the binding one.
func NewRegistry(validator *paths.Validator, runner *fileops.Runner) *Registry {
	r := &Registry{
		validator: validator,
		commands:  make(map[Op]*Command, len(Ops)),
	}

	r.Register(OpChmod, func(args []string) error { return runner.Chmod(args[0], args[1]) })
	r.Register(OpChown, func(args []string) error { return runner.Chown(args[0], args[1], args[2]) })
	r.Register(OpCopy, func(args []string) error { return runner.Copy(args[0], args[1]) })
	r.Register(OpMove, func(args []string) error { return runner.Move(args[0], args[1]) })
	r.Register(OpDelete, func(args []string) error { return runner.Delete(args[0]) })
	r.Register(OpRead, func(args []string) error {
		_, err := runner.Read(args[0])
		return err
	})

	return r
}

// Register adds or replaces the handler of op.
func (r *Registry) Register(op Op, handler Handler) {
	r.commands[op] = &Command{Op: op, Handler: handler}
}

// Execute rejects malformed invocations and paths outside the prefixes
// before dispatching, then runs the handler, which re-validates its paths.
func (r *Registry) Execute(inv Invocation) error {
	cmd, ok := r.commands[inv.Op]
	if !ok {
		return apperrors.New(apperrors.CodeUsage, fmt.Sprintf("no handler for %s", inv.Op))
	}
	if len(inv.Args) != inv.Op.Arity() {
		return apperrors.New(apperrors.CodeUsage,
			fmt.Sprintf("%s expects %d arguments, got %d", inv.Op, inv.Op.Arity(), len(inv.Args)))
	}
	if err := r.validator.CheckAll(inv.Paths()...); err != nil {
		return err
	}
	return cmd.Handler(inv.Args)
}
