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
	"errors"
	"fmt"
	"io"
	"os"
	"syscall"
)

// DefaultBufferSize is the chunk size of the copy primitive.
const DefaultBufferSize = 8192

const (
	truncateFlags  = os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	exclusiveFlags = os.O_WRONLY | os.O_CREATE | os.O_EXCL
)

// copyError tags which step of a copy failed so callers can report it.
type copyError struct {
	step string
	err  error
}

func (e *copyError) Error() string { return fmt.Sprintf("%s: %v", e.step, e.err) }
func (e *copyError) Unwrap() error { return e.err }

// copyFile streams from into to in chunks of bufferSize bytes. The source is
// opened first so a missing source never creates the destination. Partial
// destination content is left in place on failure.
func copyFile(from, to string, flag int, perm os.FileMode, bufferSize int) (int64, error) {
	src, err := os.Open(from)
	if err != nil {
		return 0, &copyError{step: "unable to open source filepath for reading", err: err}
	}
	defer src.Close()

	info, err := src.Stat()
	if err != nil {
		return 0, &copyError{step: "unable to open source filepath for reading", err: err}
	}
	if info.IsDir() {
		return 0, &copyError{step: "unable to open source filepath for reading", err: &os.PathError{Op: "open", Path: from, Err: syscall.EISDIR}}
	}

	dst, err := os.OpenFile(to, flag, perm)
	if err != nil {
		return 0, &copyError{step: "unable to open destination filepath for writing", err: err}
	}
	// A file created exclusively gets exactly perm, whatever the umask.
	if flag&os.O_EXCL != 0 {
		if err := dst.Chmod(perm); err != nil {
			dst.Close()
			return 0, &copyError{step: "unable to set temporary file mode", err: err}
		}
	}

	written, err := copyChunks(dst, src, bufferSize)
	if closeErr := dst.Close(); err == nil && closeErr != nil {
		err = &copyError{step: "failure while copying file", err: closeErr}
	}
	return written, err
}

func copyChunks(dst io.Writer, src io.Reader, bufferSize int) (int64, error) {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	buf := make([]byte, bufferSize)
	var written int64
	for {
		n, readErr := src.Read(buf)
		if n > 0 {
			w, err := dst.Write(buf[:n])
			written += int64(w)
			if err != nil {
				return written, &copyError{step: "failure while copying file", err: err}
			}
			if w != n {
				return written, &copyError{step: "failure while copying file", err: io.ErrShortWrite}
			}
		}
		if errors.Is(readErr, io.EOF) {
			return written, nil
		}
		if readErr != nil {
			return written, &copyError{step: "failure while copying file", err: readErr}
		}
	}
}
