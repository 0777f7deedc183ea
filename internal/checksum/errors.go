package checksum

import (
	"errors"
	"fmt"
)

// ErrNotRegular is wrapped by an *OpenError when path opened but is a
// directory, device, pipe or other non-regular file.
var ErrNotRegular = errors.New("not a regular file")

// OpenError reports that the file could not be opened for reading.
type OpenError struct {
	Path string
	Err  error
}

func (e *OpenError) Error() string { return "open " + e.Path + ": " + e.Err.Error() }

func (e *OpenError) Unwrap() error { return e.Err }

// ReadError reports an I/O failure after the file was opened. Offset is the
// number of bytes successfully read before the failure.
type ReadError struct {
	Path   string
	Offset int64
	Err    error
}

func (e *ReadError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("read at offset %d: %v", e.Offset, e.Err)
	}
	return fmt.Sprintf("read %s at offset %d: %v", e.Path, e.Offset, e.Err)
}

func (e *ReadError) Unwrap() error { return e.Err }

// MismatchError is returned by Verify when the file does not have the expected checksum.
type MismatchError struct {
	Path string
	Want Checksum
	Got  Checksum
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("%s: checksum mismatch: got %s, want %s", e.Path, e.Got, e.Want)
}
