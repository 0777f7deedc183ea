// Package checksum computes IEEE CRC-32 checksums of files (the zlib/gzip/PNG
// polynomial) and renders them as 8-digit uppercase hex.
package checksum

import (
	"context"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"strconv"
)

// DefaultBlockSize is the read size used by Compute. It has no effect on the result.
const DefaultBlockSize = 4096

// Checksum is a finished CRC-32 value.
type Checksum uint32

// String returns the checksum as exactly 8 uppercase hex digits, zero-padded.
func (c Checksum) String() string {
	return fmt.Sprintf("%08X", uint32(c))
}

// Parse parses 8 hex digits (either case) into a Checksum.
func Parse(s string) (Checksum, error) {
	if len(s) != 8 {
		return 0, fmt.Errorf("checksum %q: want 8 hex digits", s)
	}
	u, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return 0, fmt.Errorf("checksum %q: %w", s, err)
	}
	return Checksum(u), nil
}

// Compute returns the CRC-32 of the file at path, read in DefaultBlockSize blocks.
func Compute(path string) (Checksum, error) {
	return ComputeContext(context.Background(), path, DefaultBlockSize)
}

// ComputeContext is like Compute but reads blockSize bytes at a time and stops
// with a *ReadError if ctx is done between blocks. blockSize <= 0 means
// DefaultBlockSize.
//
// On failure the returned Checksum is zero and the error is an *OpenError or a
// *ReadError; a checksum of a partially read file is never returned.
func ComputeContext(ctx context.Context, path string, blockSize int) (Checksum, error) {
	f, err := open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	if blockSize <= 0 {
		blockSize = DefaultBlockSize
	}
	sum, _, err := Sum(ctx, f, make([]byte, blockSize))
	if err != nil {
		if re, ok := err.(*ReadError); ok {
			re.Path = path
		}
		return 0, err
	}
	return sum, nil
}

func open(path string) (*os.File, error) {
	f, err := os.Open(path) // #nosec G304 -- caller chooses the file to checksum
	if err != nil {
		return nil, &OpenError{Path: path, Err: err}
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, &OpenError{Path: path, Err: err}
	}
	if !fi.Mode().IsRegular() {
		f.Close()
		return nil, &OpenError{Path: path, Err: ErrNotRegular}
	}
	return f, nil
}

// Sum folds everything read from r into a CRC-32 accumulator, len(buf) bytes
// at a time, and returns the checksum and the number of bytes read. A read
// error other than io.EOF is returned as a *ReadError.
func Sum(ctx context.Context, r io.Reader, buf []byte) (Checksum, int64, error) {
	if len(buf) == 0 {
		buf = make([]byte, DefaultBlockSize)
	}
	var crc uint32
	var n int64
	for {
		if err := ctx.Err(); err != nil {
			return 0, n, &ReadError{Offset: n, Err: err}
		}
		m, err := r.Read(buf)
		if m > 0 {
			crc = crc32.Update(crc, crc32.IEEETable, buf[:m])
			n += int64(m)
		}
		if err == io.EOF {
			return Checksum(crc), n, nil
		}
		if err != nil {
			return 0, n, &ReadError{Offset: n, Err: err}
		}
	}
}

// Verify computes the checksum of path and returns a *MismatchError if it is
// not want.
func Verify(ctx context.Context, path string, want Checksum, blockSize int) error {
	got, err := ComputeContext(ctx, path, blockSize)
	if err != nil {
		return err
	}
	if got != want {
		return &MismatchError{Path: path, Want: want, Got: got}
	}
	return nil
}
