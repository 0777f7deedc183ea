package checksum

import (
	"bytes"
	"context"
	"errors"
	"hash/crc32"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"testing/iotest"
)

var hexRE = regexp.MustCompile(`^[0-9A-F]{8}$`)

func writeFile(t *testing.T, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, content, 0644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	return path
}

func TestCompute_checkValue(t *testing.T) {
	path := writeFile(t, "check.txt", []byte("123456789"))

	got, err := Compute(path)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	// CRC-32/ISO-HDLC check value
	if got.String() != "CBF43926" {
		t.Errorf("Compute(%q) = %s, want CBF43926", path, got)
	}
	if want := crc32.ChecksumIEEE([]byte("123456789")); uint32(got) != want {
		t.Errorf("Compute = %08X, hash/crc32 = %08X", uint32(got), want)
	}
}

func TestCompute_knownVectors(t *testing.T) {
	tests := []struct {
		content string
		want    string
	}{
		{"", "00000000"},
		{"a", "E8B7BE43"},
		{"hello", "3610A686"},
		{"The quick brown fox jumps over the lazy dog", "414FA339"},
	}
	for _, tt := range tests {
		path := writeFile(t, "f", []byte(tt.content))
		got, err := Compute(path)
		if err != nil {
			t.Fatalf("Compute(%q): %v", tt.content, err)
		}
		if got.String() != tt.want {
			t.Errorf("Compute(%q) = %s, want %s", tt.content, got, tt.want)
		}
	}
}

func TestCompute_emptyFileMatchesReference(t *testing.T) {
	path := writeFile(t, "empty", nil)

	got, err := Compute(path)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if uint32(got) != crc32.ChecksumIEEE(nil) {
		t.Errorf("Compute(empty) = %s, want %08X", got, crc32.ChecksumIEEE(nil))
	}
	if got.String() != "00000000" {
		t.Errorf("Compute(empty) = %s, want 00000000", got)
	}
}

func TestCompute_deterministic(t *testing.T) {
	content := make([]byte, 3*DefaultBlockSize+17)
	rand.New(rand.NewSource(1)).Read(content)
	path := writeFile(t, "rand.bin", content)

	first, err := Compute(path)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	for i := 0; i < 3; i++ {
		got, err := Compute(path)
		if err != nil {
			t.Fatalf("Compute: %v", err)
		}
		if got != first {
			t.Errorf("call %d: Compute = %s, first call = %s", i, got, first)
		}
	}
}

func TestComputeContext_blockSizeNotObservable(t *testing.T) {
	content := make([]byte, 2*DefaultBlockSize+DefaultBlockSize/2+3)
	rand.New(rand.NewSource(2)).Read(content)
	path := writeFile(t, "rand.bin", content)
	want := crc32.ChecksumIEEE(content)

	for _, bs := range []int{1, 7, 4095, DefaultBlockSize, 4097, len(content), len(content) + 1, 0} {
		got, err := ComputeContext(context.Background(), path, bs)
		if err != nil {
			t.Fatalf("ComputeContext(blockSize=%d): %v", bs, err)
		}
		if uint32(got) != want {
			t.Errorf("ComputeContext(blockSize=%d) = %s, want %08X", bs, got, want)
		}
	}
}

func TestComputeContext_partialFinalBlock(t *testing.T) {
	for _, n := range []int{1, DefaultBlockSize - 1, DefaultBlockSize, DefaultBlockSize + 1} {
		content := bytes.Repeat([]byte{0xA5}, n)
		path := writeFile(t, "p.bin", content)
		got, err := Compute(path)
		if err != nil {
			t.Fatalf("Compute(len=%d): %v", n, err)
		}
		if uint32(got) != crc32.ChecksumIEEE(content) {
			t.Errorf("Compute(len=%d) = %s, want %08X", n, got, crc32.ChecksumIEEE(content))
		}
	}
}

func TestChecksum_StringIsEightUpperHex(t *testing.T) {
	for _, c := range []Checksum{0, 1, 0xABC, 0xDEADBEEF, 0xFFFFFFFF} {
		s := c.String()
		if !hexRE.MatchString(s) {
			t.Errorf("Checksum(%d).String() = %q, want [0-9A-F]{8}", uint32(c), s)
		}
	}
	if got := Checksum(0xABC).String(); got != "00000ABC" {
		t.Errorf("String() = %q, want 00000ABC", got)
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		in      string
		want    Checksum
		wantErr bool
	}{
		{"CBF43926", 0xCBF43926, false},
		{"cbf43926", 0xCBF43926, false},
		{"00000000", 0, false},
		{"CBF4392", 0, true},
		{"CBF439260", 0, true},
		{"GGGGGGGG", 0, true},
		{"", 0, true},
	}
	for _, tt := range tests {
		got, err := Parse(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("Parse(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("Parse(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestCompute_nonexistentPathReturnsOpenError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "does-not-exist")

	got, err := Compute(path)
	if err == nil {
		t.Fatalf("Compute(%q) = %s, want error", path, got)
	}
	var oe *OpenError
	if !errors.As(err, &oe) {
		t.Fatalf("err = %T (%v), want *OpenError", err, err)
	}
	if oe.Path != path {
		t.Errorf("OpenError.Path = %q, want %q", oe.Path, path)
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("errors.Is(err, os.ErrNotExist) = false for %v", err)
	}
	if got != 0 {
		t.Errorf("Compute on error returned %s, want zero", got)
	}
	if hexRE.MatchString(err.Error()) {
		t.Errorf("error text %q looks like a checksum", err.Error())
	}
}

func TestCompute_directoryReturnsOpenError(t *testing.T) {
	dir := t.TempDir()

	_, err := Compute(dir)
	var oe *OpenError
	if !errors.As(err, &oe) {
		t.Fatalf("err = %v, want *OpenError", err)
	}
	if !errors.Is(err, ErrNotRegular) {
		t.Errorf("errors.Is(err, ErrNotRegular) = false for %v", err)
	}
}

func TestCompute_permissionDeniedReturnsOpenError(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("root ignores file permissions")
	}
	path := writeFile(t, "secret", []byte("x"))
	if err := os.Chmod(path, 0); err != nil {
		t.Fatalf("chmod: %v", err)
	}

	_, err := Compute(path)
	var oe *OpenError
	if !errors.As(err, &oe) {
		t.Fatalf("err = %v, want *OpenError", err)
	}
	if !errors.Is(err, os.ErrPermission) {
		t.Errorf("errors.Is(err, os.ErrPermission) = false for %v", err)
	}
}

func TestSum_midStreamFailureReturnsReadError(t *testing.T) {
	boom := errors.New("boom")
	r := io.MultiReader(strings.NewReader("hello"), iotest.ErrReader(boom))

	got, n, err := Sum(context.Background(), r, make([]byte, 2))
	if err == nil {
		t.Fatalf("Sum = %s, want error", got)
	}
	var re *ReadError
	if !errors.As(err, &re) {
		t.Fatalf("err = %T, want *ReadError", err)
	}
	if !errors.Is(err, boom) {
		t.Errorf("errors.Is(err, boom) = false for %v", err)
	}
	if re.Offset != 5 || n != 5 {
		t.Errorf("Offset = %d, n = %d, want 5", re.Offset, n)
	}
	if got != 0 {
		t.Errorf("Sum on error returned %s, want zero", got)
	}
}

func TestSum_dataWithErrorIsNotChecksummed(t *testing.T) {
	boom := errors.New("boom")
	r := iotest.DataErrReader(io.MultiReader(strings.NewReader("abc"), iotest.ErrReader(boom)))

	if _, _, err := Sum(context.Background(), r, nil); !errors.Is(err, boom) {
		t.Errorf("Sum err = %v, want boom", err)
	}
}

func TestSum_shortReadsMatchWholeInput(t *testing.T) {
	const s = "The quick brown fox jumps over the lazy dog"
	readers := map[string]io.Reader{
		"one-byte": iotest.OneByteReader(strings.NewReader(s)),
		"half":     iotest.HalfReader(strings.NewReader(s)),
		"data-err": iotest.DataErrReader(strings.NewReader(s)),
	}
	for name, r := range readers {
		got, n, err := Sum(context.Background(), r, make([]byte, 16))
		if err != nil {
			t.Fatalf("%s: Sum: %v", name, err)
		}
		if n != int64(len(s)) {
			t.Errorf("%s: n = %d, want %d", name, n, len(s))
		}
		if got.String() != "414FA339" {
			t.Errorf("%s: Sum = %s, want 414FA339", name, got)
		}
	}
}

func TestSum_canceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := Sum(ctx, strings.NewReader("abc"), nil)
	var re *ReadError
	if !errors.As(err, &re) {
		t.Fatalf("err = %v, want *ReadError", err)
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("errors.Is(err, context.Canceled) = false for %v", err)
	}
}

func TestComputeContext_canceledSetsPath(t *testing.T) {
	path := writeFile(t, "c.txt", []byte("abc"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := ComputeContext(ctx, path, 1)
	var re *ReadError
	if !errors.As(err, &re) {
		t.Fatalf("err = %v, want *ReadError", err)
	}
	if re.Path != path {
		t.Errorf("ReadError.Path = %q, want %q", re.Path, path)
	}
}

func TestVerify(t *testing.T) {
	path := writeFile(t, "check.txt", []byte("123456789"))
	ctx := context.Background()

	if err := Verify(ctx, path, 0xCBF43926, 0); err != nil {
		t.Errorf("Verify(match): %v", err)
	}
	err := Verify(ctx, path, 0xCBF43927, 0)
	var me *MismatchError
	if !errors.As(err, &me) {
		t.Fatalf("Verify(mismatch) err = %v, want *MismatchError", err)
	}
	if me.Got != 0xCBF43926 || me.Want != 0xCBF43927 {
		t.Errorf("MismatchError = %+v", me)
	}
	if err := Verify(ctx, filepath.Join(t.TempDir(), "nope"), 0, 0); !errors.As(err, new(*OpenError)) {
		t.Errorf("Verify(missing) err = %v, want *OpenError", err)
	}
}
