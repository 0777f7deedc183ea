package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/eargollo/crcsum/internal/batch"
	"github.com/eargollo/crcsum/internal/checksum"
	"github.com/eargollo/crcsum/internal/config"
	"github.com/eargollo/crcsum/internal/db"
	"github.com/eargollo/crcsum/internal/scan"
	"github.com/eargollo/crcsum/internal/server"
	"github.com/spf13/pflag"
)

const usage = `usage:
  crcsum [--block-size N] FILE...
  crcsum verify [--block-size N] FILE CHECKSUM
  crcsum scan [--workers N] [--rate N] [--block-size N] ROOT
  crcsum serve
`

// Exit codes.
const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		cancel()
	}()

	args := os.Args[1:]
	cmd := ""
	if len(args) > 0 {
		cmd = args[0]
	}
	var code int
	switch cmd {
	case "verify":
		code = runVerify(ctx, cfg, args[1:], os.Stdout, os.Stderr)
	case "scan":
		code = runScan(ctx, cfg, args[1:], os.Stdout, os.Stderr)
	case "serve":
		code = runServe(ctx, cfg)
	default:
		code = runSum(ctx, cfg, args, os.Stdout, os.Stderr)
	}
	cancel()
	os.Exit(code)
}

// checkBlockSize reports an out-of-range --block-size on stderr.
func checkBlockSize(n int, stderr io.Writer) bool {
	if n < 1 || n > config.MaxBlockSize {
		fmt.Fprintf(stderr, "crcsum: --block-size must be between 1 and %d\n", config.MaxBlockSize)
		return false
	}
	return true
}

func newFlagSet(name string, stderr io.Writer) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() { fmt.Fprint(stderr, usage) }
	return fs
}

// runSum prints CHECKSUM<TAB>FILE for each file. Failures go to stderr and
// make the exit code 1; the remaining files are still processed.
func runSum(ctx context.Context, cfg *config.Config, args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("crcsum", stderr)
	blockSize := fs.Int("block-size", cfg.BlockSize(), "read block size in bytes")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if !checkBlockSize(*blockSize, stderr) {
		return exitUsage
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return exitUsage
	}
	code := exitOK
	for _, name := range fs.Args() {
		sum, err := checksum.ComputeContext(ctx, name, *blockSize)
		if err != nil {
			fmt.Fprintf(stderr, "crcsum: %v\n", err)
			code = exitFailure
			continue
		}
		fmt.Fprintf(stdout, "%s\t%s\n", sum, name)
	}
	return code
}

func runVerify(ctx context.Context, cfg *config.Config, args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("verify", stderr)
	blockSize := fs.Int("block-size", cfg.BlockSize(), "read block size in bytes")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if !checkBlockSize(*blockSize, stderr) {
		return exitUsage
	}
	if fs.NArg() != 2 {
		fs.Usage()
		return exitUsage
	}
	name := fs.Arg(0)
	want, err := checksum.Parse(fs.Arg(1))
	if err != nil {
		fmt.Fprintf(stderr, "crcsum: %v\n", err)
		return exitUsage
	}
	if err := checksum.Verify(ctx, name, want, *blockSize); err != nil {
		var mismatch *checksum.MismatchError
		if errors.As(err, &mismatch) {
			fmt.Fprintf(stdout, "%s: FAILED (got %s, want %s)\n", name, mismatch.Got, mismatch.Want)
		} else {
			fmt.Fprintf(stderr, "crcsum: %v\n", err)
		}
		return exitFailure
	}
	fmt.Fprintf(stdout, "%s: OK\n", name)
	return exitOK
}

// openStore opens PostgreSQL when DATABASE_URL is set, else SQLite in the data dir.
// The returned path is the SQLite file ("" for Postgres).
func openStore(ctx context.Context, cfg *config.Config) (*db.Store, string, error) {
	var store *db.Store
	var path string
	var err error
	if url := cfg.DatabaseURL(); url != "" {
		store, err = db.OpenPostgres(url)
	} else {
		if err := os.MkdirAll(cfg.DataDir(), 0755); err != nil {
			return nil, "", fmt.Errorf("create data dir %q: %w", cfg.DataDir(), err)
		}
		path = filepath.Join(cfg.DataDir(), "crcsum.db")
		store, err = db.Open(path)
	}
	if err != nil {
		return nil, "", fmt.Errorf("open ledger: %w", err)
	}
	if err := store.Migrate(ctx); err != nil {
		store.Close()
		return nil, "", fmt.Errorf("migrate: %w", err)
	}
	return store, path, nil
}

func runScan(ctx context.Context, cfg *config.Config, args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("scan", stderr)
	workers := fs.IntP("workers", "w", cfg.Workers(), "number of checksum workers")
	perSecond := fs.Int("rate", cfg.MaxFilesPerSecond(), "max files read per second (0 = unlimited)")
	blockSize := fs.Int("block-size", cfg.BlockSize(), "read block size in bytes")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if !checkBlockSize(*blockSize, stderr) {
		return exitUsage
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return exitUsage
	}
	root := fs.Arg(0)

	patterns, err := scan.PatternsForRoot(root)
	if err != nil {
		fmt.Fprintf(stderr, "crcsum: exclude file: %v\n", err)
		return exitFailure
	}
	store, _, err := openStore(ctx, cfg)
	if err != nil {
		fmt.Fprintf(stderr, "crcsum: %v\n", err)
		return exitFailure
	}
	defer store.Close()

	sum, err := batch.Run(ctx, store, root, &batch.Options{
		Workers:           *workers,
		MaxFilesPerSecond: *perSecond,
		BlockSize:         *blockSize,
		ExcludePatterns:   patterns,
	})
	if err != nil {
		fmt.Fprintf(stderr, "crcsum: scan: %v\n", err)
		return exitFailure
	}
	fmt.Fprintf(stdout, "run %d: %d files, %d checksummed, %d reused, %d errors, %d bytes\n",
		sum.RunID, sum.Files, sum.Checksummed, sum.Reused, sum.Errors, sum.Bytes)
	if sum.Errors > 0 {
		return exitFailure
	}
	return exitOK
}

func runServe(ctx context.Context, cfg *config.Config) int {
	store, path, err := openStore(ctx, cfg)
	if err != nil {
		log.Printf("[server] %v", err)
		return exitFailure
	}
	defer store.Close()

	var readDB *db.Store
	if path != "" {
		readDB, err = db.OpenReadOnly(path)
		if err != nil {
			log.Printf("[server] open read-only ledger: %v", err)
			return exitFailure
		}
		defer readDB.Close()
	}
	if err := server.NewServer(cfg, store, readDB).Run(ctx); err != nil {
		log.Printf("[server] %v", err)
		return exitFailure
	}
	return exitOK
}
