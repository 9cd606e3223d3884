package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
	"github.com/lanemc/hivemind/internal/config"
	"github.com/lanemc/hivemind/internal/store"
)

// runBackup takes a consistent snapshot of the live database with
// VACUUM INTO and compresses it to the output path.
func runBackup(args []string) error {
	var outputPath string
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "-f":
			if i+1 >= len(args) {
				return fmt.Errorf("missing value for -f")
			}
			i++
			outputPath = args[i]
		}
	}
	if outputPath == "" {
		fmt.Fprintf(os.Stderr, "Usage: hivemind backup -f <output.db.zst>\n")
		return fmt.Errorf("missing -f flag")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, err := store.New(cfg.Store)
	if err != nil {
		return fmt.Errorf("init store: %w", err)
	}
	defer db.Close()

	// VACUUM INTO writes a compacted copy independent of the WAL, so the
	// snapshot is consistent even while writers are active.
	snapshot := filepath.Join(os.TempDir(), fmt.Sprintf("hivemind-backup-%d.db", os.Getpid()))
	defer os.Remove(snapshot)

	if _, err := db.DB().Exec(`VACUUM INTO ?`, snapshot); err != nil {
		return fmt.Errorf("vacuum into: %w", err)
	}

	if err := compressFile(snapshot, outputPath); err != nil {
		return err
	}

	info, _ := os.Stat(outputPath)
	size := int64(0)
	if info != nil {
		size = info.Size()
	}

	fmt.Printf("Backup complete: %s (%s)\n", outputPath, formatSize(size))
	return nil
}

// compressFile zstd-compresses srcPath into dstPath. A failure on any step
// removes the partial output so a broken archive is never left behind.
func compressFile(srcPath, dstPath string) error {
	src, err := os.Open(srcPath)
	if err != nil {
		return fmt.Errorf("open snapshot: %w", err)
	}
	defer src.Close()

	out, err := os.Create(dstPath)
	if err != nil {
		return fmt.Errorf("create output file: %w", err)
	}

	zw, err := zstd.NewWriter(out)
	if err != nil {
		out.Close()
		os.Remove(dstPath)
		return fmt.Errorf("create zstd writer: %w", err)
	}

	if _, err := io.Copy(zw, src); err != nil {
		zw.Close()
		out.Close()
		os.Remove(dstPath)
		return fmt.Errorf("compress snapshot: %w", err)
	}

	// Close explicitly to catch write errors
	if err := zw.Close(); err != nil {
		out.Close()
		os.Remove(dstPath)
		return fmt.Errorf("close zstd: %w", err)
	}
	if err := out.Close(); err != nil {
		os.Remove(dstPath)
		return fmt.Errorf("close file: %w", err)
	}
	return nil
}

// runRestore decompresses an archive into the configured store path. The
// live database must not be open elsewhere.
func runRestore(args []string) error {
	var inputPath string
	overwrite := false
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "-f":
			if i+1 >= len(args) {
				return fmt.Errorf("missing value for -f")
			}
			i++
			inputPath = args[i]
		case "-overwrite":
			overwrite = true
		}
	}
	if inputPath == "" {
		fmt.Fprintf(os.Stderr, "Usage: hivemind restore -f <backup.db.zst> [-overwrite]\n")
		return fmt.Errorf("missing -f flag")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if _, err := os.Stat(cfg.Store.Path); err == nil && !overwrite {
		return fmt.Errorf("store %s already exists, add -overwrite to replace it", cfg.Store.Path)
	}

	in, err := os.Open(inputPath)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer in.Close()

	zr, err := zstd.NewReader(in)
	if err != nil {
		return fmt.Errorf("create zstd reader: %w", err)
	}
	defer zr.Close()

	if err := os.MkdirAll(filepath.Dir(cfg.Store.Path), 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	// Stale WAL/SHM files would shadow the restored database.
	for _, suffix := range []string{"-wal", "-shm"} {
		_ = os.Remove(cfg.Store.Path + suffix)
	}

	out, err := os.Create(cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("create store file: %w", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, zr.IOReadCloser()); err != nil {
		return fmt.Errorf("decompress archive: %w", err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("close store file: %w", err)
	}

	slog.Info("restore complete", "path", cfg.Store.Path)
	fmt.Printf("Restore complete: %s\n", cfg.Store.Path)
	return nil
}

func formatSize(bytes int64) string {
	const (
		kb = 1024
		mb = kb * 1024
		gb = mb * 1024
	)
	switch {
	case bytes >= gb:
		return fmt.Sprintf("%.1f GB", float64(bytes)/float64(gb))
	case bytes >= mb:
		return fmt.Sprintf("%.1f MB", float64(bytes)/float64(mb))
	case bytes >= kb:
		return fmt.Sprintf("%.1f KB", float64(bytes)/float64(kb))
	default:
		return fmt.Sprintf("%d bytes", bytes)
	}
}
