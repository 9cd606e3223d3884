package main

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zstd"
)

func TestCompressFileRoundTrip(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "store.db")
	dst := filepath.Join(dir, "store.db.zst")
	payload := bytes.Repeat([]byte("hivemind"), 1024)
	if err := os.WriteFile(src, payload, 0o644); err != nil {
		t.Fatalf("write source: %v", err)
	}

	if err := compressFile(src, dst); err != nil {
		t.Fatalf("compress: %v", err)
	}

	in, err := os.Open(dst)
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	defer in.Close()
	zr, err := zstd.NewReader(in)
	if err != nil {
		t.Fatalf("zstd reader: %v", err)
	}
	defer zr.Close()
	got, err := io.ReadAll(zr)
	if err != nil {
		t.Fatalf("decompress: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Error("decompressed archive differs from source")
	}
}

func TestCompressFileCleansUpOnError(t *testing.T) {
	dir := t.TempDir()
	// A directory opens fine but fails on read, forcing the copy to error
	src := filepath.Join(dir, "not-a-file")
	if err := os.Mkdir(src, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	dst := filepath.Join(dir, "out.zst")

	if err := compressFile(src, dst); err == nil {
		t.Fatal("expected error compressing a directory")
	}
	if _, err := os.Stat(dst); !os.IsNotExist(err) {
		t.Errorf("partial archive left behind: stat err = %v", err)
	}
}

func TestFormatSize(t *testing.T) {
	cases := []struct {
		in   int64
		want string
	}{
		{512, "512 bytes"},
		{2048, "2.0 KB"},
		{3 * 1024 * 1024, "3.0 MB"},
		{5 * 1024 * 1024 * 1024, "5.0 GB"},
	}
	for _, c := range cases {
		if got := formatSize(c.in); got != c.want {
			t.Errorf("formatSize(%d) = %s, want %s", c.in, got, c.want)
		}
	}
}
