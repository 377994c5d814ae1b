package store

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestSaveOptions_ConcurrentWriters_DoesNotCorruptConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	const n = 32
	errCh := make(chan error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			opts := Default()
			opts.Site = fmt.Sprintf("https://bugs-%d.example.com", i)
			opts.PollInterval = time.Duration(i+1) * time.Minute
			if err := SaveOptions(path, opts); err != nil {
				errCh <- err
			}
		}(i)
	}
	wg.Wait()
	close(errCh)
	for err := range errCh {
		t.Errorf("concurrent SaveOptions: %v", err)
	}
	if t.Failed() {
		return
	}

	got, err := LoadOptions(path)
	if err != nil {
		t.Fatalf("config.yaml corrupted/unparseable: %v", err)
	}
	if !strings.HasPrefix(got.Site, "https://bugs-") {
		t.Fatalf("unexpected site %q", got.Site)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".tmp") {
			t.Fatalf("left behind temp file %s", e.Name())
		}
	}
}

func TestSaveOptions_RejectsInvalidSite(t *testing.T) {
	opts := Default()
	opts.Site = "ftp://bugs.example.com"
	if err := SaveOptions(filepath.Join(t.TempDir(), "config.yaml"), opts); err == nil {
		t.Fatalf("expected validation error")
	}
}
