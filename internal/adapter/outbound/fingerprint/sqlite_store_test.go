package fingerprint

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/wl4g-collab/botwaf-go/internal/domain/fingerprint"
)

func TestSQLiteStore_AddAndList(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "fingerprints.db")
	store, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	id, err := store.Add(ctx, fingerprint.Sample{
		Method:    "GET",
		Path:      "/admin.php",
		Query:     "id=1' OR 1=1",
		Malicious: true,
	})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if id == 0 {
		t.Fatal("expected non-zero id")
	}

	if _, err := store.Add(ctx, fingerprint.Sample{Method: "GET", Path: "/login", Malicious: false}); err != nil {
		t.Fatalf("Add benign: %v", err)
	}

	samples, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(samples) != 2 {
		t.Fatalf("len(samples) = %d, want 2", len(samples))
	}

	var sawMalicious, sawBenign bool
	for _, s := range samples {
		if s.Malicious {
			sawMalicious = true
		} else {
			sawBenign = true
		}
	}
	if !sawMalicious || !sawBenign {
		t.Fatalf("expected one malicious and one benign sample, got %+v", samples)
	}
}
