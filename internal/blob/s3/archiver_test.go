package s3blob

import (
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/polysight/marketgate/internal/domain"
)

type captureWriter struct {
	path        string
	contentType string
	data        []byte
}

func (w *captureWriter) Put(_ context.Context, path string, data io.Reader, contentType string) error {
	w.path = path
	w.contentType = contentType
	b, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	w.data = b
	return nil
}

func TestArchiveSnapshotsKeyAndPayload(t *testing.T) {
	w := &captureWriter{}
	a := NewArchiver(w, "marketgate")
	a.now = func() time.Time {
		return time.Date(2026, 8, 28, 14, 30, 5, 0, time.UTC)
	}

	markets := []domain.Market{
		{ID: "m1", Question: "Will it happen?", Volume: 100},
	}

	key, err := a.ArchiveSnapshots(context.Background(), "polymarket-builder", markets)
	if err != nil {
		t.Fatalf("ArchiveSnapshots: %v", err)
	}

	want := "marketgate/snapshots/polymarket-builder/2026/08/28/143005.json"
	if key != want {
		t.Errorf("key = %q, want %q", key, want)
	}
	if w.path != want {
		t.Errorf("written path = %q, want %q", w.path, want)
	}
	if w.contentType != "application/json" {
		t.Errorf("content type = %q", w.contentType)
	}

	var doc struct {
		Source  string          `json:"source"`
		Count   int             `json:"count"`
		Markets []domain.Market `json:"markets"`
	}
	if err := json.Unmarshal(w.data, &doc); err != nil {
		t.Fatalf("decode archive: %v", err)
	}
	if doc.Source != "polymarket-builder" || doc.Count != 1 || doc.Markets[0].ID != "m1" {
		t.Errorf("archive doc = %+v", doc)
	}
}
