package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/polysight/marketgate/internal/domain"
)

// Archiver writes poll-pipeline output to object storage: one object per
// poll cycle, keyed by source and UTC timestamp. Archives are append-only;
// nothing in the serving path reads them back.
type Archiver struct {
	writer domain.BlobWriter
	prefix string
	now    func() time.Time
}

// NewArchiver creates an Archiver that writes under the given key prefix,
// e.g. "marketgate". An empty prefix writes at the bucket root.
func NewArchiver(writer domain.BlobWriter, prefix string) *Archiver {
	return &Archiver{
		writer: writer,
		prefix: prefix,
		now:    time.Now,
	}
}

// ArchiveSnapshots uploads one JSON document holding the full normalized
// listing from a poll cycle.
func (a *Archiver) ArchiveSnapshots(ctx context.Context, source string, markets []domain.Market) (string, error) {
	doc := struct {
		Source     string          `json:"source"`
		CapturedAt time.Time       `json:"capturedAt"`
		Count      int             `json:"count"`
		Markets    []domain.Market `json:"markets"`
	}{
		Source:     source,
		CapturedAt: a.now().UTC(),
		Count:      len(markets),
		Markets:    markets,
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("s3blob: encode snapshot archive: %w", err)
	}

	key := a.key("snapshots", source, "json")
	if len(data) > multipartThreshold {
		if w, ok := a.writer.(*Writer); ok {
			if err := w.PutMultipart(ctx, key, bytes.NewReader(data), minPartSize); err != nil {
				return "", err
			}
			return key, nil
		}
	}
	if err := a.writer.Put(ctx, key, bytes.NewReader(data), "application/json"); err != nil {
		return "", err
	}
	return key, nil
}

// key builds an object key like
// "marketgate/snapshots/polymarket-builder/2026/08/28/143005.json".
func (a *Archiver) key(kind, source, ext string) string {
	ts := a.now().UTC()
	key := fmt.Sprintf("%s/%s/%s.%s",
		kind+"/"+source,
		ts.Format("2006/01/02"),
		ts.Format("150405"),
		ext,
	)
	if a.prefix != "" {
		key = a.prefix + "/" + key
	}
	return key
}
