package s3blob

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/battleoracle/internal/domain"
)

type memBlobs struct {
	objects map[string][]byte
}

func newMemBlobs() *memBlobs { return &memBlobs{objects: map[string][]byte{}} }

func (m *memBlobs) Put(_ context.Context, path string, data io.Reader, _ string) error {
	b, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	m.objects[path] = b
	return nil
}

func (m *memBlobs) PutMultipart(ctx context.Context, path string, data io.Reader, _ int64) error {
	return m.Put(ctx, path, data, "")
}

func (m *memBlobs) Get(_ context.Context, path string) (io.ReadCloser, error) {
	b, ok := m.objects[path]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

func (m *memBlobs) List(_ context.Context, prefix string) ([]domain.BlobInfo, error) {
	var out []domain.BlobInfo
	for p, b := range m.objects {
		if strings.HasPrefix(p, prefix) {
			out = append(out, domain.BlobInfo{Path: p, Size: int64(len(b))})
		}
	}
	return out, nil
}

func (m *memBlobs) Exists(_ context.Context, path string) (bool, error) {
	_, ok := m.objects[path]
	return ok, nil
}

type memDetections struct {
	logs    []domain.DetectionLog
	deleted int
}

func (m *memDetections) ListBefore(_ context.Context, before time.Time) ([]domain.DetectionLog, error) {
	var out []domain.DetectionLog
	for _, l := range m.logs {
		if l.CreatedAt.Before(before) {
			out = append(out, l)
		}
	}
	return out, nil
}

func (m *memDetections) DeleteBefore(_ context.Context, before time.Time) (int64, error) {
	var keep []domain.DetectionLog
	for _, l := range m.logs {
		if !l.CreatedAt.Before(before) {
			keep = append(keep, l)
		}
	}
	n := len(m.logs) - len(keep)
	m.logs = keep
	m.deleted += n
	return int64(n), nil
}

type memProposals struct{}

func (memProposals) ListBefore(context.Context, time.Time) ([]domain.SettlementProposal, error) {
	return nil, nil
}

func (memProposals) DeleteBefore(context.Context, time.Time) (int64, error) { return 0, nil }

type memAudit struct{ events []string }

func (m *memAudit) Log(_ context.Context, event string, _ map[string]any) error {
	m.events = append(m.events, event)
	return nil
}

func (m *memAudit) List(context.Context, domain.ListOpts) ([]domain.AuditEntry, error) {
	return nil, nil
}

func TestArchiveDetections(t *testing.T) {
	cutoff := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	blobs := newMemBlobs()
	dets := &memDetections{logs: []domain.DetectionLog{
		{ID: 1, RawTitle: "Ash vs Misty", Pattern: "vs_format", Confidence: 85, CreatedAt: cutoff.Add(-48 * time.Hour)},
		{ID: 2, RawTitle: "Misty wins", Pattern: "victory_format", Confidence: 75, CreatedAt: cutoff.Add(time.Hour)},
	}}
	audit := &memAudit{}
	a := NewArchiver(blobs, blobs, dets, memProposals{}, audit, true)

	n, err := a.ArchiveDetections(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	body := blobs.objects["archive/detections/2025-03.jsonl"]
	require.NotEmpty(t, body)
	assert.Equal(t, 1, bytes.Count(body, []byte("\n")))
	assert.Contains(t, string(body), `"raw_title":"Ash vs Misty"`)
	assert.Equal(t, 1, dets.deleted)
	assert.Equal(t, []string{"archive.detections"}, audit.events)

	// A second run in the same month extends the file.
	dets.logs = append(dets.logs, domain.DetectionLog{ID: 3, RawTitle: "Red beats Blue", CreatedAt: cutoff.Add(-time.Hour)})
	_, err = a.ArchiveDetections(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, 2, bytes.Count(blobs.objects["archive/detections/2025-03.jsonl"], []byte("\n")))
}

func TestArchiveNothingToDo(t *testing.T) {
	blobs := newMemBlobs()
	audit := &memAudit{}
	a := NewArchiver(blobs, nil, &memDetections{}, memProposals{}, audit, false)

	n, err := a.ArchiveProposals(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, blobs.objects)
	assert.Empty(t, audit.events)
}

func TestNormalisation(t *testing.T) {
	assert.Equal(t, "https://e2.example.com", normaliseEndpoint("e2.example.com", true))
	assert.Equal(t, "http://localhost:9000", normaliseEndpoint("http://localhost:9000", true))
	assert.Equal(t, "battleoracle/", normalisePrefix("/battleoracle/"))
	assert.Equal(t, "", normalisePrefix(""))

	c := &Client{prefix: "bo/"}
	assert.Equal(t, "bo/archive/x.jsonl", c.key("/archive/x.jsonl"))
	assert.Equal(t, "archive/x.jsonl", c.trimKey("bo/archive/x.jsonl"))
}
