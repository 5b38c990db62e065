package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/alanyoungcy/battleoracle/internal/domain"
)

// DetectionArchiveStore is the slice of the detection store the archiver uses.
type DetectionArchiveStore interface {
	ListBefore(ctx context.Context, before time.Time) ([]domain.DetectionLog, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

// ProposalArchiveStore is the slice of the settlement store the archiver uses.
// Only terminal proposals are returned.
type ProposalArchiveStore interface {
	ListBefore(ctx context.Context, before time.Time) ([]domain.SettlementProposal, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

// multipartThreshold switches uploads to the multipart manager.
const multipartThreshold = 8 * 1024 * 1024

// ArchiveImpl implements domain.Archiver. Records older than the cutoff are
// written as JSONL to archive/<kind>/YYYY-MM.jsonl; an existing file for the
// same month is extended rather than replaced. When purge is set, the rows
// are deleted from Postgres after a successful upload.
type ArchiveImpl struct {
	writer     domain.BlobWriter
	reader     domain.BlobReader
	detections DetectionArchiveStore
	proposals  ProposalArchiveStore
	audit      domain.AuditStore
	purge      bool
}

// NewArchiver creates a new ArchiveImpl. reader may be nil, in which case an
// existing monthly file is overwritten.
func NewArchiver(
	writer domain.BlobWriter,
	reader domain.BlobReader,
	detections DetectionArchiveStore,
	proposals ProposalArchiveStore,
	audit domain.AuditStore,
	purge bool,
) *ArchiveImpl {
	return &ArchiveImpl{
		writer:     writer,
		reader:     reader,
		detections: detections,
		proposals:  proposals,
		audit:      audit,
		purge:      purge,
	}
}

// ArchiveDetections archives detection logs created before the cutoff.
func (a *ArchiveImpl) ArchiveDetections(ctx context.Context, before time.Time) (int64, error) {
	logs, err := a.detections.ListBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive detections query: %w", err)
	}
	return archiveKind(ctx, a, "detections", before, logs, a.detections.DeleteBefore)
}

// ArchiveProposals archives settled and rejected proposals created before the
// cutoff.
func (a *ArchiveImpl) ArchiveProposals(ctx context.Context, before time.Time) (int64, error) {
	props, err := a.proposals.ListBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive proposals query: %w", err)
	}
	return archiveKind(ctx, a, "proposals", before, props, a.proposals.DeleteBefore)
}

func archiveKind[T any](
	ctx context.Context,
	a *ArchiveImpl,
	kind string,
	before time.Time,
	records []T,
	deleteBefore func(context.Context, time.Time) (int64, error),
) (int64, error) {
	if len(records) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(records)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive %s marshal: %w", kind, err)
	}

	path := archivePath(kind, before)
	existing, err := a.existing(ctx, path)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive %s read existing: %w", kind, err)
	}
	body := append(existing, buf...)

	if len(body) > multipartThreshold {
		err = a.writer.PutMultipart(ctx, path, bytes.NewReader(body), minPartSize)
	} else {
		err = a.writer.Put(ctx, path, bytes.NewReader(body), "application/x-ndjson")
	}
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive %s upload: %w", kind, err)
	}

	count := int64(len(records))
	detail := map[string]any{
		"path":   path,
		"count":  count,
		"before": before.Format(time.RFC3339),
	}
	if a.purge {
		deleted, err := deleteBefore(ctx, before)
		if err != nil {
			return count, fmt.Errorf("s3blob: archive %s purge: %w", kind, err)
		}
		detail["deleted"] = deleted
	}

	if err := a.audit.Log(ctx, "archive."+kind, detail); err != nil {
		return count, fmt.Errorf("s3blob: archive %s audit log: %w", kind, err)
	}
	return count, nil
}

// existing returns the current content of path, or nil when there is none.
func (a *ArchiveImpl) existing(ctx context.Context, path string) ([]byte, error) {
	if a.reader == nil {
		return nil, nil
	}
	ok, err := a.reader.Exists(ctx, path)
	if err != nil || !ok {
		return nil, err
	}
	rc, err := a.reader.Get(ctx, path)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// archivePath partitions archives by the cutoff's year and month:
//
//	archive/detections/2025-01.jsonl
//	archive/proposals/2025-01.jsonl
func archivePath(kind string, before time.Time) string {
	return fmt.Sprintf("archive/%s/%s.jsonl", kind, before.UTC().Format("2006-01"))
}

// marshalJSONL encodes records as newline-delimited JSON.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}

var _ domain.Archiver = (*ArchiveImpl)(nil)
