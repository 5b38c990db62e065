package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCronNext(t *testing.T) {
	base := time.Date(2026, 1, 15, 10, 30, 0, 0, time.UTC)
	tests := []struct {
		expr string
		want time.Time
	}{
		{"0 3 1 * *", time.Date(2026, 2, 1, 3, 0, 0, 0, time.UTC)},
		{"*/15 * * * *", time.Date(2026, 1, 15, 10, 45, 0, 0, time.UTC)},
		{"0 9-17/4 * * *", time.Date(2026, 1, 15, 13, 0, 0, 0, time.UTC)},
		{"0 0 * * 0", time.Date(2026, 1, 18, 0, 0, 0, 0, time.UTC)},
		{"5,10 11 * * *", time.Date(2026, 1, 15, 11, 5, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			c, err := parseCron(tt.expr)
			require.NoError(t, err)
			got, err := c.next(base)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseCronErrors(t *testing.T) {
	for _, expr := range []string{"", "* * * *", "61 * * * *", "a * * * *", "*/0 * * * *", "5-1 * * * *"} {
		assert.Error(t, ValidateCron(expr), expr)
	}
}

type fakeBlobArchiver struct {
	detectionErr error
	cutoff       time.Time
}

func (f *fakeBlobArchiver) ArchiveDetections(_ context.Context, before time.Time) (int64, error) {
	f.cutoff = before
	return 3, f.detectionErr
}

func (f *fakeBlobArchiver) ArchiveProposals(context.Context, time.Time) (int64, error) {
	return 2, nil
}

func TestArchiverRun(t *testing.T) {
	blob := &fakeBlobArchiver{}
	a := NewArchiver(blob, 30, quietLogger())
	a.now = func() time.Time { return time.Date(2026, 4, 30, 0, 0, 0, 0, time.UTC) }

	report, err := a.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC), blob.cutoff)
	assert.Equal(t, int64(3), report.Detections)
	assert.Equal(t, int64(2), report.Proposals)
}

func TestArchiverRunContinuesAfterFailure(t *testing.T) {
	blob := &fakeBlobArchiver{detectionErr: errors.New("s3 down")}
	a := NewArchiver(blob, 0, quietLogger())

	report, err := a.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, int64(2), report.Proposals)
}
