package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/alanyoungcy/battleoracle/internal/domain"
)

// Archiver moves detection logs and closed proposals to cold storage on a
// schedule.
type Archiver struct {
	blob          domain.Archiver
	retentionDays int
	now           func() time.Time
	logger        *slog.Logger
}

// ArchiveReport counts the records moved by one run.
type ArchiveReport struct {
	Cutoff     time.Time `json:"cutoff"`
	Detections int64     `json:"detections"`
	Proposals  int64     `json:"proposals"`
}

// NewArchiver creates an Archiver keeping retentionDays of history in Postgres.
func NewArchiver(blob domain.Archiver, retentionDays int, logger *slog.Logger) *Archiver {
	if retentionDays <= 0 {
		retentionDays = 90
	}
	return &Archiver{
		blob:          blob,
		retentionDays: retentionDays,
		now:           func() time.Time { return time.Now().UTC() },
		logger:        logger.With(slog.String("component", "archiver")),
	}
}

// Run archives everything older than the retention window once. A failure
// archiving detections does not prevent the proposal archive.
func (a *Archiver) Run(ctx context.Context) (ArchiveReport, error) {
	report := ArchiveReport{Cutoff: a.now().AddDate(0, 0, -a.retentionDays)}
	a.logger.InfoContext(ctx, "starting archive run",
		slog.Time("cutoff", report.Cutoff),
		slog.Int("retention_days", a.retentionDays),
	)

	var firstErr error
	n, err := a.blob.ArchiveDetections(ctx, report.Cutoff)
	if err != nil {
		firstErr = fmt.Errorf("archiving detections before %v: %w", report.Cutoff, err)
		a.logger.ErrorContext(ctx, "detection archive failed", slog.String("error", err.Error()))
	}
	report.Detections = n

	n, err = a.blob.ArchiveProposals(ctx, report.Cutoff)
	if err != nil {
		if firstErr == nil {
			firstErr = fmt.Errorf("archiving proposals before %v: %w", report.Cutoff, err)
		}
		a.logger.ErrorContext(ctx, "proposal archive failed", slog.String("error", err.Error()))
	}
	report.Proposals = n

	a.logger.InfoContext(ctx, "archive run complete",
		slog.Int64("detections", report.Detections),
		slog.Int64("proposals", report.Proposals),
	)
	return report, firstErr
}

// RunCron runs the archiver on a 5-field cron schedule ("minute hour
// day-of-month month day-of-week") until ctx is cancelled. Times are UTC.
func (a *Archiver) RunCron(ctx context.Context, cronExpr string) error {
	schedule, err := parseCron(cronExpr)
	if err != nil {
		return fmt.Errorf("parsing cron expression %q: %w", cronExpr, err)
	}
	a.logger.Info("archiver cron started", slog.String("cron", cronExpr))

	for {
		next, err := schedule.next(a.now())
		if err != nil {
			return err
		}
		wait := time.Until(next)
		a.logger.Debug("archiver waiting", slog.Time("next_run", next), slog.Duration("wait", wait))

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			a.logger.Info("archiver cron stopped")
			return ctx.Err()
		case <-timer.C:
			if _, err := a.Run(ctx); err != nil {
				a.logger.Error("archive run failed", slog.String("error", err.Error()))
			}
		}
	}
}

// cronField matches one cron position. A nil set is a wildcard.
type cronField map[int]bool

func (f cronField) matches(v int) bool {
	return f == nil || f[v]
}

type cronSchedule struct {
	minute, hour, dom, month, dow cronField
}

// parseCronField accepts "*", "*/n", "a-b", "a-b/n" and comma lists of these.
func parseCronField(field string, lo, hi int) (cronField, error) {
	if field == "*" {
		return nil, nil
	}
	set := make(cronField)
	for _, part := range strings.Split(field, ",") {
		step := 1
		if base, s, ok := strings.Cut(part, "/"); ok {
			n, err := strconv.Atoi(s)
			if err != nil || n <= 0 {
				return nil, fmt.Errorf("invalid step %q", part)
			}
			part, step = base, n
		}

		from, to := lo, hi
		switch {
		case part == "*":
		case strings.Contains(part, "-"):
			a, b, _ := strings.Cut(part, "-")
			var err1, err2 error
			from, err1 = strconv.Atoi(a)
			to, err2 = strconv.Atoi(b)
			if err1 != nil || err2 != nil {
				return nil, fmt.Errorf("invalid range %q", part)
			}
		default:
			v, err := strconv.Atoi(part)
			if err != nil {
				return nil, fmt.Errorf("invalid cron field value %q: %w", part, err)
			}
			from, to = v, v
		}
		if from < lo || to > hi || from > to {
			return nil, fmt.Errorf("value %q out of range %d-%d", part, lo, hi)
		}
		for v := from; v <= to; v += step {
			set[v] = true
		}
	}
	return set, nil
}

func parseCron(expr string) (cronSchedule, error) {
	fields := strings.Fields(expr)
	if len(fields) != 5 {
		return cronSchedule{}, fmt.Errorf("cron expression must have 5 fields, got %d", len(fields))
	}
	bounds := [5][2]int{{0, 59}, {0, 23}, {1, 31}, {1, 12}, {0, 6}}
	names := [5]string{"minute", "hour", "day-of-month", "month", "day-of-week"}
	var parsed [5]cronField
	for i, f := range fields {
		cf, err := parseCronField(f, bounds[i][0], bounds[i][1])
		if err != nil {
			return cronSchedule{}, fmt.Errorf("parsing %s field: %w", names[i], err)
		}
		parsed[i] = cf
	}
	return cronSchedule{parsed[0], parsed[1], parsed[2], parsed[3], parsed[4]}, nil
}

func (c cronSchedule) matches(t time.Time) bool {
	return c.minute.matches(t.Minute()) &&
		c.hour.matches(t.Hour()) &&
		c.dom.matches(t.Day()) &&
		c.month.matches(int(t.Month())) &&
		c.dow.matches(int(t.Weekday()))
}

// next returns the first matching minute strictly after after, searching up
// to one year ahead.
func (c cronSchedule) next(after time.Time) (time.Time, error) {
	candidate := after.Truncate(time.Minute).Add(time.Minute)
	limit := after.Add(366 * 24 * time.Hour)
	for candidate.Before(limit) {
		if c.matches(candidate) {
			return candidate, nil
		}
		candidate = candidate.Add(time.Minute)
	}
	return time.Time{}, fmt.Errorf("no matching cron time within one year")
}

// ValidateCron reports whether expr is a valid 5-field cron expression.
func ValidateCron(expr string) error {
	_, err := parseCron(expr)
	return err
}
