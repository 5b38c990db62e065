package pipeline

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/battleoracle/internal/service"
)

type countingSettler struct{ runs atomic.Int32 }

func (c *countingSettler) SettlePending(context.Context) (service.SettleReport, error) {
	c.runs.Add(1)
	return service.SettleReport{}, nil
}

func TestOrchestratorRunsLoopsUntilCancelled(t *testing.T) {
	h := newHarness(t)
	settler := &countingSettler{}
	o := NewOrchestrator(h.monitor, settler, nil, nil, OrchestratorConfig{
		MonitorInterval: time.Hour,
		SettleInterval:  10 * time.Millisecond,
	}, quietLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- o.Run(ctx) }()

	require.Eventually(t, func() bool { return settler.runs.Load() >= 2 }, time.Second, 5*time.Millisecond)
	cancel()
	assert.NoError(t, <-done, "cancellation is a clean shutdown")
}
