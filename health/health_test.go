package health

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMonitor_Report(t *testing.T) {
	monitor := NewMonitor(nil)
	monitor.Register("store", func(context.Context) error { return nil })
	monitor.Register("nats", func(context.Context) error { return nil })

	report := monitor.Report(context.Background())
	assert.True(t, report.Healthy)
	assert.Equal(t, "ok", report.Components["store"])
	assert.Equal(t, "ok", report.Components["nats"])
	assert.False(t, report.CheckedAt.IsZero())
}

func TestMonitor_FailingCheck(t *testing.T) {
	monitor := NewMonitor(nil)
	monitor.Register("store", func(context.Context) error { return nil })
	monitor.Register("nats", func(context.Context) error {
		return errors.New("nats not connected")
	})

	report := monitor.Report(context.Background())
	assert.False(t, report.Healthy)
	assert.Equal(t, "ok", report.Components["store"])
	assert.Equal(t, "nats not connected", report.Components["nats"])
}

func TestMonitor_Empty(t *testing.T) {
	report := NewMonitor(nil).Report(context.Background())
	assert.True(t, report.Healthy)
	assert.Empty(t, report.Components)
}
