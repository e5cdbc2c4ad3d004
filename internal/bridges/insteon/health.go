package insteon

import (
	"context"
	"time"
)

// ReportHealth publishes the bridge health and, when a schedule is
// attached, the scheduler snapshot. Publish failures are logged and do not
// fail the scheduler event.
func (b *Bridge) ReportHealth(_ context.Context) error {
	if !b.mqtt.IsConnected() {
		b.logger.Debug("skipping health report, broker disconnected")
		return nil
	}
	status, reason := b.assess()
	if err := b.publishHealth(status, reason); err != nil {
		b.logger.Warn("failed to publish health", "error", err)
	}
	if b.schedule != nil {
		msg := ScheduleMessage{Timestamp: b.now().UTC(), Events: b.schedule.Snapshot()}
		if err := b.publishJSON(b.topics.BridgeSchedule(Protocol), msg, true); err != nil {
			b.logger.Warn("failed to publish schedule", "error", err)
		}
	}
	return nil
}

// assess compares modem counters with the previous report. New timeouts or
// channel errors since then mark the bridge degraded.
func (b *Bridge) assess() (HealthStatus, string) {
	stats := b.modem.Stats()

	b.healthMu.Lock()
	prev := b.lastModem
	b.lastModem = stats
	b.healthMu.Unlock()

	switch {
	case stats.Errors > prev.Errors:
		return HealthDegraded, "modem channel errors since last report"
	case stats.Timeouts > prev.Timeouts:
		return HealthDegraded, "modem timeouts since last report"
	default:
		return HealthHealthy, ""
	}
}

func (b *Bridge) publishHealth(status HealthStatus, reason string) error {
	now := b.now()
	msg := HealthMessage{
		Bridge:        Protocol,
		Timestamp:     now.UTC(),
		Status:        status,
		Version:       b.version,
		UptimeSeconds: int64(now.Sub(b.started) / time.Second),
		Modem:         b.modem.Stats(),
		Devices:       b.modem.Registry().Stats(),
		Reason:        reason,
	}
	if b.schedule != nil {
		msg.ScheduledEvents = b.schedule.Len()
	}
	return b.publishJSON(b.topics.BridgeHealth(Protocol), msg, true)
}

// Stats returns the number of commands received and how many failed.
func (b *Bridge) Stats() (commands, failures uint64) {
	return b.commands.Load(), b.failures.Load()
}
