package influxdb

import (
	"fmt"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names.
const (
	MeasurementDeviceState  = "insteon_device_state"
	MeasurementModemTraffic = "insteon_modem_traffic"
	MeasurementScheduler    = "insteon_scheduler"
)

// WriteDeviceState records a device level (0-255) after a command or an
// incoming report.
func (c *Client) WriteDeviceState(address, location string, level uint8) {
	tags := map[string]string{"address": address}
	if location != "" {
		tags["location"] = location
	}
	c.WritePointWithTime(MeasurementDeviceState, tags,
		map[string]any{"level": int64(level), "on": level > 0},
		time.Now())
}

// WriteTraffic records one frame exchanged with the modem. direction is the
// one-letter form ("H" or "m") and code the frame's command code.
func (c *Client) WriteTraffic(sender, direction string, code byte, size int, at time.Time) {
	c.WritePointWithTime(MeasurementModemTraffic,
		map[string]string{
			"sender":    sender,
			"direction": direction,
			"code":      fmt.Sprintf("0x%02x", code),
		},
		map[string]any{"bytes": int64(size), "frames": int64(1)},
		at)
}

// WriteSchedulerRun records one scheduler operation.
func (c *Client) WriteSchedulerRun(operation, event string, duration time.Duration, at time.Time) {
	c.WritePointWithTime(MeasurementScheduler,
		map[string]string{
			"operation": operation,
			"event":     event,
		},
		map[string]any{"duration_ms": float64(duration) / float64(time.Millisecond)},
		at)
}

// WritePoint writes a point stamped now.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]any) {
	c.WritePointWithTime(measurement, tags, fields, time.Now())
}

// WritePointWithTime writes a point with an explicit timestamp. It is a
// no-op while disconnected.
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]any, ts time.Time) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(write.NewPoint(measurement, tags, fields, ts))
}
