package activity

import (
	"context"
	"time"

	"github.com/petro31/illuminate-door/internal/automation"
)

// MeasurementDoorEvent is the InfluxDB measurement automation events are written to.
const MeasurementDoorEvent = "door_event"

// PointWriter is satisfied by *influxdb.Client.
type PointWriter interface {
	WritePointWithTime(measurement string, tags map[string]string, fields map[string]any, timestamp time.Time)
}

// Telemetry writes automation events as time-series points.
// Writes are batched by the client and never block.
type Telemetry struct {
	writer PointWriter
}

// NewTelemetry creates a telemetry recorder.
func NewTelemetry(writer PointWriter) *Telemetry {
	return &Telemetry{writer: writer}
}

// Record implements automation.Recorder.
func (t *Telemetry) Record(_ context.Context, ev automation.Event) {
	tags := map[string]string{
		"automation": ev.Automation,
		"kind":       string(ev.Kind),
	}
	if ev.EntityID != "" {
		tags["entity_id"] = ev.EntityID
	}

	fields := map[string]any{"count": 1}
	if ev.State != "" {
		fields["state"] = ev.State
	}
	if b, ok := ev.Attributes[automation.AttrBrightness]; ok {
		fields["brightness"] = b
	}

	ts := ev.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	t.writer.WritePointWithTime(MeasurementDoorEvent, tags, fields, ts)
}
