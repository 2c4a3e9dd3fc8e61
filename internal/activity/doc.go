// Package activity records what door automations did.
//
// Events are appended to the SQLite activity_log table for local audit
// and, when InfluxDB is enabled, written as door_event points. The log
// is write-only from the automation's point of view: nothing read back
// from it ever feeds into door state.
//
// Usage:
//
//	repo := activity.NewSQLiteRepository(db.DB)
//	rec := activity.NewMulti(
//	    activity.NewRecorder(repo, logger),
//	    activity.NewTelemetry(influx),
//	)
package activity
