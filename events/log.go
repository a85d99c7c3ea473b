// File: events/log.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package events

import (
	"github.com/rs/zerolog"

	"github.com/momentics/hioload-jobs/api"
)

// LogHandler writes every event to l: stalls at warn, job failures at info.
func LogHandler(l zerolog.Logger) Handler {
	return func(ev api.Event) {
		switch e := ev.(type) {
		case api.StallDetected:
			l.Warn().
				Int("worker_id", e.WorkerID).
				Str("group", e.Group).
				Int64("duration_ms", e.DurationMS()).
				Time("at", e.At).
				Msg("stall detected")
		case api.JobFailed:
			l.Info().
				Uint64("job_id", e.JobID).
				Str("group", e.Group).
				Int("worker_id", e.WorkerID).
				Err(e.Err).
				Msg("job failed")
		default:
			l.Debug().Str("kind", ev.Kind()).Msg("event")
		}
	}
}
