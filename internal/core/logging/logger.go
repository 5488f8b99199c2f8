// Package logging holds herald's zerolog conventions: one process-wide file
// logger, per-component children tagged "cmp", and realtime session fields
// carried on the context.
package logging

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Install makes base the process-wide logger, with session_id and transport
// copied from event contexts.
func Install(base zerolog.Logger) {
	log.Logger = base.Hook(ContextHook{})
}

// Component returns a child of the process-wide logger tagged cmp=name. The
// parent is captured at call time, so components built before Install keep
// the default logger.
func Component(name string) zerolog.Logger {
	return log.Logger.With().Str("cmp", name).Logger()
}
