package vmthread

import (
	"time"

	"github.com/joeycumines/go-catrate"
	"github.com/joeycumines/logiface"
)

// defaultWarningRates limits repeated diagnostics, per category.
var defaultWarningRates = map[time.Duration]int{
	time.Second: 5,
	time.Minute: 60,
}

// diagnostics wraps the logger with per-category rate limiting, used for
// warnings that may be triggered repeatedly by misbehaving callers, such as
// ownership violations on a hot monitor.
type diagnostics struct {
	logger  *logiface.Logger[logiface.Event]
	limiter *catrate.Limiter
}

type diagnosticCategory struct {
	kind string
	key  any
}

// warning returns a warning builder, or nil if disabled or if the category
// is currently rate limited.
func (x *diagnostics) warning(kind string, key any) *logiface.Builder[logiface.Event] {
	if x == nil {
		return nil
	}
	b := x.logger.Warning()
	if !b.Enabled() {
		return nil
	}
	if x.limiter != nil {
		if _, ok := x.limiter.Allow(diagnosticCategory{kind: kind, key: key}); !ok {
			b.Release()
			return nil
		}
	}
	return b.Str(`category`, kind)
}

// threadLogger returns the logger for a thread, carrying its identity.
func (x *Runtime) threadLogger(t *Thread) *logiface.Logger[logiface.Event] {
	return x.logger.Clone().
		Int64(`thread`, t.id).
		Str(`thread_name`, t.name).
		Logger()
}
