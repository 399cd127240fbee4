package wg750

import (
	"os"

	"github.com/charmbracelet/log"
)

// Returns a prefixed logger. If sink is nil, a new logger writing to
// stderr is created, otherwise the sink is reused with the prefix applied
// so all components of one hub share a single output.
func newLogger(prefix string, sink *log.Logger) *log.Logger {
	if sink != nil {
		return sink.WithPrefix(prefix)
	}

	return log.NewWithOptions(os.Stderr, log.Options{
		Prefix: prefix,
	})
}
