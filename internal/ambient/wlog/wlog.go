// Package wlog builds the logrus.Entry instances threaded explicitly
// through every component constructor, generalizing the teacher's
// enableDebugSpew/Debugf flag-gated logger to a structured, leveled one.
// Nothing here is a package-level singleton consulted deep in a call
// stack: New is called once at invocation startup and the resulting entry
// is passed down.
package wlog

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// Options configures the root logger.
type Options struct {
	// Debug enables Debug-level output; otherwise the floor is Info.
	Debug bool
	// Output overrides the log destination; os.Stderr when nil.
	Output io.Writer
}

// New builds a root *logrus.Entry per Options. Repair and resolve steps
// should log at Debug; planner decisions (graft/skip/reuse) at Info;
// subprocess failures log captured stderr at Error before the structured
// error is returned to the caller.
func New(opts Options) *logrus.Entry {
	l := logrus.New()
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	l.SetOutput(out)

	level := logrus.InfoLevel
	if opts.Debug {
		level = logrus.DebugLevel
	}
	l.SetLevel(level)

	return logrus.NewEntry(l)
}
