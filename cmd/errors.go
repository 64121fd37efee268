package cmd

import (
	"log/slog"

	"github.com/marcus/mb/internal/output"
	"github.com/marcus/mb/internal/syncer"
)

// reportedError marks an error whose message was already shown, so
// Execute only sets the exit code.
type reportedError struct {
	err error
}

func (e reportedError) Error() string { return e.err.Error() }
func (e reportedError) Unwrap() error { return e.err }

// report logs err in full and prints its user-facing message. slug names
// the project involved, if any.
func report(err error, slug string) error {
	if err == nil {
		return nil
	}
	slog.Error("command failed", "slug", slug, "kind", syncer.Classify(err), "err", err)
	output.Error("%s", syncer.Describe(err, slug))
	return reportedError{err}
}
