package ingest

import (
	"context"

	"fintrack/internal/core"
	"fintrack/internal/log"
)

// LogPresenter announces candidates in the log. The HTTP API lists them
// for review; nothing else is pushed.
func LogPresenter(logger *log.Logger) Presenter {
	logger = logger.WithComponent(log.ComponentIngest)
	return PresenterFunc(func(ctx context.Context, c core.CandidateTransaction) error {
		logger.InfoContext(ctx, "Candidate transaction presented",
			log.FieldCandidateID, c.ID,
			log.FieldTxKind, string(c.Kind),
			log.FieldAmount, c.Amount.String(),
			log.FieldDate, c.Date.String())
		return nil
	})
}

// MultiPresenter presents to each presenter in turn and returns the first
// error after trying all of them.
func MultiPresenter(presenters ...Presenter) Presenter {
	return PresenterFunc(func(ctx context.Context, c core.CandidateTransaction) error {
		var first error
		for _, p := range presenters {
			if p == nil {
				continue
			}
			if err := p.Present(ctx, c); err != nil && first == nil {
				first = err
			}
		}
		return first
	})
}
