package session

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/vanderheijden86/beadsync/pkg/model"
)

// LoadFunc reads a complete issue set from the project store.
type LoadFunc func() ([]model.Issue, error)

// Source feeds events into a session until ctx is done. A source returns nil
// on cancellation.
type Source func(ctx context.Context, s *Session) error

// WatchSource loads once immediately and again on every notification from
// changes, submitting each result as a FullLoad. Load failures are logged and
// the previous table is kept.
func WatchSource(name string, changes <-chan struct{}, load LoadFunc) Source {
	return func(ctx context.Context, s *Session) error {
		reload := func() error {
			issues, err := load()
			if err != nil {
				s.logEvent(logrus.WarnLevel, "reload_failed", logrus.Fields{
					"source": name,
					"error":  err.Error(),
				})
				return nil
			}
			return s.Submit(ctx, FullLoad{Issues: issues, Source: name})
		}

		if err := reload(); err != nil {
			return sourceErr(ctx, err)
		}
		for {
			select {
			case <-ctx.Done():
				return nil
			case _, ok := <-changes:
				if !ok {
					return nil
				}
				if err := reload(); err != nil {
					return sourceErr(ctx, err)
				}
			}
		}
	}
}

// sourceErr turns the shutdown errors a source sees into a clean return.
func sourceErr(ctx context.Context, err error) error {
	if errors.Is(err, ErrClosed) || ctx.Err() != nil {
		return nil
	}
	return err
}

// RunSources runs the loop and every source together. When the loop stops,
// whether through Close or ctx, the sources are cancelled. The first source
// error cancels everything and is returned.
func (s *Session) RunSources(ctx context.Context, sources ...Source) error {
	g, gctx := errgroup.WithContext(ctx)
	srcCtx, cancel := context.WithCancel(gctx)

	g.Go(func() error {
		defer cancel()
		err := s.Run(gctx)
		if errors.Is(err, context.Canceled) && ctx.Err() == nil {
			// Cancelled by a failing source; report that error instead.
			return nil
		}
		return err
	})
	for _, src := range sources {
		g.Go(func() error {
			return src(srcCtx, s)
		})
	}

	err := g.Wait()
	cancel()
	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		return nil
	}
	return err
}
