package indexer

import (
	"context"
	"errors"
	"time"

	"github.com/imyousuf/codegraph/internal/watcher"
)

// Watch builds root once, then rebuilds it after every debounced batch of
// changes until ctx is cancelled. Each successful build is handed to
// onBuild; a failed rebuild is logged and the previous graph stays current.
func (idx *Indexer) Watch(ctx context.Context, root string, debounce time.Duration, onBuild func(*Result) error) error {
	res, err := idx.Build(ctx, root)
	if err != nil {
		return err
	}
	if err := onBuild(res); err != nil {
		return err
	}

	w, err := watcher.New(watcher.Config{
		Root:     root,
		Include:  idx.opts.Include,
		Exclude:  idx.opts.Exclude,
		Debounce: debounce,
		Logger:   idx.log,
	})
	if err != nil {
		return err
	}
	err = w.Run(ctx, func(ctx context.Context, batch []watcher.Event) error {
		idx.log.Info("change detected", "changes", len(batch), "first", batch[0].Path)
		res, err := idx.Build(ctx, root)
		if err != nil {
			return err
		}
		return onBuild(res)
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
