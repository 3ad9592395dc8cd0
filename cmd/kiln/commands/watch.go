package commands

import (
	"io/fs"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// debounceWindow batches editor save bursts into one redeploy.
const debounceWindow = 750 * time.Millisecond

func newWatchCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Redeploy on every source tree change",
		Long: `Development loop: watch the source tree and run a standard deploy on
every change. Changes arriving in quick succession are batched into a
single redeploy.

While watching, Prometheus metrics (deploy counts by final state, smoke
test failures, synced files) are served on the configured metrics address
when metrics are enabled in kiln.yaml.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			app, cleanup, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			watcher, err := fsnotify.NewWatcher()
			if err != nil {
				return err
			}
			defer watcher.Close()

			if err := watchTree(watcher, app.cfg.SourceDir()); err != nil {
				return err
			}

			if app.cfg.Metrics.Enabled {
				go func() {
					log.Info().Str("listen", app.cfg.Metrics.Listen).Msg("Serving metrics")
					if err := app.metrics.Serve(ctx, app.cfg.Metrics.Listen); err != nil {
						log.Error().Err(err).Msg("Metrics server stopped")
					}
				}()
			}

			log.Info().Str("source", app.cfg.SourceDir()).Msg("Watching for changes")

			debounce := time.NewTimer(0)
			if !debounce.Stop() {
				<-debounce.C
			}

			for {
				select {
				case <-ctx.Done():
					return nil
				case event, ok := <-watcher.Events:
					if !ok {
						return nil
					}
					// New directories need their own watch.
					if event.Has(fsnotify.Create) {
						_ = watchTree(watcher, event.Name)
					}
					log.Debug().Str("path", event.Name).Str("op", event.Op.String()).Msg("Source changed")
					debounce.Reset(debounceWindow)
				case err, ok := <-watcher.Errors:
					if !ok {
						return nil
					}
					log.Warn().Err(err).Msg("Watcher error")
				case <-debounce.C:
					if res, err := app.orch.Deploy(ctx); err != nil {
						log.Error().Err(err).Str("state", string(res.State)).Msg("Redeploy failed")
					}
				}
			}
		},
	}
	return cmd
}

// watchTree registers root and every directory under it with the watcher.
// Non-directories are ignored.
func watchTree(watcher *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			return watcher.Add(path)
		}
		return nil
	})
}
