package engine

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/eric2788/fileconv/internal/modules/config"
	"github.com/pkg/errors"
	"go.uber.org/fx"
)

func provider(lc fx.Lifecycle, cfg *config.Config) *Loader {
	resolver := NewResolver(cfg.FFmpegPath, cfg.FFmpegDownloadURL, filepath.Join(cfg.WorkDir, "bin"))

	loader := NewLoader(func(ctx context.Context) (Handle, error) {
		ctx, cancel := context.WithTimeout(ctx, cfg.EngineLoadTimeout)
		defer cancel()

		bin, err := resolver.Resolve(ctx)
		if err != nil {
			return nil, err
		}
		if err := os.MkdirAll(cfg.WorkDir, 0755); err != nil {
			return nil, errors.Wrap(err, "create work dir")
		}
		dir, err := os.MkdirTemp(cfg.WorkDir, "engine-*")
		if err != nil {
			return nil, errors.Wrap(err, "create engine workspace")
		}
		return NewFFmpeg(bin, dir)
	})

	ctx, cancel := context.WithCancel(context.Background())

	lc.Append(fx.StartStopHook(
		func() {
			// load in the background so the app serves requests while the engine initializes
			go func() {
				if _, err := loader.Load(ctx); err != nil {
					logger.Errorf("failed to load engine: %v", err)
					return
				}
				logger.Infof("engine loaded in %v", loader.loadedIn)
			}()
		},
		func(stopCtx context.Context) error {
			cancel()
			handle, err := loader.Wait(stopCtx)
			if err != nil {
				return nil
			}
			if closer, ok := handle.(io.Closer); ok {
				return closer.Close()
			}
			return nil
		},
	))

	return loader
}

var Module = fx.Module("engine", fx.Provide(provider))
