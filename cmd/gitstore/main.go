package main

import (
	"fmt"
	"os"

	"github.com/gomantics/gitstore/api"
	"github.com/gomantics/gitstore/api/repo"
	"github.com/gomantics/gitstore/config"
	"github.com/gomantics/gitstore/domains/downloads"
	"github.com/gomantics/gitstore/domains/history"
	"github.com/gomantics/gitstore/domains/maintenance"
	"github.com/gomantics/gitstore/domains/repos"
	"github.com/gomantics/gitstore/domains/search"
	"github.com/gomantics/gitstore/domains/uploads"
	"github.com/gomantics/gitstore/pkg/logger"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

var configPath string

func main() {
	root := &cobra.Command{
		Use:   "gitstore",
		Short: "Version-controlled file store over HTTP",
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to a TOML config file")

	root.AddCommand(newServeCmd())
	root.AddCommand(newVersionCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("gitstore 0.1.0-dev")
		},
	}
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.Load(configPath); err != nil {
				return err
			}

			fx.New(
				fx.Provide(
					logger.New,
					newRepoManager,
					newResolver,
					newUploadManager,
					newStreamer,
					history.NewReader,
					newSearchEngine,
				),
				fx.Decorate(func(l *zap.Logger) *zap.Logger {
					return l.With(zap.String("service", "gitstore"))
				}),
				fx.Invoke(
					api.Run,
					maintenance.StartWorker,
				),
				fx.WithLogger(func(l *zap.Logger) fxevent.Logger {
					return &fxevent.ZapLogger{
						Logger: l,
					}
				}),
			).Run()
			return nil
		},
	}
}

func defaultAuthor() repos.Author {
	return repos.Author{
		Name:  config.Storage.DefaultAuthorName(),
		Email: config.Storage.DefaultAuthorEmail(),
	}
}

func newRepoManager(l *zap.Logger) *repos.Manager {
	return repos.NewManager(l, repos.Options{
		LfsEnabled:    config.Storage.LfsEnabled(),
		LfsPatterns:   config.Storage.LfsPatterns(),
		DefaultAuthor: defaultAuthor(),
	})
}

func newResolver(l *zap.Logger, manager *repos.Manager) *repo.Resolver {
	mode, ok := repos.ParseMode(config.Storage.DefaultMode())
	if !ok {
		mode = repos.ModeWorktree
	}
	return repo.NewResolver(l, manager, config.Storage.RootDir(), mode, defaultAuthor())
}

func newUploadManager(l *zap.Logger) *uploads.Manager {
	return uploads.NewManager(l, uploads.Options{
		Dir:               config.Uploads.Dir(),
		ChunkSize:         config.Uploads.ChunkSizeBytes(),
		MaxChunkSize:      config.Uploads.MaxChunkSizeBytes(),
		MaxFileSize:       config.Uploads.MaxFileSizeBytes(),
		SessionTTL:        config.Uploads.SessionTTL(),
		AllowedExtensions: config.Uploads.AllowedExtensions(),
	})
}

func newStreamer(l *zap.Logger) *downloads.Streamer {
	return downloads.NewStreamer(l, downloads.Options{
		CacheDir: config.Downloads.CacheDir(),
		CacheTTL: config.Downloads.CacheTTL(),
	})
}

func newSearchEngine(l *zap.Logger) *search.Engine {
	return search.NewEngine(l, search.Options{
		MaxFiles:        config.Search.MaxFiles(),
		MaxLinesPerFile: config.Search.MaxLinesPerFile(),
		MaxLineLength:   config.Search.MaxLineLength(),
	})
}
