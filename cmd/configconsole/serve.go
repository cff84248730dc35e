package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sardine-ai/configconsole/server"
	"github.com/sardine-ai/configconsole/source"
)

func newServeCmd(opts *options) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the configured repositories over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr != "" {
				opts.cfg.Server.Addr = addr
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, opts)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address, overrides the configuration file")
	return cmd
}

func serve(ctx context.Context, opts *options) error {
	repos, err := opts.cfg.OpenRepositories(ctx)
	if err != nil {
		return err
	}
	if len(repos) == 0 {
		return errors.New("no repository to serve")
	}

	srv := server.NewServer(ctx, repos, opts.cfg.Server.RefreshInterval)
	srv.AuthKey = opts.cfg.Server.AuthKey
	watchFiles(ctx, opts, repos)

	errs := make(chan error, 1)
	go func() {
		errs <- srv.Start(opts.cfg.Server.Addr)
	}()

	select {
	case err := <-errs:
		srv.Stop()
		return err
	case <-ctx.Done():
		logrus.Info("shutting down")
		return srv.Shutdown()
	}
}

// watchFiles refreshes file repositories declared with watch as soon as
// their document changes on disk.
func watchFiles(ctx context.Context, opts *options, repos []source.Repository) {
	for _, repo := range repos {
		rc, err := opts.cfg.Repository(repo.GetName())
		if err != nil || !rc.Watch {
			continue
		}
		doc, ok := repo.(*source.DocumentStore)
		if !ok {
			continue
		}
		backend, ok := doc.Backend.(*source.FileBackend)
		if !ok {
			continue
		}
		repo := repo
		err = backend.Watch(ctx, func() {
			if err := repo.Refresh(); err != nil {
				logrus.WithError(err).WithField("repository", repo.GetName()).Error("error refreshing repository")
			}
		})
		if err != nil {
			logrus.WithError(err).WithField("repository", repo.GetName()).Error("error watching repository")
		}
	}
}
