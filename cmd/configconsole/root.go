package main

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sardine-ai/configconsole/config"
	"github.com/sardine-ai/configconsole/source"
)

// options holds the global flags and the configuration they select.
type options struct {
	configPath string
	repoName   string
	logLevel   string

	cfg *config.Config
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	rootCmd := &cobra.Command{
		Use:           "configconsole",
		Short:         "Browse and edit configuration values",
		Long:          `configconsole manages template/service scoped configuration values stored in files, git, S3, GCS, SQLite or a remote configconsole server.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.load()
		},
	}
	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to the configuration file")
	rootCmd.PersistentFlags().StringVar(&opts.repoName, "repo", "", "repository to work on (default: the first configured)")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level, overrides the configuration file")

	rootCmd.AddCommand(
		newServeCmd(opts),
		newTemplatesCmd(opts),
		newTreeCmd(opts),
		newSetCmd(opts),
		newCreateCmd(opts),
		newDeleteCmd(opts),
		newResolveCmd(opts),
	)
	return rootCmd
}

func (o *options) load() error {
	cfg := config.Default()
	if o.configPath != "" {
		var err error
		if cfg, err = config.Load(o.configPath); err != nil {
			return err
		}
	}
	if o.logLevel != "" {
		cfg.LogLevel = o.logLevel
	}
	if err := cfg.ConfigureLogging(); err != nil {
		return err
	}
	o.cfg = cfg
	return nil
}

// openStore opens and loads the selected repository. The returned function
// releases it.
func (o *options) openStore(ctx context.Context) (source.Store, func(), error) {
	if len(o.cfg.Repositories) == 0 {
		return nil, nil, errors.New("no repository configured")
	}
	rc := o.cfg.Repositories[0]
	if o.repoName != "" {
		var err error
		if rc, err = o.cfg.Repository(o.repoName); err != nil {
			return nil, nil, err
		}
	}

	store, err := rc.Open(ctx)
	if err != nil {
		return nil, nil, err
	}
	release := func() {
		if closer, ok := store.(interface{ Close() error }); ok {
			if err := closer.Close(); err != nil {
				logrus.WithError(err).Error("error closing repository")
			}
		}
	}
	if repo, ok := store.(source.Repository); ok {
		if err := repo.Refresh(); err != nil {
			release()
			return nil, nil, err
		}
	}
	return store, release, nil
}
