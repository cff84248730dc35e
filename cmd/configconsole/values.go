package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sardine-ai/configconsole/client"
	"github.com/sardine-ai/configconsole/configtree"
	"github.com/sardine-ai/configconsole/model"
)

func newTemplatesCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "templates",
		Short: "List the templates of the repository",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, release, err := opts.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer release()

			templates, err := store.Templates(cmd.Context())
			if err != nil {
				return err
			}
			for _, template := range templates {
				fmt.Fprintln(cmd.OutOrStdout(), template)
			}
			return nil
		},
	}
}

func newTreeCmd(opts *options) *cobra.Command {
	var query string
	cmd := &cobra.Command{
		Use:   "tree <template>",
		Short: "Show the config values of a template grouped by service",
		Long: `Show the config values of a template grouped by service.

VARIABLES are always listed. Without --query nothing else is shown; with
--query the values containing the query are hidden.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, release, err := opts.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer release()

			ui := console{out: cmd.OutOrStdout()}
			vm := configtree.New(store, ui, ui)
			vm.SetTemplate(args[0])
			if err := vm.SetSearchQuery(cmd.Context(), query); err != nil {
				return err
			}
			renderTree(cmd.OutOrStdout(), args[0], vm.Tree())
			return nil
		},
	}
	cmd.Flags().StringVarP(&query, "query", "q", "", "search query")
	return cmd
}

func newSetCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "set <template> <service> <key> <value>",
		Short: "Change the value of a key, creating it when missing",
		Long:  `Change the value of a key, creating it when missing. Use "" as service for template-global values.`,
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, release, err := opts.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer release()

			ui := console{out: cmd.OutOrStdout()}
			vm := configtree.New(store, ui, ui)
			vm.SetTemplate(args[0])
			if err := vm.Reload(cmd.Context()); err != nil {
				return err
			}
			cv := model.ConfigValue{Template: args[0], Service: args[1], Key: args[2]}
			return vm.SaveValue(cmd.Context(), cv, args[3])
		},
	}
}

func newCreateCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "create <template> <service> <key> <value>",
		Short: "Create a new key, failing if it already exists",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, release, err := opts.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer release()

			ui := console{out: cmd.OutOrStdout()}
			vm := configtree.New(store, ui, ui)
			vm.SetTemplate(args[0])
			return vm.CreateValue(cmd.Context(), model.ConfigValue{
				Template: args[0],
				Service:  args[1],
				Key:      args[2],
				Value:    args[3],
			})
		},
	}
}

func newDeleteCmd(opts *options) *cobra.Command {
	var service, key string
	cmd := &cobra.Command{
		Use:   "delete <template>",
		Short: "Delete a key, a service or a whole template",
		Long: `Delete config values.

With --key only that key is deleted, with --service only the values of that
service, otherwise every value of the template.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, release, err := opts.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer release()

			ui := console{out: cmd.OutOrStdout()}
			vm := configtree.New(store, ui, ui)
			vm.SetTemplate(args[0])

			switch {
			case key != "":
				cv := model.ConfigValue{Template: args[0], Service: service, Key: key}
				values, err := store.GetValues(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				for _, v := range values {
					if v.ID() == cv.ID() {
						cv.Value = v.Value
					}
				}
				return vm.DeleteNode(cmd.Context(), cv)
			case cmd.Flags().Changed("service"):
				return vm.DeleteService(cmd.Context(), service)
			default:
				return vm.DeleteTemplate(cmd.Context())
			}
		},
	}
	cmd.Flags().StringVar(&service, "service", "", "service to delete, or the service of --key")
	cmd.Flags().StringVar(&key, "key", "", "single key to delete")
	return cmd
}

func newResolveCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <template> [service]",
		Short: "Print the effective configuration of a service as YAML",
		Long: `Print the effective configuration of a service as YAML.

GLOBAL values are overridden by template values, template-global values by
service values, and VARIABLES are substituted.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, release, err := opts.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer release()

			var service string
			if len(args) == 2 {
				service = args[1]
			}
			values, err := client.Fetch(cmd.Context(), store, args[0], service)
			if err != nil {
				return err
			}
			out, err := yaml.Marshal(values)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
}
