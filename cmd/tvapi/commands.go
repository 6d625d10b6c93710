package main

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/samvad-hq/tvapi/internal/app"
	"github.com/samvad-hq/tvapi/internal/config"
	"github.com/samvad-hq/tvapi/internal/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

type rootOptions struct {
	v          *viper.Viper
	configFile string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{v: viper.New()}

	root := &cobra.Command{
		Use:           "tvapi",
		Short:         "HTTP client and dev server for the Tizen TV app",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.configFile, "config", "", "config file (yaml, json or toml)")
	flags.String("base-url", "", "base URL prepended to request endpoints")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
	flags.String("endpoints-file", "", "YAML/JSON file overriding the sample endpoint catalog")
	_ = opts.v.BindPFlag("api_base_url", flags.Lookup("base-url"))
	_ = opts.v.BindPFlag("log_level", flags.Lookup("log-level"))
	_ = opts.v.BindPFlag("endpoints_file", flags.Lookup("endpoints-file"))

	root.AddCommand(
		newMethodCmd(opts, http.MethodGet, false),
		newMethodCmd(opts, http.MethodDelete, false),
		newMethodCmd(opts, http.MethodPost, true),
		newMethodCmd(opts, http.MethodPut, true),
		newFetchJSONCmd(opts),
		newFetchTextCmd(opts),
		newEndpointsCmd(opts),
		newServeCmd(opts),
	)
	return root
}

// withApp loads config, initializes logging and hands a ready App to fn.
func withApp(opts *rootOptions, fn func(*app.App) error) error {
	cfg, err := config.Load(opts.v, opts.configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := logger.Init(cfg, nil)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Close()
	logger.InfoObj("tvapi configured", "config", cfg)

	a, err := app.New(cfg, log)
	if err != nil {
		logger.ErrorObj("failed to initialize app", "error", err)
		return err
	}
	return fn(a)
}

func newMethodCmd(opts *rootOptions, method string, withData bool) *cobra.Command {
	use := strings.ToLower(method) + " <endpoint>"
	argsRule := cobra.ExactArgs(1)
	if withData {
		use = strings.ToLower(method) + " <endpoint> [json]"
		argsRule = cobra.RangeArgs(1, 2)
	}

	return &cobra.Command{
		Use:   use,
		Short: fmt.Sprintf("Send a %s request to base-url+endpoint", method),
		Args:  argsRule,
		RunE: func(cmd *cobra.Command, args []string) error {
			var data string
			if len(args) > 1 {
				data = args[1]
			}
			return withApp(opts, func(a *app.App) error {
				return a.Call(cmd.Context(), method, args[0], data)
			})
		},
	}
}

func newFetchJSONCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "fetch-json <url|name>",
		Short: "Fetch an absolute URL and print it as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts, func(a *app.App) error {
				return a.FetchJSON(cmd.Context(), args[0])
			})
		},
	}
}

func newFetchTextCmd(opts *rootOptions) *cobra.Command {
	var textOpts app.TextOptions
	cmd := &cobra.Command{
		Use:   "fetch-text <url|name>",
		Short: "Fetch an absolute URL and print its body as text",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts, func(a *app.App) error {
				return a.FetchText(cmd.Context(), args[0], textOpts)
			})
		},
	}
	cmd.Flags().StringVar(&textOpts.Selector, "select", "", "print the text of nodes matching this CSS selector")
	cmd.Flags().BoolVar(&textOpts.Meta, "meta", false, "print page title, description and og:image")
	return cmd
}

func newEndpointsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "endpoints",
		Short: "List the sample endpoint catalog",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			return withApp(opts, func(a *app.App) error { return a.Endpoints() })
		},
	}
}

func newServeCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the compiled TV app on the dev server address",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(opts, func(a *app.App) error { return a.Serve(cmd.Context()) })
		},
	}
	cmd.Flags().String("host", "0.0.0.0", "bind host")
	cmd.Flags().Int("port", 3000, "bind port")
	cmd.Flags().String("static-dir", "./build", "directory holding the compiled app")
	_ = opts.v.BindPFlag("dev_server_host", cmd.Flags().Lookup("host"))
	_ = opts.v.BindPFlag("dev_server_port", cmd.Flags().Lookup("port"))
	_ = opts.v.BindPFlag("static_dir", cmd.Flags().Lookup("static-dir"))
	return cmd
}
