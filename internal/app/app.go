package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/samvad-hq/tvapi/internal/config"
	"github.com/samvad-hq/tvapi/internal/devserver"
	"github.com/samvad-hq/tvapi/internal/inspect"
	"github.com/samvad-hq/tvapi/internal/logger"
	"github.com/samvad-hq/tvapi/pkg/apiclient"
	"github.com/samvad-hq/tvapi/pkg/endpoints"
	"github.com/samvad-hq/tvapi/pkg/httpclient"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// App wires the API client, endpoint catalog and dev server behind the CLI commands.
type App struct {
	cfg      *config.Config
	log      logger.Logger
	catalog  endpoints.Catalog
	client   *apiclient.Service
	registry *prometheus.Registry
	out      io.Writer
}

// Option customizes App construction.
type Option func(*appOptions)

type appOptions struct {
	out        io.Writer
	httpClient httpclient.Client
}

// WithOutput redirects command output (stdout by default).
func WithOutput(w io.Writer) Option {
	return func(o *appOptions) { o.out = w }
}

// WithHTTPClient injects the transport used by the API client.
func WithHTTPClient(c httpclient.Client) Option {
	return func(o *appOptions) { o.httpClient = c }
}

// New builds the runtime from config.
func New(cfg *config.Config, log logger.Logger, opts ...Option) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if log == nil {
		log = logger.NopLogger{}
	}

	o := appOptions{out: os.Stdout}
	for _, opt := range opts {
		opt(&o)
	}

	catalog, err := endpoints.LoadOrDefault(cfg.EndpointsFile)
	if err != nil {
		return nil, fmt.Errorf("load endpoints catalog: %w", err)
	}

	clientOpts := []apiclient.Option{
		apiclient.WithLogger(log),
		apiclient.WithHTTPClient(o.httpClient),
	}

	var registry *prometheus.Registry
	if cfg.MetricsEnabled {
		registry = prometheus.NewRegistry()
		clientOpts = append(clientOpts, apiclient.WithMetrics(apiclient.NewMetrics(registry)))
	}

	a := &App{
		cfg:      cfg,
		log:      log,
		catalog:  catalog,
		client:   apiclient.New(cfg.APIBaseURL, clientOpts...),
		registry: registry,
		out:      o.out,
	}

	log.DebugObj("app initialized", "app_state", map[string]any{
		"base_url":        cfg.APIBaseURL,
		"endpoints_file":  cfg.EndpointsFile,
		"metrics_enabled": cfg.MetricsEnabled,
	})
	return a, nil
}

// Call runs one Request-family operation. data, when non-empty, must be JSON text.
func (a *App) Call(ctx context.Context, method, target, data string) error {
	endpoint, err := a.catalog.Resolve(target)
	if err != nil {
		return err
	}

	payload, err := decodePayload(data)
	if err != nil {
		return err
	}

	var resp *apiclient.Response
	switch strings.ToUpper(method) {
	case "GET":
		resp, err = a.client.Get(ctx, endpoint, apiclient.RequestOptions{})
	case "DELETE":
		resp, err = a.client.Delete(ctx, endpoint, apiclient.RequestOptions{})
	case "POST":
		resp, err = a.client.Post(ctx, endpoint, payload, apiclient.RequestOptions{})
	case "PUT":
		resp, err = a.client.Put(ctx, endpoint, payload, apiclient.RequestOptions{})
	default:
		return fmt.Errorf("unsupported method %q", method)
	}
	if err != nil {
		return err
	}
	return a.writeValue(resp.Value())
}

// FetchJSON fetches an absolute URL or catalog name and prints the parsed JSON.
func (a *App) FetchJSON(ctx context.Context, target string) error {
	url, err := a.catalog.Resolve(target)
	if err != nil {
		return err
	}
	v, err := a.client.FetchJSON(ctx, url)
	if err != nil {
		return err
	}
	return a.writeValue(v)
}

// TextOptions selects what FetchText prints.
type TextOptions struct {
	Selector string
	Meta     bool
}

// FetchText fetches an absolute URL or catalog name and prints the text body,
// a CSS selection of it, or its page metadata.
func (a *App) FetchText(ctx context.Context, target string, opts TextOptions) error {
	url, err := a.catalog.Resolve(target)
	if err != nil {
		return err
	}
	text, err := a.client.FetchText(ctx, url)
	if err != nil {
		return err
	}

	switch {
	case opts.Meta:
		meta, err := inspect.Meta([]byte(text))
		if err != nil {
			return err
		}
		return a.writeValue(meta)
	case strings.TrimSpace(opts.Selector) != "":
		matches, err := inspect.Select([]byte(text), opts.Selector)
		if err != nil {
			return err
		}
		return a.writeValue(matches)
	default:
		return a.writeValue(text)
	}
}

// Endpoints prints the resolvable catalog names and their URLs.
func (a *App) Endpoints() error {
	for _, name := range a.catalog.Names() {
		url, err := a.catalog.Resolve(name)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(a.out, "%-8s %s\n", name, url); err != nil {
			return err
		}
	}
	return nil
}

// Serve runs the dev server until ctx is cancelled.
func (a *App) Serve(ctx context.Context) error {
	opts := devserver.Options{
		Addr:        a.cfg.DevServerAddr(),
		StaticDir:   a.cfg.StaticDir,
		BuildTarget: a.cfg.BuildTarget,
	}
	if a.registry != nil {
		opts.Gatherer = a.registry
	}

	srv, err := devserver.New(opts, a.log)
	if err != nil {
		return fmt.Errorf("init dev server: %w", err)
	}
	return srv.Run(ctx)
}

func decodePayload(data string) (any, error) {
	if strings.TrimSpace(data) == "" {
		return nil, nil
	}
	var v any
	if err := json.Unmarshal([]byte(data), &v); err != nil {
		return nil, fmt.Errorf("decode request data: %w", err)
	}
	return v, nil
}

// writeValue prints strings raw and everything else as indented JSON.
func (a *App) writeValue(v any) error {
	if s, ok := v.(string); ok {
		_, err := fmt.Fprintln(a.out, s)
		return err
	}
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	_, err = fmt.Fprintln(a.out, string(out))
	return err
}
