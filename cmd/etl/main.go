// Command etl loads survey spreadsheets into the raw/core store and runs the
// analytics reports over them.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/samvalverde/PAAA/internal/config"
	"github.com/samvalverde/PAAA/internal/datasource/httpds"
	"github.com/samvalverde/PAAA/internal/logging"
	"github.com/samvalverde/PAAA/internal/metrics"
	"github.com/samvalverde/PAAA/internal/metrics/datadog"
	"github.com/samvalverde/PAAA/internal/metrics/prompush"
	"github.com/samvalverde/PAAA/internal/objectstore"
	"github.com/samvalverde/PAAA/internal/reader"
	"github.com/samvalverde/PAAA/internal/storage"

	// register all backends with the storage factory.
	// config specifies which to use but we need to build in support for all of them.
	_ "github.com/samvalverde/PAAA/internal/storage/all"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run executes the CLI and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	a := &app{}
	root := newRootCmd(a)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	if cerr := a.close(); cerr != nil && err == nil {
		err = cerr
	}
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "etl",
		Short:         "Survey ETL and analytics",
		Long:          "Loads graduate and faculty survey files into the raw/core store and computes analytics over the core tables.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd)
		},
	}
	root.PersistentFlags().StringVar(&a.cfgPath, "config", "", "path to the YAML config (default $"+config.ConfigPathEnvVar+" or ./paaa.yaml)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "override log.level")
	root.PersistentFlags().StringVar(&a.logFormat, "log-format", "", "override log.format (json, console)")

	root.AddCommand(
		newLoadCmd(a),
		newLoadObjectCmd(a),
		newUploadCmd(a),
		newAnalyzeCmd(a),
		newNarrateCmd(a),
		newProbeCmd(a),
		newConfigCmd(a),
	)
	return root
}

// app carries the loaded configuration and the lazily opened collaborators
// shared by the subcommands.
type app struct {
	cfgPath   string
	logLevel  string
	logFormat string

	cfg     config.Config
	engine  *storage.Engine
	objects *objectstore.Store
	closers []func() error
}

func (a *app) init(cmd *cobra.Command) error {
	cfg, err := config.Load(a.cfgPath)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	if a.logFormat != "" {
		cfg.Log.Format = a.logFormat
	}
	a.cfg = cfg

	logging.Init(logging.Config{
		Level:     cfg.Log.Level,
		Format:    cfg.Log.Format,
		Caller:    cfg.Log.Caller,
		Timestamp: true,
		Output:    cmd.ErrOrStderr(),
	})
	a.initMetrics()
	return nil
}

// initMetrics installs the configured backend. A backend that fails to
// initialize leaves metrics disabled.
func (a *app) initMetrics() {
	m := a.cfg.Metrics
	switch m.Backend {
	case "pushgateway":
		b, err := prompush.NewBackend(m.Job, m.PushgatewayURL)
		if err != nil {
			logging.Warn().Err(err).Msg("metrics: failed to init prom push backend; using nop")
			return
		}
		metrics.SetBackend(b)
	case "datadog":
		b, err := datadog.NewBackend(datadog.Config{Addr: m.DatadogAddr, Namespace: "paaa."})
		if err != nil {
			logging.Warn().Err(err).Msg("metrics: failed to init datadog backend; using nop")
			return
		}
		metrics.SetBackend(b)
		a.closers = append(a.closers, b.Close)
	case "", "none":
		return
	default:
		logging.Warn().Str("backend", m.Backend).Msg("metrics: unknown backend; metrics disabled")
		return
	}
	logging.Debug().Str("backend", m.Backend).Str("job", m.Job).Msg("metrics: enabled")
}

// close flushes metrics and releases every opened collaborator.
func (a *app) close() error {
	var errs []error
	if err := metrics.Flush(); err != nil {
		logging.Warn().Err(err).Msg("metrics: flush error")
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// checkConfig fails on configuration errors and logs warnings.
func (a *app) checkConfig() error {
	issues := config.Validate(a.cfg)
	var msgs []string
	for _, iss := range issues {
		if iss.Severity == config.SeverityError {
			msgs = append(msgs, iss.Error())
			continue
		}
		logging.Warn().Str("path", iss.Path).Msg(iss.Message)
	}
	if len(msgs) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
	}
	return nil
}

func (a *app) store(ctx context.Context) (*storage.Engine, error) {
	if a.engine != nil {
		return a.engine, nil
	}
	if err := a.checkConfig(); err != nil {
		return nil, err
	}
	s := a.cfg.Store
	e, err := storage.Open(ctx, storage.Config{Kind: s.Kind, DSN: s.DSN}, storage.EngineConfig{
		BatchSize:    s.BatchSize,
		EvolveSchema: s.EvolveSchema,
	})
	if err != nil {
		return nil, err
	}
	a.engine = e
	a.closers = append(a.closers, e.Close)
	return e, nil
}

func (a *app) objectStore(ctx context.Context) (*objectstore.Store, error) {
	if a.objects != nil {
		return a.objects, nil
	}
	o := a.cfg.ObjectStore
	s, err := objectstore.New(ctx, objectstore.Config{
		Endpoint:  o.Endpoint,
		AccessKey: o.AccessKey,
		SecretKey: o.SecretKey,
		Secure:    o.Secure,
		Bucket:    o.Bucket,
		Region:    o.Region,
	})
	if err != nil {
		return nil, err
	}
	a.objects = s
	return s, nil
}

// reader builds a Reader; the object store is only configured when one of
// locators needs it.
func (a *app) reader(ctx context.Context, locators ...string) (*reader.Reader, error) {
	opts := []reader.Option{reader.WithHTTP(httpds.NewClient(httpds.Config{}))}
	for _, l := range locators {
		if strings.HasPrefix(l, "s3://") || strings.HasPrefix(l, "minio://") {
			s, err := a.objectStore(ctx)
			if err != nil {
				return nil, err
			}
			opts = append(opts, reader.WithObjectStore(s))
			break
		}
	}
	return reader.New(opts...), nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
