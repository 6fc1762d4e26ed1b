package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bjaus/plugin"
	"github.com/bjaus/plugin/host"
	"github.com/bjaus/plugin/internal/account"
	"github.com/bjaus/plugin/internal/telemetry"
	"github.com/bjaus/plugin/manifest"
	"github.com/bjaus/plugin/metrics"
	"github.com/bjaus/plugin/store/sqlite"
)

// maxEventSize bounds one NDJSON line.
const maxEventSize = 4 << 20

// Summary counts the events processed by Run.
type Summary struct {
	Processed int
	Failed    int
}

// Run wires the store, registry, dispatcher, and host from cfg and feeds
// every line of the input to the host.
func Run(ctx context.Context, cfg Config, stdin io.Reader, stderr io.Writer) (Summary, error) {
	logger, err := newLogger(cfg, stderr)
	if err != nil {
		return Summary{}, err
	}

	shutdown, err := telemetry.Setup(ctx, cfg.Name, telemetry.Config{
		Endpoint: cfg.OTelEndpoint,
		Disabled: cfg.OTelDisabled,
	})
	if err != nil {
		return Summary{}, fmt.Errorf("setup telemetry: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(sctx); err != nil {
			logger.Warn("telemetry shutdown failed", slog.Any("error", err))
		}
	}()

	store, err := sqlite.Open(ctx, cfg.DBPath)
	if err != nil {
		return Summary{}, err
	}
	defer store.Close()

	if cfg.SeedPath != "" {
		n, err := seed(ctx, store, cfg.SeedPath)
		if err != nil {
			return Summary{}, err
		}
		logger.Info("seeded records", slog.Int("count", n), slog.String("path", cfg.SeedPath))
	}

	name, reg, err := registry(cfg)
	if err != nil {
		return Summary{}, err
	}

	promReg := prometheus.NewRegistry()
	promReg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector, err := metrics.New(promReg)
	if err != nil {
		return Summary{}, fmt.Errorf("register metrics: %w", err)
	}
	if cfg.MetricsAddr != "" {
		srv := serveMetrics(cfg.MetricsAddr, promReg, logger)
		defer srv.Close()
	}

	opts := append(collector.Options(),
		plugin.WithName(name),
		plugin.WithOnNoMatch(func(ctx context.Context, ev *plugin.Event) {
			logger.Debug("no handler registered",
				slog.String("stage", ev.Stage.String()),
				slog.String("message", ev.MessageName),
				slog.String("entity", ev.PrimaryEntityName),
			)
		}),
	)
	d := plugin.New(reg, opts...)
	logger.Info("dispatcher ready", slog.String("plugin", d.Name()), slog.Int("registrations", len(d.Registrations())))

	h := host.New(d, store, host.WithLogger(logger))

	in, closeInput, err := openInput(cfg.InputPath, stdin)
	if err != nil {
		return Summary{}, err
	}
	defer closeInput()

	sum, err := process(ctx, h, in, cfg.FailFast)
	logger.Info("input processed", slog.Int("processed", sum.Processed), slog.Int("failed", sum.Failed))
	return sum, err
}

func newLogger(cfg Config, w io.Writer) (*slog.Logger, error) {
	lvl, err := cfg.level()
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if strings.EqualFold(cfg.LogFormat, "json") {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}

// registry builds the registrations from the manifest, or registers the
// built-in account steps when no manifest is configured.
func registry(cfg Config) (string, *plugin.Registry, error) {
	if cfg.ManifestPath == "" {
		reg := plugin.NewRegistry()
		account.Register(reg)
		return cfg.Name, reg, nil
	}

	f, err := manifest.Load(cfg.ManifestPath)
	if err != nil {
		return "", nil, err
	}
	reg, err := f.Registry(account.Handlers())
	if err != nil {
		return "", nil, fmt.Errorf("manifest %s: %w", cfg.ManifestPath, err)
	}
	name := f.Plugin
	if name == "" {
		name = cfg.Name
	}
	return name, reg, nil
}

type seedRecord struct {
	LogicalName string         `json:"logical_name"`
	ID          string         `json:"id"`
	Attributes  map[string]any `json:"attributes"`
}

// seed loads NDJSON records into the store.
func seed(ctx context.Context, store *sqlite.Store, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open seed file: %w", err)
	}
	defer f.Close()

	n := 0
	err = eachLine(f, func(line []byte) error {
		var rec seedRecord
		if err := sonic.ConfigStd.Unmarshal(line, &rec); err != nil {
			return fmt.Errorf("seed line %d: %w", n+1, err)
		}
		if rec.LogicalName == "" || rec.ID == "" {
			return fmt.Errorf("seed line %d: logical_name and id are required", n+1)
		}
		if err := store.Seed(ctx, &plugin.Record{LogicalName: rec.LogicalName, ID: rec.ID, Attributes: rec.Attributes}); err != nil {
			return err
		}
		n++
		return nil
	})
	return n, err
}

func openInput(path string, stdin io.Reader) (io.Reader, func(), error) {
	if path == "" || path == "-" {
		return stdin, func() {}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open input: %w", err)
	}
	return f, func() { _ = f.Close() }, nil
}

// process feeds each line to the host. Failures are counted and, unless
// failFast is set, processing continues with the next line.
func process(ctx context.Context, h *host.Host, in io.Reader, failFast bool) (Summary, error) {
	var (
		sum  Summary
		errs []error
	)
	err := eachLine(in, func(line []byte) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		sum.Processed++
		if err := h.Process(ctx, line); err != nil {
			sum.Failed++
			err = fmt.Errorf("event %d: %w", sum.Processed, err)
			if failFast {
				return err
			}
			errs = append(errs, err)
		}
		return nil
	})
	if err != nil {
		return sum, err
	}
	return sum, errors.Join(errs...)
}

func eachLine(r io.Reader, fn func([]byte) error) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), maxEventSize)
	for sc.Scan() {
		line := sc.Bytes()
		if len(strings.TrimSpace(string(line))) == 0 {
			continue
		}
		if err := fn(line); err != nil {
			return err
		}
	}
	return sc.Err()
}

func serveMetrics(addr string, g prometheus.Gatherer, logger *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", slog.Any("error", err))
		}
	}()
	logger.Info("serving metrics", slog.String("addr", addr))
	return srv
}
