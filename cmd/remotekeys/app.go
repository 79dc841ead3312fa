package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/josh23french/remotekeys/pkg/client"
	"github.com/josh23french/remotekeys/pkg/config"
)

// Version is set via ldflags
var Version = "dev"

// App creates the CLI application
func App() *cli.App {
	return &cli.App{
		Name:    "remotekeys",
		Usage:   "drive a remote machine with keyboard and mouse events over TCP",
		Version: Version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "YAML config file; missing is fine",
				EnvVars: []string{"REMOTEKEYS_CONFIG"},
				Value:   "remotekeys.yaml",
			},
			&cli.StringFlag{Name: "host", Usage: "listener host (endpoint.host)"},
			&cli.IntFlag{Name: "port", Usage: "listener port (endpoint.port)"},
			&cli.StringFlag{Name: "log-level", Usage: "debug, info, warn or error (log.level)"},
			&cli.BoolFlag{Name: "pretty", Usage: "human-readable logs (log.pretty)"},
		},
		Before: func(c *cli.Context) error {
			cfg, err := config.Load(c.String("config"), overrides(c))
			if err != nil {
				return err
			}
			if err := cfg.Log.Apply(); err != nil {
				return err
			}
			c.App.Metadata["config"] = cfg
			return nil
		},
		Commands: []*cli.Command{
			sendCommand(),
			runCommand(),
			statusCommand(),
		},
	}
}

// overrides collects the flags that were actually given, keyed like the config file
func overrides(c *cli.Context) map[string]any {
	m := make(map[string]any)
	if c.IsSet("host") {
		m["endpoint.host"] = c.String("host")
	}
	if c.IsSet("port") {
		m["endpoint.port"] = c.Int("port")
	}
	if c.IsSet("log-level") {
		m["log.level"] = c.String("log-level")
	}
	if c.IsSet("pretty") {
		m["log.pretty"] = c.Bool("pretty")
	}
	return m
}

func getConfig(c *cli.Context) *config.Config {
	cfg, _ := c.App.Metadata["config"].(*config.Config)
	return cfg
}

func sendCommand() *cli.Command {
	return &cli.Command{
		Name:      "send",
		Usage:     "send each argument as one event line, e.g. send ctrl c",
		ArgsUsage: "LINE...",
		Flags: []cli.Flag{
			&cli.DurationFlag{Name: "wait", Usage: "how long to wait for lines to go out", Value: 5 * time.Second},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() == 0 {
				return cli.Exit("nothing to send", 2)
			}
			cfg := getConfig(c)
			ep, err := cfg.ClientEndpoint()
			if err != nil {
				return err
			}
			m, err := client.NewManager(ep, cfg.ClientOptions()...)
			if err != nil {
				return err
			}
			defer m.Close()

			sender := client.NewEventSender(m)
			for _, line := range c.Args().Slice() {
				sender.Send(line)
			}
			s := drain(m, uint64(c.NArg()), c.Duration("wait"))
			if s.Dropped > 0 {
				return cli.Exit(fmt.Sprintf("%d of %d lines dropped: %v", s.Dropped, c.NArg(), s.LastError), 1)
			}
			return nil
		},
	}
}

func runCommand() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "read event lines from stdin and stream them, following config file changes",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "metrics-address", Usage: "serve Prometheus metrics here (metrics.address)"},
		},
		Before: func(c *cli.Context) error {
			if c.IsSet("metrics-address") {
				getConfig(c).Metrics.Address = c.String("metrics-address")
			}
			return nil
		},
		Action: func(c *cli.Context) error {
			cfg := getConfig(c)
			ep, err := cfg.ClientEndpoint()
			if err != nil {
				return err
			}
			r, err := client.NewRebinder(ep, cfg.ClientOptions()...)
			if err != nil {
				return err
			}
			defer r.Close()

			if path := c.String("config"); path != "" {
				if w, err := config.NewWatcher(path); err != nil {
					log.Warn().Err(err).Str("path", path).Msg("not watching config file")
				} else {
					defer w.Close()
					last := cfg.Client
					w.OnChange(func(path string) { last = rebind(r, path, c, last) })
				}
			}

			if cfg.Metrics.Address != "" {
				srv := serveMetrics(cfg.Metrics.Address, r)
				defer srv.Close()
			}

			ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			m := r.Manager()
			before := m.Stats()
			n, err := pump(ctx, os.Stdin, client.NewEventSender(r))
			if err != nil {
				return err
			}
			// give lines still queued on stdin EOF a chance to go out
			if ctx.Err() == nil && r.Manager() == m {
				drain(m, before.LinesWritten+before.Dropped+n, cfg.Client.ConnectTimeout+time.Second)
			}
			return nil
		},
	}
}

func statusCommand() *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "make one connect attempt and report the result",
		Action: func(c *cli.Context) error {
			cfg := getConfig(c)
			ep, err := cfg.ClientEndpoint()
			if err != nil {
				return err
			}
			m, err := client.NewManager(ep, append(cfg.ClientOptions(), client.WithReconnectInterval(time.Hour))...)
			if err != nil {
				return err
			}
			defer m.Close()

			deadline := time.Now().Add(cfg.Client.ConnectTimeout + time.Second)
			for m.State() != client.Connected && m.Stats().ConnectFailures == 0 && time.Now().Before(deadline) {
				time.Sleep(10 * time.Millisecond)
			}

			fmt.Fprintf(c.App.Writer, "%v: %v\n", ep, m.State())
			if m.State() != client.Connected {
				return cli.Exit(fmt.Sprintf("last error: %v", m.Stats().LastError), 1)
			}
			return nil
		},
	}
}

// pump sends every non-blank line from in until EOF or ctx is done and
// returns how many it sent
func pump(ctx context.Context, in io.Reader, sender *client.EventSender) (uint64, error) {
	var n uint64
	lines := make(chan string)
	errs := make(chan error, 1)
	go func() {
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		errs <- scanner.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("interrupted, stopping")
			return n, nil
		case err := <-errs:
			if err != nil && !errors.Is(err, io.EOF) {
				return n, err
			}
			return n, nil
		case line := <-lines:
			if line = strings.TrimSpace(line); line != "" {
				sender.Send(line)
				n++
			}
		}
	}
}

// drain waits until n lines have been written or dropped, or timeout passes
func drain(m *client.Manager, n uint64, timeout time.Duration) client.Stats {
	deadline := time.Now().Add(timeout)
	for {
		s := m.Stats()
		if s.LinesWritten+s.Dropped >= n || time.Now().After(deadline) {
			return s
		}
		time.Sleep(10 * time.Millisecond)
	}
}

// rebind reloads the config at path and points r at it. A changed client
// section rebuilds the Manager even when the endpoint stays the same. It
// returns the client section now in effect.
func rebind(r *client.Rebinder, path string, c *cli.Context, last config.ClientConfig) config.ClientConfig {
	cfg, err := config.Load(path, overrides(c))
	if err != nil {
		log.Error().Err(err).Msg("reloading config")
		return last
	}
	ep, err := cfg.ClientEndpoint()
	if err != nil {
		log.Error().Err(err).Msg("reloaded config has a bad endpoint")
		return last
	}
	if cfg.Client != last {
		if err := r.Reconfigure(ep, cfg.ClientOptions()...); err != nil {
			log.Error().Err(err).Msg("reconfiguring client")
			return last
		}
		log.Info().Str("endpoint", ep.String()).Msg("applied new client settings")
		return cfg.Client
	}
	changed, err := r.Rebind(ep)
	if err != nil {
		log.Error().Err(err).Msg("rebinding")
		return last
	}
	if changed {
		log.Info().Str("endpoint", ep.String()).Msg("switched endpoint")
	}
	return last
}

func serveMetrics(addr string, src client.StatsSource) *http.Server {
	reg := prometheus.NewRegistry()
	reg.MustRegister(client.NewCollector(src))

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Str("addr", addr).Msg("metrics server stopped")
		}
	}()
	log.Info().Str("addr", addr).Msg("serving metrics")
	return srv
}
