// Command remotekeysd listens for remotekeys clients and performs their events
package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/josh23french/remotekeys/pkg/config"
	"github.com/josh23french/remotekeys/pkg/dispatch"
	"github.com/josh23french/remotekeys/pkg/server"
)

func main() {
	if err := App().Run(os.Args); err != nil {
		log.Fatal().Err(err).Msg("remotekeysd failed")
	}
}

// App creates the CLI application
func App() *cli.App {
	return &cli.App{
		Name:  "remotekeysd",
		Usage: "accept remotekeys clients and perform their input events",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "YAML config file; missing is fine",
				EnvVars: []string{"REMOTEKEYS_CONFIG"},
				Value:   "remotekeys.yaml",
			},
			&cli.StringFlag{Name: "listen", Aliases: []string{"l"}, Usage: "listen address (server.address)"},
			&cli.StringFlag{Name: "log-level", Usage: "debug, info, warn or error (log.level)"},
			&cli.BoolFlag{Name: "pretty", Usage: "human-readable logs (log.pretty)"},
		},
		Action: func(c *cli.Context) error {
			overrides := make(map[string]any)
			if c.IsSet("listen") {
				overrides["server.address"] = c.String("listen")
			}
			if c.IsSet("log-level") {
				overrides["log.level"] = c.String("log-level")
			}
			if c.IsSet("pretty") {
				overrides["log.pretty"] = c.Bool("pretty")
			}
			cfg, err := config.Load(c.String("config"), overrides)
			if err != nil {
				return err
			}
			if err := cfg.Log.Apply(); err != nil {
				return err
			}

			// performing input on the host is left to a platform Injector;
			// this build only logs what it would do
			d := dispatch.New(dispatch.LogInjector{Log: log.Logger})
			srv := server.New(cfg.Server.Address, d)

			ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return srv.Serve(ctx)
		},
	}
}
