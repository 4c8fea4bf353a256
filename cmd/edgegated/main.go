package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/cobra"

	"github.com/datawire/dlib/dgroup"
	"github.com/datawire/dlib/dlog"

	"github.com/datawire/edgegate/internal/cache"
	"github.com/datawire/edgegate/internal/config"
	"github.com/datawire/edgegate/internal/dnsfrontend"
	"github.com/datawire/edgegate/internal/geo"
	"github.com/datawire/edgegate/internal/logging"
	"github.com/datawire/edgegate/internal/rlimit"
	"github.com/datawire/edgegate/internal/router"
)

func main() {
	if err := command().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func command() *cobra.Command {
	var settingsPath, geoPath string

	cmd := &cobra.Command{
		Use:   "edgegated",
		Short: "split-horizon DNS resolver and transparent TCP router",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), settingsPath, geoPath)
		},
	}
	cmd.Flags().StringVar(&settingsPath, "settings", "dns_settings.json", "path to the settings file")
	cmd.Flags().StringVar(&geoPath, "geoip-db", os.Getenv("GEOIP_DB"), "path to a MaxMind-format country database")
	cmd.SetContext(context.Background())
	return cmd
}

func run(ctx context.Context, settingsPath, geoPath string) error {
	ctx = logging.NewContext(ctx)
	rlimit.Raise(ctx)

	settings, err := config.Load(ctx, settingsPath)
	if err != nil {
		return fmt.Errorf("loading settings: %w", err)
	}

	if geoPath == "" {
		return fmt.Errorf("no geo database configured (pass --geoip-db or set GEOIP_DB)")
	}
	geoDB, err := geo.Open(geoPath)
	if err != nil {
		return fmt.Errorf("opening geo database: %w", err)
	}
	classifier := geo.NewClassifier(geoDB)

	var ch *cache.Cache
	if settings.RedisServer != "" {
		ch = cache.New(settings.RedisServer)
	}

	g := dgroup.NewGroup(ctx, dgroup.GroupConfig{
		SoftShutdownTimeout:  2 * time.Second,
		EnableSignalHandling: true,
		ShutdownOnNonError:   true,
	})

	if !settings.TransferOnly() {
		frontEnd := dnsfrontend.New(settings, classifier, ch)
		g.Go("dns-frontend", frontEnd.Run)
	} else {
		dlog.Info(ctx, "TRANSFER_ONLY set, DNS front-end will not start")
	}

	r := router.New(classifier)
	g.Go("router", r.Run)

	// Collect the group's exit error alongside whatever the geo database and
	// the cache pool report on close, rather than swallowing the latter in
	// defers.
	var result *multierror.Error
	result = multierror.Append(result, g.Wait())
	result = multierror.Append(result, geoDB.Close())
	if ch != nil {
		result = multierror.Append(result, ch.Close())
	}
	return result.ErrorOrNil()
}
