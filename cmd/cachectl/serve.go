package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/decorstore/cachekit/admin"
	"github.com/decorstore/cachekit/cache"
	"github.com/decorstore/cachekit/env"
	"github.com/decorstore/cachekit/logger"
	"github.com/decorstore/cachekit/metrics"
	"github.com/decorstore/cachekit/sys"
	"github.com/decorstore/cachekit/tui"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

const metricsNamespace = "decorstore"

func newServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the admin API, metrics endpoint and cache warmup service",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
	cmd.Flags().String("addr", "", "listen address (env DECORSTORE_ADMIN_ADDR, default :8081)")
	cmd.Flags().String("token", "", "bearer token for the admin routes (env DECORSTORE_ADMIN_TOKEN)")
	cmd.Flags().String("cors-origins", "", "comma separated origins allowed to call the admin API (env DECORSTORE_ADMIN_CORS_ORIGINS)")
	cmd.Flags().Bool("single-flight", false, "coalesce concurrent GetOrSet misses per key")
	return cmd
}

// refreshLoader re-reads a key from the distributed cache so that warmup extends
// its lifetime and copies it into the local cache.
func refreshLoader(dist *cache.Distributed, key string) cache.Loader {
	return func(ctx context.Context) (any, error) {
		val, ok := cache.Get[any](ctx, dist, key)
		if !ok {
			return nil, errors.Newf("key %s is not cached", key)
		}
		return val, nil
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	log := env.NewLogger(cmd)
	redis.SetLogger(logger.NewRedisLogger(log))
	settings, err := loadSettings(cmd)
	if err != nil {
		return err
	}

	collector := metrics.NewCollector(metricsNamespace)
	opts := []cache.Option{cache.WithMetrics(collector)}
	if sf, _ := cmd.Flags().GetBool("single-flight"); sf {
		opts = append(opts, cache.WithSingleFlight())
	}
	dist, closeCache, err := cache.Open(ctx, settings, log, opts...)
	if err != nil {
		return err
	}
	defer closeCache()
	if conn := dist.Connector(); conn != nil {
		collector.WatchConnector(metricsNamespace, conn)
	}

	local := cache.NewLocal(ctx, settings, log)
	defer local.Close()
	collector.WatchLocal(metricsNamespace, local)

	warmer := cache.NewWarmer(dist, local, settings, log)
	for _, key := range settings.CacheWarmupKeys {
		warmer.Register(key, 0, refreshLoader(dist, key))
	}
	sys.Go(log, func() { warmer.Run(ctx) })

	var auth admin.Authorizer = admin.AllowAll
	if token := env.FlagOrEnv(cmd, "token", "DECORSTORE_ADMIN_TOKEN", ""); token != "" {
		auth = admin.NewTokenAuthorizer(token)
	} else {
		log.Warn("no admin token configured, the performance routes are unauthenticated")
	}
	server, err := admin.New(dist, local, log,
		admin.WithAuthorizer(auth),
		admin.WithMetrics(collector),
		admin.WithWarmer(warmer),
		admin.WithVersion(Version),
		admin.WithAllowedOrigins(splitList(env.FlagOrEnv(cmd, "cors-origins", "DECORSTORE_ADMIN_CORS_ORIGINS", ""))...),
	)
	if err != nil {
		return err
	}

	addr := env.FlagOrEnv(cmd, "addr", "DECORSTORE_ADMIN_ADDR", ":8081")
	backend := dist.Backend()
	if conn := dist.Connector(); conn != nil {
		backend += " " + conn.Endpoint()
	}
	tui.Banner(cmd.OutOrStdout(), "cachectl "+Version, fmt.Sprintf(
		"admin API on %s%s\nbackend %s, namespace %s",
		addr, admin.BasePath, backend, dist.Namespacer().FullKey("*"),
	))

	shutdown := sys.CreateShutdownChannel()
	sys.Go(log, func() {
		select {
		case sig := <-shutdown:
			log.Info("received %s, shutting down", sig)
			cancel()
		case <-ctx.Done():
		}
	})
	return server.ListenAndServe(ctx, addr)
}

func splitList(val string) []string {
	var out []string
	for _, item := range strings.Split(val, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
