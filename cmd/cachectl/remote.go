package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/decorstore/cachekit/admin"
	"github.com/decorstore/cachekit/env"
	"github.com/decorstore/cachekit/tui"
	"github.com/spf13/cobra"
)

func newRemoteCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "remote",
		Short: "Operate a running cachectl serve through its admin API",
	}
	cmd.PersistentFlags().String("url", "", "admin base url (env DECORSTORE_ADMIN_URL, default http://localhost:8081)")
	cmd.PersistentFlags().String("token", "", "bearer token (env DECORSTORE_ADMIN_TOKEN)")
	cmd.AddCommand(newRemoteStatsCommand(), newRemoteClearCommand(), newRemoteWarmupCommand())
	return cmd
}

func remoteClient(cmd *cobra.Command) *admin.Client {
	return admin.NewClient(
		env.NewLogger(cmd),
		env.FlagOrEnv(cmd, "url", "DECORSTORE_ADMIN_URL", "http://localhost:8081"),
		env.FlagOrEnv(cmd, "token", "DECORSTORE_ADMIN_TOKEN", ""),
	)
}

func newRemoteStatsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show cache statistics and redis status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client := remoteClient(cmd)
			d, err := client.Dashboard(cmd.Context())
			if err != nil {
				return err
			}
			rs, err := client.Redis(cmd.Context())
			if err != nil {
				return err
			}
			rows := [][]string{
				{"local hit ratio", fmt.Sprintf("%.1f%%", d.Cache.HitRatio)},
				{"local requests", strconv.FormatInt(d.Cache.TotalRequests, 10)},
				{"local keys", strconv.Itoa(d.Cache.TotalKeys)},
				{"backend", rs.Backend},
				{"redis connected", strconv.FormatBool(rs.IsConnected)},
				{"redis keys", strconv.FormatInt(rs.KeysCount, 10)},
				{"heap MB", strconv.FormatUint(d.System.MemoryUsageMB, 10)},
				{"uptime", (time.Duration(d.System.UptimeHours * float64(time.Hour))).Round(time.Second).String()},
			}
			if rs.Endpoint != "" {
				rows = append(rows, []string{"redis endpoint", rs.Endpoint}, []string{"redis breaker", rs.Breaker})
			}
			tui.Table(cmd.OutOrStdout(), []string{"METRIC", "VALUE"}, rows)
			return nil
		},
	}
}

func newRemoteClearCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "clear [prefix]",
		Short: "Clear both caches, or only keys starting with prefix",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var prefix string
			if len(args) == 1 {
				prefix = args[0]
			}
			msg, err := remoteClient(cmd).Clear(cmd.Context(), prefix)
			if err != nil {
				return err
			}
			tui.Success(cmd.OutOrStdout(), "%s", msg)
			return nil
		},
	}
}

func newRemoteWarmupCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "warmup",
		Short: "Run the cache warmup now",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var res admin.WarmupResult
			var err error
			if spinErr := tui.Spin(cmd.Context(), "warming up cache", func() {
				res, err = remoteClient(cmd).WarmUp(cmd.Context())
			}); spinErr != nil {
				return spinErr
			}
			if err != nil {
				return err
			}
			tui.Success(cmd.OutOrStdout(), "%s (local %d, distributed %d)", res.Message, res.LocalKeys, res.WarmedTasks)
			return nil
		},
	}
}
