package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/decorstore/cachekit/cache"
	"github.com/decorstore/cachekit/tui"
	"github.com/spf13/cobra"
	"github.com/xhit/go-str2duration/v2"
)

func newPingCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Check that redis answers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer s.close()
			if !s.dist.IsConnected(cmd.Context()) {
				return errors.Newf("%s backend is not connected", s.dist.Backend())
			}
			tui.Success(cmd.OutOrStdout(), "redis is reachable")
			return nil
		},
	}
}

func newGetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Print the value stored under a key as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer s.close()
			val, ok := cache.Get[any](cmd.Context(), s.dist, args[0])
			if !ok {
				return errors.Newf("key %q not found", args[0])
			}
			out, err := json.Marshal(val)
			if err != nil {
				return errors.Wrap(err, "encoding value")
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}
}

// parseValue stores JSON literals as decoded values and anything else as a string.
func parseValue(raw string) any {
	var v any
	if json.Unmarshal([]byte(raw), &v) == nil {
		return v
	}
	return raw
}

func newSetCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Store a value; JSON literals are stored as JSON",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, _ := cmd.Flags().GetString("ttl")
			var ttl time.Duration
			if raw != "" {
				d, err := str2duration.ParseDuration(raw)
				if err != nil {
					return errors.Wrapf(err, "parsing --ttl %q", raw)
				}
				ttl = d
			}
			s, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer s.close()
			s.dist.Set(cmd.Context(), args[0], parseValue(args[1]), ttl)
			tui.Success(cmd.OutOrStdout(), "stored %s", args[0])
			return nil
		},
	}
	cmd.Flags().String("ttl", "", "time to live, e.g. 90s, 30m, 1d (default DefaultExpirationMinutes)")
	return cmd
}

func newDelCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "del <key>...",
		Short: "Remove keys",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer s.close()
			for _, key := range args {
				s.dist.Remove(cmd.Context(), key)
			}
			tui.Success(cmd.OutOrStdout(), "removed %d keys", len(args))
			return nil
		},
	}
}

func newKeysCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "keys [pattern]",
		Short: "List keys matching a glob pattern (default *)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer s.close()
			pattern := "*"
			if len(args) == 1 {
				pattern = args[0]
			}
			keys := s.dist.Keys(cmd.Context(), pattern)
			rows := make([][]string, len(keys))
			for i, k := range keys {
				rows[i] = []string{k}
			}
			tui.Table(cmd.OutOrStdout(), []string{"KEY"}, rows)
			return nil
		},
	}
}

func newClearCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clear [prefix]",
		Short: "Remove every key in the namespace, or only keys starting with prefix",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer s.close()
			target := "all keys under " + s.dist.Namespacer().FullKey("*")
			if len(args) == 1 {
				target = "keys matching " + s.dist.Namespacer().FullKey(args[0]+"*")
			}
			if force, _ := cmd.Flags().GetBool("force"); !force {
				ok, err := tui.Confirm("Remove "+target+"?", false)
				if err != nil {
					return err
				}
				if !ok {
					tui.Warning(cmd.OutOrStdout(), "nothing removed, pass --force to skip the prompt")
					return nil
				}
			}
			if len(args) == 1 {
				n := s.dist.RemoveByPattern(cmd.Context(), args[0]+"*")
				tui.Success(cmd.OutOrStdout(), "removed %d keys", n)
				return nil
			}
			s.dist.Clear(cmd.Context())
			tui.Success(cmd.OutOrStdout(), "cleared %s", target)
			return nil
		},
	}
	cmd.Flags().BoolP("force", "f", false, "do not ask for confirmation")
	return cmd
}

func newIncrCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "incr <key> [delta]",
		Short: "Increment an integer counter and print the new value",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			delta := int64(1)
			if len(args) == 2 {
				d, err := strconv.ParseInt(args[1], 10, 64)
				if err != nil {
					return errors.Wrapf(err, "parsing delta %q", args[1])
				}
				delta = d
			}
			s, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer s.close()
			if !s.dist.SupportsCounters() {
				return errors.Wrapf(cache.ErrCounterCodec, "codec is %q", s.settings.Codec)
			}
			fmt.Fprintln(cmd.OutOrStdout(), s.dist.Increment(cmd.Context(), args[0], delta))
			return nil
		},
	}
}
