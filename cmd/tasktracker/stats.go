package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"task-tracker/internal/httpapi"
	"task-tracker/internal/notify"
	"task-tracker/internal/service"
)

func statsCmd(load loader) *cobra.Command {
	var system, from, to string

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print task statistics as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := service.StatsFilter{SystemName: system}
			var err error
			if filter.From, err = httpapi.ParseBound(from, false); err != nil {
				return fmt.Errorf("--from: %w", err)
			}
			if filter.To, err = httpapi.ParseBound(to, true); err != nil {
				return fmt.Errorf("--to: %w", err)
			}

			cfg, err := load()
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}
			a, err := openApp(cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			_, tasks := a.services(notify.Discard)
			stats, err := tasks.Aggregate(cmd.Context(), operator, filter)
			if err != nil {
				return err
			}
			out, err := json.MarshalIndent(stats, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}
	cmd.Flags().StringVar(&system, "system", "", "only tasks for this system name")
	cmd.Flags().StringVar(&from, "from", "", "created on or after (YYYY-MM-DD or RFC3339)")
	cmd.Flags().StringVar(&to, "to", "", "created on or before (YYYY-MM-DD or RFC3339)")
	return cmd
}
