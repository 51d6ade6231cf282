package cmd

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/GriffinCanCode/jsworker/internal/client"
)

var hostURL string

var psCmd = &cobra.Command{
	Use:   "ps",
	Short: "List workers running on a host",
	Args:  cobra.NoArgs,
	RunE: func(c *cobra.Command, _ []string) error {
		hc, err := newClient()
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(c.Context(), 30*time.Second)
		defer cancel()

		workers, err := hc.Workers(ctx)
		if err != nil {
			return err
		}

		tw := tabwriter.NewWriter(c.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tSTATE\tSOURCE\tSTARTED\tREMOTE")
		for _, w := range workers {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", w.ID, w.State, w.Source, w.Started.Format(time.RFC3339), w.Remote)
		}
		return tw.Flush()
	},
}

var killCmd = &cobra.Command{
	Use:   "kill [worker-id]...",
	Short: "Terminate workers running on a host",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(c *cobra.Command, args []string) error {
		hc, err := newClient()
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(c.Context(), 30*time.Second)
		defer cancel()

		for _, workerID := range args {
			if err := hc.Terminate(ctx, workerID); err != nil {
				return fmt.Errorf("%s: %w", workerID, err)
			}
			fmt.Fprintln(c.OutOrStdout(), workerID)
		}
		return nil
	},
}

func newClient() (*client.Client, error) {
	logger, err := newLogger()
	if err != nil {
		return nil, err
	}

	cc := client.DefaultConfig()
	cc.Logger = logger.Logger
	return client.New(hostURL, cc)
}

func init() {
	defaultHost := "http://localhost:" + cfg.Server.Port
	for _, c := range []*cobra.Command{psCmd, killCmd} {
		c.Flags().StringVar(&hostURL, "host", defaultHost, "worker host URL")
		rootCmd.AddCommand(c)
	}
}
