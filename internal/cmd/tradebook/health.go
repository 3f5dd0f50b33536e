package tradebook

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	platformgrpc "github.com/louisbranch/tradebook/internal/platform/grpc"
)

func newHealthCommand(opts *options) *cobra.Command {
	var (
		addr    string
		service string
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "health",
		Short: "Wait for a worker's gRPC health check to report SERVING",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := opts.logger()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			if err := platformgrpc.CheckHealth(cmd.Context(), addr, service, timeout, logger.Sugar().Debugf); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "SERVING")
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "localhost:8090", "Worker gRPC address")
	cmd.Flags().StringVar(&service, "service", "reminders.loop", "Health service name (empty checks the whole server)")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "How long to wait")
	return cmd
}
