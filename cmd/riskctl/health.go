package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	grpc_server "github.com/wyfcoding/paymentrisk/internal/riskscoring/interfaces/grpc"
	"github.com/wyfcoding/paymentrisk/pkg/grpcclient"
)

func healthCmd() *cobra.Command {
	var (
		target  string
		timeout time.Duration
		retries int
	)
	cmd := &cobra.Command{
		Use:   "health",
		Short: "Query the gRPC health endpoint of a running service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			conn, err := grpcclient.NewClient(grpcclient.ClientConfig{
				Target:         target,
				RequestTimeout: timeout,
				MaxRetries:     retries,
				RetryDelay:     500 * time.Millisecond,
			})
			if err != nil {
				return err
			}
			defer conn.Close()

			st, err := grpcclient.CheckHealth(cmd.Context(), conn, grpc_server.ServiceName)
			if err != nil {
				return fmt.Errorf("health check %s: %w", target, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", grpc_server.ServiceName, st)
			if st != healthpb.HealthCheckResponse_SERVING {
				return fmt.Errorf("service is %s", st)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&target, "target", "localhost:50051", "gRPC address")
	cmd.Flags().DurationVar(&timeout, "timeout", 3*time.Second, "Per-attempt timeout")
	cmd.Flags().IntVar(&retries, "retries", 2, "Retries on UNAVAILABLE")
	return cmd
}
