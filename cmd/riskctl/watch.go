package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/wyfcoding/paymentrisk/internal/riskscoring/domain"
	"github.com/wyfcoding/paymentrisk/pkg/mq"
)

func watchCmd() *cobra.Command {
	var minScore int
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Stream alert events from Kafka",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if len(cfg.Kafka.Brokers) == 0 {
				return errors.New("kafka.brokers is empty")
			}
			consumer := mq.NewConsumer(mq.KafkaConfig{
				Brokers:        cfg.Kafka.Brokers,
				GroupID:        cfg.Kafka.GroupID + "-riskctl",
				SessionTimeout: cfg.Kafka.SessionTimeout,
			}, cfg.Kafka.AlertTopic)
			defer consumer.Close()

			ctx := cmd.Context()
			fmt.Fprintf(cmd.OutOrStdout(), "Watching %s (min score %d)\n", cfg.Kafka.AlertTopic, minScore)
			for {
				msg, err := consumer.ReadMessage(ctx)
				if err != nil {
					if errors.Is(err, context.Canceled) {
						return nil
					}
					return err
				}
				var ev domain.AlertEvent
				if err := msg.UnmarshalPayload(&ev); err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "skip offset %d: %v\n", msg.Offset, err)
					continue
				}
				if ev.RiskScore < minScore {
					continue
				}
				amt, _ := ev.Amount.Float64()
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %-8s %3d  %-30s %s  (%s)\n",
					ev.Timestamp.Format("2006-01-02 15:04:05"), ev.RiskLevel, ev.RiskScore, ev.Vendor,
					humanize.CommafWithDigits(amt, 2), ev.AlertID)
			}
		},
	}
	cmd.Flags().IntVar(&minScore, "min-score", 0, "Only print alerts at or above this score")
	return cmd
}
