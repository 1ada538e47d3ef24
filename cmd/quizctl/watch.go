package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"quizgram/internal/config"
	"quizgram/internal/queue"
	"quizgram/internal/redis"
	"quizgram/internal/worker"
)

func watchCmd(cfg *config.Config) *cobra.Command {
	var (
		group    string
		consumer string
		fromHead bool
		count    int64
		types    []string
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Tail relationship and view events from the backend stream",
		Long: `Read stream:social through a consumer group and print each event.

Running several watchers with the same --group splits the stream between
them; give each its own group to see every event.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.RedisURL == "" {
				return errors.New("REDIS_URL is required")
			}
			ctx := cmd.Context()

			rc, err := redis.Connect(ctx, cfg.RedisURL)
			if err != nil {
				return err
			}
			defer rc.Close()

			start := "$"
			if fromHead {
				start = "0"
			}
			if consumer == "" {
				consumer = "quizctl-" + uuid.NewString()[:8]
			}

			out := cmd.OutOrStdout()
			printer := worker.HandlerFunc(func(ctx context.Context, event queue.SocialEvent) error {
				_, err := fmt.Fprintln(out, event.String())
				return err
			})

			m := worker.NewManager(queue.NewConsumer(rc.Client), worker.TypeFilter(printer, types...), worker.ManagerConfig{
				Stream:       queue.StreamSocial,
				Group:        group,
				Start:        start,
				ConsumerName: consumer,
				BatchSize:    count,
			})
			if err := m.Start(ctx); err != nil {
				return err
			}
			m.Wait()
			return nil
		},
	}

	cmd.Flags().StringVar(&group, "group", queue.ConsumerGroupWatchers, "Consumer group name")
	cmd.Flags().StringVar(&consumer, "consumer", "", "Consumer name (random by default)")
	cmd.Flags().BoolVar(&fromHead, "from-start", false, "Replay the stream from the beginning when creating the group")
	cmd.Flags().Int64Var(&count, "count", 100, "Maximum messages per read")
	cmd.Flags().StringSliceVar(&types, "type", nil, "Only print these event types (relationship_changed, view_recorded)")

	return cmd
}
