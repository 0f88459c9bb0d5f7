package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/shaiso/conductor/internal/events"
	"github.com/shaiso/conductor/internal/mq"
	"github.com/shaiso/conductor/internal/telemetry"
)

// NewWatchCmd создаёт команду просмотра событий движка из conductor.events.
func NewWatchCmd(outputFn func() *Output) *cobra.Command {
	var amqpURL string
	var eventType string
	var taskID string

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Stream engine events from RabbitMQ",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()
			logger := telemetry.NewLogger(out.errW, slog.LevelWarn, "text")

			conn, err := mq.NewConnection(amqpURL, logger)
			if err != nil {
				return err
			}
			defer conn.Close()

			routingKey := mq.RoutingKeyAllEvents
			if eventType != "" {
				routingKey = mq.EventRoutingKey(events.Type(eventType))
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			consumer := mq.NewConsumer(conn, logger, mq.ConsumerConfig{
				Exchange:   mq.ExchangeEvents,
				RoutingKey: routingKey,
				Handler: func(_ context.Context, d *mq.Delivery) error {
					ev, err := mq.ParsePayload[events.Event](&d.Message)
					if err != nil {
						return err
					}
					if taskID != "" && ev.TaskID.String() != taskID {
						return nil
					}
					out.Event(ev)
					return nil
				},
			})

			out.Success(fmt.Sprintf("Watching %s (%s), Ctrl+C to stop", mq.ExchangeEvents, routingKey))
			if err := consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&amqpURL, "rabbitmq-url", envOr("RABBITMQ_URL", mq.DefaultURL()), "RabbitMQ URL")
	cmd.Flags().StringVar(&eventType, "type", "", "Only this event type (e.g. input.pending)")
	cmd.Flags().StringVar(&taskID, "task", "", "Only events of this task")

	return cmd
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
