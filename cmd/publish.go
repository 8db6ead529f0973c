package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/manifoldco/promptui"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/interview-worker/internal/events"
	"github.com/spigell/interview-worker/internal/logger"
	"github.com/spigell/interview-worker/internal/stream"
)

const (
	PromptYes = "Yes"
	PromptNo  = "No"
)

var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Publish a single event onto the stream",
	Long: "Publish wraps a JSON payload into an event envelope and appends it to the stream. " +
		"Without --event the type is chosen interactively.",
	Run: func(cmd *cobra.Command, _ []string) {
		publish(cmd)
	},
}

func init() {
	rootCmd.AddCommand(publishCmd)

	publishCmd.Flags().StringP("event", "e", "", "event type, one of start_interview, end_interview, abandon_interview, question_evaluate, generate_report")
	publishCmd.Flags().StringP("payload", "p", "", "payload as a JSON object")
	publishCmd.Flags().StringP("payload-file", "f", "", "file with the JSON payload. Takes precedence over --payload.")
	publishCmd.Flags().BoolP("auto-approve", "y", false, "do not ask for confirmation before publishing")
}

func publish(cmd *cobra.Command) {
	ctx := context.Background()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}
	if config == nil || config.Redis == nil || config.Stream == nil {
		logger.Fatal("redis and stream config are required")
	}

	eventType, err := chooseEvent(cmd)
	if err != nil {
		logger.Fatal("choosing an event type", zap.Error(err))
	}

	payload, err := readPayload(cmd)
	if err != nil {
		logger.Fatal("reading the payload", zap.Error(err))
	}

	if approve, _ := cmd.Flags().GetBool("auto-approve"); !approve {
		confirm := promptui.Select{
			Label: fmt.Sprintf("Publish %s to %s?", eventType, config.Stream.Key),
			Items: []string{PromptYes, PromptNo},
		}
		_, answer, err := confirm.Run()
		if err != nil {
			logger.Fatal("prompt failed", zap.Error(err))
		}
		if answer != PromptYes {
			logger.Info("nothing published")
			return
		}
	}

	client := redis.NewClient(&redis.Options{
		Addr:     config.Redis.Addr,
		Password: config.Redis.Password,
		DB:       config.Redis.DB,
	})
	defer client.Close()

	id, err := stream.NewPublisher(client, config.Stream.Key).Publish(ctx, eventType, payload)
	if err != nil {
		logger.Fatal("publishing the event", zap.Error(err))
	}

	logger.Info("event published", zap.String("message_id", id), zap.String("event", string(eventType)))
}

func chooseEvent(cmd *cobra.Command) (events.EventType, error) {
	if name, _ := cmd.Flags().GetString("event"); name != "" {
		t := events.EventType(name)
		if !t.Known() {
			return "", fmt.Errorf("unknown event type %q", name)
		}
		return t, nil
	}

	items := make([]string, 0, len(events.Types))
	for _, t := range events.Types {
		items = append(items, string(t))
	}

	selector := promptui.Select{
		Label: "Choose an event type and press ENTER",
		Items: items,
	}
	idx, _, err := selector.Run()
	if err != nil {
		return "", err
	}
	return events.Types[idx], nil
}

func readPayload(cmd *cobra.Command) (json.RawMessage, error) {
	if file, _ := cmd.Flags().GetString("payload-file"); file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, err
		}
		return json.RawMessage(data), nil
	}

	if payload, _ := cmd.Flags().GetString("payload"); payload != "" {
		return json.RawMessage(payload), nil
	}

	input := promptui.Prompt{
		Label: "Payload (JSON object)",
		Validate: func(s string) error {
			if !json.Valid([]byte(s)) {
				return errors.New("not valid json")
			}
			return nil
		},
	}
	payload, err := input.Run()
	if err != nil {
		return nil, err
	}
	return json.RawMessage(payload), nil
}
