// notifysend enqueues one notification request on the Kafka topic consumed
// by the API servers. It is meant for operators and smoke tests.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/01moynul/projecthub-golang/internal/events"
	"github.com/01moynul/projecthub-golang/internal/models"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	var (
		brokers     []string
		topic       string
		req         events.Request
		typ         string
		projectID   int64
		projectName string
		taskID      int64
		taskTitle   string
		timeout     time.Duration
	)

	flagSet := pflag.NewFlagSet("notifysend", pflag.ContinueOnError)
	flagSet.StringSliceVar(&brokers, "brokers", []string{"localhost:9092"}, "kafka bootstrap brokers")
	flagSet.StringVar(&topic, "topic", "projecthub.notifications", "topic read by the API servers")
	flagSet.StringVar(&req.RecipientID, "recipient", "", "recipient email (required)")
	flagSet.StringVar(&typ, "type", string(models.NotificationTaskApproved), "notification type")
	flagSet.StringVar(&req.Title, "title", "", "notification title (required)")
	flagSet.StringVar(&req.Message, "message", "", "notification body")
	flagSet.Int64Var(&projectID, "project-id", 0, "related project id")
	flagSet.StringVar(&projectName, "project-name", "", "related project name")
	flagSet.Int64Var(&taskID, "task-id", 0, "related task id")
	flagSet.StringVar(&taskTitle, "task-title", "", "related task title")
	flagSet.DurationVar(&timeout, "timeout", 10*time.Second, "publish timeout")

	if err := flagSet.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}

	req.Type = models.NotificationType(strings.ToUpper(typ))
	if projectID > 0 {
		req.Project = &models.ProjectRef{ID: projectID, Name: projectName}
	}
	if taskID > 0 {
		req.Task = &models.TaskRef{ID: taskID, Title: taskTitle}
	}

	producer := events.NewProducer(brokers, topic)
	defer producer.Close()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := producer.Publish(ctx, req); err != nil {
		return err
	}
	fmt.Printf("queued %s for %s on %s\n", req.Type, req.RecipientID, topic)
	return nil
}
