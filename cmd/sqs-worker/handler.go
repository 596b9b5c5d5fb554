package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/rs/zerolog/log"

	sqsworker "github.com/dirk39/sqs-worker"
)

// messageHandler logs each message and, when a command is configured, pipes
// the body to it. The message id and receive count are exported as
// SQS_MESSAGE_ID and SQS_RECEIVE_COUNT.
type messageHandler struct {
	queue   string
	command string
	quiet   bool
}

func (h *messageHandler) Handle(ctx context.Context, msg sqsworker.Message) error {
	startTime := time.Now()
	ml := log.With().Str("queue", h.queue).Str("message_id", msg.ID()).Logger()
	defer func() {
		ml.Debug().Dur("duration", time.Since(startTime)).Msg("Message processing complete")
	}()

	if h.command == "" {
		if h.quiet {
			ml.Debug().Str("body", msg.Body()).Msg("Message received")
		} else {
			ml.Info().Str("body", msg.Body()).Int("receive_count", msg.ReceiveCount()).Msg("Message received")
		}
		return nil
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, "sh", "-c", h.command)
	cmd.Stdin = bytes.NewBufferString(msg.Body())
	cmd.Stdout = os.Stdout
	cmd.Stderr = &stderr
	cmd.Env = append(os.Environ(),
		"SQS_QUEUE="+h.queue,
		"SQS_MESSAGE_ID="+msg.ID(),
		fmt.Sprintf("SQS_RECEIVE_COUNT=%d", msg.ReceiveCount()),
	)

	if err := cmd.Run(); err != nil {
		ml.Error().Err(err).Str("stderr", stderr.String()).Msg("Handler command failed, batch will be released")
		return fmt.Errorf("handler command failed: %w", err)
	}

	if !h.quiet {
		ml.Info().Msg("Message handled successfully")
	}
	return nil
}
