/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"errors"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/dekyc/apiserver/internal/logger"
	"github.com/dekyc/apiserver/internal/mq"
	"github.com/dekyc/apiserver/types"
)

// workerCmd consumes KYC events from the message queue.
var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Consume KYC status and document events",
	Long: `Subscribes to kyc.status_changed, documents.uploaded and
documents.reviewed and logs a notification for each event. Requires MQ_BACKEND to be rabbitmq or pubsub.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := loadRuntime()
		if err != nil {
			return err
		}

		queue, err := mq.Open(cmd.Context(), cfg.MQ)
		if err != nil {
			return err
		}
		if queue == nil {
			return errors.New("worker needs a message queue, set MQ_BACKEND")
		}
		defer queue.Close()

		log.Info("worker started", "backend", cfg.MQ.Backend)
		err = runWorker(cmd.Context(), queue, log)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(workerCmd)
}

func runWorker(ctx context.Context, queue *mq.MQ, log *logger.Logger) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return queue.Subscribe(ctx, mq.ChannelStatusChanged, statusChangedHandler(log))
	})
	g.Go(func() error {
		return queue.Subscribe(ctx, mq.ChannelDocumentUploaded, documentUploadedHandler(log))
	})
	g.Go(func() error {
		return queue.Subscribe(ctx, mq.ChannelDocumentReviewed, documentReviewedHandler(log))
	})
	return g.Wait()
}

func statusChangedHandler(log *logger.Logger) mq.Handler {
	return func(_ context.Context, msg mq.Message) error {
		ev, err := mq.Decode[mq.StatusChanged](msg)
		if err != nil {
			// Malformed payloads would be redelivered forever.
			log.Error("dropping status event", "message_id", msg.ID, "error", err)
			return nil
		}

		switch ev.Status {
		case types.StatusApproved:
			log.Info("notify user: KYC approved", "user_id", ev.UserID, "email", ev.Email)
		case types.StatusRejected:
			log.Info("notify user: KYC rejected", "user_id", ev.UserID, "email", ev.Email)
		default:
			log.Info("notify user: KYC back in review", "user_id", ev.UserID, "email", ev.Email)
		}
		return nil
	}
}

func documentUploadedHandler(log *logger.Logger) mq.Handler {
	return func(_ context.Context, msg mq.Message) error {
		ev, err := mq.Decode[mq.DocumentUploaded](msg)
		if err != nil {
			log.Error("dropping document event", "message_id", msg.ID, "error", err)
			return nil
		}
		log.Info("document queued for review",
			"user_id", ev.UserID,
			"document_id", ev.DocumentID,
			"type", ev.Type,
			"sha256", ev.SHA256,
		)
		return nil
	}
}

func documentReviewedHandler(log *logger.Logger) mq.Handler {
	return func(_ context.Context, msg mq.Message) error {
		ev, err := mq.Decode[mq.DocumentReviewed](msg)
		if err != nil {
			log.Error("dropping document review event", "message_id", msg.ID, "error", err)
			return nil
		}
		if ev.Status == types.DocumentVerified {
			log.Info("notify user: document verified", "user_id", ev.UserID, "document_id", ev.DocumentID, "type", ev.Type)
			return nil
		}
		log.Info("notify user: document "+string(ev.Status), "user_id", ev.UserID, "document_id", ev.DocumentID, "type", ev.Type)
		return nil
	}
}
