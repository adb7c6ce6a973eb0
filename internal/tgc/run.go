package tgc

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/gotd/td/telegram"
	"github.com/tgdrive/filestore/internal/logging"
	"go.uber.org/zap"
)

// RunWithAuth connects the client, logs the bot in when the stored session
// is not authorized yet and runs f until it returns.
func RunWithAuth(ctx context.Context, client *telegram.Client, token string, f func(ctx context.Context) error) error {
	return client.Run(ctx, func(ctx context.Context) error {
		logger := logging.FromContext(ctx)
		status, err := client.Auth().Status(ctx)
		if err != nil {
			return errors.Wrap(err, "auth status")
		}

		if !status.Authorized {
			if token == "" {
				return errors.New("not authorized, bot token is empty")
			}
			logger.Debug("creating bot session")
			if _, err := client.Auth().Bot(ctx, token); err != nil {
				return errors.Wrap(err, "bot login")
			}
			if status, err = client.Auth().Status(ctx); err != nil {
				return errors.Wrap(err, "auth status")
			}
		}
		logger.Info("bot session",
			zap.Int64("id", status.User.ID),
			zap.String("username", status.User.Username))

		return f(ctx)
	})
}
