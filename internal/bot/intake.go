package bot

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/tgdrive/filestore/internal/logging"
	"github.com/tgdrive/filestore/internal/metrics"
	"go.uber.org/zap"
)

func documentName(d *Document) string {
	if d.Name != "" {
		return d.Name
	}
	return fmt.Sprintf("file_%d", d.ID)
}

func (b *Bot) intake(ctx context.Context, u *Update) error {
	logger := logging.FromContext(ctx)
	name := documentName(u.Document)

	blob, err := b.blobs.Save(ctx, name, u.Document.Fetch)
	if err != nil {
		metrics.IntakeFailures.Inc()
		return errors.Wrapf(err, "store %q", name)
	}

	file, err := b.records.Create(ctx, blob.Name, blob.Name, b.link(blob.Name))
	if err != nil {
		metrics.IntakeFailures.Inc()
		return errors.Wrapf(err, "register %q", name)
	}
	metrics.FilesStored.Inc()
	logger.Info("file stored",
		zap.Int64("id", file.ID),
		zap.String("name", blob.Name),
		zap.Int64("size", blob.Size),
		zap.String("blake3", blob.Hash))

	text := fmt.Sprintf("File \"%s\" has been stored! Link: %s", blob.Name, file.URL)
	if b.settings.ShortenerEnabled() && b.shortener != nil {
		short := b.shortener.Shorten(ctx, file.URL)
		if file, err = b.records.SetURL(ctx, file.ID, short); err != nil {
			metrics.IntakeFailures.Inc()
			return errors.Wrapf(err, "save short link of %q", name)
		}
		text = fmt.Sprintf("File \"%s\" has been stored! Shortened Link: %s", blob.Name, file.URL)
	}

	msgID, err := b.reply(ctx, u, text)
	if err != nil {
		return err
	}

	// The delay is read once here; later /setautodelete calls do not move
	// deletions that are already scheduled.
	if after := b.settings.AutoDelete(); after > 0 && b.scheduler != nil {
		if err := b.scheduler.Schedule(u.Peer, msgID, after); err != nil {
			logger.Warn("schedule reply deletion", zap.Int("message", msgID), zap.Error(err))
		}
	}
	return nil
}
