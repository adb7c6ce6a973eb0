package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-faster/errors"
	"github.com/tgdrive/filestore/internal/database"
	"github.com/tgdrive/filestore/internal/settings"
	"github.com/tgdrive/filestore/pkg/models"
)

type commandFunc func(ctx context.Context, u *Update, args []string) error

const (
	textWelcome  = "Welcome to the File Store Bot! Send me any file to store it."
	textNotFound = "File not found."

	usageEdit          = "Usage: /edit <id> <title> <description>"
	usageDelete        = "Usage: /delete <id>"
	usageSetAccess     = "Usage: /set_access <id> <true|false>"
	usageSetAutoDelete = "Usage: /setautodelete <seconds>"
	usageInfo          = "Usage: /info <id>"
)

func parseID(s string) (int64, bool) {
	id, err := strconv.ParseInt(s, 10, 64)
	return id, err == nil
}

// replyResult answers with ok on success and with the not-found text when
// the record is missing. Other errors are returned unchanged.
func (b *Bot) replyResult(ctx context.Context, u *Update, err error, ok string) error {
	switch {
	case errors.Is(err, database.ErrNotFound):
		_, err = b.reply(ctx, u, textNotFound)
		return err
	case err != nil:
		return err
	}
	_, err = b.reply(ctx, u, ok)
	return err
}

func (b *Bot) start(ctx context.Context, u *Update, _ []string) error {
	_, err := b.reply(ctx, u, textWelcome)
	return err
}

// edit replaces title and description. The description is everything after
// the title.
func (b *Bot) edit(ctx context.Context, u *Update, args []string) error {
	if len(args) < 3 {
		_, err := b.reply(ctx, u, usageEdit)
		return err
	}
	id, ok := parseID(args[0])
	if !ok {
		_, err := b.reply(ctx, u, usageEdit)
		return err
	}
	file, err := b.records.Update(ctx, id, args[1], strings.Join(args[2:], " "))
	if err != nil {
		return b.replyResult(ctx, u, err, "")
	}
	return b.replyResult(ctx, u, nil, "File updated: "+file.Title)
}

func (b *Bot) delete(ctx context.Context, u *Update, args []string) error {
	if len(args) < 1 {
		_, err := b.reply(ctx, u, usageDelete)
		return err
	}
	id, ok := parseID(args[0])
	if !ok {
		_, err := b.reply(ctx, u, usageDelete)
		return err
	}
	return b.replyResult(ctx, u, b.records.Delete(ctx, id), "File deleted.")
}

func (b *Bot) setAccess(ctx context.Context, u *Update, args []string) error {
	if len(args) < 2 {
		_, err := b.reply(ctx, u, usageSetAccess)
		return err
	}
	id, ok := parseID(args[0])
	if !ok {
		_, err := b.reply(ctx, u, usageSetAccess)
		return err
	}
	_, err := b.records.SetAccess(ctx, id, strings.EqualFold(args[1], "true"))
	return b.replyResult(ctx, u, err, "Access updated.")
}

func (b *Bot) toggleShortener(ctx context.Context, u *Update, _ []string) error {
	status := "disabled"
	if b.settings.ToggleShortener() {
		status = "enabled"
	}
	_, err := b.reply(ctx, u, fmt.Sprintf("URL shortener is now %s.", status))
	return err
}

func (b *Bot) setAutoDelete(ctx context.Context, u *Update, args []string) error {
	if len(args) < 1 {
		_, err := b.reply(ctx, u, usageSetAutoDelete)
		return err
	}
	seconds, err := strconv.Atoi(args[0])
	if err != nil || seconds < 0 || int64(seconds) > settings.MaxAutoDelete {
		_, err := b.reply(ctx, u, usageSetAutoDelete)
		return err
	}
	b.settings.SetAutoDelete(seconds)
	_, err = b.reply(ctx, u, fmt.Sprintf("Auto-delete timer set to %d seconds.", seconds))
	return err
}

func (b *Bot) info(ctx context.Context, u *Update, args []string) error {
	if len(args) < 1 {
		_, err := b.reply(ctx, u, usageInfo)
		return err
	}
	id, ok := parseID(args[0])
	if !ok {
		_, err := b.reply(ctx, u, usageInfo)
		return err
	}
	file, err := b.records.GetByID(ctx, id)
	if err != nil {
		return b.replyResult(ctx, u, err, "")
	}
	return b.replyResult(ctx, u, nil, formatFile(file))
}

func formatFile(f *models.File) string {
	description := "-"
	if f.Description != nil {
		description = *f.Description
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "ID: %d\n", f.ID)
	fmt.Fprintf(&sb, "File name: %s\n", f.FileName)
	fmt.Fprintf(&sb, "Title: %s\n", f.Title)
	fmt.Fprintf(&sb, "Description: %s\n", description)
	fmt.Fprintf(&sb, "Public: %t\n", f.PublicAccess)
	fmt.Fprintf(&sb, "Link: %s", f.URL)
	return sb.String()
}
