// Package bot turns incoming messages into record store operations and
// replies. It only knows about peers and message ids, the MTProto side is
// in telegram.go.
package bot

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-faster/errors"
	"github.com/gotd/td/tg"
	"github.com/tgdrive/filestore/internal/filestore"
	"github.com/tgdrive/filestore/internal/logging"
	"github.com/tgdrive/filestore/internal/metrics"
	"github.com/tgdrive/filestore/internal/settings"
	"github.com/tgdrive/filestore/pkg/models"
	"go.uber.org/zap"
)

type Messenger interface {
	SendText(ctx context.Context, peer tg.InputPeerClass, text string) (int, error)
	DeleteMessage(ctx context.Context, peer tg.InputPeerClass, msgID int) error
}

type Records interface {
	Create(ctx context.Context, fileName, title, url string) (*models.File, error)
	GetByID(ctx context.Context, id int64) (*models.File, error)
	Update(ctx context.Context, id int64, title, description string) (*models.File, error)
	SetAccess(ctx context.Context, id int64, public bool) (*models.File, error)
	SetURL(ctx context.Context, id int64, url string) (*models.File, error)
	Delete(ctx context.Context, id int64) error
}

type Blobs interface {
	Save(ctx context.Context, name string, write filestore.WriteFunc) (*filestore.Blob, error)
}

type Shortener interface {
	Shorten(ctx context.Context, longURL string) string
}

type Scheduler interface {
	Schedule(peer tg.InputPeerClass, msgID int, after time.Duration) error
}

// Update is an incoming message reduced to what the handlers use.
type Update struct {
	Peer      tg.InputPeerClass
	MessageID int
	Text      string
	Document  *Document
}

type Document struct {
	ID       int64
	Name     string
	Size     int64
	MimeType string
	Fetch    filestore.WriteFunc
}

type Options struct {
	Messenger Messenger
	Records   Records
	Blobs     Blobs
	Shortener Shortener
	Scheduler Scheduler
	Settings  *settings.Settings
	// LinkScheme and LinkDomain form the public link of a stored file.
	LinkScheme string
	LinkDomain string
}

type Bot struct {
	messenger Messenger
	records   Records
	blobs     Blobs
	shortener Shortener
	scheduler Scheduler
	settings  *settings.Settings
	scheme    string
	domain    string
	username  atomic.Pointer[string]
	commands  map[string]commandFunc
}

func New(opts Options) *Bot {
	b := &Bot{
		messenger: opts.Messenger,
		records:   opts.Records,
		blobs:     opts.Blobs,
		shortener: opts.Shortener,
		scheduler: opts.Scheduler,
		settings:  opts.Settings,
		scheme:    opts.LinkScheme,
		domain:    opts.LinkDomain,
	}
	if b.scheme == "" {
		b.scheme = "http"
	}
	if b.settings == nil {
		b.settings = settings.New(false, 0)
	}
	b.commands = map[string]commandFunc{
		"start":            b.start,
		"edit":             b.edit,
		"delete":           b.delete,
		"set_access":       b.setAccess,
		"toggle_shortener": b.toggleShortener,
		"setautodelete":    b.setAutoDelete,
		"info":             b.info,
	}
	return b
}

// SetUsername makes the bot ignore commands addressed to other bots, as in
// /start@otherbot.
func (b *Bot) SetUsername(username string) {
	username = strings.ToLower(strings.TrimPrefix(username, "@"))
	b.username.Store(&username)
}

// Handle processes one update. Documents are stored, commands are
// dispatched and anything else is ignored.
func (b *Bot) Handle(ctx context.Context, u *Update) error {
	if u.Document != nil {
		return b.intake(ctx, u)
	}
	name, args, ok := b.parseCommand(u.Text)
	if !ok {
		return nil
	}
	cmd, ok := b.commands[name]
	if !ok {
		return nil
	}
	metrics.Commands.WithLabelValues(name).Inc()
	logging.FromContext(ctx).Debug("command", zap.String("name", name), zap.Strings("args", args))
	return cmd(ctx, u, args)
}

func (b *Bot) parseCommand(text string) (string, []string, bool) {
	fields := strings.Fields(text)
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return "", nil, false
	}
	name := strings.ToLower(strings.TrimPrefix(fields[0], "/"))
	if i := strings.IndexByte(name, '@'); i >= 0 {
		if own := b.username.Load(); own != nil && *own != "" && name[i+1:] != *own {
			return "", nil, false
		}
		name = name[:i]
	}
	if name == "" {
		return "", nil, false
	}
	return name, fields[1:], true
}

func (b *Bot) reply(ctx context.Context, u *Update, text string) (int, error) {
	id, err := b.messenger.SendText(ctx, u.Peer, text)
	if err != nil {
		return 0, errors.Wrap(err, "reply")
	}
	return id, nil
}

func (b *Bot) link(name string) string {
	return fmt.Sprintf("%s://%s/%s", b.scheme, b.domain, url.PathEscape(name))
}
