package bot

import (
	"context"
	"io"
	"time"

	"github.com/go-faster/errors"
	"github.com/gotd/td/telegram/downloader"
	"github.com/gotd/td/telegram/message"
	"github.com/gotd/td/tg"
	"github.com/tgdrive/filestore/internal/filestore"
	"github.com/tgdrive/filestore/internal/logging"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var errNoMessageID = errors.New("sent message id not found in updates")

// Telegram sends, deletes and downloads through the bot API client.
type Telegram struct {
	api        *tg.Client
	sender     *message.Sender
	downloader *downloader.Downloader
}

func NewTelegram(api *tg.Client) *Telegram {
	return &Telegram{
		api:        api,
		sender:     message.NewSender(api),
		downloader: downloader.NewDownloader(),
	}
}

func (t *Telegram) SendText(ctx context.Context, peer tg.InputPeerClass, text string) (int, error) {
	upd, err := t.sender.To(peer).Text(ctx, text)
	if err != nil {
		return 0, errors.Wrap(err, "send message")
	}
	return sentMessageID(upd)
}

func (t *Telegram) DeleteMessage(ctx context.Context, peer tg.InputPeerClass, msgID int) error {
	var err error
	if ch, ok := peer.(*tg.InputPeerChannel); ok {
		_, err = t.api.ChannelsDeleteMessages(ctx, &tg.ChannelsDeleteMessagesRequest{
			Channel: &tg.InputChannel{ChannelID: ch.ChannelID, AccessHash: ch.AccessHash},
			ID:      []int{msgID},
		})
	} else {
		_, err = t.api.MessagesDeleteMessages(ctx, &tg.MessagesDeleteMessagesRequest{
			Revoke: true,
			ID:     []int{msgID},
		})
	}
	if err != nil {
		return errors.Wrap(err, "delete message")
	}
	return nil
}

func (t *Telegram) download(doc *tg.Document) filestore.WriteFunc {
	return func(ctx context.Context, w io.Writer) error {
		_, err := t.downloader.Download(t.api, doc.AsInputDocumentFileLocation()).Stream(ctx, w)
		if err != nil {
			return errors.Wrap(err, "download document")
		}
		return nil
	}
}

func sentMessageID(upd tg.UpdatesClass) (int, error) {
	switch u := upd.(type) {
	case *tg.UpdateShortSentMessage:
		return u.ID, nil
	case *tg.Updates:
		return messageIDFrom(u.Updates)
	case *tg.UpdatesCombined:
		return messageIDFrom(u.Updates)
	}
	return 0, errNoMessageID
}

func messageIDFrom(updates []tg.UpdateClass) (int, error) {
	for _, update := range updates {
		switch u := update.(type) {
		case *tg.UpdateMessageID:
			return u.ID, nil
		case *tg.UpdateNewMessage:
			if m, ok := u.Message.(*tg.Message); ok {
				return m.ID, nil
			}
		case *tg.UpdateNewChannelMessage:
			if m, ok := u.Message.(*tg.Message); ok {
				return m.ID, nil
			}
		}
	}
	return 0, errNoMessageID
}

func inputPeer(e tg.Entities, peer tg.PeerClass) (tg.InputPeerClass, error) {
	switch p := peer.(type) {
	case *tg.PeerUser:
		if user, ok := e.Users[p.UserID]; ok {
			return user.AsInputPeer(), nil
		}
	case *tg.PeerChat:
		return &tg.InputPeerChat{ChatID: p.ChatID}, nil
	case *tg.PeerChannel:
		if channel, ok := e.Channels[p.ChannelID]; ok {
			return channel.AsInputPeer(), nil
		}
	}
	return nil, errors.Errorf("unknown peer %v", peer)
}

func fileName(doc *tg.Document) string {
	for _, attr := range doc.Attributes {
		if a, ok := attr.(*tg.DocumentAttributeFilename); ok {
			return a.FileName
		}
	}
	return ""
}

// Listener feeds dispatcher updates to the bot on a bounded set of
// goroutines. Each update gets its own timeout.
type Listener struct {
	tg      *Telegram
	bot     *Bot
	group   *errgroup.Group
	base    context.Context
	timeout time.Duration
}

func NewListener(ctx context.Context, t *Telegram, b *Bot, workers int, timeout time.Duration) *Listener {
	g := &errgroup.Group{}
	if workers > 0 {
		g.SetLimit(workers)
	}
	return &Listener{tg: t, bot: b, group: g, base: ctx, timeout: timeout}
}

func (l *Listener) Register(d tg.UpdateDispatcher) {
	d.OnNewMessage(func(_ context.Context, e tg.Entities, u *tg.UpdateNewMessage) error {
		l.submit(e, u.Message)
		return nil
	})
	d.OnNewChannelMessage(func(_ context.Context, e tg.Entities, u *tg.UpdateNewChannelMessage) error {
		l.submit(e, u.Message)
		return nil
	})
}

// Wait blocks until every submitted update has been handled.
func (l *Listener) Wait() {
	_ = l.group.Wait()
}

func (l *Listener) submit(e tg.Entities, msg tg.MessageClass) {
	logger := logging.FromContext(l.base)
	u, ok, err := l.update(e, msg)
	if err != nil {
		logger.Warn("skip update", zap.Error(err))
		return
	}
	if !ok {
		return
	}
	l.group.Go(func() error {
		ctx := l.base
		if l.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, l.timeout)
			defer cancel()
		}
		if err := l.bot.Handle(ctx, u); err != nil {
			logger.Error("handle update", zap.Int("message", u.MessageID), zap.Error(err))
		}
		return nil
	})
}

func (l *Listener) update(e tg.Entities, msg tg.MessageClass) (*Update, bool, error) {
	m, ok := msg.(*tg.Message)
	if !ok || m.Out {
		return nil, false, nil
	}
	peer, err := inputPeer(e, m.PeerID)
	if err != nil {
		return nil, false, err
	}
	u := &Update{Peer: peer, MessageID: m.ID, Text: m.Message}
	if media, ok := m.Media.(*tg.MessageMediaDocument); ok {
		if d, ok := media.Document.(*tg.Document); ok {
			u.Document = &Document{
				ID:       d.ID,
				Name:     fileName(d),
				Size:     d.Size,
				MimeType: d.MimeType,
				Fetch:    l.tg.download(d),
			}
		}
	}
	return u, true, nil
}
