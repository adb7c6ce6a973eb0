// Package tgc builds the MTProto client the bot runs on.
package tgc

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-faster/errors"
	tgbbolt "github.com/gotd/contrib/bbolt"
	"github.com/gotd/contrib/clock"
	"github.com/gotd/contrib/middleware/floodwait"
	"github.com/gotd/contrib/middleware/ratelimit"
	"github.com/gotd/td/session"
	"github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/dcs"
	"github.com/tgdrive/filestore/internal/config"
	"github.com/tgdrive/filestore/internal/logging"
	"go.etcd.io/bbolt"
	"go.uber.org/zap"
	"golang.org/x/net/proxy"
	"golang.org/x/time/rate"
)

const sessionBucket = "filestore"

func sessionKey(indexes ...string) string {
	return strings.Join(indexes, ":")
}

func dialer(proxyURL string) (dcs.DialFunc, error) {
	if proxyURL == "" {
		return proxy.Direct.DialContext, nil
	}
	u, err := url.Parse(proxyURL)
	if err != nil {
		return nil, errors.Wrap(err, "parse proxy url")
	}
	d, err := proxy.FromURL(u, proxy.Direct)
	if err != nil {
		return nil, errors.Wrap(err, "proxy dialer")
	}
	cd, ok := d.(proxy.ContextDialer)
	if !ok {
		return nil, errors.Errorf("proxy scheme %q does not support dial with context", u.Scheme)
	}
	return cd.DialContext, nil
}

func newClient(ctx context.Context, config *config.TGConfig, handler telegram.UpdateHandler, storage session.Storage, middlewares ...telegram.Middleware) (*telegram.Client, error) {
	dial, err := dialer(config.Proxy)
	if err != nil {
		return nil, err
	}

	var logger *zap.Logger
	if config.EnableLogging {
		logger = logging.FromContext(ctx).Named("td")
	}

	opts := telegram.Options{
		Resolver: dcs.Plain(dcs.PlainOptions{
			Dial: dial,
		}),
		ReconnectionBackoff: func() backoff.BackOff {
			return newBackoff(config.ReconnectTimeout)
		},
		Device: telegram.DeviceConfig{
			DeviceModel:    config.DeviceModel,
			SystemVersion:  config.SystemVersion,
			AppVersion:     config.AppVersion,
			SystemLangCode: config.SystemLangCode,
			LangPack:       config.LangPack,
			LangCode:       config.LangCode,
		},
		SessionStorage: storage,
		RetryInterval:  2 * time.Second,
		MaxRetries:     10,
		DialTimeout:    10 * time.Second,
		Middlewares:    middlewares,
		UpdateHandler:  handler,
		Logger:         logger,
	}
	if config.Ntp {
		c, err := clock.NewNTP()
		if err != nil {
			return nil, errors.Wrap(err, "create clock")
		}
		opts.Clock = c
	}

	return telegram.NewClient(config.AppId, config.AppHash, opts), nil
}

// BotClient returns a client whose session is persisted in boltdb under the
// bot token, so restarts skip the bot login.
func BotClient(ctx context.Context, boltdb *bbolt.DB, config *config.TGConfig, handler telegram.UpdateHandler, middlewares ...telegram.Middleware) (*telegram.Client, error) {
	storage := tgbbolt.NewSessionStorage(boltdb, sessionKey("botsession", config.BotToken), []byte(sessionBucket))
	return newClient(ctx, config, handler, storage, middlewares...)
}

type middlewareOption func(*middlewareConfig)

type middlewareConfig struct {
	config      *config.TGConfig
	middlewares []telegram.Middleware
}

func NewMiddleware(config *config.TGConfig, opts ...middlewareOption) []telegram.Middleware {
	mc := &middlewareConfig{
		config:      config,
		middlewares: []telegram.Middleware{},
	}
	for _, opt := range opts {
		opt(mc)
	}
	return mc.middlewares
}

func WithFloodWait() middlewareOption {
	return func(mc *middlewareConfig) {
		mc.middlewares = append(mc.middlewares, floodwait.NewSimpleWaiter())
	}
}

func WithRecovery(ctx context.Context) middlewareOption {
	return func(mc *middlewareConfig) {
		mc.middlewares = append(mc.middlewares,
			newRecovery(ctx, func() backoff.BackOff {
				return newBackoff(mc.config.ReconnectTimeout)
			}))
	}
}

func WithRateLimit() middlewareOption {
	return func(mc *middlewareConfig) {
		if mc.config.RateLimit {
			mc.middlewares = append(mc.middlewares,
				ratelimit.New(rate.Every(time.Millisecond*time.Duration(mc.config.Rate)), mc.config.RateBurst))
		}
	}
}

func newBackoff(timeout time.Duration) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.Multiplier = 1.1
	b.MaxElapsedTime = timeout
	b.MaxInterval = 10 * time.Second
	return b
}
