package cmd

import (
	"context"
	"net/http"
	"os"

	"github.com/go-faster/errors"
	"github.com/gotd/td/tg"
	"github.com/spf13/cobra"
	"github.com/tgdrive/filestore/internal/autodelete"
	"github.com/tgdrive/filestore/internal/banner"
	"github.com/tgdrive/filestore/internal/bot"
	"github.com/tgdrive/filestore/internal/cache"
	"github.com/tgdrive/filestore/internal/config"
	"github.com/tgdrive/filestore/internal/database"
	"github.com/tgdrive/filestore/internal/filestore"
	"github.com/tgdrive/filestore/internal/logging"
	"github.com/tgdrive/filestore/internal/server"
	"github.com/tgdrive/filestore/internal/settings"
	"github.com/tgdrive/filestore/internal/shortener"
	"github.com/tgdrive/filestore/internal/tgc"
	"github.com/tgdrive/filestore/internal/version"
	"github.com/tgdrive/filestore/pkg/services"
	"go.uber.org/zap"
)

func NewRun() *cobra.Command {
	var cfg config.Config
	loader := config.NewConfigLoader()
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the bot",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApplication(cmd.Context(), &cfg)
		},
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := loader.Load(cmd, &cfg); err != nil {
				return err
			}
			return loader.Validate()
		},
	}
	if err := loader.RegisterFlags(cmd.Flags(), &cfg); err != nil {
		panic(err)
	}
	return cmd
}

func runApplication(ctx context.Context, conf *config.Config) error {
	logging.SetConfig(&logging.Config{
		Level:    logging.ParseLevel(conf.Log.Level),
		FilePath: conf.Log.File,
	})
	lg := logging.DefaultLogger()
	defer func() { _ = lg.Sync() }()
	ctx = logging.WithLogger(ctx, lg)

	db, err := database.NewDatabase(&conf.DB, lg.Sugar())
	if err != nil {
		return errors.Wrap(err, "create database")
	}
	if err := database.MigrateDB(db, lg.Sugar()); err != nil {
		return errors.Wrap(err, "migrate database")
	}

	cacher, err := cache.NewCache(ctx, &conf.Cache)
	if err != nil {
		return err
	}
	files := services.NewFileService(db, cacher, conf.Cache.TTL)

	disk, err := filestore.NewDisk(conf.Storage.Dir)
	if err != nil {
		return err
	}

	boltdb, err := tgc.NewBoltDB(conf.TG.SessionFile)
	if err != nil {
		return errors.Wrap(err, "open session db")
	}
	defer boltdb.Close()

	dispatcher := tg.NewUpdateDispatcher()
	middlewares := tgc.NewMiddleware(&conf.TG,
		tgc.WithFloodWait(),
		tgc.WithRecovery(ctx),
		tgc.WithRateLimit())
	client, err := tgc.BotClient(ctx, boltdb, &conf.TG, dispatcher, middlewares...)
	if err != nil {
		return errors.Wrap(err, "create telegram client")
	}

	telegram := bot.NewTelegram(client.API())

	scheduler, err := autodelete.New(telegram, &conf.AutoDelete, lg)
	if err != nil {
		return err
	}
	defer func() {
		if err := scheduler.Shutdown(); err != nil {
			lg.Warn("scheduler shutdown", zap.Error(err))
		}
	}()

	b := bot.New(bot.Options{
		Messenger:  telegram,
		Records:    files,
		Blobs:      disk,
		Shortener:  shortener.New(&conf.Shortener),
		Scheduler:  scheduler,
		Settings:   settings.New(conf.Shortener.Enabled, conf.AutoDelete.Timer),
		LinkScheme: conf.Links.Scheme,
		LinkDomain: conf.Links.Domain,
	})
	listener := bot.NewListener(ctx, telegram, b, conf.TG.Workers, conf.TG.RequestTimeout)
	listener.Register(dispatcher)

	var srv *http.Server
	if conf.Server.Enable {
		srv = server.New(&conf.Server, server.NewHandler(files, disk, lg))
		go func() {
			lg.Info("file server started", zap.String("addr", srv.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				lg.Error("file server failed", zap.Error(err))
			}
		}()
	}

	err = tgc.RunWithAuth(ctx, client, conf.TG.BotToken, func(ctx context.Context) error {
		self, err := client.Self(ctx)
		if err != nil {
			return errors.Wrap(err, "get self")
		}
		b.SetUsername(self.Username)
		if _, err := client.API().UpdatesGetState(ctx); err != nil {
			lg.Warn("get updates state", zap.Error(err))
		}
		addr := ""
		if srv != nil {
			addr = srv.Addr
		}
		banner.Print(os.Stdout, banner.StartupInfo{
			Version:  version.Version,
			Bot:      self.Username,
			Addr:     addr,
			Storage:  conf.Storage.Dir,
			Database: conf.DB.DataSource,
		})
		lg.Info("bot started", zap.String("username", self.Username))
		<-ctx.Done()
		return ctx.Err()
	})

	lg.Info("shutting down")
	listener.Wait()

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), conf.Server.GracefulShutdown)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			lg.Error("file server shutdown failed", zap.Error(err))
		}
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	lg.Info("stopped")
	return nil
}
