package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

const envPrefix = "FILESTORE_"

type LoggingConfig struct {
	Level string `koanf:"level" default:"info" description:"Logging level"`
	File  string `koanf:"file" description:"Logging file path"`
}

type DBConfig struct {
	DataSource         string        `koanf:"data-source" default:"file_store.db" description:"SQLite database file"`
	LogLevel           string        `koanf:"log-level" default:"error" description:"Database log level"`
	BusyTimeout        time.Duration `koanf:"busy-timeout" default:"5s" description:"SQLite busy timeout"`
	MaxOpenConnections int           `koanf:"max-open-connections" default:"1" validate:"min=1" description:"Database max open connections"`
	MaxIdleConnections int           `koanf:"max-idle-connections" default:"1" description:"Database max idle connections"`
	MaxLifetime        time.Duration `koanf:"max-lifetime" default:"10m" description:"Database max connection lifetime"`
}

type TGConfig struct {
	AppId            int           `koanf:"app-id" validate:"required" description:"Telegram app ID"`
	AppHash          string        `koanf:"app-hash" validate:"required" description:"Telegram app hash"`
	BotToken         string        `koanf:"bot-token" validate:"required" description:"Telegram bot token"`
	SessionFile      string        `koanf:"session-file" description:"Bot session file path"`
	RateLimit        bool          `koanf:"rate-limit" default:"true" description:"Enable rate limiting for telegram client"`
	RateBurst        int           `koanf:"rate-burst" default:"5" description:"Limiting burst for telegram client"`
	Rate             int           `koanf:"rate" default:"100" description:"Limiting rate for telegram client"`
	DeviceModel      string        `koanf:"device-model" default:"filestore-bot" description:"Device model"`
	SystemVersion    string        `koanf:"system-version" default:"linux" description:"System version"`
	AppVersion       string        `koanf:"app-version" default:"1.0.0" description:"App version"`
	LangCode         string        `koanf:"lang-code" default:"en" description:"Language code"`
	SystemLangCode   string        `koanf:"system-lang-code" default:"en-US" description:"System language code"`
	LangPack         string        `koanf:"lang-pack" description:"Language pack"`
	Ntp              bool          `koanf:"ntp" description:"Use NTP server time"`
	Proxy            string        `koanf:"proxy" validate:"omitempty,url" description:"SOCKS5 proxy URL"`
	ReconnectTimeout time.Duration `koanf:"reconnect-timeout" default:"5m" description:"Reconnection timeout"`
	RequestTimeout   time.Duration `koanf:"request-timeout" default:"2m" description:"Timeout for a single update handler"`
	Workers          int           `koanf:"workers" default:"8" validate:"min=1" description:"Concurrently handled updates"`
	EnableLogging    bool          `koanf:"enable-logging" description:"Enable telegram client logging"`
}

type StorageConfig struct {
	Dir string `koanf:"dir" default:"files" validate:"required" description:"Directory for stored files"`
}

type LinksConfig struct {
	Scheme string `koanf:"scheme" default:"http" validate:"oneof=http https" description:"Scheme of generated links"`
	Domain string `koanf:"domain" default:"yourdomain.com" validate:"required" description:"Domain of generated links"`
}

type ShortenerConfig struct {
	Enabled          bool          `koanf:"enabled" description:"Shorten links at startup"`
	Endpoint         string        `koanf:"endpoint" validate:"omitempty,url" description:"URL shortener API endpoint"`
	ApiKey           string        `koanf:"api-key" description:"URL shortener API key"`
	Timeout          time.Duration `koanf:"timeout" default:"10s" description:"URL shortener request timeout"`
	FailureThreshold int           `koanf:"failure-threshold" default:"5" description:"Consecutive failures before the shortener is skipped"`
	OpenTimeout      time.Duration `koanf:"open-timeout" default:"1m" description:"How long the shortener is skipped after failing"`
}

type AutoDeleteConfig struct {
	Timer         int           `koanf:"timer" default:"0" validate:"min=0" description:"Delete bot replies after this many seconds, 0 disables"`
	MaxConcurrent int           `koanf:"max-concurrent" default:"0" validate:"min=0" description:"Max deletions running at once, 0 is unbounded"`
	Timeout       time.Duration `koanf:"timeout" default:"30s" description:"Timeout of a single delete call"`
}

type ServerConfig struct {
	Enable           bool          `koanf:"enable" default:"true" description:"Serve stored files over HTTP"`
	Port             int           `koanf:"port" default:"8080" description:"Server port"`
	GracefulShutdown time.Duration `koanf:"graceful-shutdown" default:"10s" description:"Server graceful shutdown timeout"`
	ReadTimeout      time.Duration `koanf:"read-timeout" default:"1h" description:"Server read timeout"`
	WriteTimeout     time.Duration `koanf:"write-timeout" default:"1h" description:"Server write timeout"`
}

type CacheConfig struct {
	MaxSize   int           `koanf:"max-size" default:"10485760" description:"Max in-memory cache size in bytes"`
	RedisAddr string        `koanf:"redis-addr" description:"Redis address, in-memory cache is used when empty"`
	RedisPass string        `koanf:"redis-pass" description:"Redis password"`
	TTL       time.Duration `koanf:"ttl" default:"30m" description:"Cached record lifetime"`
}

type Config struct {
	Log        LoggingConfig    `koanf:"log"`
	DB         DBConfig         `koanf:"db"`
	TG         TGConfig         `koanf:"tg"`
	Storage    StorageConfig    `koanf:"storage"`
	Links      LinksConfig      `koanf:"links"`
	Shortener  ShortenerConfig  `koanf:"shortener"`
	AutoDelete AutoDeleteConfig `koanf:"autodelete"`
	Server     ServerConfig     `koanf:"server"`
	Cache      CacheConfig      `koanf:"cache"`
}

type ConfigLoader struct {
	k        *koanf.Koanf
	flagKeys map[string]string
	cfg      any
}

func NewConfigLoader() *ConfigLoader {
	return &ConfigLoader{
		k:        koanf.New("."),
		flagKeys: make(map[string]string),
	}
}

// RegisterFlags adds a flag for every leaf of cfg. Flag names are the
// koanf keys joined with "-", defaults come from the `default` tag.
func (cl *ConfigLoader) RegisterFlags(flags *pflag.FlagSet, cfg any) error {
	if flags.Lookup("config") == nil {
		flags.StringP("config", "c", "", "Config file path (default $HOME/.filestore/config.toml)")
	}
	t := reflect.TypeOf(cfg)
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return cl.registerStruct(flags, "", t)
}

func (cl *ConfigLoader) registerStruct(flags *pflag.FlagSet, prefix string, t reflect.Type) error {
	for i := range t.NumField() {
		field := t.Field(i)
		name := field.Tag.Get("koanf")
		if name == "" {
			continue
		}
		key := name
		if prefix != "" {
			key = prefix + "." + name
		}
		if field.Type.Kind() == reflect.Struct {
			if err := cl.registerStruct(flags, key, field.Type); err != nil {
				return err
			}
			continue
		}
		flagName := strings.ReplaceAll(key, ".", "-")
		if err := registerFlag(flags, flagName, field); err != nil {
			return errors.Wrapf(err, "flag %s", flagName)
		}
		cl.flagKeys[flagName] = key
	}
	return nil
}

func registerFlag(flags *pflag.FlagSet, name string, field reflect.StructField) error {
	def := field.Tag.Get("default")
	usage := field.Tag.Get("description")

	if field.Type == reflect.TypeOf(time.Duration(0)) {
		var d time.Duration
		if def != "" {
			var err error
			if d, err = time.ParseDuration(def); err != nil {
				return err
			}
		}
		flags.Duration(name, d, usage)
		return nil
	}

	switch field.Type.Kind() {
	case reflect.String:
		flags.String(name, def, usage)
	case reflect.Bool:
		v := false
		if def != "" {
			var err error
			if v, err = strconv.ParseBool(def); err != nil {
				return err
			}
		}
		flags.Bool(name, v, usage)
	case reflect.Int, reflect.Int64:
		var v int64
		if def != "" {
			var err error
			if v, err = strconv.ParseInt(def, 10, 64); err != nil {
				return err
			}
		}
		if field.Type.Kind() == reflect.Int {
			flags.Int(name, int(v), usage)
		} else {
			flags.Int64(name, v, usage)
		}
	default:
		return fmt.Errorf("unsupported type %s", field.Type)
	}
	return nil
}

// Load merges, in increasing priority: flag defaults, config file,
// FILESTORE_ environment variables and flags set on the command line.
func (cl *ConfigLoader) Load(cmd *cobra.Command, cfg any) error {
	flags := cmd.Flags()

	flags.VisitAll(func(f *pflag.Flag) {
		if key, ok := cl.flagKeys[f.Name]; ok {
			cl.k.Set(key, f.DefValue)
		}
	})

	cfgFile := ""
	if f := flags.Lookup("config"); f != nil {
		cfgFile = f.Value.String()
	}
	if cfgFile == "" {
		cfgFile = defaultConfigFile()
	}
	if cfgFile != "" {
		if err := cl.k.Load(file.Provider(cfgFile), parserFor(cfgFile)); err != nil {
			return errors.Wrap(err, "read config file")
		}
	}

	if err := cl.k.Load(env.Provider(envPrefix, ".", envKey), nil); err != nil {
		return errors.Wrap(err, "read environment")
	}

	flags.Visit(func(f *pflag.Flag) {
		if key, ok := cl.flagKeys[f.Name]; ok {
			cl.k.Set(key, f.Value.String())
		}
	})

	err := cl.k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
			),
			WeaklyTypedInput: true,
			Result:           cfg,
			TagName:          "koanf",
		},
	})
	if err != nil {
		return errors.Wrap(err, "decode config")
	}
	cl.cfg = cfg
	return nil
}

func (cl *ConfigLoader) Validate() error {
	if cl.cfg == nil {
		return errors.New("config not loaded")
	}
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		return f.Tag.Get("koanf")
	})
	err := v.Struct(cl.cfg)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	var missing, invalid []string
	for _, fe := range verrs {
		key := fe.Namespace()
		if i := strings.Index(key, "."); i >= 0 {
			key = key[i+1:]
		}
		if fe.Tag() == "required" {
			missing = append(missing, key)
		} else {
			invalid = append(invalid, fmt.Sprintf("%s (%s)", key, fe.Tag()))
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("required configuration values not set: %s", strings.Join(missing, ", "))
	}
	return fmt.Errorf("invalid configuration values: %s", strings.Join(invalid, ", "))
}

// FILESTORE_TG_BOT_TOKEN -> tg.bot-token
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, envPrefix))
	s = strings.Replace(s, "_", ".", 1)
	return strings.ReplaceAll(s, "_", "-")
}

func parserFor(path string) koanf.Parser {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Parser()
	default:
		return toml.Parser()
	}
}

func defaultConfigFile() string {
	candidates := []string{"config.toml"}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".filestore", "config.toml"))
	}
	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c
		}
	}
	return ""
}
