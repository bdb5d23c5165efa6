package config

import (
	"errors"
	"os"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	handlerConfig "github.com/iurnickita/foodorder/internal/handler/config"
	loggerConfig "github.com/iurnickita/foodorder/internal/logger/config"
	serviceConfig "github.com/iurnickita/foodorder/internal/service/config"
	storeConfig "github.com/iurnickita/foodorder/internal/store/config"
	tokenConfig "github.com/iurnickita/foodorder/internal/token/config"
)

type Config struct {
	Handler handlerConfig.Config
	Service serviceConfig.Config
	Store   storeConfig.Config
	Logger  loggerConfig.Config
	Token   tokenConfig.Config
}

var ErrNoSecret = errors.New("token secret is not set")

// GetConfig собирает конфигурацию из флагов командной строки,
// переменных окружения FOODORDER_* и необязательного YAML-файла.
// Приоритет: флаг, окружение, файл, значение по умолчанию.
func GetConfig() (Config, error) {
	return Load(os.Args[1:])
}

func Load(args []string) (Config, error) {
	v := viper.New()
	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.lock_timeout", "5s")
	v.SetDefault("log.level", "info")
	v.SetDefault("token.secret", "")
	v.SetDefault("token.ttl", "24h")
	v.SetDefault("settlement.tx_timeout", "10s")

	fs := pflag.NewFlagSet("foodorder", pflag.ContinueOnError)
	fs.StringP("address", "a", "", "HTTP server address")
	fs.StringP("database-uri", "d", "", "PostgreSQL DSN, in-memory store when empty")
	fs.StringP("log-level", "l", "", "log level")
	fs.StringP("config", "c", "", "path to YAML config file")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	bindFlag(v, "server.address", fs.Lookup("address"))
	bindFlag(v, "database.dsn", fs.Lookup("database-uri"))
	bindFlag(v, "log.level", fs.Lookup("log-level"))
	bindFlag(v, "config", fs.Lookup("config"))

	v.SetEnvPrefix("FOODORDER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// имена переменных, привычные для деплоя
	v.BindEnv("database.dsn", "FOODORDER_DATABASE_DSN", "DATABASE_URI")
	v.BindEnv("server.address", "FOODORDER_SERVER_ADDRESS", "RUN_ADDRESS")

	if path := v.GetString("config"); path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return Config{}, err
		}
	}

	var cfg Config
	cfg.Handler.ServerAddr = v.GetString("server.address")
	cfg.Handler.ShutdownTimeout = v.GetDuration("server.shutdown_timeout")
	cfg.Store.DBDsn = v.GetString("database.dsn")
	cfg.Store.LockTimeout = v.GetDuration("database.lock_timeout")
	cfg.Logger.LogLevel = v.GetString("log.level")
	cfg.Token.SecretKey = v.GetString("token.secret")
	cfg.Token.TokenExp = v.GetDuration("token.ttl")
	cfg.Service.Settlement.TxTimeout = v.GetDuration("settlement.tx_timeout")

	return cfg, nil
}

// Validate проверяет параметры, без которых сервер не запускается
func (cfg Config) Validate() error {
	if cfg.Token.SecretKey == "" {
		return ErrNoSecret
	}
	return nil
}

// bindFlag учитывает флаг, только если он задан явно
func bindFlag(v *viper.Viper, key string, flag *pflag.Flag) {
	if flag != nil && flag.Changed {
		v.Set(key, flag.Value.String())
	}
}
