package ioc

import (
	"os"

	"github.com/adshao/go-binance/v2/futures"
	"github.com/spf13/viper"
)

// InitBinanceFuturesCli 缺少 API 凭证直接 panic，凭证问题必须在启动时暴露
func InitBinanceFuturesCli() *futures.Client {
	type Config struct {
		ApiKey    string `mapstructure:"api_key"`
		ApiSecret string `mapstructure:"api_secret"`
	}

	var cfg Config
	if err := viper.UnmarshalKey("cex.binance", &cfg); err != nil {
		panic(err)
	}
	if cfg.ApiKey == "" {
		cfg.ApiKey = os.Getenv("BINANCE_API_KEY")
	}
	if cfg.ApiSecret == "" {
		cfg.ApiSecret = os.Getenv("BINANCE_API_SECRET")
	}
	if cfg.ApiKey == "" || cfg.ApiSecret == "" {
		panic("missing binance api credentials: set cex.binance in config or BINANCE_API_KEY/BINANCE_API_SECRET")
	}

	return futures.NewClient(cfg.ApiKey, cfg.ApiSecret)
}
