package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/KNICEX/position-guard/internal/repo"
	"github.com/KNICEX/position-guard/internal/schedule"
	"github.com/KNICEX/position-guard/internal/service/exchange"
	"github.com/KNICEX/position-guard/internal/service/exchange/binance"
	"github.com/KNICEX/position-guard/internal/service/notification"
	"github.com/KNICEX/position-guard/internal/service/protection"
	"github.com/KNICEX/position-guard/ioc"
	"github.com/KNICEX/position-guard/pkg/decimalx"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// pollInterval 保护流水线的轮询周期
const pollInterval = 10 * time.Second

func initViper() {

	// --config=./config/xxx.yaml
	file := pflag.String("config", "./config/config.yaml", "specify config file")
	pflag.Parse()

	viper.SetConfigFile(*file)
	err := viper.ReadInConfig()
	if err != nil {
		panic(fmt.Errorf("fatal error config file: %s \n", err))
	}
}

func watchPair() exchange.TradingPair {
	type Config struct {
		Symbol string `mapstructure:"symbol"`
		Base   string `mapstructure:"base"`
		Quote  string `mapstructure:"quote"`
	}

	var cfg Config
	if err := viper.UnmarshalKey("watch", &cfg); err != nil {
		panic(err)
	}
	// 支持 symbol: ETHUSDT 或 base/quote 两种写法
	if cfg.Base == "" && cfg.Symbol != "" {
		cfg.Base, cfg.Quote = exchange.SplitSymbol(cfg.Symbol)
	}
	pair := exchange.TradingPair{Base: cfg.Base, Quote: cfg.Quote}
	if pair.IsZero() {
		panic("missing watch.symbol or watch.base/watch.quote in config")
	}
	return pair
}

func main() {
	initViper()

	cli := ioc.InitBinanceFuturesCli()
	svc := binance.NewService(cli)
	// 签名请求前先校准与交易所的时间偏移
	if _, err := svc.MarketService().ServerTime(context.Background()); err != nil {
		panic(fmt.Errorf("sync server time: %w", err))
	}
	pair := watchPair()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	filter, err := svc.SymbolService().GetSymbolFilter(ctx, pair)
	if err != nil {
		panic(fmt.Errorf("get symbol filter: %w", err))
	}
	notifier := ioc.InitTelegramNotifier()

	// <entryPrice> <widthPercent> <LONG|SHORT> 三个位置参数时只跑触发监听器
	if args := pflag.Args(); len(args) == 3 {
		runWatcherOnly(ctx, svc, pair, filter, notifier, args)
		return
	}

	db := ioc.InitDB()
	if err := repo.InitTables(db); err != nil {
		panic(err)
	}
	protectionRepo := repo.NewProtectionRepo(db)

	opts := []protection.Option{
		protection.WithProtectionRepo(protectionRepo),
	}
	if notifier != nil {
		opts = append(opts, protection.WithNotifier(notifier))
	}
	coordinator := protection.NewCoordinator(
		pair,
		svc.MarketService(),
		svc.PositionService(),
		svc.OrderService(),
		filter,
		opts...,
	)

	slog.Info("position protection pipeline started",
		"pair", pair.ToString(), "interval", pollInterval)
	if err := schedule.RunEvery(ctx, pollInterval, coordinator); err != nil &&
		!errors.Is(err, context.Canceled) {
		panic(err)
	}
}

func runWatcherOnly(
	ctx context.Context,
	svc *binance.Service,
	pair exchange.TradingPair,
	filter exchange.SymbolFilter,
	notifier notification.Service,
	args []string,
) {
	side := exchange.PositionSide(args[2])
	if side != exchange.PositionSideLong && side != exchange.PositionSideShort {
		panic(fmt.Sprintf("invalid side %q, want LONG or SHORT", args[2]))
	}

	tc := protection.TriggerContext{
		Side:         side,
		EntryPrice:   decimalx.MustFromString(args[0]),
		WidthPercent: decimalx.MustFromString(args[1]),
	}
	opts := []protection.WatcherOption{}
	if notifier != nil {
		opts = append(opts, protection.WithWatcherNotifier(notifier))
	}

	watcher := protection.NewTriggerWatcher(
		pair, tc,
		svc.MarketService(),
		svc.PositionService(),
		svc.OrderService(),
		filter,
		opts...,
	)
	if err := watcher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		panic(err)
	}
}
