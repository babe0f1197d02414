package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"bookcal/internal/cache"
	"bookcal/internal/calendar"
	"bookcal/internal/config"
	"bookcal/internal/feed"
	appLog "bookcal/internal/log"
	"bookcal/internal/refresh"
	"bookcal/internal/snapshot"
	"bookcal/internal/source"
	"bookcal/internal/source/mysqlsrc"
	"bookcal/internal/web"
)

const version = "0.3.0"

type flagConfig struct {
	configPath string
	listen     string
	once       bool
	month      string
	envPath    string
}

func main() {
	flags := parseFlags()

	if err := loadEnv(flags.envPath); err != nil {
		appLog.Error("failed to load env file", err, "path", flags.envPath)
		os.Exit(1)
	}

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}
	conf.ApplyEnv(os.LookupEnv)

	// CLI --listen overrides config file and env.
	if flags.listen != "" {
		conf.Listen = flags.listen
	}
	appLog.SetLevel(appLog.ParseLevel(conf.LogLevel))

	appLog.Info("bookcal starting", "version", version)
	appLog.Info("effective config",
		"listen", conf.Listen,
		"timezone", conf.Timezone,
		"week_start", conf.WeekStart,
		"refresh", conf.RefreshCron,
		"mysql", conf.MySQL.DSN != "",
		"redis", conf.Redis.Addr,
		"ics_count", len(conf.ICS),
		"accounts", len(conf.Accounts),
		"once", flags.once,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, conf, flags, os.Stdout); err != nil {
		appLog.Error("bookcal failed", err)
		os.Exit(1)
	}
	appLog.Info("bookcal exiting")
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "/etc/bookcal/config.yaml", "Path to config file")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.BoolVar(&cfg.once, "once", false, "Fetch once, print the month layout as JSON and exit")
	flag.StringVar(&cfg.month, "month", "", "Month for -once as YYYY-MM (default: current month)")
	flag.StringVar(&cfg.envPath, "env", ".env", "Optional .env file with BOOKCAL_* overrides")

	flag.Parse()

	return cfg
}

// loadEnv reads path into the process environment. A missing file is not an
// error; variables already set win over the file.
func loadEnv(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	return nil
}

func run(ctx context.Context, conf *config.Config, flags flagConfig, stdout io.Writer) error {
	loc, err := conf.Location()
	if err != nil {
		appLog.Warn("falling back to local timezone", "error", err)
	}

	bookings, accounts, closeFn, err := buildSources(conf, loc)
	if err != nil {
		return err
	}
	defer closeFn()

	store := snapshot.New()
	runner := refresh.New(store, bookings, accounts, 0)

	if _, err := runner.Refresh(ctx); err != nil {
		// a partial or failed first fetch still lets the API start
		appLog.Error("initial refresh", err)
		if flags.once && store.Current().Version == 0 && !errors.Is(err, source.ErrNoSources) {
			return err
		}
	}

	if flags.once {
		return printLayout(stdout, store.Current(), conf, loc, flags.month)
	}

	if err := runner.Start(ctx, conf.RefreshCron); err != nil {
		return err
	}

	c, closeCache := buildCache(ctx, conf)
	defer closeCache()

	srv := web.NewServer(conf, store, runner, c)
	if err := srv.Run(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// buildSources wires the configured booking stores. Config accounts come
// first so their labels win over those derived from feeds.
func buildSources(conf *config.Config, loc *time.Location) (source.BookingSource, []source.AccountSource, func(), error) {
	var (
		multi    source.Multi
		accounts = []source.AccountSource{source.StaticAccounts(conf.Accounts)}
		closers  []func() error
	)

	if conf.MySQL.DSN != "" {
		db, err := mysqlsrc.Open(conf.MySQL.DSN, loc)
		if err != nil {
			return nil, nil, nil, err
		}
		multi = append(multi, db)
		accounts = append(accounts, db)
		closers = append(closers, db.Close)
	}

	if len(conf.ICS) > 0 {
		subs := make([]feed.Subscription, 0, len(conf.ICS))
		for _, ics := range conf.ICS {
			subs = append(subs, feed.Subscription{
				AccountID:   ics.ID,
				AccountName: ics.Name,
				URL:         ics.URL,
				Color:       ics.Color,
			})
		}
		client := feed.NewClient(conf.CacheDir, &http.Client{Timeout: 20 * time.Second})
		src := feed.NewSource(client, subs, loc)
		multi = append(multi, src)
		accounts = append(accounts, src)
	}

	if len(multi) == 0 {
		appLog.Warn("no booking sources configured; serving an empty calendar")
	}

	closeFn := func() {
		for _, c := range closers {
			if err := c(); err != nil {
				appLog.Error("close source", err)
			}
		}
	}
	return multi, accounts, closeFn, nil
}

// buildCache prefers Redis when configured and reachable.
func buildCache(ctx context.Context, conf *config.Config) (cache.Cache, func()) {
	if conf.Redis.Addr != "" {
		r, err := cache.NewRedis(ctx, cache.RedisOptions{
			Addr:     conf.Redis.Addr,
			Password: conf.Redis.Password,
			DB:       conf.Redis.DB,
			Prefix:   conf.Redis.Prefix,
		})
		if err == nil {
			appLog.Info("using redis response cache", "addr", conf.Redis.Addr)
			return r, func() { _ = r.Close() }
		}
		appLog.Error("redis unavailable; using in-memory cache", err)
	}
	return cache.NewMemory(1024), func() {}
}

func printLayout(w io.Writer, snap snapshot.Snapshot, conf *config.Config, loc *time.Location, month string) error {
	view := calendar.NewViewState(time.Now(), loc).WithWeekStart(conf.FirstWeekday())
	if month != "" {
		t, err := time.ParseInLocation("2006-01", month, loc)
		if err != nil {
			return fmt.Errorf("invalid -month %q: %w", month, err)
		}
		view.Year, view.Month = t.Year(), t.Month()
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(web.NewLayoutJSON(calendar.BuildLayout(snap.Bookings, view), snap.Version))
}
