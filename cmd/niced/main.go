package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	api "github.com/bjornpagen/nice-sub010/internal/api/http"
	"github.com/bjornpagen/nice-sub010/internal/attempt"
	auth "github.com/bjornpagen/nice-sub010/internal/auth/middleware"
	"github.com/bjornpagen/nice-sub010/internal/caliper"
	"github.com/bjornpagen/nice-sub010/internal/config"
	"github.com/bjornpagen/nice-sub010/internal/db"
	"github.com/bjornpagen/nice-sub010/internal/eventlog"
	"github.com/bjornpagen/nice-sub010/internal/httpx"
	"github.com/bjornpagen/nice-sub010/internal/logger"
	"github.com/bjornpagen/nice-sub010/internal/streak"
	"github.com/bjornpagen/nice-sub010/internal/timecache"
	"github.com/bjornpagen/nice-sub010/internal/xp"
	sensor "github.com/bjornpagen/nice-sub010/pkg/caliper"
	"github.com/bjornpagen/nice-sub010/pkg/oneroster"
	"github.com/bjornpagen/nice-sub010/pkg/powerpath"
	"github.com/bjornpagen/nice-sub010/pkg/qtiapi"
)

func main() {
	cfg := config.FromEnv()
	lg := logger.Init(cfg.LogLevel, cfg.LogPretty)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- DB ---
	openCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	dbh, err := db.Open(openCtx, db.Driver(cfg.DBDriver), cfg.DBDSN)
	cancel()
	if err != nil {
		log.Fatal().Err(err).Msg("db open failed")
	}
	defer dbh.Close()

	// --- Redis ---
	ropts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("bad REDIS_URL")
	}
	rdb := redis.NewClient(ropts)
	defer rdb.Close()

	// --- Timeback clients ---
	upstream := func(base string) httpx.Config {
		return httpx.Config{
			BaseURL:      base,
			TokenURL:     cfg.TokenURL,
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Timeout:      cfg.UpstreamTimeout,
		}
	}
	roster := oneroster.New(upstream(cfg.OneRosterBaseURL))
	progress := powerpath.New(upstream(cfg.PowerPathBaseURL))
	qtiClient := qtiapi.New(upstream(cfg.QTIBaseURL))
	sensorClient := sensor.New(upstream(cfg.CaliperBaseURL), cfg.CaliperSensorID)

	// --- Core ---
	coord := attempt.NewCoordinator(progress, lg)
	streaks := &streak.SQLStore{DB: dbh}
	awarder := xp.NewAwarder(
		xp.ResultProficiency{Results: roster},
		&xp.Banker{Roster: roster, Log: lg},
		streaks,
		lg,
		time.Now,
	)
	syncStore := &caliper.SQLSyncStore{DB: dbh}
	writer := caliper.NewWriter(roster, syncStore, lg)
	emitter := caliper.NewEmitter(sensorClient, lg)
	events := eventlog.NewRepo(dbh)

	if cfg.ResyncSchedule != "" {
		c, err := caliper.NewResyncer(writer, syncStore, lg).Start(cfg.ResyncSchedule)
		if err != nil {
			log.Fatal().Err(err).Msg("resync scheduler")
		}
		defer c.Stop()
	}

	if cfg.SessionJWTSecret == "" {
		log.Fatal().Msg("SESSION_JWT_SECRET is required")
	}

	// --- Router ---
	r := api.NewRouter(api.Deps{
		Log:           lg,
		Auth:          auth.NewAuthService(cfg.SessionJWTSecret, ""),
		AdminUser:     cfg.AdminUser,
		AdminPassHash: cfg.AdminPassHash,
		CORSOrigins:   cfg.CORSOrigins,
		Tests:         qtiClient,
		Items:         qtiClient,
		Preparer:      coord,
		Awarder:       awarder,
		Events:        events,
		Time: &api.TimeHandlers{
			Store:   timecache.New(rdb),
			Writer:  writer,
			Emitter: emitter,
			Events:  events,
		},
		Failed: syncStore,
		Ready: map[string]api.Pinger{
			"db":    api.PingFunc(dbh.PingContext),
			"redis": api.PingFunc(func(ctx context.Context) error { return rdb.Ping(ctx).Err() }),
		},
	})

	s := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		_ = s.Shutdown(shutCtx)
	}()

	log.Info().Str("addr", cfg.HTTPAddr).Str("db", cfg.DBDriver).Msg("listening")
	if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("server stopped")
	}
}
