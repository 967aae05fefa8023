package main

import (
	"context"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/oakmontrealty/voicrm-sydney/internal/assignment"
	"github.com/oakmontrealty/voicrm-sydney/internal/carousel"
	"github.com/oakmontrealty/voicrm-sydney/internal/coaching"
	"github.com/oakmontrealty/voicrm-sydney/internal/collision"
	"github.com/oakmontrealty/voicrm-sydney/internal/config"
	"github.com/oakmontrealty/voicrm-sydney/internal/httpapi"
	"github.com/oakmontrealty/voicrm-sydney/internal/metrics"
	"github.com/oakmontrealty/voicrm-sydney/internal/numbers"
	"github.com/oakmontrealty/voicrm-sydney/internal/quality"
	"github.com/oakmontrealty/voicrm-sydney/internal/sessions"
	"github.com/oakmontrealty/voicrm-sydney/internal/telephony"
	"github.com/oakmontrealty/voicrm-sydney/internal/transcribe"
	"github.com/oakmontrealty/voicrm-sydney/pkg/anthropic"
	"github.com/oakmontrealty/voicrm-sydney/pkg/utils"
)

const (
	selectionKeyPrefix = "voicrm:select"
	sessionKeyPrefix   = "voicrm:stream"
	healthTimeout      = 2 * time.Second
)

// infra is what main opens before any service exists.
type infra struct {
	cfg     config.Config
	log     *zap.Logger
	db      *pgxpool.Pool
	rdb     *redis.Client
	metrics *metrics.Metrics
}

type application struct {
	cfg      config.Config
	handlers httpapi.Handlers
	webhooks telephony.TwilioWebhookHandler
	calls    *telephony.CallMachine
	sessions sessions.Registry
	metrics  *metrics.Metrics

	closers   []func()
	closeOnce sync.Once
}

// close releases background workers in reverse start order.
func (a *application) close() {
	a.closeOnce.Do(func() {
		for i := len(a.closers) - 1; i >= 0; i-- {
			a.closers[i]()
		}
	})
}

func build(ctx context.Context, in infra) (*application, error) {
	cfg, log, m := in.cfg, in.log, in.metrics
	app := &application{cfg: cfg, metrics: m}

	ledger := assignment.NewPostgresLedger(in.db)
	dir := numbers.NewDirectory(numbers.NewPostgresRepo(in.db), ledger)
	contacts := collision.NewPostgresStore(in.db)
	detector := collision.NewDetector(contacts, cfg.Carousel.CollisionLookback, m)
	qsvc := quality.NewService(quality.NewPostgresRepo(in.db), log.Named("quality"), m)
	transcripts := transcribe.NewPostgresRepo(in.db)

	var limiter carousel.Limiter
	if in.rdb != nil && cfg.Carousel.SelectionRatePerMinute > 0 {
		wl, err := utils.NewWindowLimiter(in.rdb, selectionKeyPrefix, cfg.Carousel.SelectionRatePerMinute, time.Minute)
		if err != nil {
			return nil, err
		}
		limiter = wl
	}

	selector := carousel.NewSelector(carousel.Deps{
		Numbers:         dir,
		Recorder:        assignment.NewRecorder(ledger, dir, contacts, log.Named("assignment")),
		Collisions:      detector,
		Quality:         qsvc,
		Limiter:         limiter,
		Metrics:         m,
		Log:             log.Named("carousel"),
		DefaultStrategy: carousel.ParseStrategy(cfg.Carousel.DefaultStrategy),
		Lookback:        cfg.Carousel.CollisionLookback,
		Location:        cfg.Carousel.Location,
	})

	var completer anthropic.Completer
	if cfg.Anthropic.APIKey != "" {
		completer = anthropic.NewClient(anthropic.Config{
			APIKey:    cfg.Anthropic.APIKey,
			Model:     cfg.Anthropic.Model,
			MaxTokens: int64(cfg.Anthropic.MaxTokens),
		})
	} else {
		log.Info("anthropic key not set; coaching is rule-based")
	}
	coach := coaching.New(coaching.Deps{
		Completer:   completer,
		Contacts:    contacts,
		Transcripts: transcripts,
		Analyses:    coaching.NewPostgresAnalysisStore(in.db),
		Metrics:     m,
		Log:         log.Named("coaching"),
		Timeout:     cfg.Carousel.CoachingTimeout,
	})

	if in.rdb != nil {
		app.sessions = sessions.NewRedisRegistry(in.rdb, sessionKeyPrefix, cfg.Carousel.SessionTTL)
	} else {
		app.sessions = sessions.NewMemoryRegistry(cfg.Carousel.SessionTTL)
	}

	var transcriber transcribe.Transcriber
	if cfg.Speech.Enabled {
		gs, err := transcribe.NewGoogleSpeech(ctx, transcribe.SpeechConfig{
			LanguageCode:    cfg.Speech.LanguageCode,
			SampleRateHertz: cfg.Speech.SampleRateHz,
			Credentials:     cfg.Speech.CredentialsFile,
		})
		if err != nil {
			return nil, err
		}
		transcriber = gs
		app.closers = append(app.closers, func() {
			if err := gs.Close(); err != nil {
				log.Warn("speech client close failed", zap.Error(err))
			}
		})
	}

	streams := telephony.NewStreamProcessor(telephony.StreamDeps{
		Sessions:    app.sessions,
		Transcriber: transcriber,
		Transcripts: transcripts,
		Coach:       coach,
		Summarizer:  coach,
		Metrics:     m,
		Log:         log.Named("stream"),

		TranscribeTimeout: cfg.Carousel.TranscribeTimeout,
	})
	app.closers = append(app.closers, streams.Close)

	// Call quality polling needs the provider's stats API.
	var hooks telephony.CallHooks
	if cfg.Twilio.AccountSID != "" && cfg.Twilio.AuthToken != "" {
		provider, err := telephony.NewTwilioProvider(cfg.Twilio)
		if err != nil {
			return nil, err
		}
		poller := quality.NewPoller(qsvc, provider, quality.DefaultPollInterval, log.Named("poller"),
			quality.WithMaxCallDuration(cfg.Carousel.CallMaxAge))
		app.closers = append(app.closers, poller.Close)
		hooks = poller

		go func() {
			hctx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			if err := provider.HealthCheck(hctx); err != nil {
				log.Warn("twilio account check failed", zap.Error(err))
			}
		}()
	} else {
		log.Info("twilio credentials not set; call quality polling off")
	}

	var tokens *telephony.TokenIssuer
	if cfg.Twilio.APIKey != "" {
		ti, err := telephony.NewTokenIssuer(cfg.Twilio)
		if err != nil {
			return nil, err
		}
		tokens = ti
	}

	app.calls = telephony.NewCallMachine(hooks, cfg.Carousel.CallMaxAge, log.Named("calls"))
	app.webhooks = telephony.TwilioWebhookHandler{
		Chooser: selector,
		Calls:   app.calls,
	}

	checks := []httpapi.HealthCheck{{
		Name:  "postgres",
		Check: func(ctx context.Context) error { return utils.HealthCheck(ctx, in.db, healthTimeout) },
	}}
	if in.rdb != nil {
		checks = append(checks, httpapi.HealthCheck{
			Name:  "redis",
			Check: func(ctx context.Context) error { return in.rdb.Ping(ctx).Err() },
		})
	}

	app.handlers = httpapi.Handlers{
		Selector:    selector,
		Numbers:     dir,
		Collisions:  detector,
		Quality:     qsvc,
		Coach:       coach,
		Streams:     streams,
		Transcripts: transcripts,
		Tokens:      tokens,
		Checks:      checks,
	}
	return app, nil
}
