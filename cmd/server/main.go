package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"kiosk/internal/admin"
	attendanceservice "kiosk/internal/attendance/service"
	"kiosk/internal/biometric"
	branchservice "kiosk/internal/branch/service"
	"kiosk/internal/device/fingerprint"
	deviceservice "kiosk/internal/device/service"
	"kiosk/internal/otp/notifier"
	otpservice "kiosk/internal/otp/service"
	"kiosk/internal/platform/config"
	"kiosk/internal/platform/httpserver"
	"kiosk/internal/platform/kafka"
	"kiosk/internal/platform/logger"
	"kiosk/internal/platform/metrics"
	"kiosk/internal/platform/postgres"
	platformredis "kiosk/internal/platform/redis"
	staffservice "kiosk/internal/staff/service"
	"kiosk/internal/terminal"
	terminalhandler "kiosk/internal/terminal/handler"
	httptransport "kiosk/internal/transport/http"
	"kiosk/internal/trust"
	"kiosk/internal/trust/lockout"
	"kiosk/internal/trust/pintoken"
	"kiosk/pkg/platform/audit/publisher"
	"kiosk/pkg/platform/audit/worker"
)

// main wires dependencies and runs the HTTP server and the outbox relay
// until SIGINT or SIGTERM.
func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("kiosk stopped", "error", err)
		os.Exit(1)
	}
	log.Info("kiosk stopped")
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	var db *sql.DB
	if cfg.Database.URL != "" {
		var err error
		db, err = postgres.Open(ctx, cfg.Database)
		if err != nil {
			return err
		}
		defer db.Close()
		if cfg.Database.Migrate {
			if err := postgres.Migrate(ctx, db); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
		}
	} else {
		log.Warn("no database configured, using in-memory stores")
	}

	rdb, err := platformredis.New(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	if rdb != nil {
		defer rdb.Close()
	}

	m := metrics.New()
	st := newStores(db, rdb.Universal())

	activity := publisher.NewPublisher(st.audit,
		publisher.WithAsyncBuffer(1024),
		publisher.WithLogger(log),
		publisher.WithMetrics(publisher.NewMetrics()),
	)
	defer activity.Close()

	loc := cfg.Attendance.Location()
	branches := branchservice.New(st.branches, branchservice.WithLogger(log))
	devices := deviceservice.New(st.devices,
		deviceservice.WithLogger(log),
		deviceservice.WithAuditEmitter(activity),
		deviceservice.WithOTPRequests(st.otp),
	)
	staff := staffservice.New(st.staff,
		staffservice.WithLogger(log),
		staffservice.WithEmbeddingDimensions(cfg.Matcher.Dimensions),
	)
	attendance := attendanceservice.New(st.attendance,
		attendanceservice.WithLogger(log),
		attendanceservice.WithAuditEmitter(activity),
		attendanceservice.WithMetrics(m),
		attendanceservice.WithLocation(loc),
	)
	registrations := otpservice.New(st.otp, st.branches, notifier.NewLogNotifier(log), devices,
		otpservice.WithLogger(log),
		otpservice.WithAuditEmitter(activity),
		otpservice.WithMetrics(m),
		otpservice.WithConfig(otpservice.Config{
			Window:       cfg.OTP.Window,
			PollInterval: cfg.OTP.PollInterval,
			MaxPolls:     cfg.OTP.MaxPolls,
		}),
	)
	gate := trust.New(st.branches, st.devices, pintoken.NewService(cfg.Trust.PinSigningKey),
		trust.WithLogger(log),
		trust.WithAuditEmitter(activity),
		trust.WithMetrics(m),
		trust.WithSelfRegistration(cfg.Trust.AllowSelfRegistration),
		trust.WithPinLockout(lockout.New(st.lockout,
			lockout.WithLogger(log),
			lockout.WithConfig(lockout.Config{
				Threshold: cfg.Trust.PinLockoutThreshold,
				Window:    cfg.Trust.PinLockoutWindow,
				Duration:  cfg.Trust.PinLockoutDuration,
			}),
		)),
	)

	termOpts := []terminal.Option{
		terminal.WithLogger(log),
		terminal.WithMetrics(m),
		terminal.WithConfig(terminal.Config{
			SuccessDisplay: cfg.Terminal.SuccessDisplay,
			ErrorDisplay:   cfg.Terminal.ErrorDisplay,
			Match: biometric.Options{
				MaxAttempts: cfg.Matcher.MaxAttempts,
				Delay:       cfg.Matcher.Delay,
				Threshold:   cfg.Matcher.Threshold,
			},
			Constraints: biometric.DefaultConstraints(),
		}),
	}
	if rdb != nil {
		termOpts = append(termOpts, terminal.WithLocker(terminal.NewRedisLocker(rdb.Universal(), cfg.Terminal.LockTTL)))
	}
	orchestrator := terminal.New(gate, registrations,
		biometric.NewMatcher(biometric.DescriptorExtractor{},
			biometric.WithLogger(log),
			biometric.WithMetrics(m),
		),
		staff, attendance, termOpts...)
	defer orchestrator.Close()

	checks := map[string]httptransport.HealthCheck{}
	if st.ping != nil {
		checks["postgres"] = st.ping
	}
	if rdb != nil {
		checks["redis"] = rdb.Health
	}

	g, gctx := errgroup.WithContext(ctx)

	if st.outbox != nil && len(cfg.Kafka.Brokers) > 0 {
		producer, err := kafka.NewProducer(cfg.Kafka)
		if err != nil {
			return err
		}
		defer producer.Close()
		if err := producer.EnsureTopic(ctx, cfg.Kafka.Partitions, cfg.Kafka.ReplicationFactor); err != nil {
			log.Warn("could not ensure activity topic", "topic", cfg.Kafka.Topic, "error", err)
		}
		checks["kafka"] = producer.Health
		relay := worker.NewWorker(st.outbox, producer,
			worker.WithLogger(log),
			worker.WithInterval(cfg.Kafka.RelayInterval),
			worker.WithBatchSize(cfg.Kafka.RelayBatchSize),
		)
		g.Go(func() error { return relay.Run(gctx) })
	}

	router := httptransport.NewRouter(httptransport.Config{
		Logger:       log,
		Metrics:      m,
		Gatherer:     prometheus.DefaultGatherer,
		Fingerprints: fingerprint.NewService(true),
		Checks:       checks,
	},
		terminalhandler.New(orchestrator, gate, registrations, log),
		admin.New(branches, devices, staff, attendance, cfg.Server.AdminToken, log),
	)
	if cfg.Server.AdminToken == "" {
		log.Warn("KIOSK_ADMIN_TOKEN is empty, admin routes will reject every request")
	}

	srv := httpserver.New(cfg.Server.Addr, router)
	g.Go(func() error {
		log.Info("starting kiosk server", "addr", cfg.Server.Addr)
		return httpserver.Run(gctx, srv, cfg.Server.ShutdownTimeout)
	})

	return g.Wait()
}
