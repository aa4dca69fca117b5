// server runs the auth gRPC server: account registration, two-step login,
// token refresh, session management, and the background janitor.
package main

import (
	"context"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"vehicle-rental-platform/authcore/internal/audit"
	auditrepo "vehicle-rental-platform/authcore/internal/audit/repository"
	"vehicle-rental-platform/authcore/internal/authn"
	"vehicle-rental-platform/authcore/internal/authz"
	"vehicle-rental-platform/authcore/internal/config"
	"vehicle-rental-platform/authcore/internal/db"
	"vehicle-rental-platform/authcore/internal/db/migrate"
	"vehicle-rental-platform/authcore/internal/emailverify"
	evrepo "vehicle-rental-platform/authcore/internal/emailverify/repository"
	"vehicle-rental-platform/authcore/internal/identity/service"
	"vehicle-rental-platform/authcore/internal/janitor"
	"vehicle-rental-platform/authcore/internal/otp"
	otprepo "vehicle-rental-platform/authcore/internal/otp/repository"
	revrepo "vehicle-rental-platform/authcore/internal/revocation/repository"
	"vehicle-rental-platform/authcore/internal/security"
	"vehicle-rental-platform/authcore/internal/server"
	"vehicle-rental-platform/authcore/internal/session"
	sessrepo "vehicle-rental-platform/authcore/internal/session/repository"
	"vehicle-rental-platform/authcore/internal/telemetry"
	otelsetup "vehicle-rental-platform/authcore/internal/telemetry/otel"
	"vehicle-rental-platform/authcore/internal/telemetry/producer"
	userrepo "vehicle-rental-platform/authcore/internal/user/repository"
)

// retention windows for the janitor. Expired rows are kept a little while for
// debugging before they are swept.
const (
	otpRetention      = 24 * time.Hour
	verifyRetention   = 7 * 24 * time.Hour
	inactiveSessions  = 30 * 24 * time.Hour
	auditLogRetention = 90 * 24 * time.Hour
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is not set; create a .env from .env.example or set DATABASE_URL")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	providers, err := otelsetup.NewProviders(ctx, cfg.OTLPEndpoint, "authcore", cfg.OTLPInsecure)
	if err != nil {
		log.Fatalf("otel: %v", err)
	}
	providers.SetGlobal()

	if err := migrate.Run(cfg.DatabaseURL, "up"); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer conn.Close()

	kafkaProducer, err := producer.NewKafkaProducer(cfg.KafkaBrokersList(), cfg.KafkaTopic)
	if err != nil {
		log.Fatalf("kafka: %v", err)
	}
	var emitter *telemetry.AsyncEmitter
	if kafkaProducer != nil {
		emitter = telemetry.NewAsyncEmitter(kafkaProducer)
		defer kafkaProducer.Close()
	}

	users := userrepo.NewPostgresRepository(conn)
	sessions := sessrepo.NewPostgresRepository(conn)
	revocations := revrepo.NewPostgresRepository(conn)
	otps := otprepo.NewPostgresRepository(conn)
	verifications := evrepo.NewPostgresRepository(conn)
	auditRepo := auditrepo.NewPostgresRepository(conn)
	auditLog := audit.NewLogger(auditRepo)

	hasher := security.NewHasher()
	tokens := security.NewTokenProvider(cfg.JWTSecret, cfg.AccessTTL(), cfg.RefreshTTL())
	auth := authn.NewAuthenticator(tokens, revocations, users)

	engine, err := authz.NewEngine(ctx, "")
	if err != nil {
		log.Fatalf("authz: %v", err)
	}

	otpSvc := otp.NewService(otps, users, hasher, otp.Config{
		TTL:            cfg.OTPLifetime(),
		MaxAttempts:    cfg.OTPMaxAttempts,
		BlockFor:       time.Duration(cfg.OTPBlockMinutes) * time.Minute,
		ResendCooldown: cfg.ResendCooldown(),
		RequestLimit:   cfg.OTPRequestLimit,
		RequestBlock:   time.Duration(cfg.OTPRequestBlockMinutes) * time.Minute,
	})
	verifySvc := emailverify.NewService(verifications, users, 24*time.Hour, cfg.ResendCooldown())
	registry := session.NewRegistry(sessions, revocations, cfg.SessionLifetime(), emitter)

	// LogMailer writes outbound mail to the process log; swap in a real
	// provider behind service.Mailer when one is available.
	authSvc := service.NewAuthService(users, hasher, tokens, auth, otpSvc, verifySvc, registry, service.LogMailer{}, auditLog, emitter)

	deps := server.Deps{
		Auth:     auth,
		Authz:    engine,
		Emitter:  emitter,
		AuthSvc:  authSvc,
		Sessions: registry,
		DB:       conn,
	}
	grpcSrv, healthSrv := server.New(deps)

	readyCtx, readyCancel := context.WithTimeout(ctx, 10*time.Second)
	if err := server.CheckReadiness(readyCtx, deps); err != nil {
		readyCancel()
		log.Fatalf("readiness: %v", err)
	}
	readyCancel()

	if !cfg.DisableJanitor {
		sched := janitor.New(cfg.SweepInterval(), emitter,
			janitor.Task{Name: "expired_sessions", Run: func(ctx context.Context) (int64, error) {
				return registry.CleanupExpired(ctx)
			}},
			janitor.Task{Name: "inactive_sessions", Run: func(ctx context.Context) (int64, error) {
				return registry.CleanupInactive(ctx, inactiveSessions)
			}},
			janitor.Task{Name: "expired_otps", Run: func(ctx context.Context) (int64, error) {
				return otpSvc.CleanupExpired(ctx, otpRetention)
			}},
			janitor.Task{Name: "expired_verifications", Run: func(ctx context.Context) (int64, error) {
				return verifySvc.CleanupExpired(ctx, verifyRetention)
			}},
			janitor.Task{Name: "expired_revocations", Run: func(ctx context.Context) (int64, error) {
				return revocations.DeleteExpired(ctx)
			}},
			janitor.Task{Name: "old_audit_logs", Run: func(ctx context.Context) (int64, error) {
				return auditRepo.DeleteBefore(ctx, time.Now().UTC().Add(-auditLogRetention))
			}},
		)
		go sched.Start(ctx)
	}

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		log.Fatalf("listen: %v", err)
	}
	defer lis.Close()

	go func() {
		log.Printf("gRPC server listening on %s", cfg.GRPCAddr)
		if err := grpcSrv.Serve(lis); err != nil {
			log.Fatalf("serve: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Println("shutting down gRPC server...")
	healthSrv.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	grpcSrv.GracefulStop()
	cancel()

	// Let in-flight telemetry emissions drain before the producer closes.
	time.Sleep(telemetry.ShutdownDrainDuration)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := providers.Shutdown(shutdownCtx); err != nil {
		log.Printf("otel shutdown: %v", err)
	}
	log.Println("gRPC server stopped")
}
