// Server runs the memodams auth API: sign-in with step-up verification, account and
// factor management, and the admin gate.
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc"

	adminhandler "memodams/backend/internal/admin/handler"
	adminservice "memodams/backend/internal/admin/service"
	"memodams/backend/internal/audit"
	audithandler "memodams/backend/internal/audit/handler"
	"memodams/backend/internal/config"
	devicehandler "memodams/backend/internal/device/handler"
	deviceservice "memodams/backend/internal/device/service"
	"memodams/backend/internal/devotp"
	devotphandler "memodams/backend/internal/devotp/handler"
	"memodams/backend/internal/health"
	healthhandler "memodams/backend/internal/health/handler"
	identityhandler "memodams/backend/internal/identity/handler"
	identityservice "memodams/backend/internal/identity/service"
	"memodams/backend/internal/logging"
	"memodams/backend/internal/mail"
	"memodams/backend/internal/mfa"
	mfahandler "memodams/backend/internal/mfa/handler"
	mfaservice "memodams/backend/internal/mfa/service"
	"memodams/backend/internal/mfa/sms"
	"memodams/backend/internal/platform/rbac"
	"memodams/backend/internal/policy/engine"
	profilehandler "memodams/backend/internal/profile/handler"
	profileservice "memodams/backend/internal/profile/service"
	"memodams/backend/internal/security"
	"memodams/backend/internal/server"
	"memodams/backend/internal/server/middleware"
	stepuphandler "memodams/backend/internal/stepup/handler"
	stepupservice "memodams/backend/internal/stepup/service"
	"memodams/backend/internal/telemetry"
	otelsetup "memodams/backend/internal/telemetry/otel"
	"memodams/backend/internal/telemetry/producer"
)

const (
	serviceName     = "memodams-auth"
	shutdownTimeout = 10 * time.Second
	janitorInterval = time.Minute
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "server:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := logging.New(os.Stdout, cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	providers, err := otelsetup.NewProviders(ctx, otelsetup.Options{
		Endpoint:    cfg.OTLPEndpoint,
		ServiceName: serviceName,
		Environment: cfg.Env,
		Insecure:    cfg.OTLPInsecure,
	})
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	providers.SetGlobal()

	emitters := telemetry.Multi{otelsetup.NewEventEmitter(providers.LoggerProvider)}
	kafkaProducer := producer.NewKafkaProducer(cfg.TelemetryKafkaBrokersList(), cfg.TelemetryKafkaTopic)
	if kafkaProducer != nil {
		emitters = append(emitters, kafkaProducer)
	}
	events := telemetry.NewAsync(emitters, log)

	signer, pub, err := security.LoadKeyPair(cfg.JWTPrivateKey, cfg.JWTPublicKey)
	if err != nil {
		return fmt.Errorf("jwt keys: %w", err)
	}
	tokens := security.NewTokenProvider(signer, pub, cfg.JWTIssuer, cfg.JWTAudience, cfg.AccessTTL(), cfg.RefreshTTL())
	hasher := security.NewHasher(cfg.BcryptCost)

	st, err := openStores(ctx, cfg.DatabaseURL, log)
	if err != nil {
		return err
	}
	defer st.Close()

	policy, err := loadPolicy(ctx, cfg.StepUpPolicyFile)
	if err != nil {
		return err
	}

	auditLogger := audit.NewLogger(st.audit, middleware.ClientIP, log)
	mailer := newMailer(cfg, log)
	links := mail.Links{BaseURL: cfg.AppBaseURL}

	profiles := profileservice.NewProfileService(st.profiles, hasher)
	auth := identityservice.NewAuthService(st.accounts, st.identities, st.sessions, profiles, hasher, tokens,
		mailer, links, auditLogger, cfg.RefreshTTL())
	access := security.NewAccessVerifier(tokens, auth.SessionActive)

	devOTP := devotp.NewMemoryStore()
	var smsSender sms.Sender
	if cfg.SMSLocalAPIKey != "" {
		smsSender = sms.NewClient(sms.Config{APIKey: cfg.SMSLocalAPIKey, BaseURL: cfg.SMSLocalBaseURL, SenderID: cfg.SMSLocalSender})
	}
	codes := mfa.NewCodeSender(smsSender, devOTP, cfg.OTPReturnToClient, mfa.DefaultCodeTTL)
	factors := mfaservice.NewFactorService(st.accounts, st.factors, codes, auditLogger, serviceName)
	devices := deviceservice.NewStore(st.devices, cfg.DeviceTrustTTL(), auditLogger, events)

	stepup := stepupservice.NewService(stepupservice.Deps{
		Challenges:  st.challenges,
		Lockouts:    st.lockouts,
		Credentials: auth,
		Documents:   profiles,
		Factors:     factors,
		Devices:     devices,
		Codes:       codes,
		Answers:     hasher,
		Tokens:      access,
		Policy:      policy,
		Audit:       auditLogger,
		Events:      events,
		Log:         log.With("component", "stepup"),
	}, stepupservice.Config{
		ChallengeTTL:     cfg.ChallengeTTL(),
		MaxAttempts:      cfg.StepUpMaxAttempts,
		LockoutThreshold: cfg.StepUpLockoutThreshold,
		LockoutWindow:    cfg.LockoutWindow(),
	})

	admins := rbac.NewAdmins(cfg.BootstrapAdminEmail)
	gate := adminservice.NewGate(st.accounts, access, admins, auditLogger, events)

	checker := &health.Checker{Policy: policy}
	if st.db != nil {
		checker.DB = st.db
	}

	routes := []server.Registrar{
		stepuphandler.NewHandler(stepup, log),
		identityhandler.NewHandler(auth, log),
		mfahandler.NewHandler(factors, log),
		profilehandler.NewHandler(profiles, log),
		devicehandler.NewHandler(devices, log),
		adminhandler.NewHandler(gate, admins, log),
		audithandler.NewHandler(st.audit, admins, log),
	}
	if cfg.OTPReturnToClient {
		log.Warn(ctx, "dev OTP mode enabled: phone codes are served by GET /v1/dev/otp/:id")
		routes = append(routes, devotphandler.NewHandler(devOTP))
	}
	app := server.NewHTTP(server.HTTPConfig{
		Access:        access,
		Audit:         auditLogger,
		AuditSkip:     servicesAuditThemselves,
		Events:        events,
		SecureCookies: cfg.Env == "production",
		Log:           log,
	}, healthhandler.NewHTTP(checker, log), routes...)

	go stepup.RunJanitor(ctx, janitorInterval)

	var grpcSrv *grpc.Server
	if cfg.HealthGRPCAddr != "" {
		lis, err := net.Listen("tcp", cfg.HealthGRPCAddr)
		if err != nil {
			return fmt.Errorf("listen %s: %w", cfg.HealthGRPCAddr, err)
		}
		grpcSrv = server.NewGRPC(events, nil)
		hg := healthhandler.NewGRPC(checker, log)
		hg.Register(grpcSrv)
		go hg.Watch(ctx, healthhandler.DefaultPollInterval)
		go func() {
			log.Info(ctx, "gRPC health listening", "addr", cfg.HealthGRPCAddr)
			if err := grpcSrv.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				log.Error(ctx, "gRPC health stopped", "error", err)
			}
		}()
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info(ctx, "HTTP API listening", "addr", cfg.HTTPAddr)
		serveErr <- app.Listen(cfg.HTTPAddr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http: %w", err)
		}
	}

	log.Info(context.Background(), "shutting down")
	if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
		log.Warn(context.Background(), "http shutdown", "error", err)
	}
	if grpcSrv != nil {
		grpcSrv.GracefulStop()
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := events.Drain(shutdownCtx); err != nil {
		log.Warn(shutdownCtx, "telemetry drain", "error", err)
	}
	if kafkaProducer != nil {
		_ = kafkaProducer.Close()
	}
	return providers.Shutdown(shutdownCtx)
}

// servicesAuditThemselves lists routes whose services write a more specific audit entry.
var servicesAuditThemselves = map[string]bool{
	"/v1/auth/login":                    true,
	"/v1/auth/signup":                   true,
	"/v1/auth/password-reset/confirm":   true,
	"/v1/account/password":              true,
	"/v1/admin/grants":                  true,
	"/v1/devices/:id":                   true,
	"/v1/sessions/:id":                  true,
	"/v1/factors/totp/confirm":          true,
	"/v1/factors/phone/confirm":         true,
	"/v1/factors/:id":                   true,
	"/v1/stepup/challenges/:id/verify":  true,
	"/v1/stepup/challenges/:id/answer":  true,
	"/v1/stepup/challenges/:id/recheck": true,
	"/v1/stepup/abort":                  true,
}

func loadPolicy(ctx context.Context, path string) (*engine.OPAEvaluator, error) {
	if path != "" {
		return engine.NewOPAEvaluatorFromFile(ctx, path)
	}
	return engine.NewOPAEvaluator(ctx, engine.DefaultRegoPolicy)
}

func newMailer(cfg *config.Config, log logging.Logger) mail.Sender {
	if cfg.SMTPAddr == "" {
		return &mail.LogSender{Log: log}
	}
	return &mail.SMTPSender{Addr: cfg.SMTPAddr, Username: cfg.SMTPUsername, Password: cfg.SMTPPassword, From: cfg.MailFrom}
}
