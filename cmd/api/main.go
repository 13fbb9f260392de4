package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Iamalive23802/StockVistaCRMrepo/pkg/audit"
	"github.com/Iamalive23802/StockVistaCRMrepo/pkg/auth"
	"github.com/Iamalive23802/StockVistaCRMrepo/pkg/hardening"
	"github.com/Iamalive23802/StockVistaCRMrepo/pkg/httpx"
	"github.com/Iamalive23802/StockVistaCRMrepo/pkg/intake"
	"github.com/Iamalive23802/StockVistaCRMrepo/pkg/lifecycle"
	"github.com/Iamalive23802/StockVistaCRMrepo/pkg/metrics"
	"github.com/Iamalive23802/StockVistaCRMrepo/pkg/policy"
	"github.com/Iamalive23802/StockVistaCRMrepo/pkg/ratelimit"
	"github.com/Iamalive23802/StockVistaCRMrepo/pkg/store"
	"github.com/Iamalive23802/StockVistaCRMrepo/pkg/stream"
	"github.com/Iamalive23802/StockVistaCRMrepo/pkg/telemetry"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/redis/go-redis/v9"
)

type Server struct {
	DB                  apiDB
	Cache               store.Cache
	Audit               auditStore
	Redis               *redis.Client
	Metrics             *metrics.Registry
	Events              *stream.Hub
	RateLimiter         ratelimit.Limiter
	RateLimitEnabled    bool
	LoginAttemptsPerWin int
	RateLimitWindow     time.Duration
	AuthMode            string
	SessionSecret       string
	SessionTTL          time.Duration
	DashboardCacheTTL   time.Duration
	MaxRequestBodyBytes int64
	IntakeEnabled       bool
	IntakeConsumer      intake.Consumer
}

type auditStore interface {
	Append(ctx context.Context, rec audit.Record) error
	ListForLead(ctx context.Context, leadID string, limit int) ([]audit.Record, error)
}

type apiDB interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

type apiDBCloser interface {
	apiDB
	Close()
}

type apiInitTelemetryFunc func(ctx context.Context, service string) (func(context.Context) error, error)
type apiOpenDBFunc func(ctx context.Context) (apiDBCloser, error)
type apiOpenRedisFunc func(ctx context.Context) (*redis.Client, error)
type apiListenFunc func(server *http.Server) error
type apiStartLoopsFunc func(s *Server)

// Testable variables for main()
var (
	logFatalf     = log.Fatalf
	initTelemetry = telemetry.Init
	openDBFn      = func(ctx context.Context) (apiDBCloser, error) { return store.NewPostgresPool(ctx) }
	openRedisFn   = store.NewRedis
	listenFn      = func(server *http.Server) error { return server.ListenAndServe() }
	startLoopsFn  = func(s *Server) {
		go s.metricsLoop(context.Background())
		if s.IntakeEnabled {
			go s.intakeLoop(context.Background())
		}
	}
)

func main() {
	if err := runAPI(initTelemetry, openDBFn, openRedisFn, listenFn, startLoopsFn); err != nil {
		logFatalf("api: %v", err)
	}
}

func runAPI(
	initTelemetry apiInitTelemetryFunc,
	openDB apiOpenDBFunc,
	openRedis apiOpenRedisFunc,
	listen apiListenFunc,
	startLoops apiStartLoopsFunc,
) error {
	ctx := context.Background()
	shutdown, err := initTelemetry(ctx, "api")
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	defer func() { _ = shutdown(context.Background()) }()

	pool, err := openDB(ctx)
	if err != nil {
		return fmt.Errorf("db: %w", err)
	}
	defer pool.Close()

	redisClient, err := openRedis(ctx)
	if err != nil {
		log.Printf("redis unavailable, falling back to in-memory cache/limits: %v", err)
		redisClient = nil
	}
	if redisClient != nil {
		defer redisClient.Close()
	}
	cache := store.NewCache(ctx, redisClient)

	rateLimitWindow := envDurationSec("RATE_LIMIT_WINDOW_SEC", 60)
	if rateLimitWindow <= 0 {
		rateLimitWindow = time.Minute
	}
	maxRequestBodyBytes := int64(envInt("MAX_REQUEST_BODY_BYTES", 1<<20))
	if maxRequestBodyBytes <= 0 {
		maxRequestBodyBytes = 1 << 20
	}

	s := &Server{
		DB:                  pool,
		Cache:               cache,
		Audit:               &audit.Writer{DB: pool},
		Redis:               redisClient,
		Metrics:             metrics.NewRegistry(),
		Events:              stream.NewHub(),
		RateLimitEnabled:    env("RATE_LIMIT_ENABLED", "true") == "true",
		LoginAttemptsPerWin: envInt("LOGIN_ATTEMPTS_PER_WINDOW", 10),
		RateLimitWindow:     rateLimitWindow,
		AuthMode:            env("AUTH_MODE", "hs256"),
		SessionSecret:       env("SESSION_SECRET", ""),
		SessionTTL:          envDurationSec("SESSION_TTL_SEC", 12*3600),
		DashboardCacheTTL:   envDurationSec("DASHBOARD_CACHE_TTL_SEC", 30),
		MaxRequestBodyBytes: maxRequestBodyBytes,
		IntakeEnabled:       env("INTAKE_ENABLED", "false") == "true",
	}

	runtimeEnv := env("ENVIRONMENT", env("APP_ENV", ""))
	if err := hardening.ValidateProduction(hardening.Options{
		Service:            "api",
		Environment:        runtimeEnv,
		StrictProdSecurity: env("STRICT_PROD_SECURITY", "true"),
		AuthMode:           s.AuthMode,
		SessionSecret:      s.SessionSecret,
		DatabaseSSLMode:    env("DATABASE_SSLMODE", ""),
		CORSAllowedOrigins: env("CORS_ALLOWED_ORIGINS", ""),
	}); err != nil {
		return err
	}
	if !strings.EqualFold(s.AuthMode, "off") && strings.TrimSpace(s.SessionSecret) == "" {
		return errors.New("SESSION_SECRET is required unless AUTH_MODE=off")
	}

	if s.RateLimitEnabled {
		if redisClient != nil {
			s.RateLimiter = ratelimit.NewRedis(redisClient, rateLimitWindow)
		} else {
			s.RateLimiter = ratelimit.NewInMemory(rateLimitWindow)
		}
	}

	if s.IntakeEnabled {
		consumer, err := intake.NewKafkaConsumer(intake.KafkaConfig{
			Brokers: strings.Split(env("KAFKA_BROKERS", "localhost:9092"), ","),
			Topic:   env("KAFKA_INTAKE_TOPIC", "crm.leads.intake"),
			GroupID: env("KAFKA_GROUP_ID", "crm-api"),
		})
		if err != nil {
			return fmt.Errorf("intake: %w", err)
		}
		s.IntakeConsumer = consumer
	}

	r := chi.NewRouter()
	r.Use(httpx.CORSMiddleware(env("CORS_ALLOWED_ORIGINS", "")))
	r.Use(httpx.SecurityHeadersMiddleware)
	r.Use(s.metricsMiddleware)
	r.Use(telemetry.HTTPMiddleware("api"))
	r.Use(httpx.MaxBodyMiddleware(s.MaxRequestBodyBytes))
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteJSON(w, 200, map[string]string{"status": "ok", "service": "api"})
	})
	r.Post("/api/auth/login", s.handleLogin)

	authRouter := chi.NewRouter()
	authRouter.Use(auth.Middleware(s.AuthMode, s.SessionSecret))
	authRouter.Get("/metrics", s.Metrics.Handler())
	authRouter.Get("/metrics/prometheus", s.Metrics.PrometheusHandler())
	authRouter.Get("/api/leads", s.withRoles(s.listLeads, allRoles...))
	authRouter.Post("/api/leads", s.withRoles(s.createLead, policy.RoleSuperAdmin, policy.RoleAdmin, policy.RoleTeamLeader))
	authRouter.Post("/api/leads/import", s.withRoles(s.importLeads, policy.RoleSuperAdmin, policy.RoleAdmin))
	authRouter.Post("/api/leads/bulk-assign", s.withRoles(s.bulkAssignLeads, policy.RoleSuperAdmin, policy.RoleAdmin, policy.RoleTeamLeader))
	authRouter.Get("/api/leads/{lead_id}", s.withRoles(s.getLead, allRoles...))
	authRouter.Put("/api/leads/{lead_id}", s.withRoles(s.updateLead, allRoles...))
	authRouter.Delete("/api/leads/{lead_id}", s.withRoles(s.deleteLead, policy.RoleSuperAdmin, policy.RoleAdmin))
	authRouter.Post("/api/leads/{lead_id}/assign", s.withRoles(s.assignLead, policy.RoleSuperAdmin, policy.RoleAdmin, policy.RoleTeamLeader))
	authRouter.Get("/api/leads/{lead_id}/audit", s.withRoles(s.listLeadAudit, policy.RoleSuperAdmin, policy.RoleAdmin))
	authRouter.Post("/api/leads/{lead_id}/payments", s.withRoles(s.recordPayment, policy.RoleRelationshipMgr))
	authRouter.Post("/api/leads/{lead_id}/payments/{entry_index}/approve", s.withRoles(s.approvePayment, policy.RoleFinancialMgr))
	authRouter.Get("/api/users", s.withRoles(s.listUsers, policy.RoleSuperAdmin, policy.RoleAdmin, policy.RoleTeamLeader))
	authRouter.Post("/api/users", s.withRoles(s.createUser, policy.RoleSuperAdmin, policy.RoleAdmin))
	authRouter.Post("/api/users/bulk-inactivate", s.withRoles(s.bulkInactivateUsers, policy.RoleSuperAdmin, policy.RoleAdmin))
	authRouter.Put("/api/users/{user_id}", s.withRoles(s.updateUser, policy.RoleSuperAdmin, policy.RoleAdmin))
	authRouter.Delete("/api/users/{user_id}", s.withRoles(s.deleteUser, policy.RoleSuperAdmin))
	authRouter.Get("/api/teams", s.withRoles(s.listTeams, allRoles...))
	authRouter.Post("/api/teams", s.withRoles(s.createTeam, policy.RoleSuperAdmin, policy.RoleAdmin))
	authRouter.Put("/api/teams/{team_id}", s.withRoles(s.updateTeam, policy.RoleSuperAdmin, policy.RoleAdmin))
	authRouter.Delete("/api/teams/{team_id}", s.withRoles(s.deleteTeam, policy.RoleSuperAdmin, policy.RoleAdmin))
	authRouter.Get("/api/dashboard", s.withRoles(s.dashboard, allRoles...))
	authRouter.Get("/api/events", s.withRoles(s.streamEvents, allRoles...))
	r.Mount("/", authRouter)

	if startLoops != nil {
		startLoops(s)
	}

	addr := env("ADDR", ":8080")
	log.Printf("api listening on %s", addr)
	server := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: envDurationSec("HTTP_READ_HEADER_TIMEOUT_SEC", 5),
		ReadTimeout:       envDurationSec("HTTP_READ_TIMEOUT_SEC", 15),
		WriteTimeout:      envDurationSec("HTTP_WRITE_TIMEOUT_SEC", 30),
		IdleTimeout:       envDurationSec("HTTP_IDLE_TIMEOUT_SEC", 120),
	}
	if listen == nil {
		return errors.New("listen function required")
	}
	return listen(server)
}

var allRoles = []string{
	policy.RoleSuperAdmin,
	policy.RoleAdmin,
	policy.RoleTeamLeader,
	policy.RoleRelationshipMgr,
	policy.RoleFinancialMgr,
}

func (s *Server) withRoles(h http.HandlerFunc, roles ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		principal, ok := auth.PrincipalFromContext(r.Context())
		if !ok {
			httpx.Error(w, 401, "unauthenticated")
			return
		}
		if !policy.IsRole(principal.Role) {
			httpx.Error(w, 403, "forbidden")
			return
		}
		for _, role := range roles {
			if principal.Role == role {
				h(w, r)
				return
			}
		}
		httpx.Error(w, 403, "forbidden")
	}
}

func (s *Server) metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: 200}
		next.ServeHTTP(rec, r)
		if s.Metrics != nil {
			s.Metrics.Observe(r.Method+" "+r.URL.Path, rec.status, time.Since(start))
		}
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) metricsLoop(ctx context.Context) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	s.updateOperationalMetrics(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.updateOperationalMetrics(ctx)
		}
	}
}

func (s *Server) updateOperationalMetrics(ctx context.Context) {
	if s.DB == nil || s.Metrics == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	var leadsTotal int
	_ = s.DB.QueryRow(ctx, `SELECT COUNT(*) FROM leads`).Scan(&leadsTotal)
	s.Metrics.SetGauge("leads_total", float64(leadsTotal))
	var leadsWon int
	_ = s.DB.QueryRow(ctx, `SELECT COUNT(*) FROM leads WHERE status=$1`, lifecycle.StatusWon).Scan(&leadsWon)
	s.Metrics.SetGauge("leads_won", float64(leadsWon))
	var usersActive int
	_ = s.DB.QueryRow(ctx, `SELECT COUNT(*) FROM users WHERE active`).Scan(&usersActive)
	s.Metrics.SetGauge("users_active", float64(usersActive))
	var oldestUnassigned float64
	_ = s.DB.QueryRow(ctx, `
		SELECT COALESCE(MAX(EXTRACT(EPOCH FROM (now() - created_at))), 0)
		FROM leads WHERE assigned_to IS NULL
	`).Scan(&oldestUnassigned)
	s.Metrics.SetGauge("leads_unassigned_oldest_seconds", oldestUnassigned)
	s.Metrics.SetGauge("events_subscribers", float64(s.Events.SubscriberCount()))
}

func (s *Server) intakeLoop(ctx context.Context) {
	if s.IntakeConsumer == nil {
		return
	}
	defer s.IntakeConsumer.Close()
	err := intake.Run(ctx, s.IntakeConsumer, s.submitIntakeRow, log.Printf)
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Printf("intake loop stopped: %v", err)
	}
}

func (s *Server) streamEvents(w http.ResponseWriter, r *http.Request) {
	if s.Events == nil {
		httpx.Error(w, 503, "stream unavailable")
		return
	}
	opts := &websocket.AcceptOptions{}
	if origins := wsOriginPatterns(env("WS_ALLOWED_ORIGINS", "")); len(origins) > 0 {
		opts.OriginPatterns = origins
	}
	conn, err := websocket.Accept(w, r, opts)
	if err != nil {
		return
	}
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	sub := s.Events.Subscribe(64)
	defer s.Events.Unsubscribe(sub)

	_ = wsjson.Write(ctx, conn, stream.NewEvent("ready", nil))
	readErr := make(chan error, 1)
	go func() {
		for {
			if _, _, err := conn.Read(ctx); err != nil {
				readErr <- err
				return
			}
		}
	}()
	for {
		select {
		case <-ctx.Done():
			_ = conn.Close(websocket.StatusNormalClosure, "closed")
			return
		case <-readErr:
			_ = conn.Close(websocket.StatusNormalClosure, "closed")
			return
		case evt, ok := <-sub:
			if !ok {
				_ = conn.Close(websocket.StatusNormalClosure, "closed")
				return
			}
			writeCtx, cancelWrite := context.WithTimeout(ctx, 5*time.Second)
			err := wsjson.Write(writeCtx, conn, evt)
			cancelWrite()
			if err != nil {
				_ = conn.Close(websocket.StatusNormalClosure, "write_failed")
				return
			}
		}
	}
}

func wsOriginPatterns(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func nullIfEmpty(value string) interface{} {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}

func envDurationSec(k string, def int) time.Duration {
	return time.Second * time.Duration(envInt(k, def))
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func envInt(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}
