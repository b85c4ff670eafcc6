// Command spapi-core runs the tool-invocation HTTP surface backing the
// SP-API operation adapters: it wires the credential manager, rate
// limiter, dispatcher, filter catalog, session gate, and tool registry
// into one Core value and serves it over a small HTTP surface.
package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/redis/go-redis/v9"

	_ "modernc.org/sqlite"

	apipkg "github.com/Mindburn-Labs/spapi-core/pkg/api"
	"github.com/Mindburn-Labs/spapi-core/pkg/auth"
	"github.com/Mindburn-Labs/spapi-core/pkg/clock"
	"github.com/Mindburn-Labs/spapi-core/pkg/config"
	"github.com/Mindburn-Labs/spapi-core/pkg/credentials"
	"github.com/Mindburn-Labs/spapi-core/pkg/dispatcher"
	"github.com/Mindburn-Labs/spapi-core/pkg/errkind"
	"github.com/Mindburn-Labs/spapi-core/pkg/filter"
	"github.com/Mindburn-Labs/spapi-core/pkg/filterstore"
	"github.com/Mindburn-Labs/spapi-core/pkg/marketplace"
	"github.com/Mindburn-Labs/spapi-core/pkg/ratelimit"
	"github.com/Mindburn-Labs/spapi-core/pkg/session"
	"github.com/Mindburn-Labs/spapi-core/pkg/spapi"
	"github.com/Mindburn-Labs/spapi-core/pkg/toolregistry"
	"github.com/Mindburn-Labs/spapi-core/pkg/util/resiliency"
)

func main() {
	cfg := config.Load()
	setupLogging(cfg.LogLevel)

	ctx := context.Background()
	core, err := buildCore(ctx, cfg)
	if err != nil {
		log.Fatalf("spapi-core: startup failed: %v", err)
	}

	registry := toolregistry.BuildForCore(core)
	handler := auth.RequestIDMiddleware(auth.CORSMiddleware(nil)(toolHandler(registry)))

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	mux.HandleFunc("/tools", func(w http.ResponseWriter, r *http.Request) {
		names := registry.Names()
		w.Header().Set("content-type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"tools": names})
	})
	mux.Handle("/invoke/", http.StripPrefix("/invoke/", handler))

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("spapi-core: listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("spapi-core: server error", "error", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	slog.Info("spapi-core: shutting down")

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("spapi-core: graceful shutdown failed", "error", err)
	}
}

func setupLogging(level string) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	slog.SetDefault(slog.New(handler))
}

// buildCore wires every dependency the operation adapters need. Any
// piece that requires live credentials or network access degrades
// gracefully to "configured off" rather than crashing the process, so
// the health surface and filter catalog remain usable without a full
// production identity setup (e.g. local development).
func buildCore(ctx context.Context, cfg *config.Config) (*spapi.Core, error) {
	realClock := clock.Real{}

	credMgr, err := buildCredentialsManager(ctx, cfg, realClock)
	if err != nil {
		return nil, err
	}

	limiter, err := buildRateLimiter(cfg, realClock)
	if err != nil {
		return nil, err
	}

	filterStore, err := buildFilterStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	hostPolicies, err := buildHostPolicies(cfg)
	if err != nil {
		return nil, err
	}

	transport := resiliency.NewHostTransport(http.DefaultClient, 5, 30*time.Second)

	disp := &dispatcher.Dispatcher{
		Limiter:     limiter,
		Credentials: credMgr,
		Transport:   transport,
		Clock:       realClock,
		Jitter:      clock.NewJitterSource(time.Now().UnixNano()),
		Backoff:     clock.DefaultBackoffPolicy,
		Mode:        dispatcher.Mode(cfg.DispatchMode),
		Logger:      slog.Default(),
	}

	return &spapi.Core{
		Dispatcher:   disp,
		Filters:      filterStore,
		Sessions:     session.NewGate(),
		Limits:       filter.DefaultLimits(),
		HostPolicies: hostPolicies,
	}, nil
}

func buildCredentialsManager(ctx context.Context, cfg *config.Config, clk clock.Source) (*credentials.Manager, error) {
	signedCfg := credentials.SignedCredentialConfig{
		AccessKeyID:     cfg.AWSAccessKeyID,
		SecretAccessKey: cfg.AWSSecretKey,
		RoleARN:         cfg.RoleARN,
	}
	if signedCfg.RoleARN != "" {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, err
		}
		signedCfg.STSClient = sts.NewFromConfig(awsCfg)
	}

	tokenCfg := credentials.TokenEndpointConfig{
		Endpoint:     "https://api.amazon.com/auth/o2/token",
		RefreshToken: cfg.RefreshToken,
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
	}

	return credentials.NewManager(tokenCfg, signedCfg, clk), nil
}

func buildRateLimiter(cfg *config.Config, clk clock.Source) (*ratelimit.Limiter, error) {
	var store ratelimit.Store
	switch cfg.RateLimitBackend {
	case config.RateLimitBackendRedis:
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		store = ratelimit.NewRedisStore(client)
	default:
		store = ratelimit.NewMemoryStore(clk)
	}
	return ratelimit.NewLimiter(store, ratelimit.DefaultEndpointLimits(), ratelimit.DefaultLimit), nil
}

func buildFilterStore(ctx context.Context, cfg *config.Config) (*filterstore.Store, error) {
	db, err := sql.Open("sqlite", cfg.FilterDBPath)
	if err != nil {
		return nil, err
	}
	store, err := filterstore.Open(ctx, db)
	if err != nil {
		return nil, err
	}
	for _, seed := range filterstore.DefaultSeeds() {
		if err := store.Import(ctx, seed); err != nil {
			return nil, err
		}
	}
	return store, nil
}

// buildHostPolicies loads per-marketplace host allowlists, keyed by
// country code on disk, and re-keys them by marketplace id since that
// is what dispatcher.RequestContext carries. Absence of the profiles
// directory is not an error: marketplaces default to unrestricted.
func buildHostPolicies(cfg *config.Config) (map[string]*config.MarketplaceProfile, error) {
	dir := os.Getenv("SPAPI_MARKETPLACE_PROFILES_DIR")
	if dir == "" {
		return nil, nil
	}
	byCode, err := config.LoadAllMarketplaceProfiles(dir)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*config.MarketplaceProfile, len(byCode))
	for code, profile := range byCode {
		if mp, ok := marketplace.ByCountry(code); ok {
			byID[mp.ID] = profile
		}
	}
	return byID, nil
}

// toolHandler exposes registry.Invoke over HTTP: the path segment after
// /invoke/ is the tool name, and the JSON request body is decoded
// directly as the parameter map.
func toolHandler(registry *toolregistry.Registry) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			apipkg.WriteMethodNotAllowed(w)
			return
		}
		name := r.URL.Path
		if name == "" {
			apipkg.WriteBadRequest(w, "tool name is required in the request path")
			return
		}
		var params map[string]any
		if r.Body != nil {
			if err := json.NewDecoder(r.Body).Decode(&params); err != nil && err.Error() != "EOF" {
				apipkg.WriteBadRequest(w, "invalid JSON body: "+err.Error())
				return
			}
		}
		env := registry.Invoke(r.Context(), name, params)
		w.Header().Set("content-type", "application/json")
		if !env.Success {
			w.WriteHeader(statusForErrorKind(env.ErrorKind))
		}
		_ = json.NewEncoder(w).Encode(env)
	})
}

// statusForErrorKind maps the envelope's error taxonomy onto an HTTP
// status for the outer transport; the envelope body itself remains the
// source of truth for callers that inspect errorKind directly.
func statusForErrorKind(kind errkind.Kind) int {
	switch kind {
	case errkind.AuthFailed:
		return http.StatusUnauthorized
	case errkind.InvalidInput, errkind.FilterFailed:
		return http.StatusBadRequest
	case errkind.RateLimitExceeded:
		return http.StatusTooManyRequests
	case errkind.Timeout:
		return http.StatusGatewayTimeout
	case errkind.UpstreamError, errkind.NetworkError:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
