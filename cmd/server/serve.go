package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	"github.com/benharcourt/catbox-quiz/internal/auth"
	"github.com/benharcourt/catbox-quiz/internal/blob"
	"github.com/benharcourt/catbox-quiz/internal/config"
	"github.com/benharcourt/catbox-quiz/internal/engine"
	"github.com/benharcourt/catbox-quiz/internal/logging"
	"github.com/benharcourt/catbox-quiz/internal/ratelimit"
	"github.com/benharcourt/catbox-quiz/internal/registry"
	"github.com/benharcourt/catbox-quiz/internal/store"
	"github.com/benharcourt/catbox-quiz/internal/tracing"
)

// newServeCmd builds the `serve` subcommand. Flags override environment
// variables, which override config defaults, following Seednode-partybox's
// pflag/viper wiring: each flag is bound to the environment variable of the
// same name (hyphens folded to underscores) that internal/config reads, so
// a flag, its matching env var, or neither, all converge on the same
// internal/config.Config.
func newServeCmd() *cobra.Command {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the quiz room server",
		Args:  cobra.ExactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			envFile, _ := cmd.Flags().GetString("env-file")
			if err := godotenv.Load(envFile); err == nil {
				fmt.Fprintf(cmd.OutOrStdout(), "loaded environment from %s\n", envFile)
			}

			fs := cmd.Flags()
			fs.VisitAll(func(f *pflag.Flag) {
				val := fmt.Sprintf("%v", v.Get(f.Name))
				if val != "" && val != "false" {
					os.Setenv(strings.ToUpper(strings.ReplaceAll(f.Name, "-", "_")), val)
				}
			})

			return runServe(cmd.Context())
		},
	}

	fs := cmd.Flags()
	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.String("host", "", "address to bind to (env: HOST)")
	fs.String("port", "", "port to listen on (env: PORT)")
	fs.String("database-path", "", "path to the sqlite database file (env: DATABASE_PATH)")
	fs.String("blob-dir", "", "directory for content-addressed blob storage (env: BLOB_DIR)")
	fs.String("log-level", "", "log level, read into the config but not applied to the logger (env: LOG_LEVEL)")
	fs.Bool("development-mode", false, "use a colorized development logger (env: DEVELOPMENT_MODE)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
	})

	return cmd
}

func runServe(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if err := logging.Initialize(cfg.DevelopmentMode); err != nil {
		return fmt.Errorf("initialize logging: %w", err)
	}
	logger := logging.GetLogger()
	logger.Info("starting catbox-quiz", cfg.LogFields()...)

	tp, err := tracing.InitTracer(ctx, "catbox-quiz")
	if err != nil {
		return fmt.Errorf("initialize tracing: %w", err)
	}
	defer func() { _ = tp.Shutdown(context.Background()) }()

	db, err := store.Open(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()
	if err := db.Migrate(); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}

	blobs, err := blob.New(cfg.BlobDir, db, logger, 0)
	if err != nil {
		return fmt.Errorf("open blob store: %w", err)
	}
	defer blobs.Close()

	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		defer redisClient.Close()
	}
	limiter, err := ratelimit.New(cfg, redisClient)
	if err != nil {
		return fmt.Errorf("build rate limiter: %w", err)
	}

	var authClient *auth.Client
	if cfg.OAuthIssuer != "" {
		validator, err := auth.NewValidator(ctx, cfg.OAuthIssuer, cfg.OAuthClientID)
		if err != nil {
			return fmt.Errorf("initialize oauth validator: %w", err)
		}
		redirectURL := cfg.PublicBaseURL + "/oauth/callback"
		authClient = auth.NewClient(cfg.OAuthIssuer+"/oauth/token", cfg.OAuthClientID, cfg.OAuthClientSecret, redirectURL, validator)
		logger.Info("oauth login enabled", zap.String("issuer", cfg.OAuthIssuer), zap.String("redirect_url", redirectURL))
	} else {
		logger.Warn("OAUTH_ISSUER not set; /login and /oauth/callback will refuse requests")
	}

	reg := registry.New(logger)
	reaperCtx, cancelReaper := context.WithCancel(ctx)
	defer cancelReaper()
	go reg.Run(reaperCtx)

	engines := map[string]engine.Engine{}
	for _, e := range []engine.Engine{engine.NewOnlyConnectEngine(db), engine.NewThisOrThatEngine(db)} {
		engines[e.Ident()] = e
	}

	srv := &server{
		cfg:     cfg,
		logger:  logger,
		db:      db,
		blobs:   blobs,
		reg:     reg,
		engines: engines,
		auth:    authClient,
		limiter: limiter,
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("catbox-quiz"))
	corsCfg := cors.DefaultConfig()
	corsCfg.AllowOrigins = cfg.AllowedOrigins
	router.Use(cors.New(corsCfg))
	router.Use(limiter.HTTPMiddleware())
	srv.registerRoutes(router)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	httpSrv := &http.Server{
		Addr:    cfg.Host + ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logger.Info("listening", zap.String("addr", httpSrv.Addr))
		var err error
		if cfg.TLSCertPath != "" {
			err = httpSrv.ListenAndServeTLS(cfg.TLSCertPath, cfg.TLSKeyPath)
		} else {
			err = httpSrv.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			logger.Error("server stopped", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")

	reg.Shutdown("server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("forced shutdown", zap.Error(err))
	}
	logger.Info("shutdown complete")
	return nil
}
