package main

// @title           Client Service API
// @version         0.1.0
// @description     OAuth 2.0 / OpenID Connect 客户端注册服务：动态注册、读取、更新、删除客户端，并通过 gRPC 提供查找。
// @schemes         http https
// @BasePath        /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/imulab-x/client-service/internal/config"
	"github.com/imulab-x/client-service/internal/discovery"
	"github.com/imulab-x/client-service/internal/handlers"
	"github.com/imulab-x/client-service/internal/metrics"
	"github.com/imulab-x/client-service/internal/middlewares"
	"github.com/imulab-x/client-service/internal/rpc"
	"github.com/imulab-x/client-service/internal/services"
	"github.com/imulab-x/client-service/internal/storage"
)

func main() {
	log.SetFormatter(&log.JSONFormatter{TimestampFormat: time.RFC3339Nano})
	log.SetOutput(os.Stdout)
	log.SetLevel(log.InfoLevel)

	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		log.WithError(err).Fatal("client-service exited")
	}
}

func newRootCmd() *cobra.Command {
	var configPath string
	var debug bool

	serve := func(cmd *cobra.Command, _ []string) error {
		if debug {
			log.SetLevel(log.DebugLevel)
		}
		cfg, err := config.LoadFrom(configPath)
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		return run(cmd.Context(), cfg)
	}

	root := &cobra.Command{
		Use:           "client-service",
		Short:         "OAuth 2.0 / OIDC client registration service",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          serve,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "配置文件路径（默认查找 config.yaml/yml/json）")
	root.PersistentFlags().BoolVar(&debug, "debug", false, "输出 debug 日志")

	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "启动 HTTP 与 gRPC 服务",
		RunE:  serve,
	})
	root.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "仅执行数据库迁移后退出",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadFrom(configPath)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			db, err := storage.InitMySQL(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			storage.CloseMySQL(db)
			log.Info("migration finished")
			return nil
		},
	})
	return root
}

// run 初始化存储与服务、注册路由，启动 HTTP 与 gRPC 服务并等待退出信号。
func run(parent context.Context, cfg config.Config) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.WithFields(log.Fields{
		"env":        cfg.Env,
		"http_addr":  cfg.HTTPAddr,
		"grpc_addr":  cfg.GRPCAddr,
		"store":      cfg.Store,
		"mysql_dsn":  cfg.MySQL.DSNMasked(),
		"redis_addr": cfg.Redis.Addr,
		"discovery":  discoverySource(cfg),
	}).Info("configuration loaded")

	var checks []handlers.HealthCheck

	// 持久化
	var store storage.ClientStorage
	switch cfg.Store {
	case config.StoreMemory:
		log.Warn("using in-memory client storage; data is lost on restart")
		store = storage.NewMemoryClientStorage()
	default:
		db, err := storage.InitMySQL(ctx, cfg)
		if err != nil {
			return err
		}
		defer storage.CloseMySQL(db)
		gs := storage.NewGormClientStorage(db)
		store = gs
		checks = append(checks, handlers.HealthCheck{Name: "mysql", Check: gs.Ping})
	}

	rdb, err := storage.InitRedis(ctx, cfg)
	if err != nil {
		return err
	}
	if rdb != nil {
		defer func() { _ = rdb.Close() }()
		checks = append(checks, handlers.HealthCheck{Name: "redis", Check: redisPing(rdb)})
		if cfg.Cache.Enable {
			store = storage.NewCachedClientStorage(store, rdb, cfg.Cache.TTL)
		}
	}

	var disc discovery.Provider
	if cfg.Discovery.UseSample {
		disc = discovery.NewStatic(discovery.Sample())
	} else {
		disc = discovery.NewRemote(cfg.Discovery.URL, discovery.RemoteOptions{
			MaxTries:        cfg.Discovery.MaxTries,
			RefreshInterval: cfg.Discovery.RefreshInterval,
		})
	}

	clientSvc := services.NewClientService(store, disc, services.NewDocumentFetcher(cfg), services.NewBcryptEncoder(cfg.BcryptCost))

	// gRPC 查找
	grpcSrv := rpc.NewServer(rpc.NewLookupServer(clientSvc, cfg.Lookup.Concurrency))
	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		return err
	}
	checks = append(checks, handlers.HealthCheck{Name: "grpc_api", Check: grpcSrv.Check})

	// HTTP 路由与中间件
	if cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middlewares.RequestID())
	router.Use(middlewares.RequestLogger())
	router.Use(middlewares.SecurityHeaders(cfg))
	router.Use(metrics.Handler())
	handlers.New(cfg, clientSvc, rdb, checks...).RegisterRoutes(router)

	httpSrv := &http.Server{Addr: cfg.HTTPAddr, Handler: router, ReadHeaderTimeout: 10 * time.Second}

	errc := make(chan error, 2)
	go func() {
		log.WithField("addr", cfg.GRPCAddr).Info("starting grpc server")
		if err := grpcSrv.Serve(lis); err != nil {
			errc <- err
		}
	}()
	go func() {
		log.WithField("addr", cfg.HTTPAddr).Info("starting http server")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case runErr = <-errc:
		log.WithError(runErr).Error("server failed")
	}

	// 优雅退出
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("http server shutdown")
	}
	grpcSrv.Stop(shutdownCtx)
	log.Info("server stopped")
	return runErr
}

func discoverySource(cfg config.Config) string {
	if cfg.Discovery.UseSample {
		return "sample"
	}
	return cfg.Discovery.URL
}

func redisPing(rdb *redis.Client) func(context.Context) error {
	return func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
}
