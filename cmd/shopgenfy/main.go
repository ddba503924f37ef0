/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// shopgenfy assembles Shopify App Store submission packages: it analyzes landing pages
// with a content generation provider, queues screenshot generation jobs and exports
// validated listings to object storage.
package main

import (
	"flag"
	"fmt"
	golog "log"
	"time"

	"github.com/Muminur/shopgenfy-sub002/internal/api"
	"github.com/Muminur/shopgenfy-sub002/internal/config"
	"github.com/Muminur/shopgenfy-sub002/internal/genai"
	"github.com/Muminur/shopgenfy-sub002/internal/httpclient"
	"github.com/Muminur/shopgenfy-sub002/internal/httpserver"
	"github.com/Muminur/shopgenfy-sub002/internal/httpserver/middleware"
	"github.com/Muminur/shopgenfy-sub002/internal/imagegen"
	"github.com/Muminur/shopgenfy-sub002/internal/log"
	"github.com/Muminur/shopgenfy-sub002/internal/objstorage"
	"github.com/Muminur/shopgenfy-sub002/internal/profserver"
	"github.com/Muminur/shopgenfy-sub002/internal/restapi"
	"github.com/Muminur/shopgenfy-sub002/internal/service"
	"github.com/Muminur/shopgenfy-sub002/internal/submission"
	"github.com/Muminur/shopgenfy-sub002/internal/version"
)

const serviceName = "shopgenfy"

const metricsNamespace = "shopgenfy"

func main() {
	if err := runApp(); err != nil {
		golog.Fatal(err)
	}
}

func runApp() error {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "config.yml", "path to the configuration file")
	flag.Parse()

	cfg, err := loadAppConfig(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, loggerClose := log.NewLogger(cfg.Log)
	defer loggerClose()
	logger.Info("starting service",
		log.String("service", serviceName), log.String("version", version.Get()))

	restapi.MustInitAndRegisterMetrics(metricsNamespace)
	defer restapi.UnregisterMetrics()

	httpClientMetrics := httpclient.NewPrometheusMetricsCollector(metricsNamespace)
	httpClientMetrics.MustRegister()
	defer httpClientMetrics.Unregister()

	clientOpts := func(requestType string) httpclient.Opts {
		return httpclient.Opts{
			UserAgent:         version.UserAgent(serviceName),
			RequestType:       requestType,
			LoggerProvider:    middleware.GetLoggerFromContext,
			RequestIDProvider: middleware.GetRequestIDFromContext,
			Collector:         httpClientMetrics,
		}
	}

	contentProvider, err := genai.NewHTTPContentProvider(cfg.GenAI, clientOpts("genai"))
	if err != nil {
		return fmt.Errorf("create content provider: %w", err)
	}
	imageProvider, err := imagegen.NewHTTPImageProvider(cfg.ImageGen, clientOpts("imagegen"))
	if err != nil {
		return fmt.Errorf("create image provider: %w", err)
	}
	storage, err := objstorage.NewHTTPStorage(cfg.ObjStorage, clientOpts("objstorage"))
	if err != nil {
		return fmt.Errorf("create object storage client: %w", err)
	}

	jobStore := imagegen.NewMemoryJobStore()
	imageManager := imagegen.NewManager(jobStore, imageProvider, logger, imagegen.ManagerOpts{
		Workers:   cfg.ImageGen.Workers,
		QueueSize: cfg.ImageGen.QueueSize,
		JobTTL:    time.Duration(cfg.ImageGen.JobTTL),
	})

	apiHandlers := &api.API{
		Submissions: submission.NewMemoryStore(),
		Exporter:    submission.NewExporter(storage, submission.NewScreener(nil), logger),
		Content:     contentProvider,
		Images:      imageManager,
	}

	// Per-route limiter rejections get their own namespace, the server-wide
	// limiter reports under the common one.
	apiRateLimitMetrics := middleware.NewRateLimitPrometheusMetricsWithOpts(
		middleware.RateLimitPrometheusMetricsOpts{Namespace: metricsNamespace + "_api"})
	apiRateLimitMetrics.MustRegister()
	defer apiRateLimitMetrics.Unregister()

	appSrv, err := httpserver.New(cfg.Server, logger, httpserver.Opts{
		ServiceNameInURL: serviceName,
		ErrorDomain:      api.ErrDomain,
		APIRoutes: map[httpserver.APIVersion]httpserver.APIRoute{
			1: apiHandlers.RoutesWithOpts(api.RoutesOpts{RateLimitMetrics: apiRateLimitMetrics}),
		},
		HealthCheck: func() (httpserver.HealthCheckResult, error) {
			return httpserver.HealthCheckResult{"image_jobs": httpserver.HealthCheckStatusOK}, nil
		},
		HTTPRequestMetrics: httpserver.HTTPRequestMetricsOpts{Namespace: metricsNamespace},
	})
	if err != nil {
		return fmt.Errorf("create http server: %w", err)
	}

	units := []service.Unit{
		appSrv,
		imageManager,
		service.NewWorkerUnit(service.NewPeriodicWorkerWithOpts(
			imagegen.NewReaper(jobStore, logger), imagegen.DefaultReapInterval, logger,
			service.PeriodicWorkerOpts{InitialDelay: imagegen.DefaultReapInterval})),
	}
	if cfg.ProfServer.Enabled {
		units = append(units, profserver.New(cfg.ProfServer, logger))
	}

	return service.New(logger, service.NewCompositeUnit(units...)).Start()
}

func loadAppConfig(path string) (*AppConfig, error) {
	cfgLoader := config.NewDefaultLoader(serviceName)
	cfg := NewAppConfig()
	err := cfgLoader.LoadFromFile(path, config.DataTypeYAML, cfg)
	return cfg, err
}

type AppConfig struct {
	Log        *log.Config
	Server     *httpserver.Config
	GenAI      *genai.Config
	ImageGen   *imagegen.Config
	ObjStorage *objstorage.Config
	ProfServer *profserver.Config
}

func NewAppConfig() *AppConfig {
	return &AppConfig{
		Log:        log.NewConfig(),
		Server:     httpserver.NewConfig(httpserver.WithKeyPrefix("server")),
		GenAI:      genai.NewConfig(),
		ImageGen:   imagegen.NewConfig(),
		ObjStorage: objstorage.NewConfig(),
		ProfServer: profserver.NewConfig(),
	}
}

func (c *AppConfig) SetProviderDefaults(dp config.DataProvider) {
	config.CallSetProviderDefaultsForFields(c, dp)
}

func (c *AppConfig) Set(dp config.DataProvider) error {
	return config.CallSetForFields(c, dp)
}
