package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/mamadbah2/wacloud/internal/config"
	"github.com/mamadbah2/wacloud/internal/flowcrypto"
	"github.com/mamadbah2/wacloud/internal/repository/mongodb"
	"github.com/mamadbah2/wacloud/internal/repository/sheets"
	"github.com/mamadbah2/wacloud/internal/scheduler"
	"github.com/mamadbah2/wacloud/internal/server/handlers"
	"github.com/mamadbah2/wacloud/internal/server/router"
	commandsvc "github.com/mamadbah2/wacloud/internal/service/commands"
	reportingsvc "github.com/mamadbah2/wacloud/internal/service/reporting"
	whatsappsvc "github.com/mamadbah2/wacloud/internal/service/whatsapp"
	"github.com/mamadbah2/wacloud/internal/tracing"
	"github.com/mamadbah2/wacloud/pkg/clients/anthropic"
	whatsappclient "github.com/mamadbah2/wacloud/pkg/clients/whatsapp"
	"github.com/mamadbah2/wacloud/pkg/dispatcher"
	"github.com/mamadbah2/wacloud/pkg/flows"
	"github.com/mamadbah2/wacloud/pkg/logger"
	"github.com/mamadbah2/wacloud/pkg/update"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		panic(err)
	}

	baseLogger := logger.Must(logger.New(cfg.Logging.Level))
	defer func() { _ = baseLogger.Sync() }()

	zap.ReplaceGlobals(baseLogger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tracer := tracing.NewManager(cfg.Tracing, baseLogger.Named("tracing"))
	if err := tracer.Initialize(ctx); err != nil {
		baseLogger.Fatal("failed to init tracing", zap.Error(err))
	}
	defer func() {
		if err := tracer.Shutdown(context.Background()); err != nil {
			baseLogger.Error("failed to shutdown tracing", zap.Error(err))
		}
	}()

	var reportStore reportingsvc.ReportStore
	var audit whatsappsvc.AuditStore
	if cfg.MongoDB.URI != "" {
		mongoRepo, err := mongodb.NewMongoDBRepository(ctx, cfg.MongoDB.URI, cfg.MongoDB.DBName)
		if err != nil {
			baseLogger.Fatal("failed to init mongodb repository", zap.Error(err))
		}
		defer func() {
			if err := mongoRepo.Close(context.Background()); err != nil {
				baseLogger.Error("failed to close mongodb connection", zap.Error(err))
			}
		}()
		reportStore, audit = mongoRepo, mongoRepo
	} else {
		baseLogger.Warn("mongodb uri missing, updates and reports are not persisted")
	}

	var failures whatsappsvc.FailureRecorder
	if cfg.Sheets.Enabled() {
		sheetsRepo, err := sheets.NewGoogleSheetRepository(ctx, cfg.Sheets, baseLogger.Named("repo.sheets"))
		if err != nil {
			baseLogger.Fatal("failed to init sheets repository", zap.Error(err))
		}
		failures = sheets.NewFailureLog(sheetsRepo)
	}

	// Initialize AI Client
	var aiClient anthropic.Client
	if cfg.AI.AnthropicKey != "" {
		aiClient = anthropic.NewClient(cfg.AI.AnthropicKey)
		baseLogger.Info("anthropic ai client enabled")
	} else {
		baseLogger.Warn("anthropic api key missing, assistant replies disabled")
	}

	whatsClient := whatsappclient.NewClient(whatsappclient.Config{
		AccessToken:   cfg.WhatsApp.AccessToken,
		PhoneNumberID: cfg.WhatsApp.PhoneNumberID,
		BaseURL:       cfg.WhatsApp.BaseURL,
		APIVersion:    cfg.WhatsApp.APIVersion,
	})
	reportingSvc := reportingsvc.NewService(reportStore, baseLogger.Named("svc.reporting"))

	dispatchOpts := []dispatcher.Option{
		dispatcher.WithErrorReporter(reportingSvc.Reporter(dispatcher.ZapReporter{Logger: baseLogger.Named("dispatcher")})),
		dispatcher.WithTracerProvider(tracer.TracerProvider()),
	}
	if cfg.WhatsApp.FilterUpdates {
		dispatchOpts = append(dispatchOpts, dispatcher.WithPhoneNumberID(whatsClient.PhoneNumberID()))
	}
	registry := dispatcher.NewRegistry()
	parser := update.NewParser(baseLogger.Named("update")).WithActions(whatsClient)
	updates := dispatcher.New(parser, registry, baseLogger.Named("dispatcher"), dispatchOpts...)

	commandSvc := commandsvc.NewService(whatsClient, reportingSvc, cfg.Bot.CommandPrefixes, baseLogger.Named("svc.commands"))
	messagingSvc := whatsappsvc.NewMetaWhatsAppService(cfg.WhatsApp, whatsClient, updates, baseLogger.Named("svc.whatsapp"))
	registry.AddHandlers(messagingSvc.Handlers(whatsappsvc.Bot{
		AdminNumber:     cfg.Bot.AdminNumber,
		Commands:        commandSvc.Handlers(),
		CommandPrefixes: commandSvc.Prefixes(),
		Assistant:       aiClient,
		Audit:           audit,
		Failures:        failures,
		Extra:           []dispatcher.Handler{reportingSvc.Handler()},
	})...)
	baseLogger.Info("handlers registered", zap.Int("count", registry.Len()))

	var flowHandler *handlers.FlowHandler
	if cfg.Server.FlowEndpointEnabled {
		keyPEM, err := os.ReadFile(cfg.Server.FlowPrivateKeyPath)
		if err != nil {
			baseLogger.Fatal("failed to read flow private key", zap.Error(err))
		}
		codec, err := flowcrypto.NewRSACodec(keyPEM)
		if err != nil {
			baseLogger.Fatal("failed to parse flow private key", zap.Error(err))
		}
		endpoint, err := flows.NewEndpoint(flows.EndpointConfig{
			Decryptor:         codec,
			Encryptor:         codec,
			Callback:          messagingSvc.FlowExchange,
			Logger:            baseLogger.Named("flows"),
			HandleHealthCheck: true,
			AcknowledgeErrors: true,
		})
		if err != nil {
			baseLogger.Fatal("failed to init flow endpoint", zap.Error(err))
		}
		flowHandler = handlers.NewFlowHandler(endpoint, baseLogger.Named("handlers.flows"))
	}

	webhookHandler := handlers.NewWebhookHandler(messagingSvc, baseLogger.Named("handlers.whatsapp"))
	engine := router.New(webhookHandler, flowHandler, baseLogger.Named("router"),
		router.WithTracerProvider(tracer.TracerProvider()))

	sched, err := scheduler.NewScheduler(*cfg, reportingSvc, messagingSvc, baseLogger.Named("scheduler"))
	if err != nil {
		baseLogger.Fatal("failed to init scheduler", zap.Error(err))
	}
	if err := sched.Start(); err != nil {
		baseLogger.Fatal("failed to start scheduler", zap.Error(err))
	}
	defer sched.Stop()

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      engine,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		baseLogger.Info("server starting", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			baseLogger.Fatal("http server crashed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	baseLogger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		baseLogger.Error("graceful shutdown failed", zap.Error(err))
	}
}
