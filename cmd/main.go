package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cloudwego/hertz/pkg/app/middlewares/server/recovery"
	"github.com/cloudwego/hertz/pkg/app/server"
	hertzconfig "github.com/cloudwego/hertz/pkg/common/config"
	glog "github.com/cloudwego/hertz/pkg/common/hlog"
	hertztracing "github.com/hertz-contrib/obs-opentelemetry/tracing"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	hertzzerolog "github.com/hertz-contrib/logger/zerolog"

	"recruit-agent-go/internal/agent"
	"recruit-agent-go/internal/api/handler"
	"recruit-agent-go/internal/api/router"
	"recruit-agent-go/internal/config"
	"recruit-agent-go/internal/logger"
	"recruit-agent-go/internal/outbox"
	"recruit-agent-go/internal/parser"
	"recruit-agent-go/internal/processor"
	"recruit-agent-go/internal/storage"
	"recruit-agent-go/internal/tracing"
)

func main() {
	// .env 先于配置加载，便于注入MISTRAL_API_KEY等敏感项
	_ = godotenv.Load()

	var configPath string
	pflag.StringVarP(&configPath, "config", "c", "", "配置文件路径")
	pflag.Parse()

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("加载配置失败")
	}

	logger.Init(logger.Config{
		Level:        cfg.Logger.Level,
		Format:       cfg.Logger.Format,
		TimeFormat:   cfg.Logger.TimeFormat,
		ReportCaller: cfg.Logger.ReportCaller,
	})
	// Hertz的日志走同一个zerolog实例
	glog.SetLogger(hertzzerolog.From(logger.Logger))
	logger.Info().Str("config", configPath).Msg("配置加载成功")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 链路追踪
	if cfg.Tracing.Enabled {
		shutdown, err := tracing.InitProvider(ctx, cfg.Tracing.ServiceName, cfg.Tracing.OTLPEndpoint, cfg.Tracing.SampleRatio)
		if err != nil {
			logger.Fatal().Err(err).Msg("初始化追踪失败")
		}
		defer func() {
			shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancelShutdown()
			if err := shutdown(shutdownCtx); err != nil {
				logger.Warn().Err(err).Msg("关闭追踪提供者失败")
			}
		}()
		logger.Info().Str("endpoint", cfg.Tracing.OTLPEndpoint).Msg("追踪初始化成功")
	}

	storageManager, err := storage.NewStorage(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("初始化存储失败")
	}
	defer storageManager.Close()
	// API的每条路径都要读写MySQL，没有它起不了服务
	if storageManager.MySQL == nil {
		logger.Fatal().Msg("MySQL未就绪，拒绝启动")
	}
	logger.Info().Msg("存储服务初始化成功")

	// 事务性发件箱中继
	var messageRelay *outbox.MessageRelay
	if storageManager.MySQL != nil && storageManager.RabbitMQ != nil {
		messageRelay = outbox.NewMessageRelay(storageManager.MySQL.DB(), storageManager.RabbitMQ)
		messageRelay.Start()
	} else {
		logger.Warn().Msg("MySQL或RabbitMQ未就绪，消息中继未启动")
	}

	pdfExtractor, err := parser.NewPDFTextExtractor(ctx)
	if err != nil {
		logger.Fatal().Err(err).Msg("创建PDF提取器失败")
	}

	// LLM凭证缺失只禁用LLM路径，不阻止启动
	extractorOpts := []processor.ExtractorOption{}
	if apiKey := cfg.ResolveMistralAPIKey(""); apiKey != "" {
		chatModel, err := agent.NewMistralChatModel(apiKey, cfg.Mistral.Model, cfg.Mistral.APIURL,
			agent.WithTemperature(cfg.Mistral.Temperature),
			agent.WithTimeout(time.Duration(cfg.Mistral.TimeoutSeconds)*time.Second))
		if err != nil {
			logger.Fatal().Err(err).Msg("创建LLM客户端失败")
		}
		var structuredModel agent.StructuredChatModel = chatModel
		if cfg.Mistral.QPM > 0 {
			structuredModel = agent.NewRateLimitedChatModel(chatModel, cfg.Mistral.QPM)
		}
		llmExtractor, err := parser.NewLLMResumeExtractor(structuredModel)
		if err != nil {
			logger.Fatal().Err(err).Msg("创建LLM提取器失败")
		}
		extractorOpts = append(extractorOpts, processor.WithStructuredExtractor(llmExtractor))
		logger.Info().Str("model", cfg.Mistral.Model).Msg("LLM提取已启用")
	} else {
		logger.Warn().Msg("未配置Mistral API Key，所有简历走启发式回退")
	}

	resumeExtractor, err := processor.NewResumeExtractor(pdfExtractor, extractorOpts...)
	if err != nil {
		logger.Fatal().Err(err).Msg("创建提取编排器失败")
	}

	batchOpts := []processor.BatchOption{
		processor.WithCandidateEvents(cfg.RabbitMQ.CandidateEventsExchange, cfg.RabbitMQ.CandidateCreatedKey),
	}
	if storageManager.MinIO != nil {
		batchOpts = append(batchOpts, processor.WithResumeFileStore(storageManager.MinIO))
	}
	if storageManager.Redis != nil {
		batchOpts = append(batchOpts, processor.WithDedupCache(storageManager.Redis))
	}
	batchProcessor := processor.NewBatchProcessor(resumeExtractor, storageManager.MySQL, batchOpts...)

	handlers := &router.Handlers{
		Candidate:   handler.NewCandidateHandler(cfg, storageManager, batchProcessor),
		Job:         handler.NewJobHandler(storageManager),
		Application: handler.NewApplicationHandler(storageManager),
	}

	serverOpts := []hertzconfig.Option{server.WithHostPorts(cfg.Server.Address), server.WithHandleMethodNotAllowed(true)}
	var h *server.Hertz
	if cfg.Tracing.Enabled {
		tracer, tracerCfg := hertztracing.NewServerTracer()
		serverOpts = append(serverOpts, tracer)
		h = server.New(serverOpts...)
		h.Use(hertztracing.ServerMiddleware(tracerCfg))
	} else {
		h = server.New(serverOpts...)
	}
	h.Use(recovery.Recovery())

	router.RegisterRoutes(h, cfg, handlers)
	logger.Info().Str("address", cfg.Server.Address).Msg("HTTP服务器启动")

	go func() {
		if err := h.Run(); err != nil {
			logger.Fatal().Err(err).Msg("启动HTTP服务器失败")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info().Msg("接收到终止信号，正在优雅退出")

	if messageRelay != nil {
		messageRelay.Stop()
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	if err := h.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("服务器关闭失败")
	}
	logger.Info().Msg("优雅退出完成")
}
