package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/charmbracelet/log"

	"github.com/budi-audio/worker-dsp/internal/config"
	"github.com/budi-audio/worker-dsp/internal/jobs"
	"github.com/budi-audio/worker-dsp/internal/objectstore"
	"github.com/budi-audio/worker-dsp/internal/queue"
	"github.com/budi-audio/worker-dsp/internal/webhook"
)

// version is set via ldflags at build time.
var version = "dev"

// CLI defines the command-line interface for the codec-preview worker
// process — a separate binary from worker-dsp so codec-preview jobs,
// which shell out to an external encoder, can be scaled and deployed
// independently of the DSP-bound analyze/fix/master workers.
type CLI struct {
	Version bool   `short:"v" help:"Show version information"`
	Debug   bool   `short:"d" help:"Enable debug logging"`
	Queue   string `help:"Queue name to pop codec-preview jobs from (defaults to CODEC_QUEUE)"`
}

func main() {
	cliArgs := &CLI{}
	kong.Parse(cliArgs,
		kong.Name("worker-codec"),
		kong.Description("Codec-preview worker: lossy round-trip encoding via an external encoder"),
		kong.UsageOnError(),
		kong.Vars{"version": version},
	)

	if cliArgs.Version {
		os.Stdout.WriteString("worker-codec " + version + "\n")
		os.Exit(0)
	}

	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
	})
	if cliArgs.Debug {
		logger.SetLevel(log.DebugLevel)
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load config", "error", err)
	}

	redisQueue := queue.NewRedis(cfg.RedisAddr())
	defer redisQueue.Close()

	store, err := objectstore.NewMinIO(objectstore.Config{
		Endpoint:  cfg.MinioEndpoint,
		AccessKey: cfg.MinioAccessKey,
		SecretKey: cfg.MinioSecretKey,
		Bucket:    cfg.MinioBucket,
		UseSSL:    cfg.MinioUseSSL,
	})
	if err != nil {
		logger.Fatal("failed to construct object store client", "error", err)
	}

	webhookClient := webhook.New(cfg.APIURL, cfg.WebhookSecret)

	scratchBase, err := os.MkdirTemp("", "worker-codec-scratch-*")
	if err != nil {
		logger.Fatal("failed to create scratch directory", "error", err)
	}
	defer os.RemoveAll(scratchBase)

	dispatcher := &jobs.Dispatcher{
		Queue:       redisQueue,
		Store:       store,
		Webhook:     webhookClient,
		CodecBinary: cfg.FFmpegBinary,
		Logger:      logger,
		ScratchDir:  scratchBase,
	}

	queueName := cliArgs.Queue
	if queueName == "" {
		queueName = cfg.CodecQueue
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("worker-codec starting", "queue", queueName, "version", version)
	if err := dispatcher.Run(ctx, queueName); err != nil && ctx.Err() == nil {
		logger.Fatal("dispatcher stopped", "error", err)
	}
}
