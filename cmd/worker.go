package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-amqp/pkg/amqp"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/bwmarrin/snowflake"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"nuvaru/src/core/rag"
	jobctrl "nuvaru/src/infrastructure/job"
	"nuvaru/src/log"
	"nuvaru/src/storage/postgres/documentctrl"
	"nuvaru/src/storage/postgres/knowledgebasectrl"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Start the background ingestion worker",
	RunE:  runWorker,
}

func init() {
	rootCmd.AddCommand(workerCmd)
	settingDefaultConfig()
}

func runWorker(cmd *cobra.Command, args []string) error {
	logger := watermill.NewStdLogger(false, false)

	db, err := openDatabase()
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	// Initialize AMQP publisher
	amqpPublisher, err := amqp.NewPublisher(
		amqp.NewDurableQueueConfig(viper.GetString("amqp.url")),
		logger,
	)
	if err != nil {
		return err
	}
	defer amqpPublisher.Close()

	// Initialize AMQP subscriber
	subscriberConfig := amqp.NewDurableQueueConfig(viper.GetString("amqp.url"))
	subscriberConfig.Consume.NoRequeueOnNack = true
	amqpSubscriber, err := amqp.NewSubscriber(subscriberConfig, logger)
	if err != nil {
		return err
	}
	defer amqpSubscriber.Close()

	router, err := message.NewRouter(message.RouterConfig{}, logger)
	if err != nil {
		return err
	}

	router.AddMiddleware(
		middleware.Recoverer,
		middleware.CorrelationID,
		middleware.Retry{
			MaxRetries:      3,
			InitialInterval: time.Second,
			Logger:          logger,
		}.Middleware,
	)

	node, err := snowflake.NewNode(2)
	if err != nil {
		return err
	}

	vectors, err := newVectorStore(node)
	if err != nil {
		return err
	}

	oc := newOllamaClient()
	embedder, err := newEmbedder(oc)
	if err != nil {
		return err
	}

	objects, err := newObjectStore()
	if err != nil {
		return err
	}
	if err := objects.EnsureBucketExists(cmd.Context()); err != nil {
		return err
	}

	registry, err := documentctrl.NewDocumentService(db)
	if err != nil {
		return err
	}

	kbRepo, err := knowledgebasectrl.NewKnowledgeBaseService(db)
	if err != nil {
		return err
	}

	chunker, err := newChunker()
	if err != nil {
		return err
	}

	// The worker processes inline; only the API server enqueues.
	ingest := rag.NewIngestService(
		registry,
		kbRepo,
		rag.NewTextExtractor(),
		chunker,
		embedder,
		vectors,
		objects,
		rag.WithProcessTimeout(viper.GetDuration("ingest.process_timeout")),
	)

	jobRepo, err := jobctrl.NewPostgresJobRepository(db)
	if err != nil {
		return err
	}
	jobService := jobctrl.NewJobService(amqpPublisher, jobRepo, logger, ingest)

	router.AddNoPublisherHandler(
		"ingest_processor",
		jobctrl.Topic,
		amqpSubscriber,
		func(msg *message.Message) error {
			return jobService.ProcessJobMessage(msg)
		},
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := router.Run(ctx); err != nil {
			log.Error(err, "Router stopped unexpectedly")
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
	<-c

	log.Info("Shutting down worker...")
	cancel()
	<-router.Running()
	log.Info("Router stopped")

	return nil
}
