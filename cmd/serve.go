package cmd

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-amqp/pkg/amqp"
	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	v1 "nuvaru/handler/http/v1"
	"nuvaru/src/core/rag"
	jobctrl "nuvaru/src/infrastructure/job"
	"nuvaru/src/log"
	"nuvaru/src/storage/postgres/documentctrl"
	"nuvaru/src/storage/postgres/knowledgebasectrl"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the knowledge base API server",
	Long:  `The serve command starts the HTTP server exposing knowledge base, document, query, and chat APIs.`,
	Run:   RunServer,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	settingDefaultConfig()
}

func RunServer(cmd *cobra.Command, args []string) {
	db, err := openDatabase()
	if err != nil {
		log.Error(err, "Failed to connect to database")
		return
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		log.Error(err, "Failed to create snowflake node")
		return
	}

	vectors, err := newVectorStore(node)
	if err != nil {
		log.Error(err, "Failed to create vector store")
		return
	}

	oc := newOllamaClient()
	embedder, err := newEmbedder(oc)
	if err != nil {
		log.Error(err, "Failed to create embedding provider")
		return
	}

	objects, err := newObjectStore()
	if err != nil {
		log.Error(err, "Failed to create object store")
		return
	}
	if err := objects.EnsureBucketExists(cmd.Context()); err != nil {
		log.Error(err, "Failed to ensure documents bucket")
		return
	}

	registry, err := documentctrl.NewDocumentService(db)
	if err != nil {
		log.Error(err, "Failed to create document registry")
		return
	}

	kbRepo, err := knowledgebasectrl.NewKnowledgeBaseService(db)
	if err != nil {
		log.Error(err, "Failed to create knowledge base repository")
		return
	}

	chunker, err := newChunker()
	if err != nil {
		log.Error(err, "Invalid chunking configuration")
		return
	}

	// Ingestion: async hands processing to the worker over AMQP, otherwise
	// uploads are processed inline in the request.
	ingestOpts := []rag.IngestOption{
		rag.WithProcessTimeout(viper.GetDuration("ingest.process_timeout")),
	}
	if viper.GetBool("ingest.async") {
		amqpPublisher, err := amqp.NewPublisher(
			amqp.NewDurableQueueConfig(viper.GetString("amqp.url")),
			watermill.NewStdLogger(false, false),
		)
		if err != nil {
			log.Error(err, "Failed to create AMQP publisher")
			return
		}
		defer amqpPublisher.Close()

		jobRepo, err := jobctrl.NewPostgresJobRepository(db)
		if err != nil {
			log.Error(err, "Failed to create job repository")
			return
		}
		jobService := jobctrl.NewJobService(amqpPublisher, jobRepo, watermill.NewStdLogger(false, false), nil)
		ingestOpts = append(ingestOpts, rag.WithEnqueuer(jobService))
	}

	ingest := rag.NewIngestService(
		registry,
		kbRepo,
		rag.NewTextExtractor(),
		chunker,
		embedder,
		vectors,
		objects,
		ingestOpts...,
	)

	retrieval := rag.NewRetrievalService(
		embedder,
		vectors,
		rag.WithTopK(viper.GetInt("retrieval.top_k")),
		rag.WithContextBudget(viper.GetInt("retrieval.context_window")-viper.GetInt("retrieval.response_reserve")),
	)

	turns := newTurnStore()
	generation := rag.NewGenerationService(
		retrieval,
		newLLMProvider(oc),
		turns,
		node,
		rag.WithGenerateTimeout(viper.GetDuration("generation.timeout")),
		rag.WithEmptyContextMode(rag.EmptyContextMode(viper.GetString("generation.on_empty"))),
		rag.WithSampling(viper.GetInt("generation.max_tokens"), viper.GetFloat64("generation.temperature")),
	)

	kbService := rag.NewKnowledgeBaseService(kbRepo, registry, vectors, objects)

	sysService := rag.NewSystemService().
		Register("postgres", func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		}).
		Register("ollama", func(ctx context.Context) error {
			_, err := oc.Models(ctx)
			return err
		}).
		Register("vector-store", func(ctx context.Context) error {
			_, err := vectors.Query(ctx, "healthcheck", make([]float32, embedder.Dimension()), 1, rag.QueryFilter{})
			return err
		})

	handler := v1.NewHandler(
		kbService,
		ingest,
		retrieval,
		generation,
		registry,
		objects,
		sysService,
	)

	// Setup gin router
	r := gin.Default()
	handler.RegisterRoutes(r)

	srv := &http.Server{
		Addr:    ":" + viper.GetString("server.port"),
		Handler: r,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error(err, "Failed to start server")
			return
		}
	}()
	log.Info("Server started", "port", viper.GetString("server.port"))

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	timeout := viper.GetDuration("server.shutdown_timeout")
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if sqlDB, err := db.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			log.Error(err, "Error closing database connection")
		}
	}

	if err := srv.Shutdown(ctx); err != nil {
		log.Error(err, "Server forced to shutdown")
	}

	log.Info("Server exited")
}
