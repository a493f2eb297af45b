package cmd

import (
	"fmt"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"
	weaviateClient "github.com/weaviate/weaviate-go-client/v4/weaviate"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"nuvaru/src/core/rag"
	"nuvaru/src/infrastructure/integrations/ollama"
	"nuvaru/src/storage/memvec"
	"nuvaru/src/storage/minioctrl"
	"nuvaru/src/storage/redisctrl"
	"nuvaru/src/storage/weaviate"
)

func openDatabase() (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
		viper.GetString("postgres.host"),
		viper.GetString("postgres.user"),
		viper.GetString("postgres.password"),
		viper.GetString("postgres.db"),
		viper.GetString("postgres.port"))
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %v", err)
	}
	return db, nil
}

func newOllamaClient() *ollama.Client {
	return ollama.NewClient(viper.GetString("ollama.url"), &http.Client{
		Timeout: 120 * time.Second,
	})
}

// newVectorStore selects the configured backend. The in-memory store only
// suits single-process development runs.
func newVectorStore(node *snowflake.Node) (rag.VectorStore, error) {
	switch backend := viper.GetString("vector.backend"); backend {
	case "weaviate":
		wc := weaviateClient.New(weaviateClient.Config{
			Host:   viper.GetString("weaviate.host"),
			Scheme: viper.GetString("weaviate.scheme"),
		})
		return weaviate.NewStore(wc, node), nil
	case "memory":
		return memvec.New(), nil
	default:
		return nil, fmt.Errorf("unknown vector backend: %s", backend)
	}
}

// newEmbedder selects the configured embedding provider. The hash provider
// is deterministic and offline, for development and tests.
func newEmbedder(oc *ollama.Client) (rag.EmbeddingProvider, error) {
	switch provider := viper.GetString("embedding.provider"); provider {
	case "ollama":
		return ollama.NewEmbeddingProvider(
			oc,
			viper.GetString("embedding.model"),
			viper.GetInt("embedding.dimension"),
		), nil
	case "hash":
		return rag.NewHashEmbeddingProvider(), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s", provider)
	}
}

func newLLMProvider(oc *ollama.Client) rag.LLMProvider {
	return ollama.NewLLMProvider(oc, viper.GetString("generation.model"))
}

func newObjectStore() (*minioctrl.MinioService, error) {
	return minioctrl.NewMinioService(
		viper.GetString("minio.endpoint"),
		viper.GetString("minio.access_key"),
		viper.GetString("minio.secret_key"),
		viper.GetBool("minio.use_ssl"),
		viper.GetString("minio.bucket"),
	)
}

func newTurnStore() *redisctrl.ChatStore {
	client := redis.NewClient(&redis.Options{
		Addr:     viper.GetString("redis.addr"),
		Password: viper.GetString("redis.password"),
	})
	return redisctrl.NewChatStore(client, viper.GetDuration("redis.session_ttl"))
}

func newChunker() (*rag.Chunker, error) {
	return rag.NewChunker(
		viper.GetInt("ingest.chunk_size"),
		viper.GetInt("ingest.chunk_overlap"),
	)
}
