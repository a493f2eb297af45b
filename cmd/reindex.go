package cmd

import (
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"nuvaru/src/core/rag"
	"nuvaru/src/log"
	"nuvaru/src/storage/postgres/documentctrl"
	"nuvaru/src/storage/postgres/knowledgebasectrl"
)

var (
	reindexOwner string
	reindexKB    string
)

// reindexCmd re-runs the ingestion pipeline over stored uploads, useful
// after changing the chunking configuration or the embedding model.
var reindexCmd = &cobra.Command{
	Use:   "reindex",
	Short: "Rebuild the vector index for a knowledge base",
	Long: `The reindex command re-extracts, re-chunks, and re-embeds every stored
document of a knowledge base, replacing its vectors in place.`,
	RunE: runReindex,
}

func init() {
	rootCmd.AddCommand(reindexCmd)
	settingDefaultConfig()

	reindexCmd.Flags().StringVar(&reindexOwner, "owner", "", "owner whose knowledge base to reindex")
	reindexCmd.Flags().StringVar(&reindexKB, "knowledge-base", "", "knowledge base id to reindex")
	reindexCmd.MarkFlagRequired("owner")
	reindexCmd.MarkFlagRequired("knowledge-base")
}

func runReindex(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	db, err := openDatabase()
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	node, err := snowflake.NewNode(3)
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

	registry, err := documentctrl.NewDocumentService(db)
	if err != nil {
		return err
	}

	kbRepo, err := knowledgebasectrl.NewKnowledgeBaseService(db)
	if err != nil {
		return err
	}

	kb, err := kbRepo.Get(ctx, reindexKB)
	if err != nil {
		return err
	}
	if kb.OwnerID != reindexOwner {
		return rag.ErrKnowledgeBaseNotFound
	}

	chunker, err := newChunker()
	if err != nil {
		return err
	}

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

	_, total, err := registry.List(ctx, reindexOwner, reindexKB, 0, 1)
	if err != nil {
		return err
	}
	if total == 0 {
		fmt.Println("nothing to reindex")
		return nil
	}

	bar := progressbar.Default(total, "reindexing")

	const pageSize = 100
	failed := 0
	for offset := 0; int64(offset) < total; offset += pageSize {
		docs, _, err := registry.List(ctx, reindexOwner, reindexKB, offset, pageSize)
		if err != nil {
			return err
		}
		for _, doc := range docs {
			if err := registry.Reset(ctx, doc.ID); err != nil {
				return err
			}
			if err := ingest.Process(ctx, doc.ID); err != nil {
				// The failure is retained on the document record.
				log.Error(err, "failed to reindex document", "documentId", doc.ID)
				failed++
			}
			bar.Add(1)
		}
	}

	if failed > 0 {
		return fmt.Errorf("reindex finished with %d failed documents", failed)
	}
	fmt.Println("reindex complete")
	return nil
}
