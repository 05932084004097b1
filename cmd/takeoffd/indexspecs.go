package main

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Sumitkumar005/Construction-AI-Agent/internal/config"
	"github.com/Sumitkumar005/Construction-AI-Agent/internal/logging"
	"github.com/Sumitkumar005/Construction-AI-Agent/internal/specs"
	"github.com/Sumitkumar005/Construction-AI-Agent/internal/vectorstore"
)

var (
	division     string
	chunkSize    int
	chunkOverlap int
)

// indexSpecsCmd ingests a specification corpus into the vector store
var indexSpecsCmd = &cobra.Command{
	Use:   "index-specs [dir]",
	Short: "Index a directory of specification documents",
	Long: `Index-specs walks a directory of plain-text specification documents
(.txt and .md), splits them into section-aware overlapping chunks and
stores them in the vector store for retrieval during spec reasoning.

Examples:
  takeoffd index-specs --division "08" specs/division-08/`,
	Args: cobra.ExactArgs(1),
	RunE: runIndexSpecs,
}

func init() {
	indexSpecsCmd.Flags().StringVar(&division, "division", "", "CSI division label attached to every chunk")
	indexSpecsCmd.Flags().IntVar(&chunkSize, "chunk-size", 0, "chunk size in characters (0 uses the default)")
	indexSpecsCmd.Flags().IntVar(&chunkOverlap, "chunk-overlap", 0, "chunk overlap in characters (0 uses the default)")
}

func runIndexSpecs(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadWithFile(configPath)
	if err != nil {
		return err
	}
	if cfg.VectorStore.EmbeddingAPIKey == "" {
		return fmt.Errorf("vectorstore embedding_api_key is required to index specifications")
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	store, err := newSpecStore(cfg, logger)
	if err != nil {
		return err
	}
	chunker := specs.NewChunker(chunkSize, chunkOverlap, logger)

	var docs []vectorstore.Document
	files := 0
	err = filepath.WalkDir(args[0], func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".txt", ".md":
		default:
			logger.Debug("skipping non-text file", zap.String("path", path))
			return nil
		}

		content, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading %s: %w", path, err)
		}

		name := filepath.Base(path)
		chunks := chunker.ChunkSpecification(string(content), name, division)
		for i := range chunks {
			chunks[i].Metadata["source"] = name
		}
		docs = append(docs, chunks...)
		files++
		return nil
	})
	if err != nil {
		return err
	}
	if len(docs) == 0 {
		return fmt.Errorf("no specification documents found under %s", args[0])
	}

	ids, err := store.AddDocuments(cmd.Context(), docs)
	if err != nil {
		return fmt.Errorf("indexing documents: %w", err)
	}

	fmt.Printf("indexed %d chunks from %d files into collection %q\n",
		len(ids), files, cfg.VectorStore.Collection)
	return nil
}
