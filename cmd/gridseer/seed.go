package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rcabanilla/gridseer/config"
	core "github.com/rcabanilla/gridseer/internal/agent/core"
	"github.com/rcabanilla/gridseer/internal/store"
	"github.com/rcabanilla/gridseer/internal/vectorstore"
	"github.com/rcabanilla/gridseer/provider"
)

// seedCMD bulk-loads curated energy documents from a JSON file into both the
// vector collection and the page cache.
func seedCMD() *cobra.Command {
	var cfgPath string
	var dataPath string
	var topics []string

	var seed = &cobra.Command{
		Use:   "seed",
		Short: "Load energy documents into the vector store and page cache",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadConfig(cfgPath)
			ctx := context.Background()

			data, err := os.ReadFile(dataPath)
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", dataPath, err)
			}
			var docs []core.EnergyDocument
			if err := json.Unmarshal(data, &docs); err != nil {
				return fmt.Errorf("failed to parse %s: %w", dataPath, err)
			}
			if len(docs) == 0 {
				return fmt.Errorf("%s contains no documents", dataPath)
			}

			embedder, err := provider.NewEmbedder(cfg.LLM.Embedding)
			if err != nil {
				return err
			}
			vectors, err := vectorstore.NewClient(cfg.Vector, embedder)
			if err != nil {
				return err
			}
			if err := vectors.EnsureCollection(ctx); err != nil {
				return err
			}

			dsn, err := cfg.Storage.Postgres.DSN()
			if err != nil {
				return err
			}
			st, err := store.NewWithDSN(ctx, dsn)
			if err != nil {
				return err
			}

			if err := vectors.StoreDocuments(ctx, docs, topics); err != nil {
				return fmt.Errorf("vector store failed: %w", err)
			}
			if err := st.UpsertPages(ctx, docs); err != nil {
				return fmt.Errorf("page cache upsert failed: %w", err)
			}

			fmt.Printf("seeded %d documents\n", len(docs))
			return nil
		},
	}
	seed.Flags().StringVar(&dataPath, "data", "seed.json", "JSON file of documents to load")
	seed.Flags().StringSliceVar(&topics, "topics", nil, "topic tags applied to all seeded documents")
	seed.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default is .)")

	return seed
}
