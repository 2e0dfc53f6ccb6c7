package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"securecode/internal/classifier"
	"securecode/internal/detector"
	"securecode/internal/embeddings"
	"securecode/internal/indexer"
	"securecode/internal/mcp"
	"securecode/internal/qdrant"
)

// openIndex connects to Qdrant and binds an indexer to dir. The caller closes
// the returned client.
func openIndex(dir string) (*indexer.Indexer, *qdrant.Client, error) {
	qc, err := qdrant.NewClient(logger.With().Str("component", "qdrant").Logger())
	if err != nil {
		return nil, nil, err
	}
	ec := embeddings.NewClient(logger.With().Str("component", "embeddings").Logger())
	idx := indexer.NewIndexer(qc, ec, indexer.WithLogger(logger.With().Str("component", "indexer").Logger()))
	if _, err := idx.Open(dir); err != nil {
		qc.Close()
		return nil, nil, err
	}
	return idx, qc, nil
}

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Index C functions into the vector database",
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, _ := cmd.Flags().GetString("dir")

		qc, err := qdrant.NewClient(logger.With().Str("component", "qdrant").Logger())
		if err != nil {
			return err
		}
		defer qc.Close()

		ec := embeddings.NewClient(logger.With().Str("component", "embeddings").Logger())
		idx := indexer.NewIndexer(qc, ec,
			indexer.WithLogger(logger.With().Str("component", "indexer").Logger()),
			indexer.WithProgress(cmd.ErrOrStderr()),
		)

		fmt.Fprintf(cmd.OutOrStdout(), "→ Indexing project at: %s\n", dir)
		res, err := idx.IndexProject(cmd.Context(), dir)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ %d files, %d changed, %d removed, %d functions indexed\n",
			res.Files, res.Changed, res.Deleted, res.Functions)
		if res.Failed > 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "⚠ %d files failed and will be retried on the next run\n", res.Failed)
		}
		return nil
	},
}

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Search indexed functions with a natural language query",
	RunE: func(cmd *cobra.Command, args []string) error {
		q, _ := cmd.Flags().GetString("q")
		topK, _ := cmd.Flags().GetInt("top_k")
		dir, _ := cmd.Flags().GetString("dir")

		idx, qc, err := openIndex(dir)
		if err != nil {
			return err
		}
		defer qc.Close()

		hits, err := idx.Search(cmd.Context(), q, topK)
		if err != nil {
			return err
		}
		data, _ := json.MarshalIndent(hits, "", "  ")
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	},
}

var clearIndexCmd = &cobra.Command{
	Use:   "clear-index",
	Short: "Delete the Qdrant collection and local state for a project",
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, _ := cmd.Flags().GetString("dir")

		idx, qc, err := openIndex(dir)
		if err != nil {
			return err
		}
		defer qc.Close()

		fmt.Fprintf(cmd.OutOrStdout(), "→ Deleting collection: %s\n", idx.Collection())
		if err := idx.Clear(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "✓ Collection deleted")
		return nil
	},
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP server over stdio",
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, _ := cmd.Flags().GetString("dir")
		noIndex, _ := cmd.Flags().GetBool("no-index")

		clf := classifier.NewFromEnv(settings.Model, logger.With().Str("component", "classifier").Logger())
		d := detector.New(clf,
			detector.WithThreshold(settings.Threshold),
			detector.WithLogger(logger.With().Str("component", "detector").Logger()),
		)

		var searcher mcp.Searcher
		if !noIndex {
			idx, qc, err := openIndex(dir)
			if err != nil {
				return err
			}
			defer qc.Close()
			searcher = idx
		}

		server := mcp.NewServer(d, searcher, Version, logger.With().Str("component", "mcp").Logger())
		return server.Run(cmd.Context())
	},
}
