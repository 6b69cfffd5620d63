package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/turbopuffer/turbogrep/internal/project"
)

func newSyncCmd() *cobra.Command {
	var (
		directory            string
		reset                bool
		chunkOnly            bool
		embeddingConcurrency int
	)

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Index (or re-index) a project into its turbopuffer namespace",
		Long: `Walks the project directory, diffs its chunks against the remote
index, embeds and uploads anything new or changed, and removes chunks
for files that are gone.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			orchestrator, err := buildOrchestrator(cmd.Context())
			if err != nil {
				return err
			}

			namespace, root, err := project.NamespaceAndDir(directory, orchestrator.EmbedProvider)
			if err != nil {
				return fmt.Errorf("resolving namespace: %w", err)
			}

			if chunkOnly {
				chunks, err := orchestrator.Synchronizer.ChunkFiles(cmd.Context(), root)
				if err != nil {
					return fmt.Errorf("chunking: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "chunked %d chunks (no embedding or upload)\n", len(chunks))
				return nil
			}

			if reset {
				slog.Info("resetting namespace before sync", slog.String("namespace", namespace))
				if err := orchestrator.Client.DeleteNamespace(cmd.Context(), namespace); err != nil {
					slog.Warn("delete namespace failed, continuing with sync", slog.String("error", err.Error()))
				}
			}

			diff, err := orchestrator.Synchronizer.Sync(cmd.Context(), root, namespace)
			if err != nil {
				return fmt.Errorf("sync: %w", err)
			}

			if len(diff.Upload) == 0 && len(diff.Delete) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "index already up to date")
				return nil
			}

			applied, err := orchestrator.Synchronizer.ApplyDiff(cmd.Context(), namespace, diff, embeddingConcurrency)
			if err != nil {
				return fmt.Errorf("applying diff: %w", err)
			}

			slog.Info("sync complete",
				slog.Int("uploaded", len(diff.Upload)),
				slog.Int("deleted", len(diff.Delete)),
				slog.Bool("applied", applied))
			fmt.Fprintf(cmd.OutOrStdout(), "uploaded %d chunks, deleted %d\n", len(diff.Upload), len(diff.Delete))
			return nil
		},
	}

	cmd.Flags().StringVarP(&directory, "directory", "d", ".", "project directory to index")
	cmd.Flags().BoolVar(&reset, "reset", false, "delete the namespace before syncing")
	cmd.Flags().BoolVar(&chunkOnly, "chunk-only", false, "only chunk files, skip embedding and upload")
	cmd.Flags().IntVar(&embeddingConcurrency, "embedding-concurrency", 0, "override the embedder's concurrency for this sync (0 uses the embedder's default)")

	return cmd
}
