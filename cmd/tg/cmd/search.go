package cmd

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/turbopuffer/turbogrep/internal/project"
	"github.com/turbopuffer/turbogrep/internal/search"
)

func newSearchCmd() *cobra.Command {
	var (
		directory            string
		topK                 int
		regex                bool
		showScores           bool
		speculate            bool
		reset                bool
		embeddingConcurrency int
	)

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the indexed codebase",
		Long: `Search a project's indexed codebase by meaning.

Examples:
  tg search "retry with backoff"
  tg search --regex "func Handle\w+Request"
  tg search --speculate "auth middleware"
  tg search --reset "auth middleware"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")

			orchestrator, err := buildOrchestrator(cmd.Context())
			if err != nil {
				return err
			}

			opts := search.Options{
				Query:                query,
				Directory:            directory,
				MaxCount:             topK,
				EmbeddingConcurrency: embeddingConcurrency,
				ShowScores:           showScores,
				Regex:                regex,
			}

			namespace, root, err := project.NamespaceAndDir(directory, orchestrator.EmbedProvider)
			if err != nil {
				return fmt.Errorf("resolving namespace: %w", err)
			}

			if reset {
				slog.Info("resetting namespace before search", slog.String("namespace", namespace))
				if err := orchestrator.Client.DeleteNamespace(cmd.Context(), namespace); err != nil {
					slog.Warn("delete namespace failed, continuing with sync", slog.String("error", err.Error()))
				}
				diff, err := orchestrator.Synchronizer.Sync(cmd.Context(), root, namespace)
				if err != nil {
					return fmt.Errorf("sync: %w", err)
				}
				if _, err := orchestrator.Synchronizer.ApplyDiff(cmd.Context(), namespace, diff, embeddingConcurrency); err != nil {
					return fmt.Errorf("applying diff: %w", err)
				}
			}

			var output string
			switch {
			case reset:
				// The index was just rebuilt above, so a search is
				// already known fresh — no need to race a resync.
				output, err = orchestrator.Search(cmd.Context(), opts)
			case speculate:
				output, err = orchestrator.Speculate(cmd.Context(), opts, root, namespace)
			default:
				output, err = orchestrator.Search(cmd.Context(), opts)
			}
			if err != nil {
				return err
			}

			if output != "" {
				fmt.Fprintln(cmd.OutOrStdout(), colorizeResults(output))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&directory, "directory", "d", ".", "project directory to search")
	cmd.Flags().IntVarP(&topK, "top-k", "n", 10, "maximum number of results")
	cmd.Flags().BoolVar(&regex, "regex", false, "treat query as a regular expression")
	cmd.Flags().BoolVar(&showScores, "scores", false, "include similarity distance in output")
	cmd.Flags().BoolVar(&speculate, "speculate", false, "race the search against a background resync")
	cmd.Flags().BoolVar(&reset, "reset", false, "delete the namespace and perform a fresh sync before searching")
	cmd.Flags().IntVar(&embeddingConcurrency, "embedding-concurrency", 0, "override the embedder's concurrency for this call (0 uses the embedder's default)")

	return cmd
}
