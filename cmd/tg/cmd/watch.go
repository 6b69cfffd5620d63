package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/turbopuffer/turbogrep/internal/project"
	"github.com/turbopuffer/turbogrep/internal/watch"
)

func newWatchCmd() *cobra.Command {
	var (
		directory string
		debounce  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Keep the index in sync as files change",
		Long:  `Runs an initial sync, then watches the project directory and re-syncs whenever file activity settles.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			orchestrator, err := buildOrchestrator(cmd.Context())
			if err != nil {
				return err
			}

			namespace, root, err := project.NamespaceAndDir(directory, orchestrator.EmbedProvider)
			if err != nil {
				return fmt.Errorf("resolving namespace: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "watching %s (namespace %s)\n", root, namespace)
			return watch.Run(cmd.Context(), root, namespace, orchestrator.Synchronizer, watch.Options{
				DebounceWindow: debounce,
			})
		},
	}

	cmd.Flags().StringVarP(&directory, "directory", "d", ".", "project directory to watch")
	cmd.Flags().DurationVar(&debounce, "debounce", 250*time.Millisecond, "how long file activity must settle before re-syncing")

	return cmd
}
