// opqueuectl inspects and repairs a persisted offline operation queue.
package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	opqueue "github.com/inventakit/go-opqueue"
	"github.com/inventakit/go-opqueue/logging"
	"github.com/inventakit/go-opqueue/storage/sqlite"
)

func main() {
	logging.Init(logging.Config{Level: "warn", Format: "text"})

	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var dbPath string

	cmd := &cobra.Command{
		Use:           "opqueuectl",
		Short:         "Inspect and repair the offline operation queue",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&dbPath, "db", "", "path to the queue SQLite database (required)")
	_ = cmd.MarkPersistentFlagRequired("db")

	cmd.AddCommand(
		newPendingCommand(&dbPath),
		newFailedCommand(&dbPath),
		newStatsCommand(&dbPath),
		newRetryCommand(&dbPath),
		newClearFailedCommand(&dbPath),
	)
	return cmd
}

func openQueue(dbPath string) (*opqueue.Queue, *sqlite.Store, error) {
	store, err := sqlite.NewWithDataSource(dbPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open queue database: %w", err)
	}
	return opqueue.NewQueue(store, nil), store, nil
}

func newPendingCommand(dbPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "pending",
		Short: "List operations waiting to be synced",
		RunE: func(cmd *cobra.Command, args []string) error {
			queue, store, err := openQueue(*dbPath)
			if err != nil {
				return err
			}
			defer store.Close()

			return printOperations(cmd, queue.PendingOperations())
		},
	}
}

func newFailedCommand(dbPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "failed",
		Short: "List operations that exhausted their retries",
		RunE: func(cmd *cobra.Command, args []string) error {
			queue, store, err := openQueue(*dbPath)
			if err != nil {
				return err
			}
			defer store.Close()

			return printOperations(cmd, queue.FailedOperations())
		},
	}
}

func newStatsCommand(dbPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show queue statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			queue, store, err := openQueue(*dbPath)
			if err != nil {
				return err
			}
			defer store.Close()

			stats := queue.Statistics()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "pending: %d\n", stats.PendingCount)
			fmt.Fprintf(out, "failed:  %d\n", stats.FailedCount)
			if len(stats.CountByType) > 0 {
				fmt.Fprintln(out, "by entity type:")
				for entityType, count := range stats.CountByType {
					fmt.Fprintf(out, "  %-14s %d\n", entityType, count)
				}
			}
			return nil
		},
	}
}

func newRetryCommand(dbPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "retry <operation-id>",
		Short: "Move a failed operation back to the pending pool",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			queue, store, err := openQueue(*dbPath)
			if err != nil {
				return err
			}
			defer store.Close()

			id := args[0]
			for _, op := range queue.FailedOperations() {
				if op.ID == id {
					queue.RetryFailed(context.Background(), id)
					fmt.Fprintf(cmd.OutOrStdout(), "operation %s queued for retry\n", id)
					return nil
				}
			}
			return fmt.Errorf("no failed operation with id %s", id)
		},
	}
}

func newClearFailedCommand(dbPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "clear-failed",
		Short: "Discard all permanently-failed operations",
		RunE: func(cmd *cobra.Command, args []string) error {
			queue, store, err := openQueue(*dbPath)
			if err != nil {
				return err
			}
			defer store.Close()

			n := len(queue.FailedOperations())
			queue.ClearFailed(context.Background())
			fmt.Fprintf(cmd.OutOrStdout(), "discarded %d failed operation(s)\n", n)
			return nil
		},
	}
}

func printOperations(cmd *cobra.Command, ops []opqueue.Operation) error {
	if len(ops) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "no operations")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tKIND\tENTITY\tCREATED\tRETRIES\tLAST ERROR")
	for _, op := range ops {
		fmt.Fprintf(w, "%s\t%s\t%s/%s\t%s\t%d\t%s\n",
			op.ID, op.Kind, op.EntityType, op.EntityID,
			op.CreatedAt.Format(time.RFC3339), op.RetryCount, op.LastError)
	}
	return w.Flush()
}
