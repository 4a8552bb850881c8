package commands

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"lemoncrawl/internal/domain"
)

var statusKind string

func init() {
	statusCmd.Flags().StringVar(&statusKind, "kind", "", "only show items of this kind (review or session)")
	rootCmd.AddCommand(statusCmd)
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the latest recorded attempt for every review and session.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		kind := domain.ItemKind(statusKind)
		switch kind {
		case "", domain.ItemReview, domain.ItemSession:
		default:
			return fmt.Errorf("unknown kind %q, want review or session", statusKind)
		}

		ledger, err := openLedger()
		if err != nil {
			return err
		}
		defer ledger.Close()

		attempts, err := ledger.List(cmd.Context(), kind)
		if err != nil {
			return err
		}
		writeAttemptsTable(cmd.OutOrStdout(), attempts)
		return nil
	},
}

func writeAttemptsTable(w io.Writer, attempts []domain.ItemAttempt) {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetStyle(table.StyleRounded)
	tw.Style().Options.SeparateHeader = true

	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 4, Align: text.AlignRight, AlignHeader: text.AlignCenter},
		{Number: 6, WidthMax: 60},
	})
	tw.AppendHeader(table.Row{"Kind", "ID", "Status", "Attempts", "Updated", "Last error"})

	for _, a := range attempts {
		tw.AppendRow(table.Row{
			a.Kind,
			a.ID,
			a.Status,
			a.Attempts,
			a.UpdatedAt.Local().Format(time.RFC3339),
			strings.ReplaceAll(a.LastError, "\n", "; "),
		})
	}
	if len(attempts) == 0 {
		tw.AppendRow(table.Row{"-", "(no items)", "-", 0, "-", "-"})
	}
	tw.Render()
}
