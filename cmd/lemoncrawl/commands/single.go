package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"lemoncrawl/internal/domain"
	"lemoncrawl/internal/storage"
)

var singleSessionDir string

func init() {
	singleSessionCmd.Flags().StringVar(&singleSessionDir, "out", "test_sessions", "directory for the session record")
	rootCmd.AddCommand(singleReviewCmd, singleSessionCmd)
}

var singleReviewCmd = &cobra.Command{
	Use:   "single-review <url>",
	Short: "Process one review URL and print the saved record.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		page, release, err := openPage(ctx)
		if err != nil {
			return err
		}
		defer release()

		store := newStore(cfg, log)
		proc := newReviewProcessor(cfg, page, store, storage.NopRecorder{}, newRunID(), log)
		out := proc.Visit(ctx, domain.EntityLink{URL: args[0]})
		if out.Status != domain.StatusSaved {
			if out.Err != nil {
				return fmt.Errorf("review not saved (%s): %w", out.Status, out.Err)
			}
			return fmt.Errorf("review not saved (%s)", out.Status)
		}
		return printFile(cmd, store.ReviewPath(out.RecordID))
	},
}

var singleSessionCmd = &cobra.Command{
	Use:   "single-session <url>",
	Short: "Extract one session URL into --out and print the saved record.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		page, release, err := openPage(ctx)
		if err != nil {
			return err
		}
		defer release()

		c := cfg
		c.SessionsDir = singleSessionDir
		store := newStore(c, log)
		ex := newSessionExtractor(c, page, store, storage.NopRecorder{}, newRunID(), log)

		link := domain.EntityLink{URL: args[0]}
		status, err := ex.ProcessOne(ctx, link)
		if err != nil {
			log.WithError(err).WithField("status", status).Warn("Session processed with errors")
		}
		if status == domain.StatusFailed {
			return fmt.Errorf("session not saved: %w", err)
		}
		return printFile(cmd, store.SessionPath(domain.LastPathSegment(link.URL)))
	},
}

func printFile(cmd *cobra.Command, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("no output file found: %w", err)
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "\n--- Extracted output from %s ---\n\n", path)
	_, err = out.Write(raw)
	return err
}
