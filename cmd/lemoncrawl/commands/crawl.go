package commands

import (
	"context"

	"github.com/spf13/cobra"

	"lemoncrawl/internal/browser"
	"lemoncrawl/internal/domain"
	"lemoncrawl/internal/output"
	"lemoncrawl/internal/storage"
)

func init() {
	rootCmd.AddCommand(reviewsCmd, sessionsCmd, runCmd)
}

var reviewsCmd = &cobra.Command{
	Use:   "reviews",
	Short: "Resolve every link in REVIEW_LINKS_FILE and save the shared reviews.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		links, err := output.ReadLinks(cfg.ReviewLinksFile)
		if err != nil {
			return err
		}
		return crawl(cmd.Context(), func(ctx context.Context, page browser.Page, j job) (domain.RunSummary, error) {
			return processReviews(ctx, page, j, links), nil
		})
	},
}

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Extract every one-on-one session in SESSION_LINKS_FILE that has no record yet.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		links, err := output.ReadLinks(cfg.SessionLinksFile)
		if err != nil {
			return err
		}
		return crawl(cmd.Context(), func(ctx context.Context, page browser.Page, j job) (domain.RunSummary, error) {
			ex := newSessionExtractor(cfg, page, newStore(cfg, log), j.ledger, j.runID, log)
			return ex.Process(ctx, links), nil
		})
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Collect review links, then save every shared review.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return crawl(cmd.Context(), func(ctx context.Context, page browser.Page, j job) (domain.RunSummary, error) {
			links, err := collectLinks(ctx, cfg, page, domain.ItemReview, log)
			if err != nil {
				return domain.RunSummary{}, err
			}
			summary := processReviews(ctx, page, j, links)
			summary.Command = "run"
			return summary, nil
		})
	},
}

// job carries the per-invocation collaborators into a crawl body.
type job struct {
	runID  string
	ledger storage.Recorder
}

// crawl opens the ledger and the page, runs body, then reports its summary.
func crawl(ctx context.Context, body func(ctx context.Context, page browser.Page, j job) (domain.RunSummary, error)) error {
	ledger, err := openLedger()
	if err != nil {
		return err
	}
	defer func() {
		if err := ledger.Close(); err != nil {
			log.WithError(err).Error("Error closing ledger")
		}
	}()

	page, release, err := openPage(ctx)
	if err != nil {
		return err
	}
	defer release()

	j := job{runID: newRunID(), ledger: ledger}
	log.WithField("run_id", j.runID).Info("Starting run")

	summary, err := body(ctx, page, j)
	if err != nil {
		return err
	}
	report(ctx, newNotifier(cfg, log), summary, log)
	return ctx.Err()
}

func processReviews(ctx context.Context, page browser.Page, j job, links []domain.EntityLink) domain.RunSummary {
	proc := newReviewProcessor(cfg, page, newStore(cfg, log), j.ledger, j.runID, log)
	return proc.Process(ctx, links)
}
