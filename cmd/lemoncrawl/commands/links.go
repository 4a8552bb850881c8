package commands

import (
	"github.com/spf13/cobra"

	"lemoncrawl/internal/domain"
)

func init() {
	linksCmd.AddCommand(linksReviewsCmd, linksSessionsCmd)
	rootCmd.AddCommand(linksCmd)
}

var linksCmd = &cobra.Command{
	Use:   "links",
	Short: "Collect entity links from a paginated listing.",
}

var linksReviewsCmd = &cobra.Command{
	Use:   "reviews",
	Short: "Paginate the review listing and write REVIEW_LINKS_FILE.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runLinks(cmd, domain.ItemReview)
	},
}

var linksSessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Paginate the one-on-one listing and write SESSION_LINKS_FILE.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runLinks(cmd, domain.ItemSession)
	},
}

func runLinks(cmd *cobra.Command, kind domain.ItemKind) error {
	page, release, err := openPage(cmd.Context())
	if err != nil {
		return err
	}
	defer release()

	_, err = collectLinks(cmd.Context(), cfg, page, kind, log)
	return err
}
