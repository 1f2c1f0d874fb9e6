// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/survey-engine/internal/export"
	"github.com/pdiddy/survey-engine/internal/zotero"
	"github.com/pdiddy/survey-engine/pkg/types"
)

// zoteroRequestsPerSecond keeps uploads well under the Web API's rate limit.
const zoteroRequestsPerSecond = 2

var zoteroCmd = &cobra.Command{
	Use:   "zotero <export.csv>",
	Short: "Upload a batch to a Zotero library",
	Long: `Zotero submits every paper of a batch export to the configured Zotero
user library as a journal article, one request per paper. Papers already
accepted are not rolled back when a later one fails; the per-paper outcome is
printed and the command fails if any paper was rejected.

Credentials come from zotero.user_id and zotero.api_key, the
ZOTERO_USER_ID and ZOTERO_API_KEY environment variables, or the
.secrets/zotero-user-id and .secrets/zotero-api-key files.`,
	Args: cobra.ExactArgs(1),
	RunE: runZotero,
}

func init() {
	rootCmd.AddCommand(zoteroCmd)
}

func runZotero(cmd *cobra.Command, args []string) error {
	if err := types.Validate(cfg.Zotero); err != nil {
		return err
	}
	records, _, err := export.ReadCSVFile(args[0])
	if err != nil {
		return err
	}

	hc := newHTTPClient(cfg.Zotero.HTTPConfig, zoteroRequestsPerSecond)
	client, err := zotero.NewClient(hc, cfg.Zotero.UserID, cfg.Zotero.APIKey, cfg.Zotero.BaseURL, metrics, logger)
	if err != nil {
		return err
	}

	report := client.Export(cmd.Context(), records)
	for _, item := range report.Items {
		if item.OK {
			fmt.Fprintf(os.Stdout, "added   %s (%s)\n", item.Title, item.Key)
		} else {
			fmt.Fprintf(os.Stdout, "failed  %s: %v\n", item.Title, item.Err)
		}
	}
	if failed := report.Failed(); len(failed) > 0 {
		return fmt.Errorf("%d of %d paper(s) rejected by Zotero", len(failed), len(report.Items))
	}
	fmt.Fprintf(os.Stdout, "\n%d papers added\n", len(report.Items))
	return nil
}
