package cmd

import (
	"fmt"
	"io"
	"time"

	"hlsladder/db"
	"hlsladder/model"
	"hlsladder/repository"

	"github.com/spf13/cobra"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog <track-id>...",
	Short: "Show the manifest URLs recorded in the catalog database",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if !cfg.CatalogEnabled() {
			return fmt.Errorf("DB_HOST is not set")
		}
		gormDB, err := db.ConnectGormDB(cfg)
		if err != nil {
			return fmt.Errorf("connect catalog: %w", err)
		}
		defer db.CloseGormDB(gormDB)

		return printManifests(cmd, repository.NewGormCatalogRepository(gormDB), args)
	},
}

func init() {
	rootCmd.AddCommand(catalogCmd)

	catalogCmd.Example = `  # Where was track 1024 published?
  hlsladder catalog 1024`
}

// printManifests prints one record per id and fails if any id is unknown.
func printManifests(cmd *cobra.Command, repo repository.CatalogRepository, ids []string) error {
	out := cmd.OutOrStdout()
	missing := 0
	for _, id := range ids {
		rec, err := repo.GetManifest(cmd.Context(), id)
		if err != nil {
			return err
		}
		if rec == nil {
			fmt.Fprintf(out, "%s\tnot published\n", id)
			missing++
			continue
		}
		printManifest(out, rec)
	}
	if missing > 0 {
		return fmt.Errorf("%d track(s) not found in the catalog", missing)
	}
	return nil
}

func printManifest(out io.Writer, rec *model.TrackManifest) {
	fmt.Fprintf(out, "%s\t%s\t%.1fs\t%s\n",
		rec.TrackID, rec.ManifestURL, rec.DurationSeconds, rec.PublishedAt.UTC().Format(time.RFC3339))
}
