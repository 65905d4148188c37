package cmd

import (
	"fmt"
	"os"
	"time"

	"hlsladder/storage"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"
)

var (
	bucketPrefix string
	bucketStats  bool
	bucketDelete bool
)

var bucketCmd = &cobra.Command{
	Use:   "bucket",
	Short: "Inspect the object storage bucket",
	Long: `List objects under a prefix, show bucket statistics, or delete a
published ladder so it can be re-encoded.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.ValidateStorage(); err != nil {
			return err
		}
		store, err := storage.NewMinioStore(cfg)
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		if err := store.Ping(ctx); err != nil {
			return err
		}
		fmt.Printf("Bucket %s at %s\n", store.Bucket(), cfg.MinioEndpoint)

		if bucketDelete {
			if bucketPrefix == "" {
				return fmt.Errorf("--delete requires --prefix")
			}
			n, err := store.DeletePrefix(ctx, bucketPrefix)
			if err != nil {
				return err
			}
			fmt.Printf("Deleted %d object(s) under %s\n", n, bucketPrefix)
			return nil
		}

		objects, err := store.List(ctx, bucketPrefix)
		if err != nil {
			return err
		}
		if bucketStats {
			printBucketStats(storage.Stats(objects))
			return nil
		}
		printObjects(objects)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(bucketCmd)

	bucketCmd.Flags().StringVarP(&bucketPrefix, "prefix", "p", "", "only objects under this prefix")
	bucketCmd.Flags().BoolVarP(&bucketStats, "stats", "s", false, "show totals instead of the object list")
	bucketCmd.Flags().BoolVarP(&bucketDelete, "delete", "d", false, "delete every object under --prefix")

	bucketCmd.Example = `  # List published ladders
  hlsladder bucket -p hls/

  # Object counts and sizes by extension
  hlsladder bucket -s

  # Drop one track's ladder
  hlsladder bucket -d -p hls/1024/`
}

func printObjects(objects []storage.ObjectInfo) {
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"KEY", "SIZE", "MODIFIED"})
	for _, obj := range objects {
		tw.AppendRow(table.Row{obj.Key, storage.FormatSize(obj.Size), obj.LastModified.Format(time.RFC3339)})
	}
	tw.AppendFooter(table.Row{fmt.Sprintf("%d object(s)", len(objects)), "", ""})
	tw.SetColumnConfigs([]table.ColumnConfig{{Number: 2, Align: text.AlignRight}})
	tw.Render()
}

func printBucketStats(stats storage.BucketStats) {
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"EXTENSION", "OBJECTS"})
	for _, ext := range stats.SortedExtensions() {
		tw.AppendRow(table.Row{ext, stats.ByExtension[ext]})
	}
	tw.SetColumnConfigs([]table.ColumnConfig{{Number: 2, Align: text.AlignRight}})
	tw.Render()

	fmt.Printf("Total objects: %d\n", stats.TotalObjects)
	fmt.Printf("Total size:    %s\n", storage.FormatSize(stats.TotalSize))
	if !stats.LastModified.IsZero() {
		fmt.Printf("Last modified: %s\n", stats.LastModified.Format(time.RFC3339))
	}
}
