package cmd

import (
	"fmt"
	"sort"

	"hlsladder/cache"

	"github.com/spf13/cobra"
)

var redisRunID string

var redisCmd = &cobra.Command{
	Use:   "redis",
	Short: "Check the Redis status store or show a run's status",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !cfg.RedisEnabled() {
			return fmt.Errorf("REDIS_HOST is not set")
		}
		fmt.Printf("Redis: %s:%s, DB: %d\n", cfg.RedisHost, cfg.RedisPort, cfg.RedisDB)
		if err := cache.ConnectRedis(cfg); err != nil {
			return err
		}
		defer cache.CloseRedis()

		ctx := cmd.Context()
		if redisRunID == "" {
			if err := cache.CheckRedis(ctx); err != nil {
				return err
			}
			fmt.Println("Redis connection OK")
			return nil
		}

		status, found, err := cache.NewStatusPublisher(cache.RedisClient).Status(ctx, redisRunID)
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("no status for run %s (unknown or expired)", redisRunID)
		}
		fields := make([]string, 0, len(status.Fields))
		for k := range status.Fields {
			fields = append(fields, k)
		}
		sort.Strings(fields)
		for _, k := range fields {
			fmt.Printf("%-15s %s\n", k+":", status.Fields[k])
		}
		for _, f := range status.Failures {
			fmt.Println("failed:", f)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(redisCmd)
	redisCmd.Flags().StringVar(&redisRunID, "run", "", "print the published status of this run id")
}
