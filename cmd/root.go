package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "ex-eraser",
	Short: "A face-identity matcher for scrubbing one person out of a photo collection",
	Long: `Ex File Eraser finds every photo containing a chosen person and drives
the hide/delete workflow against the platform photo library. Detection and
embedding run against local model servers; matching, deduplication, and the
destructive pass all happen here.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
}
