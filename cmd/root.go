package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "facetrack",
	Short: "Person enrollment and recognition engine for an embedded vision device",
	Long: `Facetrack manages a small roster of known persons, each backed by one or
more facial feature samples, and answers "who is this face" queries against
camera frames. It uses an accelerated cascade detector with a nearest-neighbor
feature index when the detector model is present, and a software fallback
matcher otherwise.`,
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
