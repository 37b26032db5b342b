package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/facetrack/internal/config"
	"github.com/kozaktomas/facetrack/internal/detect"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "Provision detector models",
	Long: `Provision the detector models the accelerated backend needs.
The device runs offline once models are in place; fetching happens during
provisioning only.`,
}

var modelsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List known models",
	Run:   runModelsList,
}

var modelsFetchCmd = &cobra.Command{
	Use:   "fetch <key>",
	Short: "Download a model into the data directory",
	Args:  cobra.ExactArgs(1),
	RunE:  runModelsFetch,
}

func init() {
	rootCmd.AddCommand(modelsCmd)
	modelsCmd.AddCommand(modelsListCmd)
	modelsCmd.AddCommand(modelsFetchCmd)
}

func runModelsList(cmd *cobra.Command, args []string) {
	for _, model := range detect.Models() {
		fmt.Printf("%s\n", model.Filename)
		fmt.Printf("  Name: %s\n", model.Name)
		fmt.Printf("  Description: %s\n", model.Description)
		fmt.Printf("  Size: %d bytes\n", model.Size)
		fmt.Printf("  URL: %s\n", model.URL)
	}
}

func runModelsFetch(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	path, err := detect.FetchModel(args[0], cfg.Data.ModelsDir())
	if err != nil {
		return err
	}
	fmt.Printf("Model installed at %s\n", path)
	return nil
}
