package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the engine status",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	engine, _, err := buildEngine()
	if err != nil {
		return err
	}

	status := engine.Status()
	fmt.Printf("Backend:              %s\n", status.Backend)
	fmt.Printf("Registered persons:   %d of %d (%d free)\n",
		status.RegisteredCount, status.MaxPersons, status.AvailableSlots)
	fmt.Printf("Total samples:        %d\n", status.TotalSamples)
	fmt.Printf("Similarity threshold: %.2f\n", status.SimilarityThreshold)
	if status.TargetPerson != "" {
		fmt.Printf("Tracking target:      %s\n", status.TargetPerson)
	} else {
		fmt.Printf("Tracking target:      none\n")
	}
	if status.Degraded {
		fmt.Println("WARNING: persistence is failing, state is in memory only")
	}
	return nil
}
