package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/facetrack/internal/recognizer"
)

var targetCmd = &cobra.Command{
	Use:   "target",
	Short: "Manage the tracking target",
}

var targetGetCmd = &cobra.Command{
	Use:   "get",
	Short: "Show the current tracking target",
	RunE:  runTargetGet,
}

var targetSetCmd = &cobra.Command{
	Use:   "set <person-id>",
	Short: "Point the tracking target at a person",
	Args:  cobra.ExactArgs(1),
	RunE:  runTargetSet,
}

var targetClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Drop the tracking target",
	RunE:  runTargetClear,
}

var targetNextCmd = &cobra.Command{
	Use:   "next",
	Short: "Cycle the tracking target forward through the roster",
	RunE:  runTargetNext,
}

var targetPrevCmd = &cobra.Command{
	Use:   "prev",
	Short: "Cycle the tracking target backwards through the roster",
	RunE:  runTargetPrev,
}

func init() {
	rootCmd.AddCommand(targetCmd)
	targetCmd.AddCommand(targetGetCmd)
	targetCmd.AddCommand(targetSetCmd)
	targetCmd.AddCommand(targetClearCmd)
	targetCmd.AddCommand(targetNextCmd)
	targetCmd.AddCommand(targetPrevCmd)
}

func printTarget(rec *recognizer.PersonRecord) {
	if rec == nil {
		fmt.Println("No tracking target set")
		return
	}
	fmt.Printf("Tracking target: %s (%s)\n", rec.ID, rec.Name)
}

func runTargetGet(cmd *cobra.Command, args []string) error {
	engine, _, err := buildEngine()
	if err != nil {
		return err
	}
	printTarget(engine.TargetPerson())
	return nil
}

func runTargetSet(cmd *cobra.Command, args []string) error {
	engine, _, err := buildEngine()
	if err != nil {
		return err
	}
	if err := engine.SetTargetPerson(args[0]); err != nil {
		return err
	}
	printTarget(engine.TargetPerson())
	return nil
}

func runTargetClear(cmd *cobra.Command, args []string) error {
	engine, _, err := buildEngine()
	if err != nil {
		return err
	}
	engine.ClearTargetPerson()
	fmt.Println("Tracking target cleared")
	return nil
}

func runTargetNext(cmd *cobra.Command, args []string) error {
	engine, _, err := buildEngine()
	if err != nil {
		return err
	}
	rec, err := engine.NextTarget()
	if err != nil {
		return err
	}
	printTarget(rec)
	return nil
}

func runTargetPrev(cmd *cobra.Command, args []string) error {
	engine, _, err := buildEngine()
	if err != nil {
		return err
	}
	rec, err := engine.PrevTarget()
	if err != nil {
		return err
	}
	printTarget(rec)
	return nil
}
