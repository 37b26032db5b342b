package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/kozaktomas/facetrack/internal/recognizer"
)

var personsCmd = &cobra.Command{
	Use:   "persons",
	Short: "Manage the enrolled roster",
}

var personsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List enrolled persons",
	RunE:  runPersonsList,
}

var personsRegisterCmd = &cobra.Command{
	Use:   "register <image> <name>",
	Short: "Enroll a new person from a frame image",
	Args:  cobra.ExactArgs(2),
	RunE:  runPersonsRegister,
}

var personsSampleCmd = &cobra.Command{
	Use:   "sample <person-id> <image>",
	Short: "Add another face sample to an enrolled person",
	Args:  cobra.ExactArgs(2),
	RunE:  runPersonsSample,
}

var personsDeleteCmd = &cobra.Command{
	Use:   "delete <person-id>",
	Short: "Remove one enrolled person",
	Args:  cobra.ExactArgs(1),
	RunE:  runPersonsDelete,
}

var personsClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every enrolled person",
	RunE:  runPersonsClear,
}

var personsImportCmd = &cobra.Command{
	Use:   "import <dir>",
	Short: "Bulk-enroll persons from a directory of images",
	Long: `Bulk-enroll persons from a directory.

Image files directly in the directory become one person each, named after the
file. A subdirectory becomes one person named after the subdirectory; its
first image registers the person and the remaining images are added as extra
samples.`,
	Args: cobra.ExactArgs(1),
	RunE: runPersonsImport,
}

func init() {
	rootCmd.AddCommand(personsCmd)
	personsCmd.AddCommand(personsListCmd)
	personsCmd.AddCommand(personsRegisterCmd)
	personsCmd.AddCommand(personsSampleCmd)
	personsCmd.AddCommand(personsDeleteCmd)
	personsCmd.AddCommand(personsClearCmd)
	personsCmd.AddCommand(personsImportCmd)

	personsRegisterCmd.Flags().String("bbox", "", "Face bounding box as x,y,w,h (otherwise the backend self-detects)")
	personsSampleCmd.Flags().String("bbox", "", "Face bounding box as x,y,w,h (otherwise the backend self-detects)")
}

func runPersonsList(cmd *cobra.Command, args []string) error {
	engine, _, err := buildEngine()
	if err != nil {
		return err
	}

	records := engine.List()
	if len(records) == 0 {
		fmt.Println("No persons enrolled")
		return nil
	}
	for _, rec := range records {
		fmt.Printf("%s  %-20s  %d samples  enrolled %s\n",
			rec.ID, rec.Name, rec.SampleCount, rec.CreatedAt.Format("2006-01-02 15:04"))
	}
	return nil
}

func runPersonsRegister(cmd *cobra.Command, args []string) error {
	engine, _, err := buildEngine()
	if err != nil {
		return err
	}

	frame, err := loadFrame(args[0])
	if err != nil {
		return err
	}
	box, err := parseBoxFlag(mustGetString(cmd, "bbox"))
	if err != nil {
		return err
	}

	id, err := engine.RegisterPerson(frame, args[1], box)
	if err != nil {
		return err
	}
	fmt.Printf("Registered %s as %s\n", args[1], id)
	return nil
}

func runPersonsSample(cmd *cobra.Command, args []string) error {
	engine, _, err := buildEngine()
	if err != nil {
		return err
	}

	frame, err := loadFrame(args[1])
	if err != nil {
		return err
	}
	box, err := parseBoxFlag(mustGetString(cmd, "bbox"))
	if err != nil {
		return err
	}

	if err := engine.AddSample(args[0], frame, box); err != nil {
		return err
	}
	rec := engine.Get(args[0])
	fmt.Printf("Added sample %d for %s (%s)\n", rec.SampleCount, rec.ID, rec.Name)
	return nil
}

func runPersonsDelete(cmd *cobra.Command, args []string) error {
	engine, _, err := buildEngine()
	if err != nil {
		return err
	}

	if err := engine.DeletePerson(args[0]); err != nil {
		return err
	}
	fmt.Printf("Deleted %s\n", args[0])
	return nil
}

func runPersonsClear(cmd *cobra.Command, args []string) error {
	engine, _, err := buildEngine()
	if err != nil {
		return err
	}

	if err := engine.ClearAll(); err != nil {
		return err
	}
	fmt.Println("Cleared all persons")
	return nil
}

// importEntry is one person to enroll: a name plus one or more frame images.
type importEntry struct {
	name   string
	frames []string
}

func runPersonsImport(cmd *cobra.Command, args []string) error {
	engine, _, err := buildEngine()
	if err != nil {
		return err
	}

	entries, err := collectImportEntries(args[0])
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return fmt.Errorf("no images found in %s", args[0])
	}

	total := 0
	for _, entry := range entries {
		total += len(entry.frames)
	}

	bar := progressbar.NewOptions(total,
		progressbar.OptionSetDescription("Enrolling persons"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("frames"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionFullWidth(),
	)

	enrolled, failed := 0, 0
	for _, entry := range entries {
		if err := importPerson(engine, entry, bar); err != nil {
			fmt.Printf("\nSkipping %s: %v\n", entry.name, err)
			failed++
			continue
		}
		enrolled++
	}
	fmt.Printf("\nEnrolled %d persons (%d skipped)\n", enrolled, failed)
	return nil
}

func importPerson(engine *recognizer.Engine, entry importEntry, bar *progressbar.ProgressBar) error {
	frame, err := loadFrame(entry.frames[0])
	if err != nil {
		return err
	}
	id, err := engine.RegisterPerson(frame, entry.name, frameBounds(frame))
	if err != nil {
		return err
	}
	bar.Add(1)

	for _, path := range entry.frames[1:] {
		frame, err := loadFrame(path)
		if err != nil {
			fmt.Printf("\nSkipping sample %s: %v\n", filepath.Base(path), err)
			continue
		}
		if err := engine.AddSample(id, frame, frameBounds(frame)); err != nil {
			fmt.Printf("\nSkipping sample %s: %v\n", filepath.Base(path), err)
		}
		bar.Add(1)
	}
	return nil
}

// collectImportEntries maps a directory onto persons: loose image files are
// single-sample persons, subdirectories are multi-sample persons.
func collectImportEntries(dir string) ([]importEntry, error) {
	dirEntries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading import directory: %w", err)
	}

	var entries []importEntry
	for _, de := range dirEntries {
		if de.IsDir() {
			frames, err := listFrameFiles(filepath.Join(dir, de.Name()))
			if err != nil {
				return nil, err
			}
			if len(frames) == 0 {
				continue
			}
			entries = append(entries, importEntry{name: de.Name(), frames: frames})
			continue
		}
		if !isImageFile(de.Name()) {
			continue
		}
		name := strings.TrimSuffix(de.Name(), filepath.Ext(de.Name()))
		entries = append(entries, importEntry{name: name, frames: []string{filepath.Join(dir, de.Name())}})
	}
	return entries, nil
}
