package cmd

import (
	"fmt"
	"image"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/facetrack/internal/config"
	"github.com/kozaktomas/facetrack/internal/detect"
	"github.com/kozaktomas/facetrack/internal/recognizer"
)

const (
	modeRecognize = "recognize"
	modeRecord    = "record"
	modeTrack     = "track"
)

var runCmd = &cobra.Command{
	Use:   "run <frame-dir>",
	Short: "Replay a directory of frames through the engine",
	Long: `Replay captured camera frames through the recognition engine, standing in
for the live capture loop during development.

Modes:
  recognize  report the best match for every frame
  record     enroll --name on the first detected face, then keep adding
             samples every few frames until the sample target is reached
  track      report whether the tracking target is seen and how far its
             face sits from the frame center`,
	Args: cobra.ExactArgs(1),
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().String("mode", modeRecognize, "Replay mode: recognize, record or track")
	runCmd.Flags().String("name", "", "Person name to enroll (record mode)")
}

func runRun(cmd *cobra.Command, args []string) error {
	engine, cfg, err := buildEngine()
	if err != nil {
		return err
	}

	files, err := listFrameFiles(args[0])
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no frames found in %s", args[0])
	}

	// The detector is optional glue: without the cascade model the engine's
	// backend handles face location (or requires pre-cropped frames).
	detector, err := detect.New(cfg.Detector)
	if err != nil {
		fmt.Printf("Detector unavailable (%v), backend handles face location\n", err)
		detector = nil
	}

	mode := mustGetString(cmd, "mode")
	start := time.Now()
	processed := 0

	switch mode {
	case modeRecognize:
		err = replayRecognize(engine, detector, files, &processed)
	case modeRecord:
		name := mustGetString(cmd, "name")
		if name == "" {
			return fmt.Errorf("record mode requires --name")
		}
		err = replayRecord(engine, cfg, detector, files, name, &processed)
	case modeTrack:
		err = replayTrack(engine, detector, files, &processed)
	default:
		return fmt.Errorf("unknown mode %q", mode)
	}
	if err != nil {
		return err
	}

	elapsed := time.Since(start)
	fps := float64(processed) / elapsed.Seconds()
	fmt.Printf("Processed %d frames in %s (%.1f fps)\n", processed, elapsed.Round(time.Millisecond), fps)
	return nil
}

// bestFaceBox asks the detector for the most confident face, or an empty box
// when no detector is present or nothing was found.
func bestFaceBox(detector *detect.Detector, frame image.Image) image.Rectangle {
	if detector == nil {
		return image.Rectangle{}
	}
	faces := detector.DetectFaces(frame)
	if len(faces) == 0 {
		return image.Rectangle{}
	}
	return faces[0].Box
}

func replayRecognize(engine *recognizer.Engine, detector *detect.Detector, files []string, processed *int) error {
	for _, path := range files {
		frame, err := loadFrame(path)
		if err != nil {
			fmt.Printf("%s: %v\n", filepath.Base(path), err)
			continue
		}
		*processed++

		box := bestFaceBox(detector, frame)
		id, confidence, name := engine.RecognizePerson(frame, box)
		if id == "" {
			fmt.Printf("%s: %s (%.2f)\n", filepath.Base(path), name, confidence)
			continue
		}
		fmt.Printf("%s: %s %s (%.2f)\n", filepath.Base(path), id, name, confidence)
	}
	return nil
}

func replayRecord(engine *recognizer.Engine, cfg *config.Config, detector *detect.Detector, files []string, name string, processed *int) error {
	personID := ""
	sinceSample := 0

	for _, path := range files {
		frame, err := loadFrame(path)
		if err != nil {
			fmt.Printf("%s: %v\n", filepath.Base(path), err)
			continue
		}
		*processed++
		box := bestFaceBox(detector, frame)

		if personID == "" {
			id, err := engine.RegisterPerson(frame, name, box)
			if err != nil {
				fmt.Printf("%s: %v\n", filepath.Base(path), err)
				continue
			}
			personID = id
			fmt.Printf("%s: registered %s as %s\n", filepath.Base(path), name, id)
			if err := engine.BeginSampling(personID, cfg.Engine.TargetSamples); err != nil {
				return err
			}
			sinceSample = 0
			continue
		}

		sinceSample++
		if sinceSample < cfg.Engine.SampleInterval {
			continue
		}
		sinceSample = 0

		if err := engine.AddSample(personID, frame, box); err != nil {
			fmt.Printf("%s: %v\n", filepath.Base(path), err)
			continue
		}
		status := engine.SamplingStatus()
		if status == nil {
			fmt.Printf("%s: sampling complete for %s\n", filepath.Base(path), personID)
			return nil
		}
		fmt.Printf("%s: sample %d of %d for %s\n", filepath.Base(path), status.Collected, status.Target, personID)
	}

	if personID == "" {
		return fmt.Errorf("no face found in any frame, %s was not enrolled", name)
	}
	engine.CancelSampling()
	return nil
}

func replayTrack(engine *recognizer.Engine, detector *detect.Detector, files []string, processed *int) error {
	target := engine.TargetPerson()
	if target == nil {
		return fmt.Errorf("no tracking target set, use `facetrack target set` first")
	}

	for _, path := range files {
		frame, err := loadFrame(path)
		if err != nil {
			fmt.Printf("%s: %v\n", filepath.Base(path), err)
			continue
		}
		*processed++

		box := bestFaceBox(detector, frame)
		id, confidence, _ := engine.RecognizePerson(frame, box)
		if id != target.ID {
			fmt.Printf("%s: %s not seen\n", filepath.Base(path), target.Name)
			continue
		}

		// Offset of the face center from the frame center, for the gimbal.
		bounds := frame.Bounds()
		if box.Empty() {
			box = bounds
		}
		dx := (box.Min.X+box.Max.X)/2 - (bounds.Min.X+bounds.Max.X)/2
		dy := (box.Min.Y+box.Max.Y)/2 - (bounds.Min.Y+bounds.Max.Y)/2
		fmt.Printf("%s: %s seen (%.2f), offset (%+d,%+d)\n", filepath.Base(path), target.Name, confidence, dx, dy)
	}
	return nil
}
