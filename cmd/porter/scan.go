package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/ayusman/porter/internal/store"
	"github.com/ayusman/porter/internal/vision"
)

var scanTimeout time.Duration

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "One-shot marker scan",
	Long:  "scan opens the camera, waits for a decodable marker, records the observation to the registry store and prints it as JSON.",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp()
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.camera.Open(); err != nil {
			return fmt.Errorf("failed to open camera: %w", err)
		}

		deadline := time.Now().Add(scanTimeout)
		for time.Now().Before(deadline) {
			frame, err := a.camera.ReadFrame()
			if err != nil {
				time.Sleep(50 * time.Millisecond)
				continue
			}

			candidates, err := a.detector.Detect(frame)
			frame.Close()
			if err != nil || len(candidates) == 0 {
				continue
			}

			obs := a.localizer.Select(candidates)
			if obs.Lost {
				continue
			}

			scan := &store.Scan{
				ID:         uuid.NewString(),
				Payload:    obs.Payload,
				DistanceCM: obs.DistanceCM,
				CenterX:    obs.CenterOffsetX,
				CenterY:    obs.CenterOffsetY,
				EdgePx:     obs.EdgePx,
				Corners:    cornersOf(candidates, obs.Payload),
				Source:     "scan",
			}
			if err := a.store.Scans().Create(scan); err != nil {
				return fmt.Errorf("failed to record scan: %w", err)
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(obs)
		}

		return fmt.Errorf("no marker seen within %s", scanTimeout)
	},
}

// cornersOf finds the corner points of the selected candidate.
func cornersOf(candidates []vision.Candidate, payload string) [][2]float64 {
	for _, c := range candidates {
		if c.Payload != payload {
			continue
		}
		out := make([][2]float64, 0, len(c.Corners))
		for _, p := range c.Corners {
			out = append(out, [2]float64{p.X, p.Y})
		}
		return out
	}
	return nil
}

func init() {
	scanCmd.Flags().DurationVar(&scanTimeout, "timeout", 30*time.Second, "How long to wait for a marker")
}
