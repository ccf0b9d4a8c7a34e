package main

import (
	"log"

	"github.com/spf13/cobra"

	"github.com/ayusman/porter/internal/capture"
	"github.com/ayusman/porter/internal/preview"
)

var previewCmd = &cobra.Command{
	Use:   "preview",
	Short: "Standalone preview and telemetry server",
	Long:  "preview serves the MJPEG camera stream and the marker registry API without starting the motor stack. Useful for bench setup and camera aiming.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		st, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer st.Close()

		camera := capture.NewCamera(capture.Options{
			DeviceID:  cfg.Camera.Device,
			Width:     cfg.Camera.Width,
			Height:    cfg.Camera.Height,
			FPS:       cfg.Camera.FPS,
			Undistort: cfg.Camera.Undistort,
			Intrinsic: capture.Intrinsics{
				Fx:   cfg.Camera.Intrinsic.Fx,
				Fy:   cfg.Camera.Intrinsic.Fy,
				Cx:   cfg.Camera.Intrinsic.Cx,
				Cy:   cfg.Camera.Intrinsic.Cy,
				Dist: cfg.Camera.Intrinsic.Dist,
			},
		})
		defer camera.Close()

		srv := preview.New(preview.Config{
			Store:   st,
			Camera:  camera,
			Arbiter: capture.NewArbiter(),
		})

		log.Printf("Preview server listening on %s", cfg.Server.Addr)
		return srv.ListenAndServe(cfg.Server.Addr)
	},
}
