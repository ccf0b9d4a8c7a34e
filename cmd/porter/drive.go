package main

import (
	"log"

	"github.com/spf13/cobra"

	"github.com/ayusman/porter/internal/preview"
	"github.com/ayusman/porter/internal/teleop"
)

var driveCmd = &cobra.Command{
	Use:   "drive",
	Short: "Interactive teleoperation console",
	Long:  "drive starts the keyboard teleoperation TUI with the full mode orchestrator: manual driving plus autonomous tracking, avoidance and search.",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp()
		if err != nil {
			return err
		}
		defer a.Close()

		// Embedded preview server so the stream and tracking contend
		// for the camera in-process.
		srv := preview.New(preview.Config{
			Store:     a.store,
			Camera:    a.camera,
			Arbiter:   a.arbiter,
			Telemetry: a.pilot,
		})
		go func() {
			log.Printf("Preview server listening on %s", a.cfg.Server.Addr)
			if err := srv.ListenAndServe(a.cfg.Server.Addr); err != nil {
				log.Printf("Preview server stopped: %v", err)
			}
		}()

		manual := teleop.NewManual(a.cfg.Teleop)
		tui := teleop.NewTUI(a.pilot, manual)
		return tui.Run()
	},
}
