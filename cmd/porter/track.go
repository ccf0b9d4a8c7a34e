package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ayusman/porter/internal/preview"
)

var trackCmd = &cobra.Command{
	Use:   "track",
	Short: "Headless autonomous tracking",
	Long:  "track engages autonomous target following immediately and runs until interrupted. SIGINT halts the motors and exits.",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp()
		if err != nil {
			return err
		}
		defer a.Close()

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

		if err := a.pilot.EngageAuto(); err != nil {
			return err
		}
		log.Printf("Tracking engaged, Ctrl-C to stop")

		sigs := make(chan os.Signal, 1)
		signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
		<-sigs

		log.Printf("Stopping")
		return a.pilot.SetManual()
	},
}
