package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	flagConfig   string
	flagMockGPIO bool
	flagDevice   int
	flagAddr     string
	flagStore    string
)

var rootCmd = &cobra.Command{
	Use:   "porter",
	Short: "Porter autonomous package-carrier robot",
	Long:  "Porter drives a small tracked robot that follows QR fiducial markers while dodging obstacles with an ultrasonic ranger.",
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Path to configuration YAML (defaults apply when missing)")
	rootCmd.PersistentFlags().BoolVar(&flagMockGPIO, "mock-gpio", false, "Use the mock GPIO driver instead of the Raspberry Pi pins")
	rootCmd.PersistentFlags().IntVar(&flagDevice, "device", -1, "Camera device index (overrides the config file)")
	rootCmd.PersistentFlags().StringVar(&flagAddr, "addr", "", "Preview server listen address (overrides the config file)")
	rootCmd.PersistentFlags().StringVar(&flagStore, "store", "", "Registry database path (overrides the config file)")

	rootCmd.AddCommand(driveCmd)
	rootCmd.AddCommand(trackCmd)
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(markersCmd)
	rootCmd.AddCommand(previewCmd)
}
