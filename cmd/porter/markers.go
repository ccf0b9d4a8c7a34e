package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/ayusman/porter/internal/store"
)

var (
	markerLabel string
	markerSize  float64
)

var markersCmd = &cobra.Command{
	Use:   "markers",
	Short: "Manage the marker registry",
	Long:  "markers lists and edits the registry of known fiducial payloads, their labels and per-marker size overrides.",
}

// withStore opens just the registry database, without the robot stack.
func withStore(fn func(*store.Store) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()
	return fn(st)
}

var markersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered markers",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(st *store.Store) error {
			markers, err := st.Markers().List()
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "PAYLOAD\tLABEL\tSIZE\tENABLED\tID")
			for _, m := range markers {
				size := "global"
				if m.SizeCM > 0 {
					size = fmt.Sprintf("%.1fcm", m.SizeCM)
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%t\t%s\n", m.Payload, m.Label, size, m.Enabled, m.ID)
			}
			return w.Flush()
		})
	},
}

var markersAddCmd = &cobra.Command{
	Use:   "add <payload>",
	Short: "Register a marker payload",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(st *store.Store) error {
			m := &store.Marker{
				ID:      uuid.NewString(),
				Payload: args[0],
				Label:   markerLabel,
				SizeCM:  markerSize,
				Enabled: true,
			}
			if err := st.Markers().Create(m); err != nil {
				return err
			}
			fmt.Printf("Registered %s (%s)\n", m.Payload, m.ID)
			return nil
		})
	},
}

var markersRmCmd = &cobra.Command{
	Use:   "rm <payload>",
	Short: "Remove a marker from the registry",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(st *store.Store) error {
			m, err := st.Markers().GetByPayload(args[0])
			if err != nil {
				return err
			}
			if err := st.Markers().Delete(m.ID); err != nil {
				return err
			}
			fmt.Printf("Removed %s\n", m.Payload)
			return nil
		})
	},
}

var markersEnableCmd = &cobra.Command{
	Use:   "enable <payload>",
	Short: "Enable a registered marker",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(st *store.Store) error {
			return st.Markers().SetEnabled(args[0], true)
		})
	},
}

var markersDisableCmd = &cobra.Command{
	Use:   "disable <payload>",
	Short: "Disable a registered marker",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(st *store.Store) error {
			return st.Markers().SetEnabled(args[0], false)
		})
	},
}

func init() {
	markersAddCmd.Flags().StringVar(&markerLabel, "label", "", "Human readable label")
	markersAddCmd.Flags().Float64Var(&markerSize, "size", 0, "Physical edge length in cm (0 uses the global size)")

	markersCmd.AddCommand(markersListCmd)
	markersCmd.AddCommand(markersAddCmd)
	markersCmd.AddCommand(markersRmCmd)
	markersCmd.AddCommand(markersEnableCmd)
	markersCmd.AddCommand(markersDisableCmd)
}
