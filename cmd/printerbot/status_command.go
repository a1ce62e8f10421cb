package main

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"printerbot/internal/printer"
	"printerbot/internal/report"
	"printerbot/internal/service"
)

const metadataWait = 2 * time.Second

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	var sensors bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Print the printer status report",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withService(cmd.Context(), func(rt *stack) error {
				waitForMetadata(cmd.Context(), rt.svc, metadataWait)
				out := cmd.OutOrStdout()
				if asJSON {
					enc := json.NewEncoder(out)
					enc.SetIndent("", "  ")
					return enc.Encode(rt.svc.Snapshot())
				}
				fmt.Fprintln(out, rt.svc.StatusText(time.Now()))
				if sensors {
					fmt.Fprintln(out, sensorTable(rt.svc.Snapshot()))
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the raw snapshot as JSON")
	cmd.Flags().BoolVar(&sensors, "sensors", false, "Append a sensor table")
	return cmd
}

// waitForMetadata gives the background file metadata fetch a moment to land
// so the report can include the ETA.
func waitForMetadata(ctx context.Context, svc *service.Service, limit time.Duration) {
	deadline := time.Now().Add(limit)
	for time.Now().Before(deadline) {
		snap := svc.Snapshot()
		if snap.Phase != printer.PhasePrinting || snap.File.Loaded() {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(50 * time.Millisecond):
		}
	}
}

func sensorTable(snap printer.Snapshot) string {
	names := make([]string, 0, len(snap.Sensors))
	for name := range snap.Sensors {
		names = append(names, name)
	}
	sort.Strings(names)

	rows := make([][]string, 0, len(names))
	for _, name := range names {
		r := snap.Sensors[name]
		rows = append(rows, []string{
			report.SensorDisplayName(name),
			formatReading(r.Temperature, 1),
			formatReading(r.Target, 0),
			formatPercent(r.Power),
			formatPercent(r.Speed),
		})
	}
	return renderTable(
		[]string{"Sensor", "Temp °C", "Target °C", "Power", "Fan"},
		rows,
		[]columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignRight},
	)
}

func formatReading(v *float64, prec int) string {
	if v == nil {
		return "-"
	}
	return strconv.FormatFloat(*v, 'f', prec, 64)
}

func formatPercent(v *float64) string {
	if v == nil {
		return "-"
	}
	return strconv.FormatFloat(*v*100, 'f', 0, 64) + "%"
}
