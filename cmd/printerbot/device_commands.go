package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"printerbot/internal/models"
)

func newDevicesCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "List controller power devices",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withService(cmd.Context(), func(rt *stack) error {
				devices := rt.svc.Devices()
				if len(devices) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No power devices")
					return nil
				}
				fmt.Fprintln(cmd.OutOrStdout(), deviceTable(devices))
				return nil
			})
		},
	}
}

func deviceTable(devices []models.DeviceStatus) string {
	rows := make([][]string, 0, len(devices))
	for _, d := range devices {
		state := d.Status
		if state == "" {
			state = onOff(d.On)
		}
		rows = append(rows, []string{d.Name, d.Role, d.Type, state, yesNo(d.LockedWhilePrinting), d.LastError})
	}
	return renderTable([]string{"Device", "Role", "Type", "State", "Locked", "Last error"}, rows, nil)
}

func newPowerCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:       "power <device> <on|off|toggle>",
		Short:     "Switch a power device",
		Args:      cobra.ExactArgs(2),
		ValidArgs: []string{"on", "off", "toggle"},
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			action := strings.ToLower(args[1])
			if action != "on" && action != "off" && action != "toggle" {
				return fmt.Errorf("unknown action %q; use on, off or toggle", args[1])
			}
			return ctx.withService(cmd.Context(), func(rt *stack) error {
				var (
					st  models.DeviceStatus
					err error
				)
				if action == "toggle" {
					st, err = rt.svc.ToggleDevice(cmd.Context(), name)
				} else {
					st, err = rt.svc.SwitchDevice(cmd.Context(), name, action == "on")
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s is %s\n", st.Name, onOff(st.On))
				return nil
			})
		},
	}
}

func onOff(on bool) string {
	if on {
		return "on"
	}
	return "off"
}
