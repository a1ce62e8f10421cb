package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newProbeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "probe",
		Short: "Check that the controller is reachable",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			log := ctx.logger()
			defer log.Sync()

			sess, err := ctx.newSession(cmd.Context(), log, nil)
			if err != nil {
				return err
			}
			defer sess.Transport().Close()

			if err := sess.CheckConnection(cmd.Context()); err != nil {
				return err
			}
			info, err := sess.PrinterInfo(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s reachable (state: %s, authenticated: %s)\n",
				cfg.Controller.URL, info.State, yesNo(sess.Authenticated()))
			return nil
		},
	}
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
