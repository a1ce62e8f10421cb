package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func newFilesCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "files",
		Short: "List gcode files on the controller, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withService(cmd.Context(), func(rt *stack) error {
				files, err := rt.svc.Files(cmd.Context())
				if err != nil {
					return err
				}
				rows := make([][]string, 0, len(files))
				for _, f := range files {
					modified := time.Unix(int64(f.Modified), 0)
					rows = append(rows, []string{f.Path, humanize.Bytes(uint64(f.Size)), humanize.Time(modified)})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"File", "Size", "Modified"},
					rows,
					[]columnAlignment{alignLeft, alignRight, alignLeft},
				))
				return nil
			})
		},
	}
}

func newMacrosCommand(ctx *commandContext) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "macros",
		Short: "List the macros the bot exposes",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withService(cmd.Context(), func(rt *stack) error {
				macros := rt.svc.Macros()
				if all {
					macros = rt.svc.AllMacros()
				}
				for _, m := range macros {
					fmt.Fprintln(cmd.OutOrStdout(), m)
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "Include hidden and private macros")
	return cmd
}

func newPrintCommand(ctx *commandContext) *cobra.Command {
	var upload string

	cmd := &cobra.Command{
		Use:   "print [file]",
		Short: "Start printing a file, optionally uploading it first",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if upload == "" && len(args) == 0 {
				return fmt.Errorf("a file name or --upload is required")
			}
			return ctx.withService(cmd.Context(), func(rt *stack) error {
				name := ""
				if len(args) == 1 {
					name = args[0]
				}
				if upload != "" {
					f, err := os.Open(upload)
					if err != nil {
						return err
					}
					defer func() { _ = f.Close() }()
					info, err := f.Stat()
					if err != nil {
						return err
					}
					if name == "" {
						name = filepath.Base(upload)
					}
					if err := rt.svc.Upload(cmd.Context(), name, f, info.Size()); err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Uploaded %s (%s)\n", name, humanize.Bytes(uint64(info.Size())))
				}
				if err := rt.svc.StartPrint(cmd.Context(), name); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Printing %s\n", name)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&upload, "upload", "", "Local gcode file to upload before printing")
	return cmd
}

func newGcodeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "gcode <command...>",
		Short: "Run a gcode script on the printer",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			script := strings.Join(args, " ")
			return ctx.withService(cmd.Context(), func(rt *stack) error {
				if err := rt.svc.RunGcode(cmd.Context(), script); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "ok")
				return nil
			})
		},
	}
}

func newVersionsCommand(ctx *commandContext) *cobra.Command {
	var bot bool

	cmd := &cobra.Command{
		Use:   "versions",
		Short: "Show component versions reported by the update manager",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withService(cmd.Context(), func(rt *stack) error {
				text, err := rt.svc.Versions(cmd.Context(), bot)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), text)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&bot, "bot", false, "Only show this bot's own component")
	return cmd
}

func newFileCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "file <name>",
		Short: "Show the filament and time estimate of a gcode file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withService(cmd.Context(), func(rt *stack) error {
				info, err := rt.svc.FileInfo(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintln(out, info.Filename)
				if info.Text != "" {
					fmt.Fprintln(out, info.Text)
				}
				if info.ThumbnailPath != "" {
					fmt.Fprintf(out, "Thumbnail: %s\n", info.ThumbnailPath)
				}
				return nil
			})
		},
	}
}
