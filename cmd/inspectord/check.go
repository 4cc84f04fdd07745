package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pitabwire/inspector/internal/config"
	"github.com/pitabwire/inspector/internal/workflow"
)

func checkCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate configuration and checklist content, then exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			content, err := workflow.LoadContent(cfg.Checklist.Path)
			if err != nil {
				return err
			}

			source := cfg.Checklist.Path
			if source == "" {
				source = "embedded default"
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "config:        %s\n", *configPath)
			fmt.Fprintf(out, "checklist:     %s (%q)\n", source, content.Title)
			fmt.Fprintf(out, "prerequisites: %d\n", len(content.Prerequisites))
			fmt.Fprintf(out, "tools:         %d\n", len(content.Tools))
			fmt.Fprintf(out, "panels:        %d (%d tasks)\n", len(content.Panels), content.TaskCount())
			fmt.Fprintf(out, "camera:        %s %dx%d @ %g fps\n",
				cfg.Recording.Device, cfg.Recording.Width, cfg.Recording.Height, cfg.Recording.FPS)
			fmt.Fprintf(out, "display:       %s %dx%d rotate=%d mirror=%t\n",
				cfg.Display.Driver, cfg.Display.Width, cfg.Display.Height, cfg.Display.Rotate, cfg.Display.Mirror)
			fmt.Fprintf(out, "buttons:       enabled=%t chip=%s\n", cfg.Input.Enabled, cfg.Input.Chip)
			fmt.Fprintf(out, "archive:       enabled=%t dir=%s\n", cfg.Archive.Enabled, cfg.Archive.Dir)
			fmt.Fprintf(out, "http:          :%d\n", cfg.Server.Port)
			return nil
		},
	}
}
