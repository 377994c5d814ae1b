package cli

import (
	"errors"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"bzboard/internal/store"
)

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Config commands",
	}
	cmd.AddCommand(newConfigShowCmd(app))
	cmd.AddCommand(newConfigInitCmd(app))
	return cmd
}

func configPath(app *App) (string, error) {
	if app.ConfigPath != "" {
		return app.ConfigPath, nil
	}
	return store.ConfigPath()
}

func newConfigShowCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := configPath(app)
			if err != nil {
				return writeErr(cmd, err)
			}
			opts, err := store.LoadOptions(path)
			if err != nil {
				return writeErr(cmd, err)
			}
			if app.Site != "" {
				opts.Site = strings.TrimRight(strings.TrimSpace(app.Site), "/")
			}
			_, statErr := os.Stat(path)
			return writeOut(cmd, app, map[string]any{"data": map[string]any{
				"path":    path,
				"exists":  statErr == nil,
				"options": opts,
			}})
		},
	}
}

func newConfigInitCmd(app *App) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default config.yaml for --site",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := configPath(app)
			if err != nil {
				return writeErr(cmd, err)
			}
			if _, err := os.Stat(path); err == nil && !force {
				return writeErr(cmd, errors.New(path+" already exists; pass --force to overwrite"))
			}
			opts := store.Default()
			opts.Site = strings.TrimRight(strings.TrimSpace(app.Site), "/")
			if err := opts.RequireSite(); err != nil {
				return writeErr(cmd, err)
			}
			if err := store.SaveOptions(path, opts); err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": map[string]any{"path": path, "options": opts}})
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing config")
	return cmd
}
