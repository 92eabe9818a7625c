package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"gearshelf/internal/catalog"
	"gearshelf/internal/export"
	"gearshelf/internal/grouping"
	"gearshelf/internal/models"
	"gearshelf/internal/pagination"
)

// withApp opens the application for the duration of fn
func (o *rootOptions) withApp(cmd *cobra.Command, fn func(ctx context.Context, app *application) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	app, err := o.open(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := app.Close(context.Background()); err != nil {
			o.logger.WithModule("cli").Warn().Err(err).Msg("Failed to close application")
		}
	}()
	return fn(ctx, app)
}

func newScanCmd(opts *rootOptions) *cobra.Command {
	var quick bool

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Scan the plugin folders and update the catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(ctx context.Context, app *application) error {
				report, err := app.service.Scan(ctx, quick)
				out := cmd.OutOrStdout()
				if opts.jsonOutput {
					if perr := printJSON(out, report); perr != nil {
						return perr
					}
				} else {
					renderReport(out, report)
				}
				return err
			})
		},
	}
	cmd.Flags().BoolVar(&quick, "quick", false, "only scan the primary folder of each format")
	return cmd
}

func newListCmd(opts *rootOptions) *cobra.Command {
	var (
		raw            bool
		typeName       string
		manufacturer   string
		page           int
		pageSize       int
		multiFormat    bool
		byManufacturer bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the plugins in the catalog",
		Long: `List the catalog grouped by plugin, one line per plugin with all of its
formats. --raw lists individual catalog rows instead, one per installed file.
--multi-format keeps plugins installed in more than one format and
--by-manufacturer prints one table per manufacturer.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if raw && (multiFormat || byManufacturer) {
				return fmt.Errorf("--raw cannot be combined with --multi-format or --by-manufacturer")
			}
			var pluginType models.PluginType
			if typeName != "" {
				t, err := models.ParsePluginType(typeName)
				if err != nil {
					return err
				}
				pluginType = t
			}

			return opts.withApp(cmd, func(ctx context.Context, app *application) error {
				out := cmd.OutOrStdout()

				if raw {
					if page < 1 {
						page = 1
					}
					if pageSize < 1 || pageSize > pagination.MaxPageSize {
						return fmt.Errorf("--page-size must be between 1 and %d", pagination.MaxPageSize)
					}
					filter := catalog.Filter{Type: pluginType, Manufacturer: manufacturer}
					rows, total, err := app.service.RawPlugins(ctx, filter, pagination.CalculateOffset(page, pageSize), pageSize)
					if err != nil {
						return err
					}
					meta := pagination.Calculate(total, page, pageSize)
					if opts.jsonOutput {
						return printJSON(out, map[string]interface{}{"data": rows, "pagination": meta})
					}
					renderRows(out, rows, meta)
					return nil
				}

				groups, err := listGroups(ctx, app, pluginType, manufacturer)
				if err != nil {
					return err
				}
				if multiFormat {
					groups = grouping.MultiFormat(groups)
				}
				if byManufacturer {
					buckets := grouping.ByManufacturer(groups)
					if opts.jsonOutput {
						return printJSON(out, buckets)
					}
					renderManufacturers(out, buckets)
					return nil
				}
				if opts.jsonOutput {
					return printJSON(out, groups)
				}
				renderGroups(out, groups)
				return nil
			})
		},
	}

	flags := cmd.Flags()
	flags.BoolVar(&raw, "raw", false, "list catalog rows instead of grouped plugins")
	flags.StringVar(&typeName, "type", "", "only plugins of this type: vst3, vst2 or au")
	flags.StringVar(&manufacturer, "manufacturer", "", "only plugins from this manufacturer (exact match)")
	flags.IntVar(&page, "page", 1, "page number for --raw")
	flags.IntVar(&pageSize, "page-size", 50, "rows per page for --raw")
	flags.BoolVar(&multiFormat, "multi-format", false, "only plugins installed in more than one format")
	flags.BoolVar(&byManufacturer, "by-manufacturer", false, "group the listing by manufacturer")
	return cmd
}

func listGroups(ctx context.Context, app *application, t models.PluginType, manufacturer string) ([]models.GroupedPlugin, error) {
	switch {
	case t != "" && manufacturer != "":
		groups, err := app.service.PluginsOfType(ctx, t)
		if err != nil {
			return nil, err
		}
		filtered := make([]models.GroupedPlugin, 0, len(groups))
		for _, g := range groups {
			if g.Manufacturer == manufacturer {
				filtered = append(filtered, g)
			}
		}
		return filtered, nil
	case t != "":
		return app.service.PluginsOfType(ctx, t)
	case manufacturer != "":
		return app.service.PluginsFrom(ctx, manufacturer)
	}
	return app.service.Plugins(ctx)
}

func newShowCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <path>",
		Short: "Show the catalog entry for one plugin file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(ctx context.Context, app *application) error {
				path := args[0]
				if abs, err := filepath.Abs(path); err == nil {
					path = abs
				}
				row, err := app.service.PluginAt(ctx, path)
				if err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
				if opts.jsonOutput {
					return printJSON(cmd.OutOrStdout(), row)
				}
				renderPlugin(cmd.OutOrStdout(), row)
				return nil
			})
		},
	}
}

func newSearchCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "search <query>",
		Short: "Search plugins by name or manufacturer",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(ctx context.Context, app *application) error {
				groups, err := app.service.Search(ctx, strings.Join(args, " "))
				if err != nil {
					return err
				}
				if opts.jsonOutput {
					return printJSON(cmd.OutOrStdout(), groups)
				}
				renderGroups(cmd.OutOrStdout(), groups)
				return nil
			})
		},
	}
}

func newStatsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show catalog statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(ctx context.Context, app *application) error {
				cat, err := app.service.CatalogStatistics(ctx)
				if err != nil {
					return err
				}
				groups, err := app.service.GroupStatistics(ctx)
				if err != nil {
					return err
				}
				if opts.jsonOutput {
					return printJSON(cmd.OutOrStdout(), map[string]interface{}{
						"catalog": cat,
						"grouped": groups,
					})
				}
				renderStatistics(cmd.OutOrStdout(), cat, groups)
				return nil
			})
		},
	}
}

func newHistoryCmd(opts *rootOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent scans",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(ctx context.Context, app *application) error {
				sessions, err := app.service.History(ctx, limit)
				if err != nil {
					return err
				}
				if opts.jsonOutput {
					return printJSON(cmd.OutOrStdout(), sessions)
				}
				renderHistory(cmd.OutOrStdout(), sessions)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 10, "number of scans to show")
	return cmd
}

func newCleanupCmd(opts *rootOptions) *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Delete plugins that have not been found for a while",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("days") {
				days = opts.cfg.Retention.Days
			}
			return opts.withApp(cmd, func(ctx context.Context, app *application) error {
				deleted, err := app.service.Cleanup(ctx, days)
				if err != nil {
					return err
				}
				if opts.jsonOutput {
					return printJSON(cmd.OutOrStdout(), map[string]interface{}{
						"deleted":       deleted,
						"olderThanDays": days,
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render(
					fmt.Sprintf("Deleted %d plugins inactive for more than %d days", deleted, days)))
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&days, "days", 30, "minimum days since a plugin was last found (default from retention.days)")
	return cmd
}

func newExportCmd(opts *rootOptions) *cobra.Command {
	var (
		formatName string
		output     string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the grouped catalog as JSON, YAML or CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("format") && output != "" {
				formatName = strings.TrimPrefix(filepath.Ext(output), ".")
			}
			format, err := export.ParseFormat(formatName)
			if err != nil {
				return err
			}

			return opts.withApp(cmd, func(ctx context.Context, app *application) error {
				if output == "" {
					return app.service.Export(ctx, format, cmd.OutOrStdout())
				}

				f, err := os.Create(output)
				if err != nil {
					return err
				}
				if err := app.service.Export(ctx, format, f); err != nil {
					f.Close()
					return err
				}
				if err := f.Close(); err != nil {
					return err
				}
				fmt.Fprintln(cmd.ErrOrStderr(), successStyle.Render("Exported catalog to "+output))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&formatName, "format", "json", "json, yaml or csv")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write to this file instead of stdout")
	return cmd
}
