package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"gearshelf/internal/models"
	"gearshelf/internal/pagination"
)

var (
	colorPrimary = lipgloss.Color("#7C3AED")
	colorMuted   = lipgloss.Color("#6B7280")
	colorSuccess = lipgloss.Color("#10B981")
	colorError   = lipgloss.Color("#EF4444")
	colorWarning = lipgloss.Color("#F59E0B")

	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(colorPrimary)
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(colorPrimary)
	mutedStyle   = lipgloss.NewStyle().Foreground(colorMuted)
	successStyle = lipgloss.NewStyle().Foreground(colorSuccess)
	errorStyle   = lipgloss.NewStyle().Bold(true).Foreground(colorError)
	warningStyle = lipgloss.NewStyle().Foreground(colorWarning)
	labelStyle   = lipgloss.NewStyle().Foreground(colorMuted).Width(20)
)

// maxWarningsShown limits the warnings printed after a scan; --json has all of them
const maxWarningsShown = 10

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// renderTable lays out rows in left-aligned columns sized to their widest cell
func renderTable(w io.Writer, headers []string, rows [][]string) {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if cw := lipgloss.Width(cell); cw > widths[i] {
				widths[i] = cw
			}
		}
	}

	line := func(cells []string, style lipgloss.Style) string {
		rendered := make([]string, len(cells))
		for i, cell := range cells {
			s := style.Width(widths[i])
			if i < len(cells)-1 {
				s = s.MarginRight(2)
			}
			rendered[i] = s.Render(cell)
		}
		return lipgloss.JoinHorizontal(lipgloss.Top, rendered...)
	}

	fmt.Fprintln(w, line(headers, headerStyle))
	for _, row := range rows {
		fmt.Fprintln(w, line(row, lipgloss.NewStyle()))
	}
}

func typeList(types []models.PluginType) string {
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = string(t)
	}
	return strings.Join(names, ", ")
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func renderGroups(w io.Writer, groups []models.GroupedPlugin) {
	if len(groups) == 0 {
		fmt.Fprintln(w, mutedStyle.Render("No plugins in the catalog. Run `gearshelf scan` first."))
		return
	}

	rows := make([][]string, 0, len(groups))
	for _, g := range groups {
		rows = append(rows, []string{g.Name, orDash(g.Manufacturer), typeList(g.Types)})
	}
	renderTable(w, []string{"NAME", "MANUFACTURER", "FORMATS"}, rows)
	fmt.Fprintln(w, mutedStyle.Render(fmt.Sprintf("%d plugins", len(groups))))
}

func renderManufacturers(w io.Writer, buckets map[string][]models.GroupedPlugin) {
	if len(buckets) == 0 {
		fmt.Fprintln(w, mutedStyle.Render("No plugins in the catalog. Run `gearshelf scan` first."))
		return
	}

	names := make([]string, 0, len(buckets))
	for name := range buckets {
		names = append(names, name)
	}
	sort.Strings(names)

	for i, name := range names {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintln(w, titleStyle.Render(name))
		rows := make([][]string, 0, len(buckets[name]))
		for _, g := range buckets[name] {
			rows = append(rows, []string{g.Name, typeList(g.Types)})
		}
		renderTable(w, []string{"NAME", "FORMATS"}, rows)
	}
}

func renderRows(w io.Writer, rows []models.CatalogPlugin, meta pagination.Metadata) {
	table := make([][]string, 0, len(rows))
	for _, r := range rows {
		manufacturer := ""
		if r.Manufacturer != nil {
			manufacturer = *r.Manufacturer
		}
		table = append(table, []string{
			fmt.Sprintf("%d", r.ID),
			r.Name,
			orDash(manufacturer),
			string(r.Type),
			r.Path,
		})
	}
	renderTable(w, []string{"ID", "NAME", "MANUFACTURER", "TYPE", "PATH"}, table)
	fmt.Fprintln(w, mutedStyle.Render(fmt.Sprintf("page %d of %d, %d rows", meta.CurrentPage, meta.TotalPages, meta.TotalCount)))
}

func renderPlugin(w io.Writer, row *models.CatalogPlugin) {
	field := func(label, value string) {
		fmt.Fprintln(w, labelStyle.Render(label)+value)
	}
	deref := func(s *string) string {
		if s == nil {
			return "-"
		}
		return orDash(*s)
	}

	fmt.Fprintln(w, titleStyle.Render(row.Name))
	field("Manufacturer", deref(row.Manufacturer))
	field("Type", string(row.Type))
	field("Format", deref(row.Format))
	field("Path", row.Path)
	if row.FileSize != nil {
		field("Size", fmt.Sprintf("%d bytes", *row.FileSize))
	}
	if row.LastModified != nil {
		field("Modified", formatMillis(*row.LastModified))
	}
	field("Last seen", formatMillis(row.ScanDate))
	if row.IsActive {
		field("Status", successStyle.Render("installed"))
	} else {
		field("Status", warningStyle.Render("not found by the last scan"))
	}
}

func renderReport(w io.Writer, report *models.ScanReport) {
	if !report.Success {
		fmt.Fprintln(w, errorStyle.Render(report.Message))
		return
	}

	fmt.Fprintln(w, successStyle.Render(report.Message))
	fmt.Fprintln(w, labelStyle.Render("Multi-format")+fmt.Sprintf("%d", report.MultiFormatCount))
	fmt.Fprintln(w, labelStyle.Render("Scan time")+(time.Duration(report.ScanTime)*time.Millisecond).String())
	if report.Statistics != nil {
		s := report.Statistics
		fmt.Fprintln(w, labelStyle.Render("By format")+fmt.Sprintf("VST3 %d, VST2 %d, AU %d", s.VST3Count, s.VST2Count, s.AUCount))
	}

	if n := len(report.Errors); n > 0 {
		fmt.Fprintln(w, warningStyle.Render(fmt.Sprintf("%d warnings", n)))
		for i, e := range report.Errors {
			if i == maxWarningsShown {
				fmt.Fprintln(w, mutedStyle.Render(fmt.Sprintf("  ... and %d more", n-maxWarningsShown)))
				break
			}
			fmt.Fprintln(w, mutedStyle.Render("  "+e))
		}
	}
}

func renderStatistics(w io.Writer, cat *models.CatalogStatistics, groups models.GroupStatistics) {
	field := func(label string, value interface{}) {
		fmt.Fprintln(w, labelStyle.Render(label)+fmt.Sprint(value))
	}

	fmt.Fprintln(w, titleStyle.Render("Catalog"))
	field("Plugins", cat.UniquePlugins)
	field("Files", cat.TotalPlugins)
	field("VST3", cat.VST3Count)
	field("VST2", cat.VST2Count)
	field("Audio Units", cat.AUCount)
	field("Multi-format", groups.MultiFormatCount)
	field("Manufacturers", cat.ManufacturerCount)
	if cat.LastScanDate != nil {
		field("Last scan", formatMillis(*cat.LastScanDate))
	} else {
		field("Last scan", "never")
	}
}

func renderHistory(w io.Writer, sessions []models.ScanSession) {
	if len(sessions) == 0 {
		fmt.Fprintln(w, mutedStyle.Render("No scans recorded yet."))
		return
	}

	rows := make([][]string, 0, len(sessions))
	for _, s := range sessions {
		warnings := "0"
		if s.Errors != nil && *s.Errors != "" {
			warnings = fmt.Sprintf("%d", len(strings.Split(*s.Errors, "; ")))
		}
		rows = append(rows, []string{
			formatMillis(s.ScanDate),
			fmt.Sprintf("%d", s.TotalFiles),
			fmt.Sprintf("%d", s.UniquePlugins),
			(time.Duration(s.ScanTime) * time.Millisecond).String(),
			warnings,
		})
	}
	renderTable(w, []string{"DATE", "FILES", "PLUGINS", "DURATION", "WARNINGS"}, rows)
}

func formatMillis(ms int64) string {
	return time.UnixMilli(ms).Local().Format("2006-01-02 15:04:05")
}
