package scanner

import (
	"path/filepath"
	"strings"

	"gearshelf/internal/models"
)

// Root is a candidate directory holding bundles of one plugin type
type Root struct {
	Type models.PluginType
	Path string
}

// RootCatalog is an ordered list of scan roots. Order is the scan order.
type RootCatalog []Root

// DefaultRoots returns the standard macOS plugin locations
func DefaultRoots() RootCatalog {
	return RootCatalog{
		{Type: models.PluginTypeVST3, Path: "/Library/Audio/Plug-Ins/VST3"},
		{Type: models.PluginTypeVST3, Path: "~/Library/Audio/Plug-Ins/VST3"},
		{Type: models.PluginTypeVST3, Path: "/System/Library/Audio/Plug-Ins/VST3"},

		{Type: models.PluginTypeAU, Path: "/Library/Audio/Plug-Ins/Components"},
		{Type: models.PluginTypeAU, Path: "~/Library/Audio/Plug-Ins/Components"},
		{Type: models.PluginTypeAU, Path: "/System/Library/Audio/Plug-Ins/Components"},

		{Type: models.PluginTypeVST2, Path: "/Library/Audio/Plug-Ins/VST"},
		{Type: models.PluginTypeVST2, Path: "~/Library/Audio/Plug-Ins/VST"},
		// Vendor folders that installers commonly nest one level deeper
		{Type: models.PluginTypeVST2, Path: "~/Library/Audio/Plug-Ins/VST/Native Instruments"},
		{Type: models.PluginTypeVST2, Path: "~/Library/Audio/Plug-Ins/VST/Waves"},
		{Type: models.PluginTypeVST2, Path: "~/Library/Audio/Plug-Ins/VST/FabFilter"},
	}
}

// Quick keeps only the first root of each plugin type
func (c RootCatalog) Quick() RootCatalog {
	seen := make(map[models.PluginType]bool)
	quick := make(RootCatalog, 0, len(models.ScannableTypes))
	for _, root := range c {
		if seen[root.Type] {
			continue
		}
		seen[root.Type] = true
		quick = append(quick, root)
	}
	return quick
}

// ExpandHome resolves a leading "~" against home. An unresolvable "~" path
// (no home directory known) is returned as "".
func ExpandHome(path, home string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	if home == "" {
		return ""
	}
	if path == "~" {
		return home
	}
	return filepath.Join(home, path[2:])
}
