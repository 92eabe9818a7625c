package scanner

import (
	"io/fs"
	"path/filepath"
	"strings"

	"gearshelf/internal/models"
)

// KnownManufacturers are matched as substrings of the full bundle path, in order
var KnownManufacturers = []string{
	"Native Instruments", "Waves", "FabFilter", "Steinberg", "Audio Damage",
	"Arturia", "Spectrasonics", "Output", "Splice", "iZotope", "Eventide",
	"Valhalla DSP", "Soundtoys", "Plugin Alliance", "Universal Audio",
}

// genericContainers are parent directory names that never name a vendor
var genericContainers = map[string]bool{
	"VST3":       true,
	"VST":        true,
	"Components": true,
}

// Classify decides whether path is a plugin bundle of the requested type.
// info must describe path (the scanner passes the result of os.Stat).
func Classify(path string, info fs.FileInfo, requested models.PluginType) (models.Plugin, bool) {
	if info == nil || !isValidBundle(path, info, requested) {
		return models.Plugin{}, false
	}

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	size := info.Size()
	mtime := info.ModTime().UnixMilli()

	return models.Plugin{
		Name:         name,
		Path:         path,
		Type:         requested,
		Manufacturer: ExtractManufacturer(path, name),
		Format:       FormatLabel(requested),
		FileSize:     &size,
		LastModified: &mtime,
	}, true
}

func isValidBundle(path string, info fs.FileInfo, requested models.PluginType) bool {
	ext := strings.ToLower(filepath.Ext(path))

	switch requested {
	case models.PluginTypeVST3:
		return info.IsDir() && ext == ".vst3"
	case models.PluginTypeAU:
		return info.IsDir() && ext == ".component"
	case models.PluginTypeVST2:
		if info.IsDir() {
			return ext == ".vst"
		}
		return info.Mode().IsRegular() && (ext == ".dylib" || ext == ".vst")
	default:
		return false
	}
}

// ExtractManufacturer infers a vendor name. Returns "" when nothing matches.
func ExtractManufacturer(path, name string) string {
	for _, manufacturer := range KnownManufacturers {
		if strings.Contains(path, manufacturer) {
			return manufacturer
		}
	}

	if parts := strings.Split(name, "_"); len(parts) > 1 && parts[0] != "" {
		return parts[0]
	}

	parent := filepath.Base(filepath.Dir(path))
	if parent != "" && parent != "." && parent != string(filepath.Separator) && !genericContainers[parent] {
		return parent
	}

	return ""
}

// FormatLabel returns the human readable format description for a type
func FormatLabel(t models.PluginType) string {
	switch t {
	case models.PluginTypeVST3:
		return "VST3 Plugin"
	case models.PluginTypeVST2:
		return "VST2 Plugin"
	case models.PluginTypeAU:
		return "Audio Unit"
	default:
		return "Unknown"
	}
}
