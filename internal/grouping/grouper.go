package grouping

import (
	"encoding/hex"
	"regexp"
	"sort"
	"strings"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"gearshelf/internal/models"
)

var (
	formatSuffix  = regexp.MustCompile(`(?i)\s+(VST[23]|AU|Component)$`)
	parenthetical = regexp.MustCompile(`\s+\(.*\)$`)
	separators    = regexp.MustCompile(`[-_\s]+`)
)

// IdentityFunc maps a plugin to the key that decides which group it joins
type IdentityFunc func(models.Plugin) string

// NormalizeName reduces a plugin name to its format-independent form
func NormalizeName(name string) string {
	name = formatSuffix.ReplaceAllString(name, "")
	name = parenthetical.ReplaceAllString(name, "")
	name = separators.ReplaceAllString(name, " ")
	return strings.ToLower(strings.TrimSpace(name))
}

// DefaultIdentity keys plugins by lower-cased manufacturer and normalized name.
// Plugins without a manufacturer share the "unknown" namespace, so two vendors
// shipping an identically named plugin without manufacturer metadata merge.
func DefaultIdentity(p models.Plugin) string {
	manufacturer := strings.ToLower(p.Manufacturer)
	if manufacturer == "" {
		manufacturer = "unknown"
	}
	return manufacturer + "::" + NormalizeName(p.Name)
}

// Grouper merges discovery records of the same logical plugin
type Grouper struct {
	identity IdentityFunc
	lang     language.Tag
}

// Option configures a Grouper
type Option func(*Grouper)

// WithIdentity replaces the grouping key policy
func WithIdentity(fn IdentityFunc) Option {
	return func(g *Grouper) {
		if fn != nil {
			g.identity = fn
		}
	}
}

// NewGrouper creates a Grouper using DefaultIdentity and English collation
func NewGrouper(opts ...Option) *Grouper {
	g := &Grouper{
		identity: DefaultIdentity,
		lang:     language.English,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Group merges plugins sharing an identity key. The first record seen for a
// key provides the display name and manufacturer; later records only add a
// type (with its path and format) the group does not have yet.
func (g *Grouper) Group(plugins []models.Plugin) []models.GroupedPlugin {
	index := make(map[string]int)
	groups := make([]models.GroupedPlugin, 0)

	for _, p := range plugins {
		key := g.identity(p)

		if i, ok := index[key]; ok {
			existing := &groups[i]
			if existing.HasType(p.Type) {
				continue
			}
			existing.Types = append(existing.Types, p.Type)
			existing.Paths[p.Type] = p.Path
			if p.Format != "" {
				existing.Formats = append(existing.Formats, p.Format)
			}
			continue
		}

		group := models.GroupedPlugin{
			ID:           GroupID(key),
			Name:         p.Name,
			Manufacturer: p.Manufacturer,
			Types:        []models.PluginType{p.Type},
			Paths:        map[models.PluginType]string{p.Type: p.Path},
			Formats:      []string{},
		}
		if p.Format != "" {
			group.Formats = append(group.Formats, p.Format)
		}
		index[key] = len(groups)
		groups = append(groups, group)
	}

	g.sort(groups)
	return groups
}

// sort orders by manufacturer then name; groups without a manufacturer use
// "zzz" and therefore land after named vendors
func (g *Grouper) sort(groups []models.GroupedPlugin) {
	// collate.Collator is not safe for concurrent use
	c := collate.New(g.lang)

	sortKey := func(gp models.GroupedPlugin) string {
		if gp.Manufacturer == "" {
			return "zzz"
		}
		return strings.ToLower(gp.Manufacturer)
	}

	sort.SliceStable(groups, func(i, j int) bool {
		if cmp := c.CompareString(sortKey(groups[i]), sortKey(groups[j])); cmp != 0 {
			return cmp < 0
		}
		return c.CompareString(strings.ToLower(groups[i].Name), strings.ToLower(groups[j].Name)) < 0
	})
}

// GroupID derives a short stable identifier from an identity key
func GroupID(key string) string {
	sum := blake2b.Sum256([]byte(key))
	return hex.EncodeToString(sum[:8])
}

// Statistics summarizes a grouped list
func Statistics(groups []models.GroupedPlugin) models.GroupStatistics {
	stats := models.GroupStatistics{
		UniquePlugins: len(groups),
		Manufacturers: []string{},
	}
	manufacturers := make(map[string]bool)

	for _, gp := range groups {
		stats.TotalFiles += len(gp.Types)

		if gp.HasType(models.PluginTypeVST3) {
			stats.VST3Count++
		}
		if gp.HasType(models.PluginTypeVST2) {
			stats.VST2Count++
		}
		if gp.HasType(models.PluginTypeAU) {
			stats.AUCount++
		}
		if len(gp.Types) > 1 {
			stats.MultiFormatCount++
		}
		if gp.Manufacturer != "" && !manufacturers[gp.Manufacturer] {
			manufacturers[gp.Manufacturer] = true
			stats.Manufacturers = append(stats.Manufacturers, gp.Manufacturer)
		}
	}

	sort.Strings(stats.Manufacturers)
	return stats
}

// MultiFormat returns the groups installed in more than one format
func MultiFormat(groups []models.GroupedPlugin) []models.GroupedPlugin {
	out := make([]models.GroupedPlugin, 0)
	for _, gp := range groups {
		if len(gp.Types) > 1 {
			out = append(out, gp)
		}
	}
	return out
}

// ByManufacturer buckets groups by manufacturer; absent becomes "Unknown"
func ByManufacturer(groups []models.GroupedPlugin) map[string][]models.GroupedPlugin {
	out := make(map[string][]models.GroupedPlugin)
	for _, gp := range groups {
		manufacturer := gp.Manufacturer
		if manufacturer == "" {
			manufacturer = "Unknown"
		}
		out[manufacturer] = append(out[manufacturer], gp)
	}
	return out
}
