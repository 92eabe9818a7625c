package models

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PluginType identifies the plugin format of a bundle
type PluginType string

const (
	PluginTypeVST3    PluginType = "VST3"
	PluginTypeVST2    PluginType = "VST2"
	PluginTypeAU      PluginType = "AU"
	PluginTypeUnknown PluginType = "Unknown"
)

// ScannableTypes lists the plugin types the scanner knows how to find, in scan order
var ScannableTypes = []PluginType{PluginTypeVST3, PluginTypeAU, PluginTypeVST2}

// ParsePluginType converts user input into a PluginType (case-insensitive)
func ParsePluginType(s string) (PluginType, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "VST3":
		return PluginTypeVST3, nil
	case "VST2", "VST":
		return PluginTypeVST2, nil
	case "AU", "COMPONENT":
		return PluginTypeAU, nil
	case "UNKNOWN":
		return PluginTypeUnknown, nil
	}
	return "", fmt.Errorf("unknown plugin type %q", s)
}

// IsKnown reports whether t is one of the declared plugin types
func (t PluginType) IsKnown() bool {
	switch t {
	case PluginTypeVST3, PluginTypeVST2, PluginTypeAU, PluginTypeUnknown:
		return true
	}
	return false
}

// ErrInvalidPlugin is returned when a record fails boundary validation
var ErrInvalidPlugin = errors.New("invalid plugin record")

// Plugin is a discovery-time record produced by the classifier
type Plugin struct {
	Name         string     `json:"name"`
	Path         string     `json:"path"`
	Type         PluginType `json:"type"`
	Manufacturer string     `json:"manufacturer,omitempty"`
	Format       string     `json:"format,omitempty"`
	Version      string     `json:"version,omitempty"`

	// Captured from the same stat used for classification
	FileSize     *int64 `json:"fileSize,omitempty"`
	LastModified *int64 `json:"lastModified,omitempty"` // epoch milliseconds
}

// Validate checks the record before it crosses the store boundary
func (p Plugin) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("%w: name cannot be empty (path %q)", ErrInvalidPlugin, p.Path)
	}
	if strings.TrimSpace(p.Path) == "" {
		return fmt.Errorf("%w: path cannot be empty (name %q)", ErrInvalidPlugin, p.Name)
	}
	if !p.Type.IsKnown() {
		return fmt.Errorf("%w: unknown type %q for %s", ErrInvalidPlugin, p.Type, p.Path)
	}
	return nil
}

// CatalogPlugin represents the plugins table
type CatalogPlugin struct {
	ID           int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	Name         string     `gorm:"not null" json:"name"`
	Manufacturer *string    `gorm:"index:idx_plugins_manufacturer" json:"manufacturer,omitempty"`
	Type         PluginType `gorm:"size:16;not null;index:idx_plugins_type" json:"type"`
	Path         string     `gorm:"not null;uniqueIndex:idx_plugins_path" json:"path"`
	Format       *string    `json:"format,omitempty"`
	Version      *string    `json:"version,omitempty"`
	FileSize     *int64     `json:"fileSize,omitempty"`
	LastModified *int64     `json:"lastModified,omitempty"` // epoch milliseconds
	ScanDate     int64      `gorm:"not null" json:"scanDate"` // epoch milliseconds of the last scan that found it
	IsActive     bool       `gorm:"not null;default:true;index:idx_plugins_active" json:"isActive"`
	CreatedAt    int64      `gorm:"autoCreateTime:false" json:"createdAt"` // epoch seconds
	UpdatedAt    int64      `gorm:"autoUpdateTime:false" json:"updatedAt"` // epoch seconds

	// case-folded copies of Name and Manufacturer, matched by catalog search
	NameKey         string `gorm:"not null;default:''" json:"-"`
	ManufacturerKey string `gorm:"not null;default:''" json:"-"`
}

func (CatalogPlugin) TableName() string {
	return "plugins"
}

// FoldKey is the case-folded form stored in NameKey and ManufacturerKey
func FoldKey(s string) string {
	return strings.ToLower(s)
}

// SetSearchKeys refreshes NameKey and ManufacturerKey from Name and Manufacturer
func (c *CatalogPlugin) SetSearchKeys() {
	c.NameKey = FoldKey(c.Name)
	c.ManufacturerKey = ""
	if c.Manufacturer != nil {
		c.ManufacturerKey = FoldKey(*c.Manufacturer)
	}
}

// ToPlugin converts a persisted row back into a discovery record
func (c CatalogPlugin) ToPlugin() Plugin {
	return Plugin{
		Name:         c.Name,
		Path:         c.Path,
		Type:         c.Type,
		Manufacturer: deref(c.Manufacturer),
		Format:       deref(c.Format),
		Version:      deref(c.Version),
		FileSize:     c.FileSize,
		LastModified: c.LastModified,
	}
}

// PluginsFromCatalog converts persisted rows into discovery records, keeping order
func PluginsFromCatalog(rows []CatalogPlugin) []Plugin {
	plugins := make([]Plugin, 0, len(rows))
	for _, row := range rows {
		plugins = append(plugins, row.ToPlugin())
	}
	return plugins
}

// ScanSession represents the scan_sessions table. Rows are append-only.
type ScanSession struct {
	ID            int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	ScanID        uuid.UUID `gorm:"type:varchar(36);uniqueIndex:idx_scan_sessions_scan_id" json:"scanId"`
	ScanDate      int64     `gorm:"not null;index:idx_scan_sessions_date" json:"scanDate"` // epoch milliseconds
	TotalFiles    int       `gorm:"not null" json:"totalFiles"`
	UniquePlugins int       `gorm:"not null" json:"uniquePlugins"`
	ScanTime      int64     `gorm:"not null" json:"scanTime"` // milliseconds
	Errors        *string   `json:"errors,omitempty"`
	CreatedAt     int64     `gorm:"autoCreateTime:false" json:"createdAt"` // epoch seconds
}

func (ScanSession) TableName() string {
	return "scan_sessions"
}

// BeforeCreate assigns the correlation id before inserting a session
func (s *ScanSession) BeforeCreate(tx *gorm.DB) error {
	if s.ScanID == uuid.Nil {
		s.ScanID = uuid.New()
	}
	return nil
}

// GroupedPlugin is a query-time view merging the formats of one logical plugin
type GroupedPlugin struct {
	ID           string                `json:"id"`
	Name         string                `json:"name"`
	Manufacturer string                `json:"manufacturer,omitempty"`
	Types        []PluginType          `json:"types"`
	Paths        map[PluginType]string `json:"paths"`
	Formats      []string              `json:"formats"`
}

// HasType reports whether the group contains the given format
func (g GroupedPlugin) HasType(t PluginType) bool {
	for _, existing := range g.Types {
		if existing == t {
			return true
		}
	}
	return false
}

// ScanResult is the raw output of one pass over the scan roots
type ScanResult struct {
	Plugins      []Plugin `json:"plugins"`
	TotalScanned int      `json:"totalScanned"`
	Errors       []string `json:"errors"`
	ScanTime     int64    `json:"scanTime"` // milliseconds
}

// GroupStatistics summarizes a grouped plugin list
type GroupStatistics struct {
	UniquePlugins    int      `json:"uniquePlugins"`
	TotalFiles       int      `json:"totalFiles"`
	VST3Count        int      `json:"vst3Count"`
	VST2Count        int      `json:"vst2Count"`
	AUCount          int      `json:"auCount"`
	MultiFormatCount int      `json:"multiFormatCount"`
	Manufacturers    []string `json:"manufacturers"`
}

// CatalogStatistics are aggregate counts over active catalog rows
type CatalogStatistics struct {
	TotalPlugins      int64  `json:"totalPlugins"`
	UniquePlugins     int64  `json:"uniquePlugins"`
	VST3Count         int64  `json:"vst3Count"`
	VST2Count         int64  `json:"vst2Count"`
	AUCount           int64  `json:"auCount"`
	ManufacturerCount int64  `json:"manufacturerCount"`
	LastScanDate      *int64 `json:"lastScanDate,omitempty"`
}

// ScanReport is returned to callers of the scan-plugins operation
type ScanReport struct {
	Success          bool             `json:"success"`
	Message          string           `json:"message"`
	TotalPlugins     int              `json:"totalPlugins"`
	TotalFiles       int              `json:"totalFiles"`
	MultiFormatCount int              `json:"multiFormatCount"`
	ScanTime         int64            `json:"scanTime"`
	Errors           []string         `json:"errors"`
	Statistics       *GroupStatistics `json:"statistics,omitempty"`
}

// StringPtr returns nil for the empty string
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
