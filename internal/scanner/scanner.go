package scanner

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"gearshelf/internal/models"
)

// DefaultWorkers is the number of roots scanned concurrently
const DefaultWorkers = 4

// FileScanner walks the scan roots and classifies every immediate entry.
// A FileScanner must not be used for two scans at the same time.
type FileScanner struct {
	roots   RootCatalog
	workers int
	homeDir string
	logger  zerolog.Logger

	stat    func(string) (fs.FileInfo, error)
	readDir func(string) ([]fs.DirEntry, error)
}

// Option configures a FileScanner
type Option func(*FileScanner)

// WithRoots replaces the default root table
func WithRoots(roots RootCatalog) Option {
	return func(s *FileScanner) {
		s.roots = roots
	}
}

// WithWorkers sets how many roots are read concurrently
func WithWorkers(workers int) Option {
	return func(s *FileScanner) {
		if workers > 0 {
			s.workers = workers
		}
	}
}

// WithHomeDir overrides the directory "~" expands to
func WithHomeDir(home string) Option {
	return func(s *FileScanner) {
		s.homeDir = home
	}
}

// WithLogger sets the logger used for non-fatal warnings
func WithLogger(logger zerolog.Logger) Option {
	return func(s *FileScanner) {
		s.logger = logger
	}
}

// NewFileScanner creates a scanner over DefaultRoots unless overridden
func NewFileScanner(opts ...Option) *FileScanner {
	home, _ := os.UserHomeDir()

	s := &FileScanner{
		roots:   DefaultRoots(),
		workers: DefaultWorkers,
		homeDir: home,
		logger:  zerolog.Nop(),
		stat:    os.Stat,
		readDir: os.ReadDir,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Roots returns the configured root table
func (s *FileScanner) Roots() RootCatalog {
	return s.roots
}

// ScanAll scans every configured root
func (s *FileScanner) ScanAll(ctx context.Context) models.ScanResult {
	return s.scan(ctx, s.roots)
}

// ScanQuick scans only the first root of each plugin type
func (s *FileScanner) ScanQuick(ctx context.Context) models.ScanResult {
	return s.scan(ctx, s.roots.Quick())
}

type rootResult struct {
	plugins  []models.Plugin
	warnings []string
}

func (s *FileScanner) scan(ctx context.Context, roots RootCatalog) models.ScanResult {
	start := time.Now()
	s.logger.Info().Int("roots", len(roots)).Msg("Starting plugin scan")

	results := make([]rootResult, len(roots))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i, root := range roots {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				results[i].warnings = []string{fmt.Sprintf("Skipped %s: %v", root.Path, err)}
				return nil
			}
			results[i] = s.scanRoot(root)
			return nil
		})
	}
	// Workers never return errors; directory problems become warnings.
	_ = g.Wait()

	result := models.ScanResult{
		Plugins: []models.Plugin{},
		Errors:  []string{},
	}
	for i, r := range results {
		result.Plugins = append(result.Plugins, r.plugins...)
		result.Errors = append(result.Errors, r.warnings...)
		if len(r.plugins) > 0 {
			s.logger.Debug().
				Str("type", string(roots[i].Type)).
				Str("root", roots[i].Path).
				Int("found", len(r.plugins)).
				Msg("Found plugins")
		}
	}
	result.TotalScanned = len(result.Plugins)
	result.ScanTime = time.Since(start).Milliseconds()

	s.logger.Info().
		Int("plugins", result.TotalScanned).
		Int("warnings", len(result.Errors)).
		Int64("duration_ms", result.ScanTime).
		Msg("Plugin scan complete")

	return result
}

// scanRoot lists one directory level below root and classifies each entry
func (s *FileScanner) scanRoot(root Root) rootResult {
	var out rootResult

	dir := ExpandHome(root.Path, s.homeDir)
	if dir == "" {
		s.logger.Debug().Str("root", root.Path).Msg("No home directory, skipping root")
		return out
	}

	info, err := s.stat(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return out
		}
		out.warnings = append(out.warnings, s.warn(dir, "Could not access directory", err))
		return out
	}
	if !info.IsDir() {
		return out
	}

	entries, err := s.readDir(dir)
	if err != nil {
		out.warnings = append(out.warnings, s.warn(dir, "Could not read directory", err))
		return out
	}

	for _, entry := range entries {
		fullPath := filepath.Join(dir, entry.Name())

		entryInfo, err := s.stat(fullPath)
		if err != nil {
			out.warnings = append(out.warnings, s.warn(fullPath, "Could not scan file", err))
			continue
		}

		if plugin, ok := Classify(fullPath, entryInfo, root.Type); ok {
			out.plugins = append(out.plugins, plugin)
		}
	}

	return out
}

func (s *FileScanner) warn(path, msg string, err error) string {
	s.logger.Warn().Err(err).Str("file_path", path).Msg(msg)
	return fmt.Sprintf("%s %s: %v", msg, path, err)
}
