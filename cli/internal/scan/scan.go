// Package scan walks a directory, picks the Python, Java and C++ sources with
// go-enry (vendored, hidden and binary files are skipped), and runs them
// through a detector batch.
package scan

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-enry/go-enry/v2"
	"go.uber.org/zap"

	"bugscope/cli/internal/detector"
	"bugscope/cli/internal/logging"
	"bugscope/cli/internal/sniff"
)

// DefaultMaxBytes bounds the size of a scanned file.
const DefaultMaxBytes = 1 << 20

// ErrNoSources is returned by Run when the walk finds nothing to detect.
var ErrNoSources = errors.New("no Python, Java or C++ sources found")

// Skip reasons.
const (
	ReasonVendored    = "vendored"
	ReasonHidden      = "hidden"
	ReasonBinary      = "binary"
	ReasonEmpty       = "empty"
	ReasonTooLarge    = "too large"
	ReasonUnsupported = "unsupported language"
)

// Options configures a walk.
type Options struct {
	Root string
	// MaxBytes skips files larger than this; <= 0 means DefaultMaxBytes.
	MaxBytes int64
	// IncludeVendored keeps files under vendor/, node_modules/ and similar.
	IncludeVendored bool
	Logger          *zap.Logger
}

// File is one selected source.
type File struct {
	Path     string         `json:"path"` // relative to Root, slash-separated
	Language sniff.Language `json:"language"`
	Code     string         `json:"-"`
}

// Skipped is a file the walk passed over.
type Skipped struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

// Report pairs a file with its detection.
type Report struct {
	Path   string          `json:"path"`
	Result detector.Result `json:"result"`
}

// Outcome is the result of Run.
type Outcome struct {
	Reports []Report  `json:"reports"`
	Skipped []Skipped `json:"skipped,omitempty"`
}

// Bugs counts reports with a bug verdict.
func (o *Outcome) Bugs() int {
	n := 0
	for i := range o.Reports {
		if o.Reports[i].Result.Bug() {
			n++
		}
	}
	return n
}

// Discover walks opts.Root and returns the selected files in path order.
func Discover(ctx context.Context, opts Options) ([]File, []Skipped, error) {
	root := opts.Root
	if root == "" {
		root = "."
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, nil, fmt.Errorf("scan root %q: %w", root, err)
	}
	if !info.IsDir() {
		return nil, nil, fmt.Errorf("scan root %q is not a directory", root)
	}
	maxBytes := opts.MaxBytes
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	log := logging.OrNop(opts.Logger)

	var files []File
	var skipped []Skipped
	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			log.Warn("error accessing path during scan", zap.String("path", path), zap.Error(err))
			if path == root {
				return err
			}
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.Type()&fs.ModeSymlink != 0 {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if rel == "." {
			return nil
		}
		if d.IsDir() {
			switch {
			case enry.IsDotFile(rel):
				skipped = append(skipped, Skipped{Path: rel + "/", Reason: ReasonHidden})
				return filepath.SkipDir
			case !opts.IncludeVendored && enry.IsVendor(rel+"/"):
				skipped = append(skipped, Skipped{Path: rel + "/", Reason: ReasonVendored})
				return filepath.SkipDir
			}
			return nil
		}
		if f, reason := selectFile(path, rel, d, maxBytes, opts.IncludeVendored); reason != "" {
			skipped = append(skipped, Skipped{Path: rel, Reason: reason})
			log.Debug("skipped file", zap.String("path", rel), zap.String("reason", reason))
		} else {
			files = append(files, f)
		}
		return nil
	})
	if walkErr != nil {
		return nil, nil, fmt.Errorf("directory walk failed: %w", walkErr)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, skipped, nil
}

// selectFile returns the file, or a non-empty skip reason.
func selectFile(path, rel string, d fs.DirEntry, maxBytes int64, includeVendored bool) (File, string) {
	if enry.IsDotFile(rel) {
		return File{}, ReasonHidden
	}
	if !includeVendored && enry.IsVendor(rel) {
		return File{}, ReasonVendored
	}
	lang, safe := enry.GetLanguageByExtension(rel)
	if lang == "" {
		return File{}, ReasonUnsupported
	}
	info, err := d.Info()
	if err != nil {
		return File{}, ReasonUnsupported
	}
	if info.Size() == 0 {
		return File{}, ReasonEmpty
	}
	if info.Size() > maxBytes {
		return File{}, ReasonTooLarge
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return File{}, ReasonUnsupported
	}
	if enry.IsBinary(content) {
		return File{}, ReasonBinary
	}
	if !safe {
		// Ambiguous extensions (.h) are settled by content.
		lang = enry.GetLanguage(filepath.Base(rel), content)
	}
	l := sniff.Parse(strings.ToLower(lang))
	if l == sniff.Unknown {
		return File{}, ReasonUnsupported
	}
	return File{Path: rel, Language: l, Code: string(content)}, ""
}

// Run discovers sources under opts.Root and detects them as one batch.
// Reports keep Discover's path order.
func Run(ctx context.Context, d *detector.Detector, opts Options) (*Outcome, error) {
	files, skipped, err := Discover(ctx, opts)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return &Outcome{Skipped: skipped}, ErrNoSources
	}
	codes := make([]string, len(files))
	for i := range files {
		codes[i] = files[i].Code
	}
	results, err := d.DetectBatch(ctx, codes)
	if err != nil {
		return nil, err
	}
	out := &Outcome{Reports: make([]Report, len(files)), Skipped: skipped}
	for i := range files {
		out.Reports[i] = Report{Path: files[i].Path, Result: results[i]}
	}
	logging.OrNop(opts.Logger).Info("scan complete",
		zap.String("root", opts.Root),
		zap.Int("files", len(files)),
		zap.Int("skipped", len(skipped)),
		zap.Int("bugs", out.Bugs()),
	)
	return out, nil
}
