package history

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"bugscope/cli/internal/erruser"
)

const (
	historyFilename    = "detections.jsonl"
	historyGzPrefix    = "detections.jsonl."
	historyGzSuffix    = ".gz"
	DefaultMaxRecords  = 1000
	maxRotatedArchives = 5
)

// maxLineSize bounds one history line; bufio.Scanner would otherwise stop at 64KB.
const maxLineSize = 1024 * 1024

// Store appends to and reads the history in one directory. It serializes its
// own writers; separate processes writing the same directory are not coordinated.
type Store struct {
	dir        string
	maxRecords int
	mu         sync.Mutex
}

// NewStore returns a Store for dir keeping at most maxRecords lines in the
// active file (<= 0 disables rotation).
func NewStore(dir string, maxRecords int) *Store {
	return &Store{dir: dir, maxRecords: maxRecords}
}

// Dir returns the state directory.
func (s *Store) Dir() string { return s.dir }

// Append writes records as JSON lines, creating the directory and file as
// needed, and rotates once afterwards if the active file is over the limit.
func (s *Store) Append(records ...Record) error {
	if len(records) == 0 {
		return nil
	}
	var buf bytes.Buffer
	for _, rec := range records {
		line, err := json.Marshal(rec)
		if err != nil {
			return erruser.New("Could not record detection history.", err)
		}
		buf.Write(line)
		buf.WriteByte('\n')
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return erruser.New("Could not create history directory.", err)
	}
	path := filepath.Join(s.dir, historyFilename)
	if err := appendFile(path, buf.Bytes()); err != nil {
		return erruser.New("Could not record detection history.", err)
	}
	if s.maxRecords > 0 {
		return rotateIfNeeded(path, s.maxRecords)
	}
	return nil
}

func appendFile(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// ReadRecords returns all records, oldest first: rotated archives in
// ascending order, then the active file. A missing directory yields no records.
func (s *Store) ReadRecords() ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	archives, err := listArchives(s.dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, erruser.New("Could not read history directory.", err)
	}
	var out []Record
	for _, a := range archives {
		recs, err := readGzipRecords(a.path)
		if err != nil {
			return nil, erruser.New("Could not read history archive "+filepath.Base(a.path)+".", err)
		}
		out = append(out, recs...)
	}
	lines, err := readLines(filepath.Join(s.dir, historyFilename))
	if err != nil && !os.IsNotExist(err) {
		return nil, erruser.New("Could not read history file.", err)
	}
	recs, err := parseRecordLines(lines)
	if err != nil {
		return nil, erruser.New("History file is corrupt.", err)
	}
	return append(out, recs...), nil
}

type archive struct {
	n    int
	path string
}

// listArchives returns dir's detections.jsonl.N.gz files sorted by N.
func listArchives(dir string) ([]archive, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []archive
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, historyGzPrefix) || !strings.HasSuffix(name, historyGzSuffix) {
			continue
		}
		n, err := strconv.Atoi(name[len(historyGzPrefix) : len(name)-len(historyGzSuffix)])
		if err != nil || n < 1 {
			continue
		}
		out = append(out, archive{n: n, path: filepath.Join(dir, name)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].n < out[j].n })
	return out, nil
}

// rotateIfNeeded moves all but the last maxRecords lines of path into a new
// gzipped archive, rewrites path atomically (temp + rename), and prunes
// archives beyond maxRotatedArchives, oldest first.
func rotateIfNeeded(path string, maxRecords int) error {
	lines, err := readLines(path)
	if err != nil {
		return erruser.New("Could not read history for rotation.", err)
	}
	if len(lines) <= maxRecords {
		return nil
	}
	dropped, keep := lines[:len(lines)-maxRecords], lines[len(lines)-maxRecords:]
	dir := filepath.Dir(path)

	archives, err := listArchives(dir)
	if err != nil {
		return erruser.New("Could not rotate history file.", err)
	}
	next := 1
	if len(archives) > 0 {
		next = archives[len(archives)-1].n + 1
	}
	archivePath := filepath.Join(dir, historyGzPrefix+strconv.Itoa(next)+historyGzSuffix)
	if err := writeGzippedLines(archivePath, dropped); err != nil {
		return erruser.New("Could not write rotated history archive.", err)
	}
	archives = append(archives, archive{n: next, path: archivePath})
	for len(archives) > maxRotatedArchives {
		if err := os.Remove(archives[0].path); err != nil {
			return erruser.New("Could not prune history archives.", err)
		}
		archives = archives[1:]
	}

	if err := writeAtomic(path, keep); err != nil {
		return erruser.New("Could not rotate history file.", err)
	}
	return nil
}

func writeAtomic(path string, lines []string) error {
	f, err := os.CreateTemp(filepath.Dir(path), "detections.*.tmp")
	if err != nil {
		return err
	}
	tmp := f.Name()
	defer func() { _ = os.Remove(tmp) }()
	w := bufio.NewWriter(f)
	for _, l := range lines {
		if _, err := w.WriteString(l); err != nil {
			_ = f.Close()
			return err
		}
	}
	if err := w.Flush(); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func writeGzippedLines(path string, lines []string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	gw := gzip.NewWriter(f)
	for _, l := range lines {
		if _, err := io.WriteString(gw, l); err != nil {
			_ = gw.Close()
			return err
		}
	}
	if err := gw.Close(); err != nil {
		return err
	}
	return f.Sync()
}

func readGzipRecords(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	gr, err := gzip.NewReader(f)
	if err != nil {
		return nil, err
	}
	defer func() { _ = gr.Close() }()
	lines, err := readLinesFrom(gr)
	if err != nil {
		return nil, err
	}
	return parseRecordLines(lines)
}

func parseRecordLines(lines []string) ([]Record, error) {
	var out []Record
	for i, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		var rec Record
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			return nil, fmt.Errorf("line %d: %w", i+1, err)
		}
		out = append(out, rec)
	}
	return out, nil
}

// readLines returns path's lines, each with its trailing newline.
func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return readLinesFrom(f)
}

func readLinesFrom(r io.Reader) ([]string, error) {
	var lines []string
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for sc.Scan() {
		lines = append(lines, sc.Text()+"\n")
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return lines, nil
}
