// Package trace provides a small Tracer for writing pipeline steps (sniffing,
// rule hits, feature vectors, tier outputs, consensus) to stderr when --trace
// is set. No-op when the writer is nil.
package trace

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
)

// Tracer writes sectioned trace output. When the underlying writer is nil, all
// methods no-op. A Tracer may be shared by batch workers; writes are serialized.
type Tracer struct {
	mu sync.Mutex
	w  io.Writer
}

// New returns a Tracer that writes to w. If w is nil, all methods no-op.
func New(w io.Writer) *Tracer {
	return &Tracer{w: w}
}

// Enabled returns true if the tracer has a non-nil writer.
func (t *Tracer) Enabled() bool {
	return t != nil && t.w != nil
}

// Section writes a section header: "\n[bugscope:trace] === name ===\n"
func (t *Tracer) Section(name string) {
	if !t.Enabled() {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintf(t.w, "\n[bugscope:trace] === %s ===\n", name)
}

// Printf writes to the trace writer when enabled. Format and args are as in fmt.Printf.
func (t *Tracer) Printf(format string, args ...interface{}) {
	if !t.Enabled() {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintf(t.w, format, args...)
}

// Vector writes name=[v0 v1 ...] with each value in shortest float form.
func (t *Tracer) Vector(name string, values []float64) {
	if !t.Enabled() {
		return
	}
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = strconv.FormatFloat(v, 'g', -1, 64)
	}
	t.Printf("%s=[%s] (len=%d)\n", name, strings.Join(parts, " "), len(values))
}
