package logging

import (
	"bytes"
	"encoding/json"
	"io"
	"sync"
)

// PrettyJSONWriter re-indents each JSON log line it receives, for
// human-readable output from zerolog.
//
// It is intentionally simple and geared toward CLI/daemon logs. It is not
// optimized for throughput.
type PrettyJSONWriter struct {
	w  io.Writer
	mu sync.Mutex
}

func NewPrettyJSONWriter(w io.Writer) *PrettyJSONWriter {
	return &PrettyJSONWriter{w: w}
}

// Write expects one JSON object per call, which is how zerolog writes events.
// Lines that are not valid JSON pass through unchanged.
func (p *PrettyJSONWriter) Write(line []byte) (int, error) {
	var out bytes.Buffer
	if err := json.Indent(&out, bytes.TrimSpace(line), "", "  "); err != nil {
		// As a last resort, avoid dropping logs.
		out.Reset()
		out.Write(bytes.TrimRight(line, "\n"))
	}
	out.WriteByte('\n')

	p.mu.Lock()
	defer p.mu.Unlock()
	if _, err := p.w.Write(out.Bytes()); err != nil {
		return 0, err
	}
	return len(line), nil
}
