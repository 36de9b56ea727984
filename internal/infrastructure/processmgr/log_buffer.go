package processmgr

import (
	"bytes"
	"sync"
)

// DefaultLogLines is the ring size used when none is configured.
const DefaultLogLines = 200

// LogBuffer is a thread-safe circular buffer of diagnostic lines with O(1)
// append. It keeps the newest lines; older ones are overwritten.
type LogBuffer struct {
	entries []string     // fixed-size circular buffer
	head    int          // next write position
	size    int          // current number of entries
	mu      sync.RWMutex // protects all fields
}

// NewLogBuffer returns a buffer keeping the last n lines.
func NewLogBuffer(n int) *LogBuffer {
	if n <= 0 {
		n = DefaultLogLines
	}
	return &LogBuffer{entries: make([]string, n)}
}

// Append adds a line (overwrites oldest if full).
func (b *LogBuffer) Append(entry string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	capN := len(b.entries)
	b.entries[b.head] = entry
	b.head = (b.head + 1) % capN
	if b.size < capN {
		b.size++
	}
}

// Read returns the last n entries, newest → oldest.
// n <= 0 returns everything available. The caller owns the returned slice.
func (b *LogBuffer) Read(n int) []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.size == 0 {
		return nil
	}
	if n <= 0 || n > b.size {
		n = b.size
	}

	capN := len(b.entries)
	newest := (b.head - 1 + capN) % capN

	out := make([]string, n)
	for i := 0; i < n; i++ {
		out[i] = b.entries[(newest-i+capN)%capN]
	}
	return out
}

// Lines returns every retained line, oldest → newest.
func (b *LogBuffer) Lines() []string {
	lines := b.Read(0)
	for i, j := 0, len(lines)-1; i < j; i, j = i+1, j-1 {
		lines[i], lines[j] = lines[j], lines[i]
	}
	return lines
}

// lineWriter splits a byte stream into lines and appends them to a LogBuffer.
// It is the Stderr of a child process; exec.Cmd copies into it from a single
// goroutine, the mutex only guards flush racing with the last Write.
type lineWriter struct {
	mu      sync.Mutex
	buf     *LogBuffer
	partial []byte
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	data := append(w.partial, p...)
	for {
		i := bytes.IndexByte(data, '\n')
		if i < 0 {
			break
		}
		w.buf.Append(string(bytes.TrimRight(data[:i], "\r")))
		data = data[i+1:]
	}
	// ffmpeg progress lines end in '\r' only; keep the tail bounded.
	if len(data) > 64*1024 {
		w.buf.Append(string(data))
		data = nil
	}
	w.partial = append(w.partial[:0], data...)
	return len(p), nil
}

// flush emits a trailing line that had no newline.
func (w *lineWriter) flush() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if len(w.partial) > 0 {
		w.buf.Append(string(bytes.TrimRight(w.partial, "\r")))
		w.partial = nil
	}
}
