// Package replay provides recording and replay of radar scan logs.
//
// A scan log is a directory holding a header.json with capture metadata and
// a scans.jsonl with one JSON-encoded scan per line, in capture order.
package replay

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/zenbuns/awr-radar-analyzer/internal/radar"
)

const (
	headerFile = "header.json"
	scansFile  = "scans.jsonl"
)

// LogHeader contains metadata about a recorded scan log.
type LogHeader struct {
	Version    string `json:"version"`
	CreatedNs  int64  `json:"created_ns"`
	SensorID   string `json:"sensor_id"`
	TotalScans uint64 `json:"total_scans"`
	StartNs    int64  `json:"start_ns"`
	EndNs      int64  `json:"end_ns"`
}

// Recorder writes scans to a log directory.
type Recorder struct {
	basePath string
	header   LogHeader

	mu        sync.Mutex
	file      *os.File
	w         *bufio.Writer
	enc       *json.Encoder
	scanCount uint64
	startNs   int64
	endNs     int64
	closed    bool
}

// NewRecorder creates a Recorder writing to the given directory. If path is
// empty, a timestamped directory is created under the system temp dir.
func NewRecorder(basePath, sensorID string) (*Recorder, error) {
	if basePath == "" {
		basePath = filepath.Join(os.TempDir(), fmt.Sprintf("scanlog_%s_%d", sensorID, time.Now().Unix()))
	}

	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}

	f, err := os.Create(filepath.Join(basePath, scansFile))
	if err != nil {
		return nil, fmt.Errorf("create scan file: %w", err)
	}

	w := bufio.NewWriter(f)
	return &Recorder{
		basePath: basePath,
		file:     f,
		w:        w,
		enc:      json.NewEncoder(w),
		header: LogHeader{
			Version:   "1.0",
			CreatedNs: time.Now().UnixNano(),
			SensorID:  sensorID,
		},
	}, nil
}

// Record appends one scan to the log.
func (r *Recorder) Record(scan *radar.Scan) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return fmt.Errorf("recorder is closed")
	}

	ts := scan.Timestamp.UnixNano()
	if r.startNs == 0 {
		r.startNs = ts
	}
	r.endNs = ts

	if err := r.enc.Encode(scan); err != nil {
		return fmt.Errorf("encode scan: %w", err)
	}
	r.scanCount++
	return nil
}

// Close finalises the log and writes the header.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true

	if err := r.w.Flush(); err != nil {
		return fmt.Errorf("flush scan file: %w", err)
	}
	if err := r.file.Close(); err != nil {
		return fmt.Errorf("close scan file: %w", err)
	}

	r.header.TotalScans = r.scanCount
	r.header.StartNs = r.startNs
	r.header.EndNs = r.endNs

	headerData, err := json.MarshalIndent(r.header, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal header: %w", err)
	}
	if err := os.WriteFile(filepath.Join(r.basePath, headerFile), headerData, 0644); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	return nil
}

// Path returns the base path of the log.
func (r *Recorder) Path() string {
	return r.basePath
}

// ScanCount returns the number of scans recorded so far.
func (r *Recorder) ScanCount() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.scanCount
}

// Source reads scans back from a log directory. It implements
// radar.ScanSource: the first Rewind opens the scan file, and subsequent
// Rewinds reset the cursor to the first scan.
type Source struct {
	basePath string
	header   LogHeader

	mu   sync.Mutex
	file *os.File
	dec  *json.Decoder
}

// NewSource opens a scan log for replay. The header is read eagerly so a
// missing or corrupt log fails here rather than mid-playback.
func NewSource(basePath string) (*Source, error) {
	headerData, err := os.ReadFile(filepath.Join(basePath, headerFile))
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	var header LogHeader
	if err := json.Unmarshal(headerData, &header); err != nil {
		return nil, fmt.Errorf("parse header: %w", err)
	}

	return &Source{basePath: basePath, header: header}, nil
}

// Header returns the log header.
func (s *Source) Header() LogHeader {
	return s.header
}

// TotalScans returns the number of scans in the log.
func (s *Source) TotalScans() uint64 {
	return s.header.TotalScans
}

// Rewind (re)opens the scan file and positions the cursor at the first
// scan.
func (s *Source) Rewind() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file != nil {
		s.file.Close()
		s.file = nil
		s.dec = nil
	}

	f, err := os.Open(filepath.Join(s.basePath, scansFile))
	if err != nil {
		return fmt.Errorf("open scan file: %w", err)
	}
	s.file = f
	s.dec = json.NewDecoder(bufio.NewReader(f))
	return nil
}

// Next returns the next scan, or io.EOF at end of log.
func (s *Source) Next() (*radar.Scan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.dec == nil {
		return nil, fmt.Errorf("source not rewound")
	}

	var scan radar.Scan
	if err := s.dec.Decode(&scan); err != nil {
		// io.EOF passes through unwrapped to mark end of log.
		return nil, err
	}
	return &scan, nil
}

// Close releases the scan file. The source can be reopened with Rewind.
func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	s.dec = nil
	return err
}
