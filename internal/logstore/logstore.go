package logstore

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// MaxLogSize is the rotation threshold for the access log file
const MaxLogSize = 5 * 1024 * 1024

const logFileName = "logs.json"

// DeviceInfo is derived from the requesting user-agent
type DeviceInfo struct {
	Mobile  bool   `json:"mobile"`
	Browser string `json:"browser"`
}

// Entry is one pixel fetch, recorded regardless of whether it resolved
// to a known email record
type Entry struct {
	Timestamp   string     `json:"timestamp"`
	EmailID     string     `json:"emailId"`
	RecipientID *string    `json:"recipientId"`
	IP          string     `json:"ip"`
	UserAgent   string     `json:"userAgent"`
	Referer     string     `json:"referer,omitempty"`
	Country     *string    `json:"country"`
	Device      DeviceInfo `json:"device"`
}

// TempUser is a degraded-mode account appended to the log when the
// database was unreachable at provisioning time
type TempUser struct {
	Type      string `json:"type"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	APIKey    string `json:"apiKey"`
	CreatedAt string `json:"createdAt"`
}

// EntryTypeTempUser marks a TempUser entry in the log file
const EntryTypeTempUser = "temp_user"

// Store is an append-only JSON log file with size-based rotation.
// Appends are read-modify-write over a single file, so all operations
// are serialized behind one mutex to avoid lost updates from concurrent
// pixel hits.
type Store struct {
	mu      sync.Mutex
	path    string
	maxSize int64
	logger  *slog.Logger
}

// New creates a Store rooted at dir, initializing an empty log file if
// none exists. Initialization failures are logged and deferred to the
// first append rather than surfaced here.
func New(dir string, logger *slog.Logger) *Store {
	return NewWithLimit(dir, MaxLogSize, logger)
}

// NewWithLimit creates a Store with a custom rotation threshold
func NewWithLimit(dir string, maxSize int64, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{
		path:    filepath.Join(dir, logFileName),
		maxSize: maxSize,
		logger:  logger,
	}
	if _, err := os.Stat(s.path); err != nil {
		if err := os.MkdirAll(dir, 0755); err != nil {
			logger.Warn("failed to create log directory", "dir", dir, "error", err)
			return s
		}
		if err := os.WriteFile(s.path, []byte("[]"), 0644); err != nil {
			logger.Warn("failed to initialize log file", "path", s.path, "error", err)
		}
	}
	return s
}

// Path returns the location of the current log file
func (s *Store) Path() string {
	return s.path
}

// Append records one access log entry, rotating first if the file has
// grown past the size threshold
func (s *Store) Append(entry Entry) error {
	return s.AppendRaw(entry)
}

// AppendRaw records an arbitrary JSON value in the log. Used by the
// degraded-mode fallbacks that divert record and account writes here
// when the database is unreachable.
func (s *Store) AppendRaw(v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.rotateLocked()
	entries := s.readLocked()
	entries = append(entries, raw)

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0644)
}

// ListAll returns every entry in the current log file
func (s *Store) ListAll() ([]json.RawMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, err
	}
	var entries []json.RawMessage
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// Clear truncates the log to an empty array
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return os.WriteFile(s.path, []byte("[]"), 0644)
}

// FindTempUserByKey scans the log for a degraded-mode account carrying
// the given API key
func (s *Store) FindTempUserByKey(apiKey string) (*TempUser, bool) {
	return s.findTempUser(func(tu *TempUser) bool {
		return tu.APIKey == apiKey
	})
}

// FindTempUserByEmail scans the log for a degraded-mode account with
// the given email address
func (s *Store) FindTempUserByEmail(email string) (*TempUser, bool) {
	return s.findTempUser(func(tu *TempUser) bool {
		return strings.EqualFold(tu.Email, email)
	})
}

func (s *Store) findTempUser(match func(*TempUser) bool) (*TempUser, bool) {
	entries, err := s.ListAll()
	if err != nil {
		return nil, false
	}
	for _, raw := range entries {
		var tu TempUser
		if err := json.Unmarshal(raw, &tu); err != nil {
			continue
		}
		if tu.Type == EntryTypeTempUser && match(&tu) {
			return &tu, true
		}
	}
	return nil, false
}

// readLocked loads the current entries; a missing or corrupted file
// resets to an empty log so the caller's append never fails on a parse
// error. Caller must hold s.mu.
func (s *Store) readLocked() []json.RawMessage {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil
	}
	var entries []json.RawMessage
	if err := json.Unmarshal(data, &entries); err != nil {
		s.logger.Warn("resetting corrupted log file", "path", s.path, "error", err)
		return nil
	}
	return entries
}

// rotateLocked archives the current log under a timestamp-suffixed name
// once it exceeds the size threshold. Rotation failures are logged and
// swallowed; they must not block ingestion. Caller must hold s.mu.
func (s *Store) rotateLocked() {
	info, err := os.Stat(s.path)
	if err != nil || info.Size() <= s.maxSize {
		return
	}

	timestamp := strings.NewReplacer(":", "-", ".", "-").
		Replace(time.Now().UTC().Format("2006-01-02T15:04:05.000Z"))
	archive := filepath.Join(filepath.Dir(s.path), "logs-"+timestamp+".json")

	if err := os.Rename(s.path, archive); err != nil {
		s.logger.Warn("log rotation failed", "path", s.path, "error", err)
		return
	}
	if err := os.WriteFile(s.path, []byte("[]"), 0644); err != nil {
		s.logger.Warn("failed to start fresh log after rotation", "path", s.path, "error", err)
	}
}
