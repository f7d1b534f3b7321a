package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/CodeXGautam/mail-tracker/internal/database"
	"github.com/CodeXGautam/mail-tracker/internal/database/models"
	"github.com/CodeXGautam/mail-tracker/internal/logstore"
	"github.com/CodeXGautam/mail-tracker/internal/services"
	"github.com/CodeXGautam/mail-tracker/internal/tracking"
	"github.com/gin-gonic/gin"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"gorm.io/gorm"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type pixelFixture struct {
	router *gin.Engine
	emails *services.EmailService
	logs   *logstore.Store
	db     *gorm.DB
}

func setupPixel(t *testing.T, withDB bool) *pixelFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	tempDir := t.TempDir()
	var db *gorm.DB
	if withDB {
		var err error
		db, err = database.Initialize(filepath.Join(tempDir, "test.db"))
		if err != nil {
			t.Fatalf("failed to initialize database: %v", err)
		}
		t.Cleanup(func() {
			sqlDB, _ := db.DB()
			sqlDB.Close()
		})
	}
	logs := logstore.New(tempDir, testLogger())
	emails := services.NewEmailService(db, logs, testLogger())

	router := gin.New()
	router.GET("/pixel.png", NewPixelHandler(emails, logs, testLogger()).Serve)

	return &pixelFixture{router: router, emails: emails, logs: logs, db: db}
}

func (f *pixelFixture) hit(t *testing.T, url, remoteAddr, userAgent, referer string) *httptest.ResponseRecorder {
	t.Helper()
	req, err := http.NewRequest("GET", url, nil)
	if err != nil {
		t.Fatalf("failed to build request: %v", err)
	}
	if remoteAddr != "" {
		req.RemoteAddr = remoteAddr
	}
	if userAgent != "" {
		req.Header.Set("User-Agent", userAgent)
	}
	if referer != "" {
		req.Header.Set("Referer", referer)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func sentInput(trackingID string) services.EmailInput {
	return services.EmailInput{
		ThreadID:         "thread-1",
		TrackingID:       trackingID,
		Subject:          "hello",
		To:               "rcpt@example.com",
		Status:           string(models.StatusSent),
		HasTrackingPixel: true,
		SenderIP:         "198.51.100.7",
		SenderUserAgent:  "SenderAgent/1.0",
	}
}

func TestPixelMissingEmailID(t *testing.T) {
	f := setupPixel(t, true)
	w := f.hit(t, "/pixel.png", "", "curl/8.5.0", "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	entries, err := f.logs.ListAll()
	if err != nil {
		t.Fatalf("log read failed: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("malformed request must have no side effects, got %d log entries", len(entries))
	}
}

// Property: for any tracking id, the endpoint returns the same fixed
// image bytes with image/gif, whether or not the record lookup succeeds.
func TestProperty_PixelAlwaysServesFixedImage(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 20
	properties := gopter.NewProperties(parameters)

	f := setupPixel(t, true)

	idGen := gen.Identifier()

	properties.Property("fixed_bytes_any_id", prop.ForAll(
		func(id string) bool {
			w := f.hit(t, "/pixel.png?emailId="+id, "203.0.113.9:4711", "curl/8.5.0", "")
			if w.Code != http.StatusOK {
				return false
			}
			if w.Header().Get("Content-Type") != "image/gif" {
				return false
			}
			if w.Header().Get("Cache-Control") != "no-store, no-cache, must-revalidate" {
				return false
			}
			return bytes.Equal(w.Body.Bytes(), tracking.Pixel)
		},
		idGen,
	))

	properties.TestingRun(t)
}

// Every well-formed pixel request appends exactly one log entry, even
// when the record store is unavailable and lookup/update fail.
func TestPixelLogsExactlyOnceWithoutDatabase(t *testing.T) {
	f := setupPixel(t, false)

	w := f.hit(t, "/pixel.png?emailId=t1&recipientId=r9", "203.0.113.9:4711", "Mozilla/5.0 Mobile Safari/17.0", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 in degraded mode, got %d", w.Code)
	}
	if !bytes.Equal(w.Body.Bytes(), tracking.Pixel) {
		t.Fatal("degraded mode served different image bytes")
	}

	entries, err := f.logs.ListAll()
	if err != nil {
		t.Fatalf("log read failed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected exactly one log entry, got %d", len(entries))
	}
}

// A pixel hit from the sender's own address is logged but must not flip
// status or move the open counter.
func TestPixelSenderAccessExemption(t *testing.T) {
	f := setupPixel(t, true)

	if err := f.emails.UpsertFull(1, sentInput("t1")); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}

	w := f.hit(t, "/pixel.png?emailId=t1", "198.51.100.7:4711", "Mozilla/5.0", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	record, err := f.emails.FindByTrackingID("t1")
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if record.Status != string(models.StatusSent) {
		t.Fatalf("sender access flipped status to %q", record.Status)
	}
	if record.Opens != 0 {
		t.Fatalf("sender access incremented opens to %d", record.Opens)
	}

	entries, err := f.logs.ListAll()
	if err != nil {
		t.Fatalf("log read failed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("sender access should still be logged, got %d entries", len(entries))
	}
}

func TestPixelSenderAgentExemption(t *testing.T) {
	f := setupPixel(t, true)

	if err := f.emails.UpsertFull(1, sentInput("t1")); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}

	w := f.hit(t, "/pixel.png?emailId=t1", "203.0.113.9:4711", "SenderAgent/1.0", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	record, _ := f.emails.FindByTrackingID("t1")
	if record.Opens != 0 {
		t.Fatalf("matching sender agent still counted an open: %d", record.Opens)
	}
}

// A genuine recipient open flips the record to read and counts it.
func TestPixelRecipientOpenMarksRead(t *testing.T) {
	f := setupPixel(t, true)

	if err := f.emails.UpsertFull(1, sentInput("t1")); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}

	w := f.hit(t, "/pixel.png?emailId=t1", "203.0.113.9:4711", "Mozilla/5.0", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	record, err := f.emails.FindByTrackingID("t1")
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if record.Status != string(models.StatusRead) {
		t.Fatalf("expected status read, got %q", record.Status)
	}
	if record.Opens != 1 {
		t.Fatalf("expected 1 open, got %d", record.Opens)
	}
	if record.LastOpenAt == nil || record.ReadAt == nil {
		t.Fatal("open timestamps not stamped")
	}
	if record.LastOpenIP != "203.0.113.9" {
		t.Fatalf("open ip not recorded: %q", record.LastOpenIP)
	}

	// Two opens count twice: open counts are additive, not deduplicated
	f.hit(t, "/pixel.png?emailId=t1", "203.0.113.9:4711", "Mozilla/5.0", "")
	record, _ = f.emails.FindByTrackingID("t1")
	if record.Opens != 2 {
		t.Fatalf("expected 2 opens, got %d", record.Opens)
	}
}

func TestPixelWebmailRefererExemption(t *testing.T) {
	f := setupPixel(t, true)

	if err := f.emails.UpsertFull(1, sentInput("t1")); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}

	f.hit(t, "/pixel.png?emailId=t1", "203.0.113.9:4711", "Mozilla/5.0", "https://mail.google.com/mail/u/0/")
	record, _ := f.emails.FindByTrackingID("t1")
	if record.Opens != 0 {
		t.Fatalf("webmail referer still counted an open: %d", record.Opens)
	}
}

// Log entries carry the derived device hints and request metadata.
func TestPixelLogEntryShape(t *testing.T) {
	f := setupPixel(t, true)

	f.hit(t, "/pixel.png?emailId=t1&recipientId=r9", "203.0.113.9:4711", "Mozilla/5.0 (iPhone) Mobile/15E148", "")

	entries, err := f.logs.ListAll()
	if err != nil || len(entries) != 1 {
		t.Fatalf("expected one entry, got %d (err %v)", len(entries), err)
	}
	var e logstore.Entry
	if err := json.Unmarshal(entries[0], &e); err != nil {
		t.Fatalf("entry is not valid JSON: %v", err)
	}
	if e.EmailID != "t1" {
		t.Fatalf("wrong emailId: %q", e.EmailID)
	}
	if e.RecipientID == nil || *e.RecipientID != "r9" {
		t.Fatalf("recipientId not recorded: %v", e.RecipientID)
	}
	if !e.Device.Mobile || e.Device.Browser != "Mozilla" {
		t.Fatalf("device hints wrong: %+v", e.Device)
	}
	if _, err := time.Parse(time.RFC3339Nano, e.Timestamp); err != nil {
		t.Fatalf("timestamp not RFC3339: %q", e.Timestamp)
	}
}
