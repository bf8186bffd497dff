package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/calum/marketsync/internal/domain"
	"github.com/calum/marketsync/internal/repository"
)

func newSyncRouter(t *testing.T, maxAttempts int) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&domain.Task{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	h := NewTaskHandler(repository.NewTaskRepository(db), maxAttempts)
	r := gin.New()
	r.POST("/api/v1/sync", h.TriggerSync)
	return r
}

func postSync(t *testing.T, r *gin.Engine, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/sync", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// The configured attempt cap must end up on the enqueued task, not the
// repository default.
func TestTriggerSyncAppliesConfiguredMaxAttempts(t *testing.T) {
	r := newSyncRouter(t, 7)

	w := postSync(t, r, `{"asin":"B00TEST01","marketplace_id":1,"priority":2}`)
	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202: %s", w.Code, w.Body.String())
	}

	var got domain.Task
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got.MaxAttempts != 7 {
		t.Errorf("max_attempts = %d, want 7", got.MaxAttempts)
	}
	if got.Priority != 2 {
		t.Errorf("priority = %d, want 2", got.Priority)
	}
	if got.EntityID != "B00TEST01:1" {
		t.Errorf("entity_id = %s, want B00TEST01:1", got.EntityID)
	}
}

func TestTriggerSyncFallsBackToDefaultMaxAttempts(t *testing.T) {
	r := newSyncRouter(t, 0)

	w := postSync(t, r, `{"asin":"B00TEST01","marketplace_id":1}`)
	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202: %s", w.Code, w.Body.String())
	}

	var got domain.Task
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got.MaxAttempts != 3 {
		t.Errorf("max_attempts = %d, want repository default 3", got.MaxAttempts)
	}
}

func TestTriggerSyncDeduplicatesPending(t *testing.T) {
	r := newSyncRouter(t, 5)

	if w := postSync(t, r, `{"asin":"B00TEST01","marketplace_id":1}`); w.Code != http.StatusAccepted {
		t.Fatalf("first sync: status = %d, want 202", w.Code)
	}
	if w := postSync(t, r, `{"asin":"B00TEST01","marketplace_id":1}`); w.Code != http.StatusConflict {
		t.Errorf("duplicate sync: status = %d, want 409", w.Code)
	}
	// A different marketplace is a different scope.
	if w := postSync(t, r, `{"asin":"B00TEST01","marketplace_id":2}`); w.Code != http.StatusAccepted {
		t.Errorf("other marketplace: status = %d, want 202", w.Code)
	}
}

func TestTriggerSyncRejectsMissingFields(t *testing.T) {
	r := newSyncRouter(t, 5)

	if w := postSync(t, r, `{"asin":"B00TEST01"}`); w.Code != http.StatusBadRequest {
		t.Errorf("missing marketplace_id: status = %d, want 400", w.Code)
	}
	if w := postSync(t, r, `{"marketplace_id":1}`); w.Code != http.StatusBadRequest {
		t.Errorf("missing asin: status = %d, want 400", w.Code)
	}
}
