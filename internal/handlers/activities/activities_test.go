package activities

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgtype"
	"github.com/lildude/stravasync/internal/cache"
	"github.com/lildude/stravasync/internal/logger"
	"github.com/lildude/stravasync/internal/model"
	"github.com/lildude/stravasync/internal/store"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

var dbSeq int64

func setup(t *testing.T) (*chi.Mux, *gorm.DB, *miniredis.Miniredis) {
	t.Helper()
	t.Setenv("ENV", "test")

	dsn := fmt.Sprintf("file:acth%d?mode=memory&cache=shared", atomic.AddInt64(&dbSeq, 1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to connect to database: %v", err)
	}
	if err := db.AutoMigrate(&model.Activity{}, &model.Stream{}); err != nil {
		t.Fatalf("failed to migrate schema: %v", err)
	}

	r := miniredis.RunT(t)
	che, err := cache.NewRedisCache(context.Background(), fmt.Sprintf("redis://%s", r.Addr()))
	if err != nil {
		t.Fatal(err)
	}

	h := &Handler{DB: db, Cache: che, Log: logger.NewLogger()}
	mux := chi.NewRouter()
	mux.Get("/api/users/{id}/activities", h.ListForUser)
	mux.Delete("/api/users/{id}/activities", h.DeleteAllForUser)
	mux.Get("/api/activities/{id}", h.Get)
	mux.Delete("/api/activities/{id}", h.Delete)
	return mux, db, r
}

func seedActivity(t *testing.T, db *gorm.DB, id, ownerID int64, dataJSON string) {
	t.Helper()
	err := store.UpsertActivity(db, &model.Activity{
		ID:        id,
		StravaID:  ownerID,
		Name:      fmt.Sprintf("Activity %d", id),
		Type:      "Run",
		StartDate: time.Date(2023, 1, int(id), 8, 0, 0, 0, time.UTC),
		DataJSON:  dataJSON,
	})
	if err != nil {
		t.Fatal(err)
	}
}

func do(mux *chi.Mux, method, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func TestGetParsesStoredPayload(t *testing.T) {
	mux, db, _ := setup(t)
	seedActivity(t, db, 1, 100, `{"id": 1, "kudos_count": 3}`)

	w := do(mux, http.MethodGet, "/api/activities/1")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var body struct {
		ID       int64          `json:"id"`
		DataJSON map[string]any `json:"data_json"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.DataJSON["kudos_count"] != float64(3) {
		t.Errorf("expected parsed payload, got %+v", body.DataJSON)
	}
}

func TestGetCorruptPayloadYieldsNull(t *testing.T) {
	mux, db, _ := setup(t)
	seedActivity(t, db, 1, 100, `{"truncated": `)

	w := do(mux, http.MethodGet, "/api/activities/1")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 despite corrupt payload, got %d", w.Code)
	}

	var body map[string]json.RawMessage
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if string(body["data_json"]) != "null" {
		t.Errorf("expected data_json null, got %s", body["data_json"])
	}
	if string(body["name"]) != `"Activity 1"` {
		t.Errorf("expected remaining columns intact, got %s", body["name"])
	}
}

func TestGetMergesStream(t *testing.T) {
	mux, db, _ := setup(t)
	seedActivity(t, db, 1, 100, `{}`)

	var data pgtype.JSONB
	if err := data.Set(map[string]any{"time": map[string]any{"data": []int{0, 1}}}); err != nil {
		t.Fatal(err)
	}
	if err := store.UpsertStream(db, &model.Stream{StravaID: 100, ActivityID: 1, Data: data}); err != nil {
		t.Fatal(err)
	}

	w := do(mux, http.MethodGet, "/api/activities/1")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var body struct {
		Stream map[string]any `json:"stream"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if _, ok := body.Stream["time"]; !ok {
		t.Errorf("expected stream merged into response, got %+v", body.Stream)
	}
}

func TestGetUnknownActivity(t *testing.T) {
	mux, _, _ := setup(t)

	w := do(mux, http.MethodGet, "/api/activities/42")
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestListForUserNewestFirst(t *testing.T) {
	mux, db, _ := setup(t)
	seedActivity(t, db, 1, 100, `{}`)
	seedActivity(t, db, 2, 100, `{}`)
	seedActivity(t, db, 3, 200, `{}`)

	w := do(mux, http.MethodGet, "/api/users/100/activities")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var body []struct {
		ID int64 `json:"id"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if len(body) != 2 || body[0].ID != 2 || body[1].ID != 1 {
		t.Errorf("expected [2 1] for owner 100, got %+v", body)
	}
}

func TestListForUserServedFromCache(t *testing.T) {
	mux, db, _ := setup(t)
	seedActivity(t, db, 1, 100, `{}`)

	w := do(mux, http.MethodGet, "/api/users/100/activities")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	// A write bypassing the sync path is invisible until invalidation.
	seedActivity(t, db, 2, 100, `{}`)

	w = do(mux, http.MethodGet, "/api/users/100/activities")
	var body []struct {
		ID int64 `json:"id"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if len(body) != 1 {
		t.Errorf("expected cached single-entry list, got %d entries", len(body))
	}
}

func TestDeleteCascadesStream(t *testing.T) {
	mux, db, _ := setup(t)
	seedActivity(t, db, 1, 100, `{}`)

	var data pgtype.JSONB
	if err := data.Set(map[string]any{"time": map[string]any{"data": []int{0}}}); err != nil {
		t.Fatal(err)
	}
	if err := store.UpsertStream(db, &model.Stream{StravaID: 100, ActivityID: 1, Data: data}); err != nil {
		t.Fatal(err)
	}

	w := do(mux, http.MethodDelete, "/api/activities/1")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var count int64
	db.Model(&model.Stream{}).Count(&count)
	if count != 0 {
		t.Errorf("expected stream row removed, found %d", count)
	}
}

func TestDeleteInvalidatesCachedList(t *testing.T) {
	mux, db, r := setup(t)
	seedActivity(t, db, 1, 100, `{}`)

	do(mux, http.MethodGet, "/api/users/100/activities")
	if !r.Exists("activities:100") {
		t.Fatal("expected list cached after read")
	}

	do(mux, http.MethodDelete, "/api/activities/1")
	if r.Exists("activities:100") {
		t.Error("expected cached list dropped after delete")
	}
}

func TestDeleteAllForUserScoped(t *testing.T) {
	mux, db, _ := setup(t)
	seedActivity(t, db, 1, 100, `{}`)
	seedActivity(t, db, 2, 100, `{}`)
	seedActivity(t, db, 3, 200, `{}`)

	w := do(mux, http.MethodDelete, "/api/users/100/activities")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var ids []int64
	db.Model(&model.Activity{}).Pluck("id", &ids)
	if len(ids) != 1 || ids[0] != 3 {
		t.Errorf("expected only owner 200's activity to survive, got %v", ids)
	}
}

func TestDeleteUnknownActivity(t *testing.T) {
	mux, _, _ := setup(t)

	w := do(mux, http.MethodDelete, "/api/activities/42")
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}
