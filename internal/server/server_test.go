package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/user/vistela-backend/internal/model"
	"github.com/user/vistela-backend/internal/store"
	"github.com/user/vistela-backend/internal/upload"
)

// fakeStore implements store.Store in memory
type fakeStore struct {
	pingErr   error
	insertErr error

	records map[string]*model.VideoRecord
	seq     int
}

func newFakeStore() *fakeStore {
	return &fakeStore{records: make(map[string]*model.VideoRecord)}
}

func (f *fakeStore) Insert(ctx context.Context, record *model.VideoRecord) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	if _, ok := f.records[record.VideoID]; ok {
		return fmt.Errorf("video %q: %w", record.VideoID, store.ErrAlreadyExists)
	}
	if record.Status == "" {
		record.Status = model.StatusPending
	}
	f.seq++
	record.CreatedAt = time.Unix(int64(f.seq), 0).UTC()
	record.UpdatedAt = record.CreatedAt
	f.records[record.VideoID] = record
	return nil
}

func (f *fakeStore) Get(ctx context.Context, videoID string) (*model.VideoRecord, error) {
	return f.records[videoID], nil
}

func (f *fakeStore) List(ctx context.Context, filter store.ListFilter) ([]*model.VideoRecord, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = store.DefaultListLimit
	}
	var out []*model.VideoRecord
	for _, r := range f.records {
		if filter.UserID != "" && r.UserID != filter.UserID {
			continue
		}
		if filter.Status != "" && r.Status != filter.Status {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeStore) UpdateStatus(ctx context.Context, videoID string, status model.VideoStatus) error {
	rec, ok := f.records[videoID]
	if !ok {
		return fmt.Errorf("video %q: %w", videoID, store.ErrNotFound)
	}
	if !rec.Status.CanTransitionTo(status) {
		return fmt.Errorf("video %q: %w", videoID, store.ErrInvalidTransition)
	}
	rec.Status = status
	rec.UpdatedAt = time.Now().UTC()
	return nil
}

func (f *fakeStore) Delete(ctx context.Context, videoID string) error {
	if _, ok := f.records[videoID]; !ok {
		return fmt.Errorf("video %q: %w", videoID, store.ErrNotFound)
	}
	delete(f.records, videoID)
	return nil
}

func (f *fakeStore) Count(ctx context.Context) (int64, error) {
	return int64(len(f.records)), nil
}

func (f *fakeStore) Ping(ctx context.Context) error { return f.pingErr }
func (f *fakeStore) Close() error                   { return nil }

// fakeBlob implements upload.BlobStore in memory
type fakeBlob struct {
	uploadErr error
}

func (f *fakeBlob) Upload(ctx context.Context, stream io.ReadSeeker, name, folder string) (string, error) {
	if f.uploadErr != nil {
		return "", f.uploadErr
	}
	return strings.Trim(folder, "/") + "/" + name, nil
}

func (f *fakeBlob) Delete(ctx context.Context, key string) error { return nil }

func newTestServer(st *fakeStore, blobs *fakeBlob, uploadRate float64) *Server {
	return NewServer(st, upload.NewService(st, blobs, "uploads"), uploadRate)
}

func multipartBody(t *testing.T, userID, filename, content string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if userID != "" {
		if err := w.WriteField("user_id", userID); err != nil {
			t.Fatalf("WriteField() error = %v", err)
		}
	}
	part, err := w.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("CreateFormFile() error = %v", err)
	}
	if _, err := part.Write([]byte(content)); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	w.Close()
	return &buf, w.FormDataContentType()
}

func TestHandleHealth(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		srv := newTestServer(newFakeStore(), &fakeBlob{}, 100)

		rr := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

		if rr.Code != http.StatusOK {
			t.Errorf("status = %d, want %d", rr.Code, http.StatusOK)
		}
		var resp HealthResponse
		if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
			t.Fatalf("Decode() error = %v", err)
		}
		if resp.Status != "healthy" || resp.Database != "healthy" {
			t.Errorf("response = %+v, want healthy", resp)
		}
	})

	t.Run("database down", func(t *testing.T) {
		st := newFakeStore()
		st.pingErr = errors.New("connection refused")
		srv := newTestServer(st, &fakeBlob{}, 100)

		rr := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

		if rr.Code != http.StatusServiceUnavailable {
			t.Errorf("status = %d, want %d", rr.Code, http.StatusServiceUnavailable)
		}
	})
}

func TestHandleUpload(t *testing.T) {
	st := newFakeStore()
	srv := newTestServer(st, &fakeBlob{}, 100)

	body, contentType := multipartBody(t, "user-1", "clip.mp4", "video-bytes")
	req := httptest.NewRequest(http.MethodPost, "/videos", body)
	req.Header.Set("Content-Type", contentType)

	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d: %s", rr.Code, http.StatusCreated, rr.Body.String())
	}

	var record model.VideoRecord
	if err := json.NewDecoder(rr.Body).Decode(&record); err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if record.UserID != "user-1" || record.Filename != "clip.mp4" {
		t.Errorf("record = %+v, want user-1/clip.mp4", record)
	}
	if record.Status != model.StatusPending {
		t.Errorf("Status = %v, want pending", record.Status)
	}
	if len(st.records) != 1 {
		t.Errorf("stored records = %d, want 1", len(st.records))
	}
}

func TestHandleUpload_MissingUserID(t *testing.T) {
	srv := newTestServer(newFakeStore(), &fakeBlob{}, 100)

	body, contentType := multipartBody(t, "", "clip.mp4", "x")
	req := httptest.NewRequest(http.MethodPost, "/videos", body)
	req.Header.Set("Content-Type", contentType)

	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestHandleUpload_RateLimited(t *testing.T) {
	srv := newTestServer(newFakeStore(), &fakeBlob{}, 0.001)

	send := func() int {
		body, contentType := multipartBody(t, "user-1", "clip.mp4", "x")
		req := httptest.NewRequest(http.MethodPost, "/videos", body)
		req.Header.Set("Content-Type", contentType)
		rr := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rr, req)
		return rr.Code
	}

	if code := send(); code != http.StatusCreated {
		t.Fatalf("first upload status = %d, want %d", code, http.StatusCreated)
	}
	if code := send(); code != http.StatusTooManyRequests {
		t.Errorf("second upload status = %d, want %d", code, http.StatusTooManyRequests)
	}
}

func TestHandleGet(t *testing.T) {
	st := newFakeStore()
	st.Insert(context.Background(), &model.VideoRecord{
		VideoID: "v-1", UserID: "user-1", Filename: "clip.mp4", StorageKey: "uploads/v-1_clip.mp4",
	})
	srv := newTestServer(st, &fakeBlob{}, 100)

	t.Run("present", func(t *testing.T) {
		rr := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/videos/v-1", nil))

		if rr.Code != http.StatusOK {
			t.Fatalf("status = %d, want %d", rr.Code, http.StatusOK)
		}
		var record model.VideoRecord
		if err := json.NewDecoder(rr.Body).Decode(&record); err != nil {
			t.Fatalf("Decode() error = %v", err)
		}
		if record.VideoID != "v-1" {
			t.Errorf("VideoID = %q, want v-1", record.VideoID)
		}
	})

	t.Run("absent", func(t *testing.T) {
		rr := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/videos/nope", nil))

		if rr.Code != http.StatusNotFound {
			t.Errorf("status = %d, want %d", rr.Code, http.StatusNotFound)
		}
	})
}

func TestHandleList(t *testing.T) {
	st := newFakeStore()
	for i, seed := range []struct {
		user   string
		status model.VideoStatus
	}{
		{"u1", model.StatusCompleted},
		{"u1", model.StatusPending},
		{"u2", model.StatusCompleted},
	} {
		st.Insert(context.Background(), &model.VideoRecord{
			VideoID: fmt.Sprintf("v-%d", i), UserID: seed.user,
			Filename: "clip.mp4", StorageKey: "k", Status: seed.status,
		})
	}
	srv := newTestServer(st, &fakeBlob{}, 100)

	list := func(t *testing.T, query string) []*model.VideoRecord {
		t.Helper()
		rr := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/videos"+query, nil))
		if rr.Code != http.StatusOK {
			t.Fatalf("status = %d, want %d", rr.Code, http.StatusOK)
		}
		var records []*model.VideoRecord
		if err := json.NewDecoder(rr.Body).Decode(&records); err != nil {
			t.Fatalf("Decode() error = %v", err)
		}
		return records
	}

	if got := list(t, "?user_id=u1"); len(got) != 2 {
		t.Errorf("list by user = %d records, want 2", len(got))
	}
	if got := list(t, "?status=completed"); len(got) != 2 {
		t.Errorf("list by status = %d records, want 2", len(got))
	}
	if got := list(t, "?user_id=u1&status=completed"); len(got) != 1 {
		t.Errorf("list by user and status = %d records, want 1", len(got))
	}
	if got := list(t, "?limit=2"); len(got) != 2 {
		t.Errorf("list with limit = %d records, want 2", len(got))
	}

	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/videos?limit=abc", nil))
	if rr.Code != http.StatusBadRequest {
		t.Errorf("invalid limit status = %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestHandleUpdateStatus(t *testing.T) {
	st := newFakeStore()
	st.Insert(context.Background(), &model.VideoRecord{
		VideoID: "v-1", UserID: "u1", Filename: "clip.mp4", StorageKey: "k",
	})
	srv := newTestServer(st, &fakeBlob{}, 100)

	patch := func(t *testing.T, id, status string) *httptest.ResponseRecorder {
		t.Helper()
		body := strings.NewReader(fmt.Sprintf(`{"status":%q}`, status))
		req := httptest.NewRequest(http.MethodPatch, "/videos/"+id+"/status", body)
		rr := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rr, req)
		return rr
	}

	if rr := patch(t, "v-1", "processing"); rr.Code != http.StatusOK {
		t.Errorf("legal transition status = %d, want %d: %s", rr.Code, http.StatusOK, rr.Body.String())
	}
	if rr := patch(t, "v-1", "pending"); rr.Code != http.StatusConflict {
		t.Errorf("illegal transition status = %d, want %d", rr.Code, http.StatusConflict)
	}
	if rr := patch(t, "nope", "processing"); rr.Code != http.StatusNotFound {
		t.Errorf("absent record status = %d, want %d", rr.Code, http.StatusNotFound)
	}
}

func TestHandleDelete(t *testing.T) {
	st := newFakeStore()
	st.Insert(context.Background(), &model.VideoRecord{
		VideoID: "v-1", UserID: "u1", Filename: "clip.mp4", StorageKey: "uploads/v-1_clip.mp4",
	})
	srv := newTestServer(st, &fakeBlob{}, 100)

	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodDelete, "/videos/v-1", nil))
	if rr.Code != http.StatusNoContent {
		t.Errorf("status = %d, want %d", rr.Code, http.StatusNoContent)
	}
	if len(st.records) != 0 {
		t.Errorf("stored records = %d, want 0", len(st.records))
	}

	rr = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodDelete, "/videos/v-1", nil))
	if rr.Code != http.StatusNotFound {
		t.Errorf("second delete status = %d, want %d", rr.Code, http.StatusNotFound)
	}
}

func TestWriteError_Conflict(t *testing.T) {
	st := newFakeStore()
	st.insertErr = fmt.Errorf("video: %w", store.ErrAlreadyExists)
	srv := newTestServer(st, &fakeBlob{}, 100)

	body, contentType := multipartBody(t, "user-1", "clip.mp4", "x")
	req := httptest.NewRequest(http.MethodPost, "/videos", body)
	req.Header.Set("Content-Type", contentType)

	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)
	if rr.Code != http.StatusConflict {
		t.Errorf("status = %d, want %d", rr.Code, http.StatusConflict)
	}
}
