package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/menucraft/apiserver/internal/auth"
	"github.com/menucraft/apiserver/internal/media"
	"github.com/menucraft/apiserver/internal/services"
	"github.com/menucraft/apiserver/internal/store"
	"github.com/menucraft/apiserver/types"
)

const (
	testJWTSecret   = "handler-test-secret"
	testInternalKey = "handler-test-internal-key"
)

// In-memory repositories backing the real services, so the tests exercise
// the full router, middleware, and JSON shapes without a database.

type memUserRepo struct {
	nextID  int
	byEmail map[string]types.User
}

func (m *memUserRepo) GetByID(_ context.Context, id int) (types.User, error) {
	for _, user := range m.byEmail {
		if user.ID == id {
			return user, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (m *memUserRepo) GetByEmail(_ context.Context, email string) (types.User, error) {
	user, ok := m.byEmail[email]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return user, nil
}

func (m *memUserRepo) Create(_ context.Context, user types.User) (types.User, error) {
	if _, ok := m.byEmail[user.Email]; ok {
		return types.User{}, store.ErrDuplicateEmail
	}
	m.nextID++
	user.ID = m.nextID
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now
	m.byEmail[user.Email] = user
	return user, nil
}

func (m *memUserRepo) Upsert(_ context.Context, user types.User) (types.User, error) {
	now := time.Now()
	if existing, ok := m.byEmail[user.Email]; ok {
		existing.Name = user.Name
		existing.Provider = user.Provider
		existing.Role = user.Role
		existing.UpdatedAt = now
		m.byEmail[user.Email] = existing
		return existing, nil
	}
	m.nextID++
	user.ID = m.nextID
	user.CreatedAt = now
	user.UpdatedAt = now
	m.byEmail[user.Email] = user
	return user, nil
}

type memItemRepo struct {
	nextID int
	items  map[int]types.Item
}

func (m *memItemRepo) List(_ context.Context, search, category string) ([]types.Item, error) {
	var result []types.Item
	for _, item := range m.items {
		if search != "" && !strings.Contains(strings.ToLower(item.Name), strings.ToLower(search)) {
			continue
		}
		if category != "" && !strings.EqualFold(item.Category, category) {
			continue
		}
		result = append(result, item)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID > result[j].ID })
	return result, nil
}

func (m *memItemRepo) ListByOwner(_ context.Context, ownerID int) ([]types.Item, error) {
	var result []types.Item
	for _, item := range m.items {
		if item.OwnerID == ownerID {
			result = append(result, item)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID > result[j].ID })
	return result, nil
}

func (m *memItemRepo) Get(_ context.Context, id int) (types.Item, error) {
	item, ok := m.items[id]
	if !ok {
		return types.Item{}, store.ErrNotFound
	}
	return item, nil
}

func (m *memItemRepo) Create(_ context.Context, item types.Item) (types.Item, error) {
	m.nextID++
	item.ID = m.nextID
	now := time.Now()
	item.CreatedAt = now
	item.UpdatedAt = now
	m.items[item.ID] = item
	return item, nil
}

func (m *memItemRepo) Update(_ context.Context, item types.Item) (types.Item, error) {
	if _, ok := m.items[item.ID]; !ok {
		return types.Item{}, store.ErrNotFound
	}
	item.UpdatedAt = time.Now()
	m.items[item.ID] = item
	return item, nil
}

func (m *memItemRepo) Delete(_ context.Context, id int) error {
	if _, ok := m.items[id]; !ok {
		return store.ErrNotFound
	}
	delete(m.items, id)
	return nil
}

// memObjectStore keeps uploaded objects in a map so image tests can assert
// exactly what reached storage.
type memObjectStore struct {
	objects map[string][]byte
}

func newMemObjectStore() *memObjectStore {
	return &memObjectStore{objects: make(map[string][]byte)}
}

func (m *memObjectStore) EnsureBucket(_ context.Context) error { return nil }

func (m *memObjectStore) Put(_ context.Context, key string, r io.Reader, _ int64, _ string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.objects[key] = data
	return nil
}

func (m *memObjectStore) Get(_ context.Context, key string) (io.ReadCloser, error) {
	data, ok := m.objects[key]
	if !ok {
		return nil, store.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *memObjectStore) Delete(_ context.Context, key string) error {
	delete(m.objects, key)
	return nil
}

func (m *memObjectStore) Bucket() string { return "test-bucket" }

// newTestRouter assembles the real route tree over in-memory repositories,
// mirroring the server wiring. Image uploads stay disabled.
func newTestRouter(t *testing.T) *chi.Mux {
	t.Helper()
	return newTestRouterWithMedia(t, nil)
}

func newTestRouterWithMedia(t *testing.T, mediaStore *media.Store) *chi.Mux {
	t.Helper()

	tokenService := auth.NewTokenService(testJWTSecret)
	userService := services.NewUserService(&memUserRepo{byEmail: make(map[string]types.User)})
	itemService := services.NewItemService(&memItemRepo{items: make(map[int]types.Item)}, nil, "")

	authMiddleware := RequireAuth(tokenService)

	router := chi.NewRouter()
	router.Get("/healthz", Healthz)
	router.Route("/items", func(r chi.Router) {
		ItemRouter(r, itemService, mediaStore, authMiddleware)
	})
	router.Route("/products", func(r chi.Router) {
		ProductRouter(r, itemService, authMiddleware)
	})
	router.Route("/media", func(r chi.Router) {
		MediaRouter(r, itemService, mediaStore)
	})
	router.Route("/auth", func(r chi.Router) {
		AuthRouter(r, userService, tokenService, testInternalKey)
	})
	return router
}

func doRequest(t *testing.T, router http.Handler, method, path, token string, payload any) *httptest.ResponseRecorder {
	t.Helper()

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		body = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, body)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)
	return recorder
}

func doRequestWithHeader(t *testing.T, router http.Handler, method, path string, payload any, headerName, headerValue string) *httptest.ResponseRecorder {
	t.Helper()

	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}

	req := httptest.NewRequest(method, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(headerName, headerValue)

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)
	return recorder
}

func decodeBody(t *testing.T, recorder *httptest.ResponseRecorder, out any) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), out); err != nil {
		t.Fatalf("decode response %q: %v", recorder.Body.String(), err)
	}
}

func registerTestUser(t *testing.T, router http.Handler, email string) (string, types.User) {
	t.Helper()

	recorder := doRequest(t, router, http.MethodPost, "/auth/register", "", map[string]any{
		"name":     "Test User",
		"email":    email,
		"password": "testpass123!",
	})
	if recorder.Code != http.StatusCreated {
		t.Fatalf("register status = %d: %s", recorder.Code, recorder.Body.String())
	}

	var resp AuthResponse
	decodeBody(t, recorder, &resp)
	if resp.Token == "" {
		t.Fatalf("missing token in register response")
	}
	return resp.Token, resp.User
}
