package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/menucraft/apiserver/internal/media"
	"github.com/menucraft/apiserver/internal/services"
	"github.com/menucraft/apiserver/types"
)

const (
	maxImageMemory = 8 << 20
	maxImageBytes  = 10 << 20
	formFieldImage = "image"
)

// ItemHandler provides HTTP handlers for menu items.
type ItemHandler struct {
	items *services.ItemService
	media *media.Store
}

// NewItemHandler constructs a handler with the provided dependencies.
// media may be nil; image uploads then answer 503.
func NewItemHandler(items *services.ItemService, media *media.Store) *ItemHandler {
	return &ItemHandler{
		items: items,
		media: media,
	}
}

// ItemRouter registers the /items routes: anonymous browsing plus the
// authenticated, ownership-scoped mutations.
func ItemRouter(r chi.Router, items *services.ItemService, mediaStore *media.Store, authMiddleware func(http.Handler) http.Handler) {
	handler := NewItemHandler(items, mediaStore)

	r.Get("/", handler.ListPublic)
	r.With(authMiddleware).Get("/mine", handler.ListMine)
	r.With(authMiddleware).Post("/", handler.Create)
	r.Route("/{itemID}", func(r chi.Router) {
		r.Get("/", handler.GetPublic)
		r.With(authMiddleware).Delete("/", handler.Delete)
		r.With(authMiddleware).Post("/image", handler.UploadImage)
	})
}

// ProductRouter registers the legacy /products alias kept for older
// clients: owned listing, create, partial update, and delete.
func ProductRouter(r chi.Router, items *services.ItemService, authMiddleware func(http.Handler) http.Handler) {
	handler := NewItemHandler(items, nil)

	r.Use(authMiddleware)
	r.Get("/", handler.ListMine)
	r.Post("/", handler.Create)
	r.Put("/{itemID}", handler.Update)
	r.Delete("/{itemID}", handler.Delete)
}

// MediaRouter registers the route that streams stored item images.
func MediaRouter(r chi.Router, items *services.ItemService, mediaStore *media.Store) {
	handler := NewItemHandler(items, mediaStore)

	r.Get("/*", handler.ServeImage)
}

// ListPublic returns items for anonymous browsing. The optional search
// query narrows by name substring, category by exact match; both are
// case-insensitive and combine with AND.
func (h *ItemHandler) ListPublic(w http.ResponseWriter, r *http.Request) {
	search := r.URL.Query().Get("search")
	category := r.URL.Query().Get("category")

	items, err := h.items.ListPublic(r.Context(), search, category)
	if err != nil {
		writeServiceError(w, err, "failed to list items")
		return
	}

	views := make([]PublicItemView, 0, len(items))
	for _, item := range items {
		views = append(views, publicView(item))
	}
	writeJSON(w, http.StatusOK, views)
}

func (h *ItemHandler) GetPublic(w http.ResponseWriter, r *http.Request) {
	id, err := parseItemID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	item, err := h.items.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, err, "failed to fetch item")
		return
	}

	writeJSON(w, http.StatusOK, publicView(item))
}

// ListMine returns the caller's items, newest first.
func (h *ItemHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	identity, err := identityFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	items, err := h.items.ListOwned(r.Context(), identity.UserID)
	if err != nil {
		writeServiceError(w, err, "failed to list items")
		return
	}

	views := make([]OwnedItemView, 0, len(items))
	for _, item := range items {
		views = append(views, ownedView(item))
	}
	writeJSON(w, http.StatusOK, views)
}

// Create validates the payload and persists a new item owned by the caller.
func (h *ItemHandler) Create(w http.ResponseWriter, r *http.Request) {
	identity, err := identityFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req ItemUpsertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	created, err := h.items.Create(r.Context(), req.createParams(), identity)
	if err != nil {
		writeServiceError(w, err, "failed to create item")
		return
	}

	writeJSON(w, http.StatusCreated, ownedView(created))
}

// Update applies a partial update to the caller's item. Absent fields are
// left untouched; providing none of them is a validation error.
func (h *ItemHandler) Update(w http.ResponseWriter, r *http.Request) {
	identity, err := identityFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id, err := parseItemID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req ItemUpsertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	updated, err := h.items.Update(r.Context(), id, identity.UserID, req.updateParams())
	if err != nil {
		writeServiceError(w, err, "failed to update item")
		return
	}

	writeJSON(w, http.StatusOK, ownedView(updated))
}

func (h *ItemHandler) Delete(w http.ResponseWriter, r *http.Request) {
	identity, err := identityFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id, err := parseItemID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.items.Delete(r.Context(), id, identity.UserID); err != nil {
		writeServiceError(w, err, "failed to delete item")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// UploadImage stores a picture for the caller's item and points the item's
// image URL at the serving route.
func (h *ItemHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	if h.media == nil {
		writeError(w, http.StatusServiceUnavailable, "image storage is not configured")
		return
	}

	identity, err := identityFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id, err := parseItemID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	// Ownership is settled before any bytes reach the bucket, so a
	// non-owner cannot plant objects in storage.
	if _, err := h.items.GetOwned(r.Context(), id, identity.UserID); err != nil {
		writeServiceError(w, err, "failed to load item")
		return
	}

	filename, data, contentType, err := parseImageUpload(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	key := fmt.Sprintf("items/%d/%s%s", id, uuid.NewString(), strings.ToLower(path.Ext(filename)))
	if err := h.media.Put(r.Context(), key, bytes.NewReader(data), int64(len(data)), contentType); err != nil {
		slog.Error("image upload failed", "item_id", id, "key", key, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to store image")
		return
	}

	updated, err := h.items.UpdateImage(r.Context(), id, identity.UserID, "/media/"+key)
	if err != nil {
		// The item vanished between the guard and the write; drop the
		// freshly stored object rather than orphan it.
		if delErr := h.media.Delete(r.Context(), key); delErr != nil {
			slog.Warn("orphaned image cleanup failed", "key", key, "error", delErr)
		}
		writeServiceError(w, err, "failed to update item")
		return
	}

	writeJSON(w, http.StatusOK, ownedView(updated))
}

// ServeImage streams a stored item image. The wildcard path is the object
// key assigned at upload time.
func (h *ItemHandler) ServeImage(w http.ResponseWriter, r *http.Request) {
	if h.media == nil {
		writeError(w, http.StatusServiceUnavailable, "image storage is not configured")
		return
	}

	key := chi.URLParam(r, "*")
	if !strings.HasPrefix(key, "items/") || strings.Contains(key, "..") {
		writeError(w, http.StatusBadRequest, "invalid image path")
		return
	}

	object, err := h.media.Get(r.Context(), key)
	if err != nil {
		writeError(w, http.StatusNotFound, "image not found")
		return
	}
	defer object.Close()

	contentType := mime.TypeByExtension(path.Ext(key))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "public, max-age=3600")
	if _, err := io.Copy(w, object); err != nil {
		slog.Warn("image stream interrupted", "key", key, "error", err)
	}
}

// PriceToken accepts a JSON number or a numeric string; older clients sent
// prices both ways. Validation of the value happens in the service.
type PriceToken string

func (p *PriceToken) UnmarshalJSON(data []byte) error {
	var asString string
	if err := json.Unmarshal(data, &asString); err == nil {
		*p = PriceToken(asString)
		return nil
	}
	var asNumber json.Number
	if err := json.Unmarshal(data, &asNumber); err != nil {
		return errors.New("invalid price")
	}
	*p = PriceToken(asNumber.String())
	return nil
}

// ItemUpsertRequest is the JSON payload for create and partial update.
// Fields left empty in an update are not applied.
type ItemUpsertRequest struct {
	Name          string     `json:"name"`
	Summary       string     `json:"summary"`
	Description   string     `json:"description"`
	Image         string     `json:"image"`
	Category      string     `json:"category"`
	Priority      string     `json:"priority"`
	Price         PriceToken `json:"price"`
	AvailableDate string     `json:"available_date"`
}

func (r ItemUpsertRequest) createParams() services.CreateItemParams {
	return services.CreateItemParams{
		Name:          r.Name,
		Summary:       r.Summary,
		Description:   r.Description,
		Image:         r.Image,
		Category:      r.Category,
		Priority:      r.Priority,
		Price:         string(r.Price),
		AvailableDate: r.AvailableDate,
	}
}

func (r ItemUpsertRequest) updateParams() services.UpdateItemParams {
	return services.UpdateItemParams{
		Name:          r.Name,
		Summary:       r.Summary,
		Description:   r.Description,
		Image:         r.Image,
		Category:      r.Category,
		Priority:      r.Priority,
		Price:         string(r.Price),
		AvailableDate: r.AvailableDate,
	}
}

// OwnedItemView is the response shape returned to the item's owner. The
// owner appears under both owner_id and the legacy user_id name so
// pre-rename clients keep working.
type OwnedItemView struct {
	ID            int       `json:"id"`
	Name          string    `json:"name"`
	Summary       string    `json:"summary"`
	Description   string    `json:"description"`
	Image         string    `json:"image"`
	Category      string    `json:"category"`
	Price         float64   `json:"price"`
	Priority      string    `json:"priority"`
	AvailableDate time.Time `json:"available_date"`
	OwnerID       int       `json:"owner_id"`
	UserID        int       `json:"user_id"`
	OwnerEmail    string    `json:"owner_email"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// PublicItemView is the response shape for anonymous browsing. It keeps
// owner attribution but drops the legacy owner duplicate.
type PublicItemView struct {
	ID            int       `json:"id"`
	Name          string    `json:"name"`
	Summary       string    `json:"summary"`
	Description   string    `json:"description"`
	Image         string    `json:"image"`
	Category      string    `json:"category"`
	Price         float64   `json:"price"`
	Priority      string    `json:"priority"`
	AvailableDate time.Time `json:"available_date"`
	OwnerID       int       `json:"owner_id"`
	OwnerEmail    string    `json:"owner_email"`
	CreatedAt     time.Time `json:"created_at"`
}

func ownedView(item types.Item) OwnedItemView {
	return OwnedItemView{
		ID:            item.ID,
		Name:          item.Name,
		Summary:       item.Summary,
		Description:   item.Description,
		Image:         item.Image,
		Category:      item.Category,
		Price:         item.Price,
		Priority:      item.Priority,
		AvailableDate: item.AvailableDate,
		OwnerID:       item.OwnerID,
		UserID:        item.OwnerID,
		OwnerEmail:    item.OwnerEmail,
		CreatedAt:     item.CreatedAt,
		UpdatedAt:     item.UpdatedAt,
	}
}

func publicView(item types.Item) PublicItemView {
	return PublicItemView{
		ID:            item.ID,
		Name:          item.Name,
		Summary:       item.Summary,
		Description:   item.Description,
		Image:         item.Image,
		Category:      item.Category,
		Price:         item.Price,
		Priority:      item.Priority,
		AvailableDate: item.AvailableDate,
		OwnerID:       item.OwnerID,
		OwnerEmail:    item.OwnerEmail,
		CreatedAt:     item.CreatedAt,
	}
}

func parseItemID(r *http.Request) (int, error) {
	raw := chi.URLParam(r, "itemID")
	id, err := strconv.Atoi(raw)
	if err != nil || id < 1 {
		return 0, errors.New("invalid item id")
	}
	return id, nil
}

func parseImageUpload(r *http.Request) (filename string, data []byte, contentType string, err error) {
	if err := r.ParseMultipartForm(maxImageMemory); err != nil {
		return "", nil, "", errors.New("invalid multipart form")
	}

	file, header, err := r.FormFile(formFieldImage)
	if err != nil {
		return "", nil, "", errors.New("image file is required")
	}
	defer file.Close()

	data, err = readFileLimited(file, maxImageBytes)
	if err != nil {
		return "", nil, "", err
	}

	contentType = http.DetectContentType(data)
	if !strings.HasPrefix(contentType, "image/") {
		return "", nil, "", errors.New("upload must be an image")
	}
	return header.Filename, data, contentType, nil
}

func readFileLimited(reader io.Reader, limit int64) ([]byte, error) {
	limited := io.LimitReader(reader, limit+1)
	data, err := io.ReadAll(limited)
	if err != nil {
		return nil, errors.New("failed to read upload")
	}
	if int64(len(data)) > limit {
		return nil, errors.New("uploaded file too large")
	}
	return data, nil
}
