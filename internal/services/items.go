package services

import (
	"context"
	"encoding/json"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/menucraft/apiserver/internal/auth"
	"github.com/menucraft/apiserver/types"
)

// DefaultImageURL is assigned to items created without a picture.
const DefaultImageURL = "https://placehold.co/640x480?text=menucraft"

// ItemRepository defines persistence operations for menu items.
type ItemRepository interface {
	List(ctx context.Context, search, category string) ([]types.Item, error)
	ListByOwner(ctx context.Context, ownerID int) ([]types.Item, error)
	Get(ctx context.Context, id int) (types.Item, error)
	Create(ctx context.Context, item types.Item) (types.Item, error)
	Update(ctx context.Context, item types.Item) (types.Item, error)
	Delete(ctx context.Context, id int) error
}

// EventPublisher pushes menu-change notifications to the event bus.
type EventPublisher interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
}

// ItemEvent is the payload published after a successful mutation.
type ItemEvent struct {
	Action  string    `json:"action"`
	ItemID  int       `json:"item_id"`
	OwnerID int       `json:"owner_id"`
	Name    string    `json:"name"`
	At      time.Time `json:"at"`
}

// CreateItemParams carries the parsed create request. Price travels as the
// raw request token so a single rule covers numbers and number-like strings.
type CreateItemParams struct {
	Name          string
	Summary       string
	Description   string
	Image         string
	Category      string
	Priority      string
	Price         string
	AvailableDate string
}

// UpdateItemParams carries a partial update. Empty fields were not provided;
// the engine leaves them untouched.
type UpdateItemParams struct {
	Name          string
	Summary       string
	Description   string
	Image         string
	Category      string
	Priority      string
	Price         string
	AvailableDate string
}

// ItemService encapsulates the menu-item use-cases: public browsing and
// ownership-scoped mutation.
type ItemService struct {
	repo    ItemRepository
	events  EventPublisher
	channel string
}

// NewItemService constructs the engine. events may be nil, in which case
// mutations are not announced anywhere.
func NewItemService(repo ItemRepository, events EventPublisher, eventsChannel string) *ItemService {
	return &ItemService{
		repo:    repo,
		events:  events,
		channel: eventsChannel,
	}
}

// ListPublic returns items for anonymous browsing, newest first. search
// narrows by case-insensitive substring on name, category by
// case-insensitive exact match; both combine with AND.
func (s *ItemService) ListPublic(ctx context.Context, search, category string) ([]types.Item, error) {
	return s.repo.List(ctx, strings.TrimSpace(search), strings.TrimSpace(category))
}

func (s *ItemService) Get(ctx context.Context, id int) (types.Item, error) {
	return s.repo.Get(ctx, id)
}

// ListOwned returns the caller's items, newest first. The resolved owner id
// is populated on every row regardless of which legacy column stored it.
func (s *ItemService) ListOwned(ctx context.Context, ownerID int) ([]types.Item, error) {
	return s.repo.ListByOwner(ctx, ownerID)
}

// Create validates the request, applies defaults, and persists a new item
// stamped with the caller's identity. Owner fields always come from the
// verified identity, never from the request body.
func (s *ItemService) Create(ctx context.Context, params CreateItemParams, caller auth.Identity) (types.Item, error) {
	name := strings.TrimSpace(params.Name)
	summary := strings.TrimSpace(params.Summary)
	description := strings.TrimSpace(params.Description)
	category := strings.TrimSpace(params.Category)
	if name == "" || summary == "" || description == "" || category == "" {
		return types.Item{}, invalid("name, summary, description, and category are required")
	}
	if strings.TrimSpace(params.Price) == "" {
		return types.Item{}, invalid("price is required")
	}
	price, err := parsePrice(params.Price)
	if err != nil {
		return types.Item{}, err
	}

	image := strings.TrimSpace(params.Image)
	if image == "" {
		image = DefaultImageURL
	}

	priority := strings.ToLower(strings.TrimSpace(params.Priority))
	if priority == "" {
		priority = types.PriorityMedium
	}
	if !types.ValidPriority(priority) {
		return types.Item{}, invalid("priority must be one of low, medium, or high")
	}

	availableDate := time.Now()
	if raw := strings.TrimSpace(params.AvailableDate); raw != "" {
		availableDate, err = parseAvailableDate(raw)
		if err != nil {
			return types.Item{}, err
		}
	}

	item, err := s.repo.Create(ctx, types.Item{
		Name:          name,
		Summary:       summary,
		Description:   description,
		Image:         image,
		Category:      category,
		Price:         price,
		Priority:      priority,
		AvailableDate: availableDate,
		OwnerID:       caller.UserID,
		OwnerEmail:    caller.Email,
	})
	if err != nil {
		return types.Item{}, err
	}

	s.publish(ctx, "created", item)
	return item, nil
}

// GetOwned returns the caller's item, rejecting missing ids and foreign
// owners before the caller causes any side effect.
func (s *ItemService) GetOwned(ctx context.Context, id, callerID int) (types.Item, error) {
	item, err := s.repo.Get(ctx, id)
	if err != nil {
		return types.Item{}, err
	}
	if !item.OwnedBy(callerID) {
		return types.Item{}, ErrForbidden
	}
	return item, nil
}

// Update applies the fields present in the request to the caller's item.
// Ownership is checked before anything is written; owner fields are
// immutable. Submitting no recognizable change is a validation error.
func (s *ItemService) Update(ctx context.Context, id, callerID int, params UpdateItemParams) (types.Item, error) {
	item, err := s.GetOwned(ctx, id, callerID)
	if err != nil {
		return types.Item{}, err
	}

	changed := 0
	if v := strings.TrimSpace(params.Name); v != "" {
		item.Name = v
		changed++
	}
	if v := strings.TrimSpace(params.Summary); v != "" {
		item.Summary = v
		changed++
	}
	if v := strings.TrimSpace(params.Description); v != "" {
		item.Description = v
		changed++
	}
	if v := strings.TrimSpace(params.Image); v != "" {
		item.Image = v
		changed++
	}
	if v := strings.TrimSpace(params.Category); v != "" {
		item.Category = v
		changed++
	}
	if v := strings.ToLower(strings.TrimSpace(params.Priority)); v != "" {
		if !types.ValidPriority(v) {
			return types.Item{}, invalid("priority must be one of low, medium, or high")
		}
		item.Priority = v
		changed++
	}
	if v := strings.TrimSpace(params.AvailableDate); v != "" {
		date, err := parseAvailableDate(v)
		if err != nil {
			return types.Item{}, err
		}
		item.AvailableDate = date
		changed++
	}
	if v := strings.TrimSpace(params.Price); v != "" {
		price, err := parsePrice(v)
		if err != nil {
			return types.Item{}, err
		}
		item.Price = price
		changed++
	}
	if changed == 0 {
		return types.Item{}, invalid("no changes provided")
	}

	updated, err := s.repo.Update(ctx, item)
	if err != nil {
		return types.Item{}, err
	}

	s.publish(ctx, "updated", updated)
	return updated, nil
}

// UpdateImage points the caller's item at a newly stored picture. Used by
// the image-upload boundary after the object has been written.
func (s *ItemService) UpdateImage(ctx context.Context, id, callerID int, imageURL string) (types.Item, error) {
	item, err := s.GetOwned(ctx, id, callerID)
	if err != nil {
		return types.Item{}, err
	}

	item.Image = imageURL
	updated, err := s.repo.Update(ctx, item)
	if err != nil {
		return types.Item{}, err
	}

	s.publish(ctx, "updated", updated)
	return updated, nil
}

// Delete removes the caller's item. Deleting an already-removed id reports
// not-found rather than succeeding silently.
func (s *ItemService) Delete(ctx context.Context, id, callerID int) error {
	item, err := s.GetOwned(ctx, id, callerID)
	if err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, item.ID); err != nil {
		return err
	}

	s.publish(ctx, "deleted", item)
	return nil
}

// publish announces a mutation on the menu-event channel. Failures are
// logged, never surfaced: the write already happened.
func (s *ItemService) publish(ctx context.Context, action string, item types.Item) {
	if s.events == nil {
		return
	}

	payload, err := json.Marshal(ItemEvent{
		Action:  action,
		ItemID:  item.ID,
		OwnerID: item.OwnerID,
		Name:    item.Name,
		At:      time.Now(),
	})
	if err != nil {
		slog.Warn("menu event marshal failed", "action", action, "item_id", item.ID, "error", err)
		return
	}

	if _, err := s.events.Publish(ctx, s.channel, payload, map[string]string{"action": action}); err != nil {
		slog.Warn("menu event publish failed", "action", action, "item_id", item.ID, "error", err)
	}
}

// parsePrice enforces the one price rule: the token must parse as a
// non-negative number. Zero is a valid price.
func parsePrice(raw string) (float64, error) {
	price, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || math.IsNaN(price) || math.IsInf(price, 0) || price < 0 {
		return 0, invalid("price must be a non-negative number")
	}
	return price, nil
}

// parseAvailableDate accepts an RFC 3339 timestamp or a bare date.
func parseAvailableDate(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return t, nil
	}
	return time.Time{}, invalid("available_date must be an RFC 3339 timestamp")
}
