package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/linkfield/clientd/internal/notify"
	appErrors "github.com/linkfield/clientd/pkg/errors"
	"github.com/linkfield/clientd/pkg/response"
)

// NotificationHandler exposes the notification queue to the UI shell.
type NotificationHandler struct {
	store *notify.Store
}

// NewNotificationHandler constructs a notification handler.
func NewNotificationHandler(store *notify.Store) (*NotificationHandler, error) {
	if store == nil {
		return nil, errors.New("handlers: notification store is required")
	}
	return &NotificationHandler{store: store}, nil
}

// NotificationDTO is the wire form of a notification.
type NotificationDTO struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	Title       string    `json:"title"`
	Message     string    `json:"message,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	Read        bool      `json:"read"`
	AutoDismiss bool      `json:"auto_dismiss"`
	DurationMS  int64     `json:"duration_ms"`
}

func toNotificationDTO(n notify.Notification) NotificationDTO {
	return NotificationDTO{
		ID:          n.ID,
		Type:        string(n.Type),
		Title:       n.Title,
		Message:     n.Message,
		CreatedAt:   n.CreatedAt,
		Read:        n.Read,
		AutoDismiss: n.AutoDismiss,
		DurationMS:  n.Duration.Milliseconds(),
	}
}

// List returns the queue newest first along with total and unread counts.
func (h *NotificationHandler) List(c *gin.Context) {
	items := h.store.List()
	dtos := make([]NotificationDTO, 0, len(items))
	for _, item := range items {
		dtos = append(dtos, toNotificationDTO(item))
	}

	response.SuccessWithMeta(c, http.StatusOK, dtos, &response.Meta{
		Total:  len(dtos),
		Unread: h.store.Unread(),
	})
}

type createNotificationRequest struct {
	Type        string `json:"type" validate:"omitempty,oneof=success error warning info"`
	Title       string `json:"title" validate:"required,max=200"`
	Message     string `json:"message" validate:"max=2000"`
	AutoDismiss *bool  `json:"auto_dismiss"`
	DurationMS  *int64 `json:"duration_ms" validate:"omitempty,gte=0"`
}

// Create enqueues a notification on behalf of the UI.
func (h *NotificationHandler) Create(c *gin.Context) {
	var payload createNotificationRequest
	if !bindAndValidate(c, &payload) {
		return
	}

	input := notify.Input{
		Type:        notify.Type(payload.Type),
		Title:       payload.Title,
		Message:     payload.Message,
		AutoDismiss: payload.AutoDismiss,
	}
	if payload.DurationMS != nil {
		duration := time.Duration(*payload.DurationMS) * time.Millisecond
		input.Duration = &duration
	}

	created, err := h.store.Add(input)
	if err != nil {
		response.Error(c, appErrors.NewBadRequest(err.Error()))
		return
	}

	response.Success(c, http.StatusCreated, toNotificationDTO(created))
}

// MarkRead flags one notification as read and returns its updated form.
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	id, ok := requiredParam(c, "id")
	if !ok {
		return
	}

	if !h.store.MarkRead(id) {
		response.Error(c, appErrors.ErrNotFound.WithMessage("notification not found"))
		return
	}

	updated, found := h.store.Get(id)
	if !found {
		response.Error(c, appErrors.ErrNotFound.WithMessage("notification not found"))
		return
	}

	response.Success(c, http.StatusOK, toNotificationDTO(updated))
}

// MarkAllRead marks every notification read.
func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	updated := h.store.MarkAllRead()
	response.Success(c, http.StatusOK, gin.H{"updated": updated})
}

// Delete dismisses one notification.
func (h *NotificationHandler) Delete(c *gin.Context) {
	id, ok := requiredParam(c, "id")
	if !ok {
		return
	}

	if !h.store.Remove(id) {
		response.Error(c, appErrors.ErrNotFound.WithMessage("notification not found"))
		return
	}

	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}

// ClearAll empties the queue.
func (h *NotificationHandler) ClearAll(c *gin.Context) {
	cleared := h.store.ClearAll()
	response.Success(c, http.StatusOK, gin.H{"cleared": cleared})
}
