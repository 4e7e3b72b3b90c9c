package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/linkfield/clientd/internal/channel"
	appErrors "github.com/linkfield/clientd/pkg/errors"
	"github.com/linkfield/clientd/pkg/response"
)

// ChannelHandler exposes realtime channel state and controls.
type ChannelHandler struct {
	manager *channel.Manager
}

// NewChannelHandler constructs a channel handler.
func NewChannelHandler(manager *channel.Manager) (*ChannelHandler, error) {
	if manager == nil {
		return nil, errors.New("handlers: channel manager is required")
	}
	return &ChannelHandler{manager: manager}, nil
}

// List returns every live topic connection with its status.
func (h *ChannelHandler) List(c *gin.Context) {
	infos := h.manager.Infos()
	response.SuccessWithMeta(c, http.StatusOK, infos, &response.Meta{Total: len(infos)})
}

// Connect opens the channel for a topic. Connecting an already open topic is
// a no-op and still succeeds.
func (h *ChannelHandler) Connect(c *gin.Context) {
	topic, ok := requiredParam(c, "topic")
	if !ok {
		return
	}

	if err := h.manager.Connect(topic); err != nil {
		response.Error(c, appErrors.NewBadRequest(err.Error()))
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"topic":  topic,
		"status": h.manager.Status(topic),
	})
}

// Disconnect closes the channel for a topic. Unknown topics succeed so the
// UI can retire a channel without racing its teardown.
func (h *ChannelHandler) Disconnect(c *gin.Context) {
	topic, ok := requiredParam(c, "topic")
	if !ok {
		return
	}

	if err := h.manager.Disconnect(topic); err != nil {
		response.Error(c, appErrors.NewBadRequest(err.Error()))
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"topic":  topic,
		"status": channel.StatusDisconnected,
	})
}
