package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/linkfield/clientd/internal/gateway"
	"github.com/linkfield/clientd/internal/viewcache"
	appErrors "github.com/linkfield/clientd/pkg/errors"
	"github.com/linkfield/clientd/pkg/response"
)

// ViewHandler serves the cached read models backing the main UI views.
type ViewHandler struct {
	views *viewcache.Views
}

// NewViewHandler constructs a view handler.
func NewViewHandler(views *viewcache.Views) (*ViewHandler, error) {
	if views == nil {
		return nil, errors.New("handlers: views are required")
	}
	return &ViewHandler{views: views}, nil
}

// Dashboard returns the dashboard summary, fetching it on a cold cache.
func (h *ViewHandler) Dashboard(c *gin.Context) {
	summary, err := h.views.Dashboard.Get(requestContext(c))
	if err != nil {
		response.Error(c, fetchError(err))
		return
	}
	response.Success(c, http.StatusOK, summary)
}

// Jobs returns the job board listing.
func (h *ViewHandler) Jobs(c *gin.Context) {
	jobs, err := h.views.Jobs.Get(requestContext(c))
	if err != nil {
		response.Error(c, fetchError(err))
		return
	}
	response.SuccessWithMeta(c, http.StatusOK, jobs, &response.Meta{Total: len(jobs)})
}

// Groups returns the peer group listing.
func (h *ViewHandler) Groups(c *gin.Context) {
	groups, err := h.views.Groups.Get(requestContext(c))
	if err != nil {
		response.Error(c, fetchError(err))
		return
	}
	response.SuccessWithMeta(c, http.StatusOK, groups, &response.Meta{Total: len(groups)})
}

// fetchError maps a view fetch failure to the API error surface. Gateway
// rejections keep their user-facing message; everything else is a generic
// upstream failure.
func fetchError(err error) error {
	var apiErr *gateway.APIError
	if errors.As(err, &apiErr) {
		return appErrors.ErrUpstream.WithMessage(apiErr.UserMessage()).WithInternal(err)
	}
	return appErrors.ErrUpstream.WithInternal(err)
}
