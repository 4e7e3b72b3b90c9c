package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/linkfield/clientd/internal/gateway"
	"github.com/linkfield/clientd/internal/optimistic"
	"github.com/linkfield/clientd/internal/viewcache"
	appErrors "github.com/linkfield/clientd/pkg/errors"
	"github.com/linkfield/clientd/pkg/response"
)

// ActionGateway is the slice of the gateway client used by optimistic
// actions. *gateway.Client satisfies it.
type ActionGateway interface {
	FollowCompany(ctx context.Context, companyID string) (json.RawMessage, error)
	JoinGroup(ctx context.Context, groupID string) (json.RawMessage, error)
	ApplyToJob(ctx context.Context, jobID string) (json.RawMessage, error)
}

// ActionHandler performs optimistic actions: local view state changes
// immediately, the gateway call runs after, and rejected calls roll the
// view back.
type ActionHandler struct {
	coordinator *optimistic.Coordinator
	views       *viewcache.Views
	gateway     ActionGateway
}

// NewActionHandler constructs an action handler.
func NewActionHandler(coordinator *optimistic.Coordinator, views *viewcache.Views, gw ActionGateway) (*ActionHandler, error) {
	if coordinator == nil {
		return nil, errors.New("handlers: action coordinator is required")
	}
	if views == nil {
		return nil, errors.New("handlers: views are required")
	}
	if gw == nil {
		return nil, errors.New("handlers: action gateway is required")
	}
	return &ActionHandler{coordinator: coordinator, views: views, gateway: gw}, nil
}

type actionResult struct {
	TargetType string            `json:"target_type"`
	TargetID   string            `json:"target_id"`
	Status     optimistic.Status `json:"status"`
	Result     json.RawMessage   `json:"result,omitempty"`
}

// List returns the recorded actions, newest first. Passing pending=true
// restricts the listing to actions still awaiting the gateway, and limit
// caps how many records come back.
func (h *ActionHandler) List(c *gin.Context) {
	var records []optimistic.PendingAction
	if c.Query("pending") == "true" {
		records = h.coordinator.Pending()
	} else {
		records = h.coordinator.Recent()
	}

	total := len(records)
	if limit := parseIntQuery(c, "limit", 0); limit > 0 && limit < len(records) {
		records = records[:limit]
	}
	response.SuccessWithMeta(c, http.StatusOK, records, &response.Meta{Total: total})
}

// FollowCompany optimistically bumps the followed-company count and asks the
// gateway to record the follow.
func (h *ActionHandler) FollowCompany(c *gin.Context) {
	companyID, ok := requiredParam(c, "id")
	if !ok {
		return
	}

	mutation := h.views.FollowCompanyMutation()
	h.perform(c, optimistic.Action{
		TargetType:   "company",
		TargetID:     companyID,
		Apply:        mutation.Apply,
		Rollback:     mutation.Rollback,
		Request:      func(ctx context.Context) (json.RawMessage, error) { return h.gateway.FollowCompany(ctx, companyID) },
		SuccessTitle: "Now following",
		FailureTitle: "Could not follow company",
	})
}

// JoinGroup optimistically marks the group joined and asks the gateway to
// add the membership.
func (h *ActionHandler) JoinGroup(c *gin.Context) {
	groupID, ok := requiredParam(c, "id")
	if !ok {
		return
	}

	mutation := h.views.JoinGroupMutation(groupID)
	h.perform(c, optimistic.Action{
		TargetType:   "group",
		TargetID:     groupID,
		Apply:        mutation.Apply,
		Rollback:     mutation.Rollback,
		Request:      func(ctx context.Context) (json.RawMessage, error) { return h.gateway.JoinGroup(ctx, groupID) },
		SuccessTitle: "Joined group",
		FailureTitle: "Could not join group",
	})
}

// ApplyToJob optimistically marks the job applied and submits the
// application through the gateway.
func (h *ActionHandler) ApplyToJob(c *gin.Context) {
	jobID, ok := requiredParam(c, "id")
	if !ok {
		return
	}

	mutation := h.views.ApplyToJobMutation(jobID)
	h.perform(c, optimistic.Action{
		TargetType:     "job",
		TargetID:       jobID,
		Apply:          mutation.Apply,
		Rollback:       mutation.Rollback,
		Request:        func(ctx context.Context) (json.RawMessage, error) { return h.gateway.ApplyToJob(ctx, jobID) },
		SuccessTitle:   "Application sent",
		SuccessMessage: "The employer has received your application.",
		FailureTitle:   "Application failed",
	})
}

func (h *ActionHandler) perform(c *gin.Context, action optimistic.Action) {
	result, err := h.coordinator.Perform(requestContext(c), action)
	if err != nil {
		response.Error(c, performError(err))
		return
	}

	response.Success(c, http.StatusOK, actionResult{
		TargetType: action.TargetType,
		TargetID:   action.TargetID,
		Status:     optimistic.StatusConfirmed,
		Result:     result,
	})
}

// performError maps coordinator failures onto the API error surface. A
// second action against a busy target conflicts; everything else reached
// the gateway and failed there.
func performError(err error) error {
	if errors.Is(err, optimistic.ErrActionInFlight) {
		return appErrors.ErrActionInFlight
	}
	var apiErr *gateway.APIError
	if errors.As(err, &apiErr) {
		return appErrors.ErrUpstream.WithMessage(apiErr.UserMessage()).WithInternal(err)
	}
	return appErrors.ErrUpstream.WithInternal(err)
}
