package controller

import (
	"strings"

	"judgeresult/internal/result/model"
	"judgeresult/internal/result/queue"
	"judgeresult/pkg/utils/contextkey"
	"judgeresult/pkg/utils/response"

	"github.com/gin-gonic/gin"
)

// QueueController exposes the grading queue to remote workers.
type QueueController struct {
	queue *queue.Queue
}

func NewQueueController(q *queue.Queue) *QueueController {
	return &QueueController{queue: q}
}

// Claim leases the oldest pending result. data is null when nothing is pending.
func (h *QueueController) Claim(c *gin.Context) {
	var req ClaimRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, "Invalid request parameters")
			return
		}
	}
	owner := strings.TrimSpace(req.Owner)
	if owner == "" {
		if id, ok := c.Request.Context().Value(contextkey.WorkerID).(string); ok {
			owner = id
		}
	}
	claim, err := h.queue.ClaimNextPending(c.Request.Context(), owner)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, claim)
}

// Renew extends the lease identified by the token path parameter.
func (h *QueueController) Renew(c *gin.Context) {
	var req RenewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request parameters")
		return
	}
	claim := &model.Claim{ResultID: req.ResultID, Token: c.Param("token")}
	if err := h.queue.Renew(c.Request.Context(), claim); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, RenewResponse{ResultID: claim.ResultID, LeaseUntil: claim.LeaseUntil.Unix()})
}

// Complete records the outcome of a claimed result.
func (h *QueueController) Complete(c *gin.Context) {
	var req CompleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request parameters")
		return
	}
	claim := &model.Claim{ResultID: req.ResultID, Token: c.Param("token"), Attempt: req.Attempt}
	r, err := h.queue.Complete(c.Request.Context(), claim, req.Outcome)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, CompleteResponse{ResultID: r.ID, Status: r.Status})
}

type ClaimRequest struct {
	Owner string `json:"owner"`
}

type RenewRequest struct {
	ResultID int64 `json:"result_id" binding:"required,gt=0"`
}

type RenewResponse struct {
	ResultID   int64 `json:"result_id"`
	LeaseUntil int64 `json:"lease_until"`
}

type CompleteRequest struct {
	ResultID int64         `json:"result_id" binding:"required,gt=0"`
	Attempt  int           `json:"attempt"`
	Outcome  model.Outcome `json:"outcome"`
}

type CompleteResponse struct {
	ResultID int64        `json:"result_id"`
	Status   model.Status `json:"status"`
}
