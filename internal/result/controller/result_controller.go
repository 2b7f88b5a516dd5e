package controller

import (
	"time"

	"judgeresult/internal/result/model"
	"judgeresult/internal/result/repository"
	"judgeresult/internal/result/service"
	"judgeresult/internal/result/viewer"
	"judgeresult/pkg/utils/response"

	"github.com/gin-gonic/gin"
)

// ResultController serves result lookups and listings.
type ResultController struct {
	results *service.ResultService
	store   repository.ResultStore
}

// NewResultController creates a new ResultController. store is used to register new pending results.
func NewResultController(results *service.ResultService, store repository.ResultStore) *ResultController {
	return &ResultController{results: results, store: store}
}

// Get renders one result for the current viewer.
func (h *ResultController) Get(c *gin.Context) {
	id, err := parseID(c.Param("id"), "result id")
	if err != nil {
		response.Error(c, err)
		return
	}
	view, err := h.results.GetView(c.Request.Context(), id, viewer.FromGin(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, view)
}

// List renders one page of results.
func (h *ResultController) List(c *gin.Context) {
	filter, err := parseFilter(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	page, err := parsePage(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	out, err := h.results.ListViews(c.Request.Context(), filter, page, viewer.FromGin(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.SuccessWithPagination(c, out.Items, out.Total, out.Page, out.PageSize)
}

// Count returns the number of matching results.
func (h *ResultController) Count(c *gin.Context) {
	filter, err := parseFilter(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	n, err := h.results.Count(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, CountResponse{Count: n})
}

// Solved returns the problems with an accepted matching result.
func (h *ResultController) Solved(c *gin.Context) {
	filter, err := parseFilter(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	ids, err := h.results.SolvedProblemsAsync(c.Request.Context(), filter).Await(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, SolvedResponse{ProblemIDs: ids})
}

// Create registers a pending result for a new submission.
func (h *ResultController) Create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request parameters")
		return
	}
	submission := model.Submission{
		UserID:      req.UserID,
		Language:    req.Language,
		SubmittedAt: req.SubmittedAt,
		Scope:       model.StandaloneScope{ProblemID: req.ProblemID},
	}
	if req.ContestID != nil {
		submission.Scope = model.ContestScope{ContestID: *req.ContestID, ContestProblemID: req.ProblemID}
	}
	if submission.SubmittedAt.IsZero() {
		submission.SubmittedAt = time.Now().UTC()
	}
	r, err := h.store.Create(c.Request.Context(), submission)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, CreateResponse{ResultID: r.ID, Status: r.Status})
}

// CreateRequest registers a submission awaiting grading.
type CreateRequest struct {
	UserID      int64     `json:"user_id" binding:"required,gt=0"`
	ProblemID   int64     `json:"problem_id" binding:"required,gt=0"`
	ContestID   *int64    `json:"contest_id" binding:"omitempty,gt=0"`
	Language    string    `json:"language" binding:"required"`
	SubmittedAt time.Time `json:"submitted_at"`
}

type CreateResponse struct {
	ResultID int64        `json:"result_id"`
	Status   model.Status `json:"status"`
}

type CountResponse struct {
	Count int64 `json:"count"`
}

type SolvedResponse struct {
	ProblemIDs []int64 `json:"problem_ids"`
}
