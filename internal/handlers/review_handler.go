package handlers

import (
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/sjperalta/fintera-ledger/internal/middleware"
	"github.com/sjperalta/fintera-ledger/internal/services"
)

type ReviewHandler struct {
	reviewService *services.ReviewService
}

func NewReviewHandler(reviewService *services.ReviewService) *ReviewHandler {
	return &ReviewHandler{reviewService: reviewService}
}

type resubmitRequest struct {
	Comments string `json:"comments"`
}

type assignRequest struct {
	ReviewerID uint `json:"reviewer_id" binding:"required"`
}

type checklistRequest struct {
	Items map[string]bool `json:"items" binding:"required"`
}

// Pending lists open reviews. Reviewers see their own queue plus unassigned
// reviews; other roles may filter by reviewer_id or see everything.
// @Summary Pending Reviews
// @Tags Reviews
// @Param reviewer_id query int false "Reviewer"
// @Router /reviews/pending [get]
func (h *ReviewHandler) Pending(c *gin.Context) {
	var reviewerID *uint
	if raw := c.Query("reviewer_id"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid reviewer_id"})
			return
		}
		rid := uint(id)
		reviewerID = &rid
	} else if middleware.GetUserRole(c) == middleware.RoleReviewer {
		rid := middleware.GetUserID(c)
		reviewerID = &rid
	}

	reviews, err := h.reviewService.GetPendingReviews(c.Request.Context(), reviewerID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reviews": reviews})
}

// @Summary Get Review
// @Tags Reviews
// @Router /reviews/{review_id} [get]
func (h *ReviewHandler) Show(c *gin.Context) {
	id, ok := paramID(c, "review_id")
	if !ok {
		return
	}
	review, err := h.reviewService.FindByID(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"review": review})
}

// @Summary Review history
// @Tags Reviews
// @Router /reviews/{review_id}/history [get]
func (h *ReviewHandler) History(c *gin.Context) {
	id, ok := paramID(c, "review_id")
	if !ok {
		return
	}
	evts, err := h.reviewService.History(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": evts})
}

// @Summary Decide a Review
// @Tags Reviews
// @Router /reviews/{review_id}/decision [put]
func (h *ReviewHandler) Decide(c *gin.Context) {
	id, ok := paramID(c, "review_id")
	if !ok {
		return
	}
	var d services.ReviewDecision
	if err := BindNestedOrFlat(c, "review", &d); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	review, err := h.reviewService.SubmitReviewDecision(c.Request.Context(), middleware.GetUserID(c), id, d)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"review": review})
}

// @Summary Resubmit a Review after revision
// @Tags Reviews
// @Router /reviews/{review_id}/resubmit [put]
func (h *ReviewHandler) Resubmit(c *gin.Context) {
	id, ok := paramID(c, "review_id")
	if !ok {
		return
	}
	var req resubmitRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
	}
	review, err := h.reviewService.Resubmit(c.Request.Context(), middleware.GetUserID(c), id, req.Comments)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"review": review})
}

// @Summary Assign a Review
// @Tags Reviews
// @Router /reviews/{review_id}/assign [put]
func (h *ReviewHandler) Assign(c *gin.Context) {
	id, ok := paramID(c, "review_id")
	if !ok {
		return
	}
	var req assignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "reviewer_id is required"})
		return
	}
	review, err := h.reviewService.Assign(c.Request.Context(), middleware.GetUserID(c), id, req.ReviewerID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"review": review})
}

// @Summary Update Review checklist
// @Tags Reviews
// @Router /reviews/{review_id}/checklist [put]
func (h *ReviewHandler) Checklist(c *gin.Context) {
	id, ok := paramID(c, "review_id")
	if !ok {
		return
	}
	var req checklistRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "items are required"})
		return
	}
	review, err := h.reviewService.UpdateChecklist(c.Request.Context(), id, req.Items)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"review": review})
}

// Upload attaches a supporting document (multipart "document" plus a
// "type" field naming which required document it satisfies)
// @Summary Upload supporting document
// @Tags Reviews
// @Accept multipart/form-data
// @Router /reviews/{review_id}/documents [post]
func (h *ReviewHandler) Upload(c *gin.Context) {
	id, ok := paramID(c, "review_id")
	if !ok {
		return
	}
	file, header, err := c.Request.FormFile("document")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "document is required"})
		return
	}
	defer file.Close()

	review, err := h.reviewService.AttachDocument(c.Request.Context(), middleware.GetUserID(c), id, services.DocumentUpload{
		Type:        c.PostForm("type"),
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Body:        file,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"review": review})
}

// @Summary Download supporting document
// @Tags Reviews
// @Router /reviews/{review_id}/documents/{index} [get]
func (h *ReviewHandler) Download(c *gin.Context) {
	id, ok := paramID(c, "review_id")
	if !ok {
		return
	}
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil || index < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid index"})
		return
	}
	body, doc, err := h.reviewService.OpenDocument(c.Request.Context(), id, index)
	if err != nil {
		respondError(c, err)
		return
	}
	defer body.Close()

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", doc.Filename))
	c.Header("Content-Type", doc.ContentType)
	c.Status(http.StatusOK)
	_, _ = io.Copy(c.Writer, body)
}
