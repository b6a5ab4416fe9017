// Category HTTP handlers.
//
//   - POST /categories            (create)
//   - GET  /categories            (list; reconciles statuses first)
//   - POST /categories/reconcile  (reconcile now, report changed rows)
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/leadops-backend/internal/domain"
)

// CreateCategoryRequest is the JSON payload for creating a category.
type CreateCategoryRequest struct {
	Name   string `json:"name"   example:"Plumbers"`
	Status string `json:"status" example:"inactive"`
}

// CategoryResponse wraps one category.
type CategoryResponse struct {
	Success bool             `json:"success" example:"true"`
	Data    *domain.Category `json:"data"`
}

// ListCategoriesResponse wraps all categories.
type ListCategoriesResponse struct {
	Success bool              `json:"success" example:"true"`
	Data    []domain.Category `json:"data"`
}

// ReconcileResponse reports how many categories changed status.
type ReconcileResponse struct {
	Success bool `json:"success" example:"true"`
	Changed int  `json:"changed" example:"2"`
}

// CreateCategory godoc
// @ID          createCategory
// @Summary     Create a category
// @Tags        Categories
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       body  body  handlers.CreateCategoryRequest  true  "Category"
// @Success     201  {object}  handlers.CategoryResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Validation error"
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Failure     409  {object}  handlers.ErrorResponse  "Name already exists"
// @Router      /categories [post]
func (h *Handlers) CreateCategory(c *gin.Context) {
	var req CreateCategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	cat, err := h.Categories.Create(c.Request.Context(), req.Name, req.Status)
	if err != nil {
		h.failErr(c, err)
		return
	}
	ok(c, http.StatusCreated, CategoryResponse{Success: true, Data: cat})
}

// ListCategories godoc
// @ID          listCategories
// @Summary     List categories
// @Description Reconciles category statuses from their zip requests, then lists categories by name.
// @Tags        Categories
// @Produce     json
// @Security    BearerAuth
// @Param       status  query  string  false  "Category status"  Enums(active, inactive)
// @Success     200  {object}  handlers.ListCategoriesResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Unknown status"
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Router      /categories [get]
func (h *Handlers) ListCategories(c *gin.Context) {
	cats, err := h.Categories.List(c.Request.Context(), c.Query("status"))
	if err != nil {
		h.failErr(c, err)
		return
	}
	ok(c, http.StatusOK, ListCategoriesResponse{Success: true, Data: cats})
}

// ReconcileCategories godoc
// @ID          reconcileCategories
// @Summary     Reconcile category statuses now
// @Tags        Categories
// @Produce     json
// @Security    BearerAuth
// @Success     200  {object}  handlers.ReconcileResponse
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /categories/reconcile [post]
func (h *Handlers) ReconcileCategories(c *gin.Context) {
	n, err := h.Categories.Reconcile(c.Request.Context())
	if err != nil {
		h.failErr(c, err)
		return
	}
	ok(c, http.StatusOK, ReconcileResponse{Success: true, Changed: n})
}
