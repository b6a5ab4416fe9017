// Zip-request HTTP handlers.
//
//   - POST   /zip-requests              (create; Idempotency-Key aware)
//   - GET    /zip-requests              (list, paginated, weak ETag)
//   - PATCH  /zip-requests/{id}/status  (operator or scraper callback)
//   - DELETE /zip-requests/{id}
//
// Idempotency:
// A retried create carrying the same Idempotency-Key is detected by
// middleware.IdempotencyValidator. The handler then returns the stored zip
// request with `Idempotency-Replayed: true` and does not fire the workflow
// again.
package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/leadops-backend/internal/domain"
	"github.com/tbourn/leadops-backend/internal/http/middleware"
	"github.com/tbourn/leadops-backend/internal/repo"
	"github.com/tbourn/leadops-backend/internal/services"
)

// CreateZipRequestRequest is the JSON payload for queuing a zip code.
// NewCategoryName wins over CategoryID when both are sent.
type CreateZipRequestRequest struct {
	ZipCode         string  `json:"zipCode"         example:"10001"`
	CategoryID      *string `json:"categoryId"      example:"141add05-4415-4938-b5a1-17e0d3171aff"`
	NewCategoryName *string `json:"newCategoryName" example:"Plumbers"`
}

// UpdateZipStatusRequest sets a zip request's status.
type UpdateZipStatusRequest struct {
	Status string `json:"status" example:"processing"`
}

// ZipRequestResponse wraps one zip request.
type ZipRequestResponse struct {
	Success bool               `json:"success" example:"true"`
	Data    *domain.ZipRequest `json:"data"`
}

// ListZipRequestsResponse is a page of zip requests.
type ListZipRequestsResponse struct {
	Success bool                `json:"success" example:"true"`
	Data    []domain.ZipRequest `json:"data"`
	ListMeta
}

// CreateZipRequest godoc
// @ID          createZipRequest
// @Summary     Queue a zip code for scraping
// @Description Stores a pending zip request, reconciles category statuses and triggers the external workflow. Supports idempotent retries via Idempotency-Key.
// @Tags        ZipRequests
// @Accept      json
// @Produce     json
// @Security    BearerAuth
//
// @Param       Idempotency-Key  header  string  false  "Idempotency key for safe retries"  example(7a8d9f4c-1b2a-4c3d-8e9f-0123456789ab)
// @Param       body             body    handlers.CreateZipRequestRequest  true  "Zip request"
//
// @Success     201  {object}  handlers.ZipRequestResponse
// @Header      201  {string}  Idempotency-Replayed  "true when served from a previous identical request"
// @Failure     400  {object}  handlers.ErrorResponse  "Validation error"
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Failure     404  {object}  handlers.ErrorResponse  "Category not found"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /zip-requests [post]
func (h *Handlers) CreateZipRequest(c *gin.Context) {
	ctx := c.Request.Context()

	if rec, found := middleware.ReplayResource(c); found {
		if prev, err := h.Zips.Get(ctx, rec.ResourceID); err == nil {
			c.Header("Idempotency-Replayed", "true")
			ok(c, rec.Status, ZipRequestResponse{Success: true, Data: prev})
			return
		}
		// The recorded resource is gone; treat the request as new.
	}

	var req CreateZipRequestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	z, err := h.Zips.Create(ctx, services.ZipRequestInput{
		ZipCode:         req.ZipCode,
		CategoryID:      req.CategoryID,
		NewCategoryName: req.NewCategoryName,
	})
	if err != nil {
		h.failErr(c, err)
		return
	}

	if key, present := middleware.GetIdempotencyKey(c); present && h.DB != nil {
		_, err := repo.CreateIdempotency(ctx, h.DB, middleware.IdempotencyPrincipal(c),
			middleware.IdempotencyScope(c), key, z.ID, http.StatusCreated, h.IdempotencyTTL)
		if err != nil && !errors.Is(err, repo.ErrDuplicate) {
			middleware.LoggerFrom(c).Warn().Err(err).Msg("store idempotency record")
		}
	}

	ok(c, http.StatusCreated, ZipRequestResponse{Success: true, Data: z})
}

// ListZipRequests godoc
// @ID          listZipRequests
// @Summary     List zip requests (paginated)
// @Description Returns zip requests newest first. Supports weak ETag via If-None-Match and may return 304.
// @Tags        ZipRequests
// @Produce     json
// @Security    BearerAuth
//
// @Param       If-None-Match  header  string  false  "Return 304 if ETag matches"
// @Param       status         query   string  false  "Zip status"      Enums(pending, processing, done)
// @Param       page           query   int     false  "Page number"     minimum(1) default(1)
// @Param       limit          query   int     false  "Items per page"  minimum(1) maximum(100) default(20)
//
// @Success     200  {object}  handlers.ListZipRequestsResponse
// @Header      200  {string}  ETag  "Weak ETag for current result"
// @Success     304  {string}  string  "Not Modified"
// @Failure     400  {object}  handlers.ErrorResponse  "Unknown status"
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Router      /zip-requests [get]
func (h *Handlers) ListZipRequests(c *gin.Context) {
	ctx := c.Request.Context()
	status := c.Query("status")
	page, limit := pageParams(c)

	// ETag pre-check (best effort).
	if h.DB != nil {
		if count, maxTS, err := repo.ZipRequestsStats(ctx, h.DB); err == nil {
			var ts int64
			if maxTS != nil {
				ts = maxTS.UnixNano()
			}
			etag := fmt.Sprintf(`W/"zips:%s:%d:%d:%d:%d"`, status, page, limit, count, ts)
			c.Header("ETag", etag)
			if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
				c.Status(http.StatusNotModified)
				return
			}
		}
	}

	res, err := h.Zips.List(ctx, status, page, limit)
	if err != nil {
		c.Writer.Header().Del("ETag")
		h.failErr(c, err)
		return
	}
	ok(c, http.StatusOK, ListZipRequestsResponse{Success: true, Data: res.Items, ListMeta: listMeta(res)})
}

// UpdateZipRequestStatus godoc
// @ID          updateZipRequestStatus
// @Summary     Set a zip request's status
// @Description Used by operators and by the scraping workflow to report progress. Category statuses are reconciled afterwards.
// @Tags        ZipRequests
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id    path  string                                true  "Zip request ID (UUID)"  format(uuid)
// @Param       body  body  handlers.UpdateZipStatusRequest  true  "New status"
// @Success     200  {object}  handlers.ZipRequestResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Validation error"
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Failure     404  {object}  handlers.ErrorResponse  "Zip request not found"
// @Router      /zip-requests/{id}/status [patch]
func (h *Handlers) UpdateZipRequestStatus(c *gin.Context) {
	id, valid := uuidParam(c, "id")
	if !valid {
		return
	}
	var req UpdateZipStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	z, err := h.Zips.UpdateStatus(c.Request.Context(), id, req.Status)
	if err != nil {
		h.failErr(c, err)
		return
	}
	ok(c, http.StatusOK, ZipRequestResponse{Success: true, Data: z})
}

// DeleteZipRequest godoc
// @ID          deleteZipRequest
// @Summary     Delete a zip request
// @Tags        ZipRequests
// @Security    BearerAuth
// @Param       id   path  string  true  "Zip request ID (UUID)"  format(uuid)
// @Success     204  {string}  string  "No Content"
// @Failure     400  {object}  handlers.ErrorResponse  "Bad id"
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Failure     404  {object}  handlers.ErrorResponse  "Zip request not found"
// @Router      /zip-requests/{id} [delete]
func (h *Handlers) DeleteZipRequest(c *gin.Context) {
	id, valid := uuidParam(c, "id")
	if !valid {
		return
	}
	if err := h.Zips.Delete(c.Request.Context(), id); err != nil {
		h.failErr(c, err)
		return
	}
	noContent(c)
}
