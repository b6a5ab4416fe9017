// Lead HTTP handlers.
//
// This file exposes REST endpoints for leads:
//   - POST   /leads          (ingest from the scraper, upsert by placeId)
//   - GET    /leads          (list, paginated, optional status filter)
//   - GET    /leads/stats    (counts per status)
//   - POST   /leads/manual   (operator-entered lead)
//   - GET    /leads/{id}
//   - PATCH  /leads/{id}     (workflow fields)
//   - DELETE /leads/{id}
package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/leadops-backend/internal/domain"
	"github.com/tbourn/leadops-backend/internal/http/middleware"
	"github.com/tbourn/leadops-backend/internal/services"
)

// IngestLeadResponse is returned by POST /leads.
type IngestLeadResponse struct {
	Success bool         `json:"success" example:"true"`
	Message string       `json:"message" example:"Lead created successfully"`
	Data    *domain.Lead `json:"data"`
	IsNew   bool         `json:"isNew"   example:"true"`
}

// ListLeadsResponse is a page of leads.
type ListLeadsResponse struct {
	Success bool          `json:"success" example:"true"`
	Data    []domain.Lead `json:"data"`
	ListMeta
}

// LeadResponse wraps a single lead.
type LeadResponse struct {
	Success bool         `json:"success" example:"true"`
	Data    *domain.Lead `json:"data"`
}

// LeadStatsResponse wraps the dashboard counts.
type LeadStatsResponse struct {
	Success bool               `json:"success" example:"true"`
	Data    services.LeadStats `json:"data"`
}

// CreateManualLeadRequest is the JSON payload for an operator-entered lead.
type CreateManualLeadRequest struct {
	Title        string  `json:"title"        example:"Joe's Plumbing"`
	PlaceID      string  `json:"placeId"      example:"ChIJN1t_tDeuEmsRUsoyG83frY4"`
	Status       string  `json:"status"       example:"new"`
	Name         *string `json:"name"`
	Email        *string `json:"email"        example:"joe@example.com"`
	Phone        *string `json:"phone"        example:"+1 555 123 4567"`
	Website      *string `json:"website"`
	Address      *string `json:"address"`
	PostalCode   *string `json:"postalCode"   example:"10001"`
	BusinessType *string `json:"businessType" example:"Plumber"`
	CategoryID   *string `json:"categoryId"`
	Action       *string `json:"action"`
	Notes        *string `json:"notes"`
}

// UpdateLeadRequest patches the operator workflow fields; omitted fields are
// left untouched and an empty string clears action or notes.
type UpdateLeadRequest struct {
	Status *string `json:"status" example:"called"`
	Action *string `json:"action" example:"Call back Monday"`
	Notes  *string `json:"notes"`
}

// IngestLead godoc
// @ID          ingestLead
// @Summary     Ingest a scraped lead
// @Description Inserts or updates a lead by placeId. Field names are accepted under several aliases (place_id/placeId, clean_url/cleanUrl, ...). Returns 201 when the lead was created and 200 when an existing lead was overwritten.
// @Tags        Leads
// @Accept      json
// @Produce     json
// @Security    BearerAuth
//
// @Param       body  body  object  true  "Raw lead payload"
//
// @Success     201  {object}  handlers.IngestLeadResponse
// @Success     200  {object}  handlers.IngestLeadResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Missing placeId or title"
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /leads [post]
func (h *Handlers) IngestLead(c *gin.Context) {
	var raw map[string]any
	if err := c.ShouldBindJSON(&raw); err != nil || raw == nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "body must be a JSON object")
		return
	}

	lead, isNew, err := h.Leads.Ingest(c.Request.Context(), raw)
	if err != nil {
		h.failErr(c, err)
		return
	}

	status, msg := http.StatusOK, "Lead updated successfully"
	if isNew {
		status, msg = http.StatusCreated, "Lead created successfully"
		h.notifyLeadCreated(c, lead)
	}
	ok(c, status, IngestLeadResponse{Success: true, Message: msg, Data: lead, IsNew: isNew})
}

// notifyLeadCreated sends the new-lead notification off the request path.
// The request context is not reused: it is cancelled once the response is
// written.
func (h *Handlers) notifyLeadCreated(c *gin.Context, lead *domain.Lead) {
	if h.Notifier == nil {
		return
	}
	lg := middleware.LoggerFrom(c).With().Str("lead_id", lead.ID).Logger()
	n, timeout := h.Notifier, h.NotifyTimeout
	h.async(func() {
		ctx, cancel := context.WithTimeout(lg.WithContext(context.Background()), timeout)
		defer cancel()
		if err := n.LeadCreated(ctx, lead); err != nil {
			lg.Warn().Err(err).Msg("lead notification failed")
		}
	})
}

// ListLeads godoc
// @ID          listLeads
// @Summary     List leads (paginated)
// @Description Returns leads newest first. limit is capped server-side.
// @Tags        Leads
// @Produce     json
// @Security    BearerAuth
//
// @Param       status  query  string  false  "Lead status"      Enums(new, called, didnt_answer, success, failed)
// @Param       page    query  int     false  "Page number"      minimum(1) default(1)
// @Param       limit   query  int     false  "Items per page"   minimum(1) maximum(100) default(20)
//
// @Success     200  {object}  handlers.ListLeadsResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Unknown status"
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /leads [get]
func (h *Handlers) ListLeads(c *gin.Context) {
	page, limit := pageParams(c)
	res, err := h.Leads.List(c.Request.Context(), c.Query("status"), page, limit)
	if err != nil {
		h.failErr(c, err)
		return
	}
	ok(c, http.StatusOK, ListLeadsResponse{Success: true, Data: res.Items, ListMeta: listMeta(res)})
}

// LeadStats godoc
// @ID          leadStats
// @Summary     Lead counts per status
// @Tags        Leads
// @Produce     json
// @Security    BearerAuth
// @Success     200  {object}  handlers.LeadStatsResponse
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /leads/stats [get]
func (h *Handlers) LeadStats(c *gin.Context) {
	st, err := h.Leads.Stats(c.Request.Context())
	if err != nil {
		h.failErr(c, err)
		return
	}
	ok(c, http.StatusOK, LeadStatsResponse{Success: true, Data: st})
}

// CreateManualLead godoc
// @ID          createManualLead
// @Summary     Create a lead by hand
// @Description Creates an operator-entered lead (isManual=true). placeId is generated when omitted.
// @Tags        Leads
// @Accept      json
// @Produce     json
// @Security    BearerAuth
//
// @Param       body  body  handlers.CreateManualLeadRequest  true  "Lead"
//
// @Success     201  {object}  handlers.LeadResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Validation error"
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Failure     409  {object}  handlers.ErrorResponse  "placeId already exists"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /leads/manual [post]
func (h *Handlers) CreateManualLead(c *gin.Context) {
	var req CreateManualLeadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	l, err := h.Leads.CreateManual(c.Request.Context(), services.ManualLeadInput{
		PlaceID:      req.PlaceID,
		Title:        req.Title,
		Status:       req.Status,
		Name:         req.Name,
		Email:        req.Email,
		Phone:        req.Phone,
		Website:      req.Website,
		Address:      req.Address,
		PostalCode:   req.PostalCode,
		BusinessType: req.BusinessType,
		CategoryID:   req.CategoryID,
		Action:       req.Action,
		Notes:        req.Notes,
	})
	if err != nil {
		h.failErr(c, err)
		return
	}
	ok(c, http.StatusCreated, LeadResponse{Success: true, Data: l})
}

// GetLead godoc
// @ID          getLead
// @Summary     Get a lead
// @Tags        Leads
// @Produce     json
// @Security    BearerAuth
// @Param       id   path  string  true  "Lead ID (UUID)"  format(uuid)
// @Success     200  {object}  handlers.LeadResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Bad id"
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Failure     404  {object}  handlers.ErrorResponse  "Lead not found"
// @Router      /leads/{id} [get]
func (h *Handlers) GetLead(c *gin.Context) {
	id, valid := uuidParam(c, "id")
	if !valid {
		return
	}
	l, err := h.Leads.Get(c.Request.Context(), id)
	if err != nil {
		h.failErr(c, err)
		return
	}
	ok(c, http.StatusOK, LeadResponse{Success: true, Data: l})
}

// UpdateLead godoc
// @ID          updateLead
// @Summary     Update lead workflow fields
// @Description Partially updates status, action and notes.
// @Tags        Leads
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id    path  string                           true  "Lead ID (UUID)"  format(uuid)
// @Param       body  body  handlers.UpdateLeadRequest  true  "Patch"
// @Success     200  {object}  handlers.LeadResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Validation error"
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Failure     404  {object}  handlers.ErrorResponse  "Lead not found"
// @Router      /leads/{id} [patch]
func (h *Handlers) UpdateLead(c *gin.Context) {
	id, valid := uuidParam(c, "id")
	if !valid {
		return
	}
	var req UpdateLeadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	l, err := h.Leads.UpdateWorkflow(c.Request.Context(), id, services.WorkflowPatch{
		Status: req.Status,
		Action: req.Action,
		Notes:  req.Notes,
	})
	if err != nil {
		h.failErr(c, err)
		return
	}
	ok(c, http.StatusOK, LeadResponse{Success: true, Data: l})
}

// DeleteLead godoc
// @ID          deleteLead
// @Summary     Delete a lead
// @Tags        Leads
// @Security    BearerAuth
// @Param       id   path  string  true  "Lead ID (UUID)"  format(uuid)
// @Success     204  {string}  string  "No Content"
// @Failure     400  {object}  handlers.ErrorResponse  "Bad id"
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Failure     404  {object}  handlers.ErrorResponse  "Lead not found"
// @Router      /leads/{id} [delete]
func (h *Handlers) DeleteLead(c *gin.Context) {
	id, valid := uuidParam(c, "id")
	if !valid {
		return
	}
	if err := h.Leads.Delete(c.Request.Context(), id); err != nil {
		h.failErr(c, err)
		return
	}
	noContent(c)
}
