package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/playbook/outreach/internal/archive"
	"github.com/playbook/outreach/internal/domain"
	"github.com/playbook/outreach/internal/pkg/httputil"
	"github.com/playbook/outreach/internal/pkg/logger"
	"github.com/playbook/outreach/internal/service/outreach"
)

const maxWebhookBytes = 4 << 20

// OutreachHandler serves the /api/outreach endpoints.
type OutreachHandler struct {
	svc     *outreach.Service
	archive archive.Archiver
	log     *logger.Logger
}

// NewOutreachHandler creates the handler set.
func NewOutreachHandler(svc *outreach.Service, a archive.Archiver, l *logger.Logger) *OutreachHandler {
	return &OutreachHandler{svc: svc, archive: a, log: l.With("component", "api")}
}

type runRequest struct {
	CampaignID string `json:"campaignId"`
	MaxEmails  *int   `json:"maxEmails"`
}

type runResponse struct {
	Success bool `json:"success"`
	*outreach.RunResult
}

// HandleRun triggers a send run and answers when it finishes. Per-coach
// failures are reported inside the 200 body.
//
//	POST /api/outreach/run
func (h *OutreachHandler) HandleRun(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	if req.CampaignID == "" {
		httputil.BadRequest(w, "campaignId is required")
		return
	}
	maxEmails := h.svc.DefaultMaxEmails()
	if req.MaxEmails != nil {
		maxEmails = *req.MaxEmails
	}

	// A client disconnect must not abandon a run between claim and send.
	res, err := h.svc.Run(context.WithoutCancel(r.Context()), req.CampaignID, maxEmails)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.OK(w, runResponse{Success: true, RunResult: res})
}

// HandleInbound accepts the mail provider's inbound webhook.
//
//	POST /api/outreach/webhook/inbound
func (h *OutreachHandler) HandleInbound(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBytes))
	if err != nil {
		httputil.BadRequest(w, "unreadable body")
		return
	}
	if key, err := h.archive.Archive(r.Context(), "inbound", raw); err != nil {
		h.log.Warn("archive inbound payload", "error", err)
	} else if key != "" {
		h.log.Debug("inbound payload archived", "key", key)
	}

	var ev domain.InboundEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		httputil.BadRequest(w, "invalid JSON: "+err.Error())
		return
	}

	res, err := h.svc.HandleInbound(r.Context(), ev)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if res.Ignored {
		httputil.OK(w, map[string]bool{"received": true})
		return
	}
	httputil.OK(w, map[string]any{
		"success":    true,
		"responseId": res.ResponseID,
		"forwarded":  res.Forwarded,
	})
}

// HandleListResponses lists coach replies, newest first.
//
//	GET /api/outreach/responses?campaignId=&coachId=&limit=
func (h *OutreachHandler) HandleListResponses(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := outreach.ResponseFilter{CampaignID: q.Get("campaignId"), CoachID: q.Get("coachId")}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			httputil.BadRequest(w, "limit must be a non-negative integer")
			return
		}
		f.Limit = n
	}

	out, err := h.svc.ListResponses(r.Context(), f)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.OK(w, out)
}

// HandleStats returns campaign totals.
//
//	GET /api/outreach/stats?campaignId=
func (h *OutreachHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	st, err := h.svc.Stats(r.Context(), r.URL.Query().Get("campaignId"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.OK(w, st)
}

type previewRequest struct {
	CoachID string `json:"coachId"`
}

// HandlePreview renders the campaign email for one coach without sending.
//
//	POST /api/outreach/campaigns/{id}/preview
func (h *OutreachHandler) HandlePreview(w http.ResponseWriter, r *http.Request) {
	var req previewRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	p, err := h.svc.Preview(r.Context(), chi.URLParam(r, "id"), req.CoachID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.OK(w, p)
}

type updateCampaignRequest struct {
	Status          *domain.CampaignStatus `json:"status"`
	DailyEmailLimit *int                   `json:"dailyEmailLimit"`
}

// HandleUpdateCampaign pauses/resumes a campaign or changes its daily limit.
//
//	PATCH /api/outreach/campaigns/{id}
func (h *OutreachHandler) HandleUpdateCampaign(w http.ResponseWriter, r *http.Request) {
	var req updateCampaignRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	c, err := h.svc.UpdateCampaign(r.Context(), chi.URLParam(r, "id"), outreach.CampaignUpdate{
		Status:          req.Status,
		DailyEmailLimit: req.DailyEmailLimit,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.OK(w, c)
}
