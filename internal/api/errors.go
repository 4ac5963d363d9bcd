package api

import (
	"errors"
	"net/http"

	"github.com/playbook/outreach/internal/pkg/httputil"
	"github.com/playbook/outreach/internal/service/outreach"
)

// writeServiceError maps outreach errors to HTTP. 4xx messages come from
// caller input and are safe to echo; anything else is logged and hidden.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, outreach.ErrValidation):
		httputil.BadRequest(w, err.Error())
	case errors.Is(err, outreach.ErrUnresolvedInbound):
		httputil.Error(w, http.StatusNotFound, "unresolved_inbound", err.Error())
	case errors.Is(err, outreach.ErrNotFound):
		httputil.NotFound(w, err.Error())
	default:
		httputil.InternalError(w, err)
	}
}
