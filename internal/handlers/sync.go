package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/clinic/internal/cache"
	"github.com/charlesng35/clinic/internal/services"
	appErrors "github.com/charlesng35/clinic/pkg/errors"
	"github.com/charlesng35/clinic/pkg/response"
)

// SyncHandler exposes a manual trigger for the last-connected synchronisation.
type SyncHandler struct {
	sync *services.LastConnectedSync
}

type syncPayload struct {
	Outcome string              `json:"outcome"`
	Result  services.SyncResult `json:"result"`
}

func NewSyncHandler(sync *services.LastConnectedSync) *SyncHandler {
	return &SyncHandler{sync: sync}
}

// POST /api/admin/sync/last-connected
func (h *SyncHandler) LastConnected(c *gin.Context) {
	result, err := h.sync.Run(requestContext(c))
	switch {
	case errors.Is(err, services.ErrSyncInProgress):
		response.Error(c, appErrors.ErrSyncInProgress)
		return
	case errors.Is(err, cache.ErrUnavailable):
		response.Error(c, appErrors.ErrServiceUnavailable.WithInternal(err))
		return
	case err != nil:
		response.Error(c, appErrors.Wrap(err, "last connected sync failed"))
		return
	}
	response.Success(c, http.StatusOK, syncPayload{Outcome: result.String(), Result: result})
}
