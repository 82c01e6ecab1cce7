package restapi

import (
	"net/http"

	"tubeboard.app/internal/models"
)

func (api *RestAPI) currentTimeHandler(w http.ResponseWriter, r *http.Request) {
	timeData := models.NewCurrentTimeData(api.Clock.Now(), api.Location)
	api.sendResponse(w, r, models.NewEntryResponse(timeData, api.Clock))
}
