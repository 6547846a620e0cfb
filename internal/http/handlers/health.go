package handlers

import (
	"net/http"

	"github.com/clearhealth/clearhealth-ai/internal/compliance"
)

// HealthCheck reports liveness. The disclaimer rides along so embedding
// clients can render it without a second round trip.
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":     "ok",
		"service":    "clearhealth-ai",
		"disclaimer": compliance.Text(compliance.DisclaimerFull),
	})
}
