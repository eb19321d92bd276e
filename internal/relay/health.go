package relay

import "net/http"

type healthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
}

// HandleHealth reports liveness. The relay has no local dependencies to
// check; OpsGenie reachability is observed through delivery metrics instead.
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	JSON(w, r, http.StatusOK, healthResponse{
		Status:  "healthy",
		Version: s.Config.Build.Version,
	})
}
