package api

import (
	"net/http"

	"github.com/frjar/frjarai/internal/config"
)

// ConfigResponse is the JSON envelope returned by GET /api/v1/config.
type ConfigResponse struct {
	Config     *config.Config `json:"config"`
	ConfigFile string         `json:"config_file,omitempty"` // path to the active config file
	Providers  []string       `json:"providers"`
}

// handleGetConfig returns the running configuration.
// Sensitive keys (API keys, the MySQL DSN) are excluded via json:"-" tags.
func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data: ConfigResponse{
			Config:     s.cfg,
			ConfigFile: s.cfg.File,
			Providers:  s.app.Chain.Names(),
		},
	})
}

// handleGetConfigKeys returns the status of all sensitive API keys.
func (s *Server) handleGetConfigKeys(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    config.CheckAPIKeys(s.cfg),
	})
}
