package relay

import (
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"

	"buildalert/internal/types"
)

// BuildRequest is the body of the start and finish endpoints.
type BuildRequest struct {
	Build     *types.BuildSnapshot `json:"build" validate:"required"`
	Overrides types.Overrides      `json:"overrides"`
}

// DeliveryResponse reports the notification outcome. A failed delivery is
// still a 200: the request was valid and the relay did its job.
type DeliveryResponse struct {
	EventID   string `json:"event_id"`
	Delivered bool   `json:"delivered"`
	Error     string `json:"error,omitempty"`
}

// HandleBuildStart handles POST /v1/builds/start.
func (s *Server) HandleBuildStart(w http.ResponseWriter, r *http.Request) {
	s.handleBuild(w, r, types.PhaseStart)
}

// HandleBuildFinish handles POST /v1/builds/finish.
func (s *Server) HandleBuildFinish(w http.ResponseWriter, r *http.Request) {
	s.handleBuild(w, r, types.PhaseFinish)
}

func (s *Server) handleBuild(w http.ResponseWriter, r *http.Request, phase types.Phase) {
	log := s.requestLogger(r).With("phase", string(phase))

	var req BuildRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		log.Warn("rejected build request", "error", err.Error())
		Error(w, r, err)
		return
	}
	if err := s.validate(&req); err != nil {
		log.Warn("rejected build request", "error", err.Error())
		Error(w, r, err)
		return
	}

	out := s.Notifier.Notify(r.Context(), phase, req.Build, req.Overrides)

	resp := DeliveryResponse{EventID: out.EventID, Delivered: out.Success}
	if err := out.Err(); err != nil {
		resp.Error = err.Error()
	}
	if !out.Success {
		log.Warn("build notification not delivered", "project", req.Build.ProjectName)
	}
	JSON(w, r, http.StatusOK, resp)
}

// requestLogger returns the request-scoped logger set by RequestLogger, or
// the server logger when the handler runs outside the middleware chain.
func (s *Server) requestLogger(r *http.Request) types.Logger {
	if l := types.LoggerFromContext(r.Context()); l != nil {
		return l
	}
	return s.Logger
}

// validate runs struct validation and converts failures into a 400 AppError
// listing each offending field.
func (s *Server) validate(req *BuildRequest) error {
	err := s.Validator.Struct(req)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return types.NewAppError(types.ErrCodeValidationInvalidBuild, "request validation failed", err)
	}

	fields := make(map[string]any, len(verrs))
	for _, fe := range verrs {
		fields[fe.Namespace()] = fe.Tag()
	}
	if len(verrs) == 1 && verrs[0].Tag() == "required" && verrs[0].Field() == "Build" {
		return types.NewAppError(types.ErrCodeValidationMissingField, "build is required", nil).
			WithDetails(map[string]any{"fields": fields})
	}
	return types.NewAppError(types.ErrCodeValidationInvalidBuild, "build snapshot failed validation", nil).
		WithDetails(map[string]any{"fields": fields})
}
