// Package srvreg routes boundary requests to the session, roll, and shift
// operations.
package srvreg

import (
	"strings"

	"go.uber.org/zap"

	"github.com/lineops/shiftline/engine"
	"github.com/lineops/shiftline/session"
)

// Request represents an incoming HTTP request
type Request struct {
	Method string
	Path   string
	Body   string
}

// Response represents an HTTP response
type Response struct {
	StatusCode int
	Headers    map[string]string
	Body       string
}

// HandlerFunc is a function that handles a request
type HandlerFunc func(*Request) (*Response, error)

// ServiceRegistry manages all service handlers
type ServiceRegistry struct {
	handlers  map[string]map[string]HandlerFunc
	drafts    *session.Store
	store     engine.Store
	recorder  *engine.RollRecorder
	committer *engine.ShiftCommitter
	logger    *zap.Logger
	lineID    string
}

var defaultHeaders = map[string]string{
	"Content-Type": "application/json",
}

// NewServiceRegistry creates a new service registry
func NewServiceRegistry(
	drafts *session.Store,
	store engine.Store,
	recorder *engine.RollRecorder,
	committer *engine.ShiftCommitter,
	logger *zap.Logger,
	lineID string,
) *ServiceRegistry {
	return &ServiceRegistry{
		handlers:  make(map[string]map[string]HandlerFunc),
		drafts:    drafts,
		store:     store,
		recorder:  recorder,
		committer: committer,
		logger:    logger,
		lineID:    lineID,
	}
}

// RegisterHandler registers a handler for a specific method and path
func (sr *ServiceRegistry) RegisterHandler(method, path string, handler HandlerFunc) {
	if sr.handlers[method] == nil {
		sr.handlers[method] = make(map[string]HandlerFunc)
	}
	sr.handlers[method][path] = handler
	sr.logger.Info("registered handler", zap.String("method", method), zap.String("path", path))
}

// GetHandlerForPath finds the handler for a given method and path
func (sr *ServiceRegistry) GetHandlerForPath(method, path string) (HandlerFunc, bool) {
	methodHandlers, exists := sr.handlers[method]
	if !exists {
		return nil, false
	}

	// Try exact match first
	if handler, exists := methodHandlers[path]; exists {
		return handler, true
	}

	// Try pattern matching for paths with parameters
	for pattern, handler := range methodHandlers {
		if matchPath(pattern, path) {
			return handler, true
		}
	}

	return nil, false
}

// matchPath checks if a path matches a pattern with parameters
// It supports patterns like "/session/:key" matching "/session/SES-1234"
func matchPath(pattern, path string) bool {
	patternParts := strings.Split(pattern, "/")
	pathParts := strings.Split(path, "/")

	if len(patternParts) != len(pathParts) {
		return false
	}

	for i := 0; i < len(patternParts); i++ {
		if strings.HasPrefix(patternParts[i], ":") {
			// This is a parameter, it matches any non-empty segment
			if pathParts[i] == "" {
				return false
			}
			continue
		}
		if patternParts[i] != pathParts[i] {
			return false
		}
	}

	return true
}

// RegisterDefaultServices sets up all default endpoints
func (sr *ServiceRegistry) RegisterDefaultServices() {
	sr.logger.Info("registering line services")

	// Session endpoints
	sr.RegisterHandler("POST", "/session/start", sr.StartSessionHandler)
	sr.RegisterHandler("GET", "/session/:key", sr.GetSessionHandler)
	sr.RegisterHandler("PATCH", "/session/:key", sr.PatchSessionHandler)
	sr.RegisterHandler("DELETE", "/session/:key", sr.ClearSessionHandler)
	sr.RegisterHandler("POST", "/session/:key/roll", sr.SaveRollHandler)
	sr.RegisterHandler("POST", "/session/:key/commit", sr.CommitShiftHandler)

	// Existence probes used by the UI to pre-validate before commit
	sr.RegisterHandler("GET", "/shift/:id/exists", sr.CheckShiftHandler)
	sr.RegisterHandler("GET", "/roll/:id/exists", sr.CheckRollHandler)

	// Info endpoints
	sr.RegisterHandler("GET", "/info", sr.InfoHandler)

	sr.logger.Info("all services registered")
}

// GenerateResponse executes the request and generates a response
func (req *Request) GenerateResponse(services *ServiceRegistry) (*Response, error) {
	handler, found := services.GetHandlerForPath(req.Method, req.Path)

	if !found {
		return &Response{
			StatusCode: 404,
			Headers:    defaultHeaders,
			Body:       `{"error":"Service not found for ` + req.Method + ` ` + req.Path + `"}`,
		}, nil
	}

	response, err := handler(req)
	return response, err
}
