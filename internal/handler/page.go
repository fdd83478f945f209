// Package handler contains the HTTP handlers for the application.
//
// WHAT IS A HANDLER?
// In Go, an HTTP handler is anything that implements the http.Handler interface:
//
//	type Handler interface {
//	    ServeHTTP(ResponseWriter, *Request)
//	}
//
// Or more commonly, we use http.HandlerFunc: a function with the right signature
// that automatically satisfies the Handler interface. Chi's router accepts these directly.
//
// HANDLER RESPONSIBILITIES:
// 1. Parse the incoming HTTP request (path params, query, body, cookies)
// 2. Call the service layer
// 3. Write the HTTP response (status code, headers, body)
//
// Handlers should NOT contain business logic; they are the "glue" between HTTP and the services.
package handler

import (
	"html/template"
	"log/slog"
	"net/http"
	"path/filepath"

	"github.com/fitted/fitted/internal/auth"
	"github.com/fitted/fitted/internal/model"
)

// PageHandler renders the server-side HTML shell. Everything after the first
// paint is fetched by static/js/app.js from the JSON API.
//
// WHY A STRUCT?
// Templates are parsed once at startup (expensive) and reused (cheap), and
// the logger and base path are injected without globals.
type PageHandler struct {
	templates *template.Template
	basePath  string
	github    bool
	logger    *slog.Logger
}

// NewPageHandler parses base.html and feed.html together so they can
// reference each other:
//   - base.html defines the page structure with a {{template "content" .}} placeholder
//   - feed.html defines {{define "content"}}...{{end}} to fill it
func NewPageHandler(templateDir, basePath string, githubEnabled bool, logger *slog.Logger) (*PageHandler, error) {
	tmpl, err := template.ParseFiles(
		filepath.Join(templateDir, "base.html"),
		filepath.Join(templateDir, "feed.html"),
	)
	if err != nil {
		return nil, err
	}

	return &PageHandler{
		templates: tmpl,
		basePath:  basePath,
		github:    githubEnabled,
		logger:    logger,
	}, nil
}

// pageData is what the templates can read.
type pageData struct {
	Title         string
	BasePath      string
	LoggedIn      bool
	Username      string
	GitHubEnabled bool
	MaxPostLength int
	PageSize      int
}

// HandleFeed serves the main page.
//
// HTTP: GET / (auth optional)
//
// The session is only used to pick the initial view (login form or
// composer); the script re-checks it through GET /api/login.
func (h *PageHandler) HandleFeed(w http.ResponseWriter, r *http.Request) {
	id, loggedIn := auth.IdentityFromContext(r.Context())

	data := pageData{
		Title:         "Fitted",
		BasePath:      h.basePath,
		LoggedIn:      loggedIn,
		Username:      id.Username,
		GitHubEnabled: h.github,
		MaxPostLength: model.MaxPostLength,
		PageSize:      model.PageSize,
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.templates.ExecuteTemplate(w, "base", data); err != nil {
		h.logger.Error("failed to render template", slog.String("error", err.Error()))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}
