package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/fitted/fitted/internal/auth"
	"github.com/fitted/fitted/internal/model"
	"github.com/fitted/fitted/internal/service"
)

// UserHandler serves profiles, the follow toggle, user search, and the
// caller's own sidebar data.
type UserHandler struct {
	profiles *service.ProfileService
	follows  *service.FollowService
	search   *service.SearchService
	basePath string
	logger   *slog.Logger
}

func NewUserHandler(
	profiles *service.ProfileService,
	follows *service.FollowService,
	search *service.SearchService,
	basePath string,
	logger *slog.Logger,
) *UserHandler {
	return &UserHandler{
		profiles: profiles,
		follows:  follows,
		search:   search,
		basePath: basePath,
		logger:   logger,
	}
}

type profileResponse struct {
	Success     bool          `json:"success"`
	Profile     model.Profile `json:"profile"`
	IsFollowing bool          `json:"isFollowing"`
	IsFriends   bool          `json:"isFriends"`
}

// HandleProfile returns a public profile and the caller's relationship to it.
//
// HTTP: GET /api/users/{username} (auth optional)
func (h *UserHandler) HandleProfile(w http.ResponseWriter, r *http.Request) {
	viewer, _ := auth.IdentityFromContext(r.Context())

	view, err := h.profiles.Get(r.Context(), chi.URLParam(r, "username"), viewer.Username)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	view.Profile.ProfilePicture = withBase(h.basePath, view.Profile.ProfilePicture)
	writeJSON(w, http.StatusOK, profileResponse{
		Success:     true,
		Profile:     view.Profile,
		IsFollowing: view.IsFollowing,
		IsFriends:   view.IsFriends,
	})
}

type followResponse struct {
	Success bool `json:"success"`
	*model.FollowResult
}

// HandleFollow toggles the caller's follow of {username}.
//
// HTTP: POST /api/users/{username}/follow (auth required)
// RESPONSE: {"success", "isFollowing", "isFriends", "updatedFollowersCount", "updatedFollowingCount"}
func (h *UserHandler) HandleFollow(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.IdentityFromContext(r.Context())

	res, err := h.follows.Toggle(r.Context(), id.Username, chi.URLParam(r, "username"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, followResponse{Success: true, FollowResult: res})
}

type usersResponse struct {
	Users []service.UserSummary `json:"users"`
}

// HandleSearch finds users whose username contains q, case-insensitively.
//
// HTTP: GET /api/users/search?q=lift
func (h *UserHandler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	users, err := h.search.Users(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	for i := range users {
		users[i].ProfilePicture = withBase(h.basePath, users[i].ProfilePicture)
	}
	writeJSON(w, http.StatusOK, usersResponse{Users: users})
}

// HandleCounts returns the numbers shown in the caller's sidebar.
//
// HTTP: GET /api/me/counts (auth required)
func (h *UserHandler) HandleCounts(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.IdentityFromContext(r.Context())
	counts, err := h.profiles.Counts(r.Context(), id.Username)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, counts)
}

// HandlePicture redirects to the caller's current profile picture, so an
// <img src> can point at a stable URL.
//
// HTTP: GET /api/me/picture (auth required)
func (h *UserHandler) HandlePicture(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.IdentityFromContext(r.Context())
	picture, err := h.profiles.Picture(r.Context(), id.Username)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	http.Redirect(w, r, withBase(h.basePath, picture), http.StatusFound)
}

type pictureResponse struct {
	Message        string `json:"message"`
	ProfilePicture string `json:"profilePicture"`
}

// HandleUploadPicture replaces the caller's profile picture.
//
// HTTP: POST /api/me/picture (auth required), multipart file "image"
func (h *UserHandler) HandleUploadPicture(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.IdentityFromContext(r.Context())

	file, err := parseUpload(w, r, "image")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if file != nil {
		defer file.Close()
	}

	url, err := h.profiles.UpdatePicture(r.Context(), id.Username, readerOrNil(file))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, pictureResponse{Message: "Profile picture updated", ProfilePicture: url})
}
