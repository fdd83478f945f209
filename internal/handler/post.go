package handler

import (
	"errors"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"

	"github.com/fitted/fitted/internal/apperror"
	"github.com/fitted/fitted/internal/auth"
	"github.com/fitted/fitted/internal/media"
	"github.com/fitted/fitted/internal/model"
	"github.com/fitted/fitted/internal/service"
)

// PostHandler serves the feed endpoints and post creation.
type PostHandler struct {
	posts  *service.PostService
	feed   *service.FeedService
	search *service.SearchService
	logger *slog.Logger
}

func NewPostHandler(
	posts *service.PostService,
	feed *service.FeedService,
	search *service.SearchService,
	logger *slog.Logger,
) *PostHandler {
	return &PostHandler{posts: posts, feed: feed, search: search, logger: logger}
}

type postsResponse struct {
	Posts []model.Post `json:"posts"`
}

// HandleList returns one page of the global feed.
//
// HTTP: GET /api/posts?page=N
// RESPONSE: {"posts": [...], "totalPages": 3, "currentPage": N}
func (h *PostHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	page, err := h.feed.Page(r.Context(), service.ParsePage(r.URL.Query().Get("page")))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// HandleFollowing returns every post by the users the caller follows.
//
// HTTP: GET /api/posts/following (auth required)
func (h *PostHandler) HandleFollowing(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.IdentityFromContext(r.Context())
	page, err := h.feed.Following(r.Context(), id.Username)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// HandleMine returns the caller's own posts.
//
// HTTP: GET /api/posts/mine (auth required)
func (h *PostHandler) HandleMine(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.IdentityFromContext(r.Context())
	posts, err := h.feed.ByAuthor(r.Context(), id.Username)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, postsResponse{Posts: posts})
}

// HandleSearch finds posts whose content contains q, case-insensitively.
//
// HTTP: GET /api/posts/search?q=deadlift
func (h *PostHandler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	posts, err := h.search.Posts(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, postsResponse{Posts: posts})
}

type createPostRequest struct {
	Content  string `json:"content"`
	ImageURL string `json:"imageURL"`
}

type createPostResponse struct {
	Message  string      `json:"message"`
	ImageURL string      `json:"imageURL,omitempty"`
	Post     *model.Post `json:"post"`
}

// HandleCreate publishes a post for the caller.
//
// HTTP: POST /api/posts (auth required)
//
// Two body formats are accepted:
//   - multipart/form-data with "content", optional "imageURL", optional
//     file "image" (the browser form)
//   - application/json {"content", "imageURL"} (API clients, no upload)
//
// RESPONSE: 201 {"message": "Post uploaded successfully", "imageURL", "post"}
func (h *PostHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.IdentityFromContext(r.Context())
	in := service.NewPost{Author: id.Username}

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		file, err := parseUpload(w, r, "image")
		if err != nil {
			writeError(w, h.logger, err)
			return
		}
		if file != nil {
			defer file.Close()
			in.Image = file
		}
		in.Content = r.FormValue("content")
		in.ImageURL = r.FormValue("imageURL")
	} else {
		var req createPostRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, h.logger, err)
			return
		}
		in.Content = req.Content
		in.ImageURL = req.ImageURL
	}

	post, err := h.posts.Create(r.Context(), in)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, createPostResponse{
		Message:  "Post uploaded successfully",
		ImageURL: post.ImageURL,
		Post:     post,
	})
}

// parseUpload parses a multipart body capped at the upload limit and returns
// the file under field, or nil when none was sent.
func parseUpload(w http.ResponseWriter, r *http.Request, field string) (multipart.File, error) {
	// The cap leaves room for the other form fields next to the image.
	r.Body = http.MaxBytesReader(w, r.Body, media.MaxUploadBytes+1<<20)
	if err := r.ParseMultipartForm(1 << 20); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return nil, apperror.ValidationFailed(field, "Image must be 10 MB or smaller")
		}
		return nil, apperror.ValidationFailed(field, "Invalid form data")
	}

	file, _, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, apperror.ValidationFailed(field, "Invalid form data")
	}
	return file, nil
}

// readerOrNil keeps a nil multipart.File from becoming a non-nil io.Reader.
func readerOrNil(f multipart.File) io.Reader {
	if f == nil {
		return nil
	}
	return f
}
