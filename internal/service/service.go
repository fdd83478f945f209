// Package service holds the business rules of the application.
//
// THREE LAYERS:
//
//	handler (HTTP)  →  service (rules)  →  repository (storage)
//
// Handlers decode requests and encode responses. Services decide what is
// allowed: who may follow whom, how long a post may be, which page a page
// number really means. Repositories only store and fetch.
//
// Services never see an *http.Request and never pick a status code. They
// return apperror values (ErrValidation, ErrNotFound, ...) and the handler
// package maps those to HTTP. The same services back the seed command.
//
// DEPENDENCIES ARE INTERFACES:
// Every service takes repository interfaces, so tests can run against the
// in-memory SQLite store or a hand-written fake without any server.
package service

import "github.com/fitted/fitted/internal/model"

// totalPages is ceil(count / model.PageSize).
func totalPages(count int64) int {
	if count <= 0 {
		return 0
	}
	return int((count + model.PageSize - 1) / model.PageSize)
}

// pageOf is the feed page holding the post at 1-based rank.
func pageOf(rank int64) int {
	if rank < 1 {
		return 1
	}
	return int((rank-1)/model.PageSize) + 1
}
