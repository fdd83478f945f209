package model

import "time"

// MaxPostLength is the upper bound on post content, counted in characters
// (runes), not bytes.
const MaxPostLength = 300

// PageSize is the fixed number of posts per feed page.
const PageSize = 10

// DateLayout is the calendar-day format stored alongside each post.
const DateLayout = "2006-01-02"

// Post is a short text update with an optional image. Posts are immutable.
//
// Seq is the insertion sequence assigned by the store. It defines the feed
// order: page boundaries are always computed on Seq, never on CreatedAt,
// so two posts created in the same instant still have a stable order.
type Post struct {
	ID        string    `json:"id"`
	Seq       int64     `json:"seq"`
	Username  string    `json:"username"`
	Content   string    `json:"content"`
	ImageURL  string    `json:"imageURL,omitempty"`
	Date      string    `json:"date"` // YYYY-MM-DD
	CreatedAt time.Time `json:"createdAt"`

	// Page is only set on search results: the global feed page the post
	// appears on.
	Page int `json:"page,omitempty"`
}

// Page is one fixed-size slice of the global feed.
type Page struct {
	Posts       []Post `json:"posts"`
	TotalPages  int    `json:"totalPages"`
	CurrentPage int    `json:"currentPage"`
}

// FollowResult is returned by a follow toggle.
//
// FollowerCount is the target's follower count and FollowingCount is the
// actor's following count, both read after the toggle.
type FollowResult struct {
	IsFollowing    bool  `json:"isFollowing"`
	IsFriends      bool  `json:"isFriends"`
	FollowerCount  int64 `json:"updatedFollowersCount"`
	FollowingCount int64 `json:"updatedFollowingCount"`
}
