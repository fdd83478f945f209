// Package model defines the data structures used throughout the application.
package model

import "time"

// DefaultProfilePicture is served for accounts that never uploaded a picture.
// It is a path under the static file server, not an uploaded object.
const DefaultProfilePicture = "/static/img/default-profile.png"

// User represents a registered account.
//
// Username is the stable public identifier: posts and follow edges refer to
// users by username, and usernames never change once registered. ID is our
// own xid, kept so tokens and logs never need to carry the username alone.
//
// WHY NO following/followers COLUMNS?
// A follow is stored once, as an edge (follower → followee). Following and
// Followers below are projections of that edge set, filled in when a profile
// is read. Because there is only one record per edge, "B in A.following"
// and "A in B.followers" are the same fact and can never disagree.
type User struct {
	ID             string    `json:"id"             db:"id"`
	Username       string    `json:"username"       db:"username"`
	Email          string    `json:"email"          db:"email"`
	PasswordHash   string    `json:"-"              db:"password_hash"` // bcrypt hash, never serialised
	Age            int       `json:"age"            db:"age"`
	ProfilePicture string    `json:"profilePicture" db:"profile_picture"` // empty means DefaultProfilePicture
	GitHubID       int64     `json:"-"              db:"github_id"`       // 0 for password accounts
	CreatedAt      time.Time `json:"createdAt"      db:"created_at"`

	Following []string `json:"following,omitempty" db:"-"`
	Followers []string `json:"followers,omitempty" db:"-"`
}

// Picture returns the picture reference to show for the user.
func (u *User) Picture() string {
	if u.ProfilePicture == "" {
		return DefaultProfilePicture
	}
	return u.ProfilePicture
}

// Profile is the public view of a user returned by the profile endpoint.
type Profile struct {
	Username       string   `json:"username"`
	Age            int      `json:"age,omitempty"`
	PostCount      int64    `json:"postCount"`
	Followers      []string `json:"followers"`
	Following      []string `json:"following"`
	ProfilePicture string   `json:"profilePicture"`
}

// Counts backs the sidebar refresh: how many users the account follows and
// how many posts it has written.
type Counts struct {
	Following int64 `json:"following"`
	Posts     int64 `json:"posts"`
}
