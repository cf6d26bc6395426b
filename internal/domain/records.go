// Package domain defines the records shared by the Spring clients.
package domain

import "time"

// Profile is the identity record owned by the remote profiles collection.
// Created lazily on first sign-in, mutated only by its owning user.
type Profile struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	AvatarURL string    `json:"avatar_url,omitempty"`
	Location  string    `json:"location,omitempty"`
	Interests []string  `json:"interests,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Activity is a hostable, joinable social event. Immutable once created.
type Activity struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	HostID      string    `json:"host_id"`
	StartTime   time.Time `json:"start_time"`
	Location    string    `json:"location"`
	ImageURL    string    `json:"image_url,omitempty"`
	ImageURLs   []string  `json:"image_urls,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Participant links a user to an activity they joined.
type Participant struct {
	ID         string    `json:"id"`
	ActivityID string    `json:"activity_id"`
	UserID     string    `json:"user_id"`
	JoinedAt   time.Time `json:"joined_at"`
}

// Message is a single chat entry in an activity's room. Immutable, ordered
// by CreatedAt ascending for display.
type Message struct {
	ID         string    `json:"id"`
	ActivityID string    `json:"activity_id"`
	SenderID   string    `json:"sender_id"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"created_at"`
}
