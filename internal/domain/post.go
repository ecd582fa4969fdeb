package domain

import "time"

// ImagePost is an auto-keyed image+description record. The backend does not
// guarantee iteration order for the posts collection, so CreatedAt is stored
// to let readers order it themselves.
type ImagePost struct {
	ImageURL    string    `json:"imageUrl"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"createdAt"`
}

// PostedImage pairs a post with its auto-assigned key.
type PostedImage struct {
	Key string `json:"key"`
	ImagePost
}
