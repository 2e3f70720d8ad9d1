package model

import "time"

// Course represents one catalog entry with all of its content attached.
// Catalog data is owned by the content team and is read-only to this service.
type Course struct {
	ID              string     `json:"id"`
	Title           string     `json:"title"`
	Description     string     `json:"description"`
	LongDescription string     `json:"longDescription,omitempty"`
	Instructor      string     `json:"instructor"`
	Price           float64    `json:"price"`
	Thumbnail       string     `json:"thumbnail,omitempty"`
	Videos          []Video    `json:"videos"`
	Materials       []Material `json:"materials"`
	Feed            []FeedPost `json:"feed"`
	Exams           []Exam     `json:"exams"`
}

// CourseSummary is the listing view of a course, without nested content.
type CourseSummary struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Instructor  string  `json:"instructor"`
	Price       float64 `json:"price"`
	Thumbnail   string  `json:"thumbnail,omitempty"`
}

// Video is a single course video hosted on YouTube.
type Video struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	YoutubeID string `json:"youtubeId"`
}

// Material is a downloadable course resource.
type Material struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	URL   string `json:"url"`
}

// FeedPost is an announcement on a course feed.
type FeedPost struct {
	ID       string    `json:"id"`
	Author   string    `json:"author"`
	Content  string    `json:"content"`
	PostedAt time.Time `json:"postedAt"`
}
