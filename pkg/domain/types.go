package domain

import "time"

// LearningStatus is a user-assigned progress marker on a saved course.
type LearningStatus string

const (
	StatusSaved      LearningStatus = "Saved"
	StatusInProgress LearningStatus = "In Progress"
	StatusCompleted  LearningStatus = "Completed"
)

// LearningStatuses lists statuses in display order.
var LearningStatuses = []LearningStatus{StatusSaved, StatusInProgress, StatusCompleted}

var nextLearningStatus = map[LearningStatus]LearningStatus{
	StatusSaved:      StatusInProgress,
	StatusInProgress: StatusCompleted,
	StatusCompleted:  StatusSaved,
}

// Next returns the status that follows s. Unknown statuses restart at Saved.
func (s LearningStatus) Next() LearningStatus {
	if next, ok := nextLearningStatus[s]; ok {
		return next
	}
	return StatusSaved
}

// Valid reports whether s is one of the known statuses.
func (s LearningStatus) Valid() bool {
	_, ok := nextLearningStatus[s]
	return ok
}

type Theme string

const (
	ThemeDark  Theme = "dark"
	ThemeLight Theme = "light"
)

type Course struct {
	Key              string   `json:"key" yaml:"key"`
	Title            string   `json:"title" yaml:"title"`
	InstructorID     int      `json:"instructorId" yaml:"instructorId"`
	Instructor       string   `json:"instructor" yaml:"instructor"`
	Duration         string   `json:"duration" yaml:"duration"`
	Thumbnail        string   `json:"thumbnail" yaml:"thumbnail"`
	Rating           float64  `json:"rating" yaml:"rating"`
	PreviewVideoID   string   `json:"previewVideoId" yaml:"previewVideoId"`
	Overview         string   `json:"overview" yaml:"overview"`
	WhatYouWillLearn []string `json:"what_you_will_learn" yaml:"whatYouWillLearn"`
	Subject          string   `json:"subject" yaml:"subject"`
	LessonsCount     int      `json:"lessons_count" yaml:"lessonsCount"`
}

type Instructor struct {
	ID           int      `json:"id" yaml:"id"`
	Name         string   `json:"name" yaml:"name"`
	Credentials  string   `json:"credentials" yaml:"credentials"`
	ProfilePath  string   `json:"profile_path" yaml:"profilePath"`
	Bio          string   `json:"bio" yaml:"bio"`
	Experience   string   `json:"experience" yaml:"experience"`
	Skills       []string `json:"skills" yaml:"skills"`
	Students     string   `json:"students" yaml:"students"`
	CoursesCount int      `json:"courses_count" yaml:"coursesCount"`
	Rating       float64  `json:"rating" yaml:"rating"`
}

// CommunityReview is a review written by another learner, served by the catalog.
type CommunityReview struct {
	ID       int    `json:"id" yaml:"id"`
	UserName string `json:"userName" yaml:"userName"`
	Rating   int    `json:"rating" yaml:"rating"`
	Comment  string `json:"comment" yaml:"comment"`
	Date     string `json:"date" yaml:"date"`
	Avatar   string `json:"avatar" yaml:"avatar"`
}

// User is the authenticated session owner.
type User struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Username string `json:"username"`
	Avatar   string `json:"avatar,omitempty"`
	Token    string `json:"token"`
}

// LearningItem is a saved course with its progress status. Course fields are
// flattened into the item when serialized.
type LearningItem struct {
	Course
	Status    LearningStatus `json:"status"`
	AddedAt   time.Time      `json:"addedAt"`
	UpdatedAt *time.Time     `json:"updatedAt,omitempty"`
}

// Review is the user's own review of a course.
type Review struct {
	Text      string    `json:"text"`
	Rating    int       `json:"rating"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type Credentials struct {
	Identifier string `json:"email"`
	Password   string `json:"password"`
}

type Registration struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}
