// Package models declares the flashcard application's entities.
package models

import (
	"time"

	"github.com/marshallshelly/memra/pkg/schema"
)

type User struct {
	schema.Model
	Username string  `memra:"username" json:"username"`
	Email    string  `memra:"email" json:"email"`
	RealName *string `memra:"real_name" json:"real_name,omitempty"`
	Verified *bool   `memra:"verified" json:"verified,omitempty"`
}

// Credentials holds a user's password hash. It is never served over HTTP.
type Credentials struct {
	schema.Model
	UserID   int64  `memra:"user_id,foreign(User),owner" json:"user_id"`
	Password string `memra:"password" json:"password"`
}

func (Credentials) TableName() string { return "credentials" }

type Course struct {
	schema.Model
	UserID     int64   `memra:"user_id,foreign(User),owner" json:"user_id"`
	Visibility *bool   `memra:"visibility,visibility" json:"visibility,omitempty"`
	Name       string  `memra:"name" json:"name"`
	Image      *[]byte `memra:"image" json:"image,omitempty"`
}

type Deck struct {
	schema.Model
	UserID     int64   `memra:"user_id,foreign(User),owner" json:"user_id"`
	Visibility *bool   `memra:"visibility,visibility" json:"visibility,omitempty"`
	Name       string  `memra:"name" json:"name"`
	Image      *[]byte `memra:"image" json:"image,omitempty"`
}

type Card struct {
	schema.Model
	UserID int64   `memra:"user_id,foreign(User),owner" json:"user_id"`
	DeckID int64   `memra:"deck_id,foreign(Deck)" json:"deck_id"`
	Front  *[]byte `memra:"front" json:"front,omitempty"`
	Back   *[]byte `memra:"back" json:"back,omitempty"`
}

// History is one review of a card.
type History struct {
	schema.Model
	UserID       int64      `memra:"user_id,foreign(User),owner" json:"user_id"`
	CardID       int64      `memra:"card_id,foreign(Card)" json:"card_id"`
	Ts           *time.Time `memra:"ts" json:"ts,omitempty"`
	NumConfident int32      `memra:"num_confident" json:"num_confident"`
	NumCorrect   int32      `memra:"num_correct" json:"num_correct"`
	NumWrong     int32      `memra:"num_wrong" json:"num_wrong"`
}

func (History) TableName() string { return "history" }

type Settings struct {
	schema.Model
	UserID        int64   `memra:"user_id,foreign(User),owner" json:"user_id"`
	PublicProfile *bool   `memra:"public_profile" json:"public_profile,omitempty"`
	Avatar        *[]byte `memra:"avatar" json:"avatar,omitempty"`
}

func (Settings) TableName() string { return "settings" }

type Notification struct {
	schema.Model
	UserID  int64      `memra:"user_id,foreign(User),owner" json:"user_id"`
	Ts      *time.Time `memra:"ts" json:"ts,omitempty"`
	Message string     `memra:"message" json:"message"`
	Icon    *[]byte    `memra:"icon" json:"icon,omitempty"`
}

type Addon struct {
	schema.Model
	UserID      int64   `memra:"user_id,foreign(User),owner" json:"user_id"`
	Visibility  *bool   `memra:"visibility,visibility" json:"visibility,omitempty"`
	Name        string  `memra:"name" json:"name"`
	Description string  `memra:"description" json:"description"`
	Data        *[]byte `memra:"data" json:"data,omitempty"`
}

// CourseDeck places a deck in a course.
type CourseDeck struct {
	schema.Model
	CourseID int64 `memra:"course_id,foreign(Course)" json:"course_id"`
	DeckID   int64 `memra:"deck_id,foreign(Deck)" json:"deck_id"`
}

func (CourseDeck) TableName() string { return "coursedecks" }

// Follower links two users. The follower owns the row.
type Follower struct {
	schema.Model
	FollowerID  int64 `memra:"follower_id,foreign(User),as(followers),owner" json:"follower_id"`
	FollowingID int64 `memra:"following_id,foreign(User),as(following)" json:"following_id"`
}

type CourseSubscription struct {
	schema.Model
	UserID   int64 `memra:"user_id,foreign(User),owner" json:"user_id"`
	CourseID int64 `memra:"course_id,foreign(Course)" json:"course_id"`
}

type DeckSubscription struct {
	schema.Model
	UserID int64 `memra:"user_id,foreign(User),owner" json:"user_id"`
	DeckID int64 `memra:"deck_id,foreign(Deck)" json:"deck_id"`
}

// All lists every entity in dependency order.
func All() []any {
	return []any{
		User{},
		Credentials{},
		Course{},
		Deck{},
		Card{},
		History{},
		Settings{},
		Notification{},
		Addon{},
		CourseDeck{},
		Follower{},
		CourseSubscription{},
		DeckSubscription{},
	}
}
