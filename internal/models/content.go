package models

import "time"

// ContentItem is a paid piece of content. ContentURL is the real location and
// is only ever disclosed through the entitlement gate.
type ContentItem struct {
	ID          string    `json:"id" db:"id" validate:"required,max=128"`
	Title       string    `json:"title" db:"title" validate:"max=200"`
	ContentURL  string    `json:"-" db:"content_url"`
	UnlockCost  int64     `json:"unlockCost" db:"unlock_cost" validate:"gte=0"`
	AccessCount int64     `json:"accessCount" db:"access_count"`
	CreatedAt   time.Time `json:"createdAt" db:"created_at"`
}

// Entitlement records that a user has unlocked a content item
type Entitlement struct {
	UserID     string    `json:"userId" db:"user_id"`
	ContentID  string    `json:"contentId" db:"content_id"`
	UnlockedAt time.Time `json:"unlockedAt" db:"unlocked_at"`
}
