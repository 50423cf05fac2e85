package models

import "time"

// LinkKind discriminates the two payload variants of a link.
type LinkKind string

const (
	KindText LinkKind = "text"
	KindBlob LinkKind = "blob"
)

// Valid reports whether k is one of the two closed variants.
func (k LinkKind) Valid() bool {
	return k == KindText || k == KindBlob
}

// Link is a redeemable pointer to stored text or a blob, with expiry,
// password, view-budget, and recipient constraints.
//
// Payload holds the inline text for KindText and the object-storage key for
// KindBlob. RetrievalURL is the current signed download URL for KindBlob,
// re-issued whenever the expiry changes.
//
// MaxViews and RemainingViews are nil together (unlimited) or set together;
// RemainingViews never exceeds MaxViews and never goes below zero.
type Link struct {
	ID                 string
	Kind               LinkKind
	Payload            string
	RetrievalURL       string
	CreatedAt          time.Time
	ExpiresAt          time.Time
	PasswordHash       string
	OwnerID            string
	DisplayName        string
	AllowedViewerEmail string
	MaxViews           *int
	RemainingViews     *int
}

// Protected reports whether redeeming the link requires a password.
func (l *Link) Protected() bool {
	return l.PasswordHash != ""
}
