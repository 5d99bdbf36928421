package models

import "time"

type Contact struct {
	ID             string
	FirstName      string
	LastName       string
	Email          string
	PhoneNumber    string
	Birthday       time.Time
	AdditionalData *string
	OwnerID        string
	CreatedAt      time.Time
}

// ContactPatch carries a partial update; nil fields are left unchanged.
type ContactPatch struct {
	FirstName      *string
	LastName       *string
	Email          *string
	PhoneNumber    *string
	Birthday       *time.Time
	AdditionalData *string
}

// Apply copies every non-nil field of p onto c.
func (p ContactPatch) Apply(c *Contact) {
	if p.FirstName != nil {
		c.FirstName = *p.FirstName
	}
	if p.LastName != nil {
		c.LastName = *p.LastName
	}
	if p.Email != nil {
		c.Email = *p.Email
	}
	if p.PhoneNumber != nil {
		c.PhoneNumber = *p.PhoneNumber
	}
	if p.Birthday != nil {
		c.Birthday = *p.Birthday
	}
	if p.AdditionalData != nil {
		c.AdditionalData = p.AdditionalData
	}
}

// Empty reports whether the patch changes nothing.
func (p ContactPatch) Empty() bool {
	return p.FirstName == nil && p.LastName == nil && p.Email == nil &&
		p.PhoneNumber == nil && p.Birthday == nil && p.AdditionalData == nil
}
