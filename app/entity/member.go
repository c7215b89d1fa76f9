package entity

import "time"

type Member struct {
	ID uint64

	FirstName      string
	LastName       string
	DocumentNumber string
	Email          string
	Phone          *string

	Activity         Activity
	MembershipStatus MembershipStatus

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (m *Member) FullName() string {
	if m == nil {
		return ""
	}
	if m.LastName == "" {
		return m.FirstName
	}
	return m.FirstName + " " + m.LastName
}
