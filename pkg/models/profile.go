package models

import (
	"strings"
	"time"
)

// Job is the read-only job record consumed from the discovery collaborator.
// Only the URL drives strategy selection; title and company feed
// notifications and confirmation metadata.
type Job struct {
	ID      string `json:"id" validate:"required"`
	URL     string `json:"url" validate:"required,url"`
	Title   string `json:"title"`
	Company string `json:"company"`
}

// PersonalInfo is the profile data used to fill application forms
type PersonalInfo struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email" validate:"omitempty,email"`
	Phone     string `json:"phone"`
	Address   string `json:"address"`
	City      string `json:"city"`
	State     string `json:"state"`
	ZipCode   string `json:"zip_code"`
	LinkedIn  string `json:"linkedin"`
	Website   string `json:"website"`
}

// FullName joins first and last name, trimming when either is empty
func (p PersonalInfo) FullName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

// ExperienceEntry is one work-history entry of a user profile
type ExperienceEntry struct {
	Title     string     `json:"title"`
	Company   string     `json:"company"`
	StartDate time.Time  `json:"start_date"`
	EndDate   *time.Time `json:"end_date,omitempty"`
}

// UserProfile is the read-only user record consumed for form filling
type UserProfile struct {
	ID           string            `json:"id" validate:"required"`
	PersonalInfo PersonalInfo      `json:"personal_info"`
	Experience   []ExperienceEntry `json:"experience,omitempty"`
}

// YearsOfExperience derives a portal-friendly answer for experience
// questions from the number of experience entries, clamped to 1..10. Falls
// back to 3 for profiles with no history, matching what most qualification
// dropdowns accept.
func (u *UserProfile) YearsOfExperience() int {
	if len(u.Experience) == 0 {
		return 3
	}
	years := len(u.Experience)
	if years < 1 {
		years = 1
	}
	if years > 10 {
		years = 10
	}
	return years
}
