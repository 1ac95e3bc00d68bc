package model

import "time"

type Session struct {
	ID                      string     `json:"id"`
	SessionToken            string     `json:"session_token"`
	StudentName             *string    `json:"student_name"`
	StudentClass            *string    `json:"student_class"`
	StudentEmail            *string    `json:"student_email"`
	StudentMobile           *string    `json:"student_mobile"`
	RegistrationCompleted   bool       `json:"registration_completed"`
	RegistrationCompletedAt *time.Time `json:"registration_completed_at"`
	Step1Verified           bool       `json:"step1_verified"`
	Step1VerifiedAt         *time.Time `json:"step1_verified_at"`
	Step1ScreenshotURL      *string    `json:"step1_screenshot_url"`
	Step2Verified           bool       `json:"step2_verified"`
	Step2VerifiedAt         *time.Time `json:"step2_verified_at"`
	Step2ScreenshotURL      *string    `json:"step2_screenshot_url"`
	DriveLinkAccessed       bool       `json:"drive_link_accessed"`
	DriveLinkAccessedAt     *time.Time `json:"drive_link_accessed_at"`
	CreatedAt               time.Time  `json:"created_at"`
}

type Identity struct {
	Name   string
	Class  *string
	Email  *string
	Mobile string
}

type PageView struct {
	ID           string
	PagePath     string
	SessionToken string
	UserAgent    *string
	IPAddress    *string
	CreatedAt    time.Time
}
