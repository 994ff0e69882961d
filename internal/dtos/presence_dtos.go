package dtos

import "time"

type PresenceStatusResponse struct {
	SubjectID    string    `json:"subject_id"`
	Online       bool      `json:"online"`
	SessionCount int       `json:"session_count"`
	LastSeen     time.Time `json:"last_seen,omitempty"`
}

type ActiveSubjectsResponse struct {
	Subjects []string `json:"subjects"`
}

type SendMessageRequest struct {
	Payload string `json:"payload" validate:"required"`
}

type SendMessageResponse struct {
	Delivered int `json:"delivered"`
}

type HealthCheckResponse struct {
	Status string `json:"status"`
}
