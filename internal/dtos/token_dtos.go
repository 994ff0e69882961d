package dtos

import "time"

// ----------------------
// Issue
// ----------------------

type IssueTokenRequest struct {
	SubjectID string            `json:"subject_id" validate:"required"`
	Type      string            `json:"type" validate:"required,oneof=access url session"`
	ExpiresAt *time.Time        `json:"expires_at,omitempty"`
	IPAddress string            `json:"ip_address,omitempty"`
	UserAgent string            `json:"user_agent,omitempty"`
	DeviceID  string            `json:"device_id,omitempty"`
	Extra     map[string]string `json:"extra,omitempty"`
}

type IssueTokenResponse struct {
	Token     string    `json:"token"`
	SubjectID string    `json:"subject_id"`
	Type      string    `json:"type"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ----------------------
// Validate
// ----------------------

type ValidateTokenRequest struct {
	Token string `json:"token" validate:"required"`
	Type  string `json:"type" validate:"required,oneof=access url session"`
}

type ValidateTokenResponse struct {
	Valid bool `json:"valid"`
}

// ----------------------
// Revoke
// ----------------------

type RevokeTokenRequest struct {
	Token  string `json:"token" validate:"required"`
	Reason string `json:"reason,omitempty"`
}

type RevokeAllRequest struct {
	SubjectID string `json:"subject_id" validate:"required"`
	Type      string `json:"type,omitempty" validate:"omitempty,oneof=access url session"`
	Reason    string `json:"reason,omitempty"`
}

type RevokeAllResponse struct {
	Revoked int `json:"revoked"`
}

// ----------------------
// Rotate
// ----------------------

type RotateTokenRequest struct {
	OldToken  string `json:"old_token" validate:"required"`
	SubjectID string `json:"subject_id" validate:"required"`
	Type      string `json:"type" validate:"required,oneof=access url session"`
}

// ----------------------
// Signed URL tokens
// ----------------------

type IssueURLTokenRequest struct {
	URL        string `json:"url" validate:"required,url"`
	TTLSeconds int64  `json:"ttl_seconds,omitempty" validate:"omitempty,min=1"`
}

type IssueURLTokenResponse struct {
	Token string `json:"token"`
}

type ValidateURLTokenRequest struct {
	Token string `json:"token" validate:"required"`
	URL   string `json:"url" validate:"required,url"`
}
