package controllers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/et1613/chitchatproject-sub001/internal/dtos"
	"github.com/et1613/chitchatproject-sub001/internal/models"
	"github.com/et1613/chitchatproject-sub001/internal/services"
	"github.com/et1613/chitchatproject-sub001/internal/utils"
)

var tokenValidate = validator.New()

type TokenController struct {
	tokenService  services.TokenService
	signedService services.SignedTokenService
}

func NewTokenController(tokenService services.TokenService, signedService services.SignedTokenService) *TokenController {
	return &TokenController{tokenService: tokenService, signedService: signedService}
}

// IssueToken generates a fresh opaque bearer token and persists it.
func (c *TokenController) IssueToken(w http.ResponseWriter, r *http.Request) {
	var req dtos.IssueTokenRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	typ, _ := models.ParseTokenType(req.Type)

	metadata := &models.TokenMetadata{
		IPAddress: req.IPAddress,
		UserAgent: req.UserAgent,
		DeviceID:  req.DeviceID,
		Extra:     req.Extra,
	}
	if metadata.IPAddress == "" {
		metadata.IPAddress = utils.ClientIP(r)
	}

	token, err := c.tokenService.Store(r.Context(), req.SubjectID, typ, utils.GenerateSecureToken(64), req.ExpiresAt, metadata)
	if err != nil {
		utils.RespondErrorWithCode(w, http.StatusInternalServerError, utils.ErrCodeInternal, "Failed to issue token", nil, err)
		return
	}

	utils.RespondWithJSON(w, http.StatusCreated, dtos.IssueTokenResponse{
		Token:     token.Token,
		SubjectID: token.SubjectID,
		Type:      string(token.Type),
		ExpiresAt: token.ExpiresAt,
	})
}

// ValidateToken answers a uniform valid/invalid; expiry, revocation and
// blacklisting are indistinguishable to the caller on purpose.
func (c *TokenController) ValidateToken(w http.ResponseWriter, r *http.Request) {
	var req dtos.ValidateTokenRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	typ, _ := models.ParseTokenType(req.Type)

	valid, err := c.tokenService.Validate(r.Context(), req.Token, typ, utils.ClientIP(r), r.UserAgent())
	if err != nil {
		utils.RespondErrorWithCode(w, http.StatusInternalServerError, utils.ErrCodeInternal, "Validation unavailable", nil, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, dtos.ValidateTokenResponse{Valid: valid})
}

// RevokeToken is idempotent: revoking an unknown token still returns 200.
func (c *TokenController) RevokeToken(w http.ResponseWriter, r *http.Request) {
	var req dtos.RevokeTokenRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	if err := c.tokenService.Revoke(r.Context(), req.Token, req.Reason); err != nil {
		utils.RespondErrorWithCode(w, http.StatusInternalServerError, utils.ErrCodeInternal, "Failed to revoke token", nil, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, map[string]string{"message": "revoked"})
}

func (c *TokenController) RevokeAll(w http.ResponseWriter, r *http.Request) {
	var req dtos.RevokeAllRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	var typ *models.TokenType
	if req.Type != "" {
		parsed, _ := models.ParseTokenType(req.Type)
		typ = &parsed
	}

	revoked, err := c.tokenService.RevokeAllForSubject(r.Context(), req.SubjectID, typ, req.Reason)
	if err != nil {
		utils.RespondErrorWithCode(w, http.StatusInternalServerError, utils.ErrCodeInternal, "Failed to revoke subject tokens", nil, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, dtos.RevokeAllResponse{Revoked: revoked})
}

func (c *TokenController) RotateToken(w http.ResponseWriter, r *http.Request) {
	var req dtos.RotateTokenRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	typ, _ := models.ParseTokenType(req.Type)

	replacement, err := c.tokenService.Rotate(r.Context(), req.OldToken, req.SubjectID, typ)
	if err != nil {
		if errors.Is(err, utils.ErrTokenNotFound) {
			err = &utils.AppError{
				StatusCode: http.StatusNotFound,
				Code:       utils.ErrCodeNotFound,
				Message:    "Unknown token",
				Err:        err,
			}
		}
		utils.HandleAppError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, dtos.IssueTokenResponse{
		Token:     replacement.Token,
		SubjectID: replacement.SubjectID,
		Type:      string(replacement.Type),
		ExpiresAt: replacement.ExpiresAt,
	})
}

// IssueURLToken mints a signed, store-independent one-time-link token.
func (c *TokenController) IssueURLToken(w http.ResponseWriter, r *http.Request) {
	var req dtos.IssueURLTokenRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	token, err := c.signedService.GenerateURLToken(req.URL, time.Duration(req.TTLSeconds)*time.Second)
	if err != nil {
		utils.RespondErrorWithCode(w, http.StatusInternalServerError, utils.ErrCodeInternal, "Failed to sign URL token", nil, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusCreated, dtos.IssueURLTokenResponse{Token: token})
}

func (c *TokenController) ValidateURLToken(w http.ResponseWriter, r *http.Request) {
	var req dtos.ValidateURLTokenRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	valid := c.signedService.ValidateURLToken(req.Token, req.URL)
	utils.RespondWithJSON(w, http.StatusOK, dtos.ValidateTokenResponse{Valid: valid})
}

// decodeAndValidate binds the JSON body and runs struct validation,
// answering 400 itself on failure.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, req any) bool {
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		utils.RespondErrorWithCode(w, http.StatusBadRequest, utils.ErrCodeInvalidPayload, "Invalid payload", nil, err)
		return false
	}
	if err := tokenValidate.Struct(req); err != nil {
		utils.RespondErrorWithCode(w, http.StatusBadRequest, utils.ErrCodeValidation, "Invalid request fields", nil, err)
		return false
	}
	return true
}
