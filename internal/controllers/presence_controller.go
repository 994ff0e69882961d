package controllers

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/et1613/chitchatproject-sub001/internal/dtos"
	"github.com/et1613/chitchatproject-sub001/internal/registry"
	"github.com/et1613/chitchatproject-sub001/internal/utils"
)

type PresenceController struct {
	registry *registry.Registry
}

func NewPresenceController(reg *registry.Registry) *PresenceController {
	return &PresenceController{registry: reg}
}

func (c *PresenceController) GetStatus(w http.ResponseWriter, r *http.Request) {
	subjectID := mux.Vars(r)["subjectID"]
	st := c.registry.GetStatus(subjectID)
	utils.RespondWithJSON(w, http.StatusOK, dtos.PresenceStatusResponse{
		SubjectID:    subjectID,
		Online:       st.Online,
		SessionCount: st.SessionCount,
		LastSeen:     st.LastSeen,
	})
}

func (c *PresenceController) ListActive(w http.ResponseWriter, r *http.Request) {
	subjects := []string{}
	for subjectID := range c.registry.ListActiveSubjects() {
		subjects = append(subjects, subjectID)
	}
	utils.RespondWithJSON(w, http.StatusOK, dtos.ActiveSubjectsResponse{Subjects: subjects})
}

// SendToSubject fans the payload out to every live session of one subject.
func (c *PresenceController) SendToSubject(w http.ResponseWriter, r *http.Request) {
	subjectID := mux.Vars(r)["subjectID"]
	var req dtos.SendMessageRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	delivered := c.registry.SendToSubject(subjectID, []byte(req.Payload))
	utils.RespondWithJSON(w, http.StatusOK, dtos.SendMessageResponse{Delivered: delivered})
}

// Broadcast fans the payload out system-wide, best effort.
func (c *PresenceController) Broadcast(w http.ResponseWriter, r *http.Request) {
	var req dtos.SendMessageRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	delivered := c.registry.Broadcast([]byte(req.Payload))
	utils.RespondWithJSON(w, http.StatusOK, dtos.SendMessageResponse{Delivered: delivered})
}
