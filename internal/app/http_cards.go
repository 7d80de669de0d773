package app

import (
	"net/http"
	"strings"
)

func (s *HTTPServer) handleCards(w http.ResponseWriter, r *http.Request, session Session, parts []string) {
	if len(parts) == 2 && parts[1] == "search" && r.Method == http.MethodGet {
		query := r.URL.Query()
		limit, ok := queryInt(w, r, "limit")
		if !ok {
			return
		}
		payload, err := s.service.SearchCards(r.Context(), session.UserID, SearchInput{
			BoardID:     strings.TrimSpace(query.Get("boardId")),
			WorkspaceID: strings.TrimSpace(query.Get("workspaceId")),
			Query:       query.Get("q"),
			Label:       query.Get("label"),
			Assignee:    strings.TrimSpace(query.Get("assignee")),
			Limit:       limit,
		})
		respond(w, http.StatusOK, payload, err)
		return
	}
	if len(parts) < 2 {
		writeError(w, http.StatusNotFound, CodeNotFound, "Not found", nil)
		return
	}
	cardID := parts[1]

	if len(parts) == 2 {
		switch r.Method {
		case http.MethodGet:
			payload, err := s.service.GetCard(r.Context(), session.UserID, cardID)
			respond(w, http.StatusOK, payload, err)
		case http.MethodPatch:
			var body UpdateCardInput
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			payload, err := s.service.UpdateCard(r.Context(), session.UserID, cardID, body)
			respond(w, http.StatusOK, payload, err)
		case http.MethodDelete:
			payload, err := s.service.DeleteCard(r.Context(), session.UserID, cardID)
			respond(w, http.StatusOK, payload, err)
		default:
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		}
		return
	}

	if len(parts) == 3 && r.Method == http.MethodPost {
		switch parts[2] {
		case "position":
			var body struct {
				NewPosition     *int   `json:"newPosition"`
				ExpectedVersion *int64 `json:"expectedVersion"`
			}
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			payload, err := s.service.MoveCardWithin(r.Context(), session.UserID, cardID, body.NewPosition, body.ExpectedVersion)
			respond(w, http.StatusOK, payload, err)
			return
		case "move":
			var body struct {
				TargetListID string `json:"targetListId"`
				MoveInput
			}
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			body.TargetID = body.TargetListID
			payload, err := s.service.MoveCardToList(r.Context(), session.UserID, cardID, body.MoveInput)
			respond(w, http.StatusOK, payload, err)
			return
		case "archive":
			payload, err := s.service.ArchiveCard(r.Context(), session.UserID, cardID)
			respond(w, http.StatusOK, payload, err)
			return
		case "restore":
			payload, err := s.service.RestoreCard(r.Context(), session.UserID, cardID)
			respond(w, http.StatusOK, payload, err)
			return
		case "status":
			var body struct {
				Status string `json:"status"`
			}
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			payload, err := s.service.SetCardStatus(r.Context(), session.UserID, cardID, body.Status)
			respond(w, http.StatusOK, payload, err)
			return
		case "assignees":
			var body struct {
				UserID string `json:"userId"`
			}
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			payload, err := s.service.AssignCard(r.Context(), session.UserID, cardID, body.UserID)
			respond(w, http.StatusOK, payload, err)
			return
		case "attachments":
			var body struct {
				MediaID string `json:"mediaId"`
			}
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			payload, err := s.service.AttachMedia(r.Context(), session.UserID, cardID, body.MediaID)
			respond(w, http.StatusOK, payload, err)
			return
		case "comments":
			var body struct {
				MessageID string `json:"messageId"`
			}
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			payload, err := s.service.AddComment(r.Context(), session.UserID, cardID, body.MessageID)
			respond(w, http.StatusOK, payload, err)
			return
		case "checklist":
			var body struct {
				Text     string `json:"text"`
				Position *int   `json:"position"`
			}
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			payload, err := s.service.AddChecklistItem(r.Context(), session.UserID, cardID, body.Text, body.Position)
			respond(w, http.StatusCreated, payload, err)
			return
		}
	}

	if len(parts) == 3 && parts[2] == "labels" && r.Method == http.MethodPut {
		var body struct {
			Labels []string `json:"labels"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		payload, err := s.service.SetCardLabels(r.Context(), session.UserID, cardID, body.Labels)
		respond(w, http.StatusOK, payload, err)
		return
	}

	if len(parts) == 4 && r.Method == http.MethodDelete {
		switch parts[2] {
		case "assignees":
			payload, err := s.service.UnassignCard(r.Context(), session.UserID, cardID, parts[3])
			respond(w, http.StatusOK, payload, err)
			return
		case "attachments":
			payload, err := s.service.DetachMedia(r.Context(), session.UserID, cardID, parts[3])
			respond(w, http.StatusOK, payload, err)
			return
		case "comments":
			payload, err := s.service.RemoveComment(r.Context(), session.UserID, cardID, parts[3])
			respond(w, http.StatusOK, payload, err)
			return
		case "checklist":
			payload, err := s.service.DeleteChecklistItem(r.Context(), session.UserID, cardID, parts[3])
			respond(w, http.StatusOK, payload, err)
			return
		}
	}

	if len(parts) == 5 && parts[2] == "checklist" && r.Method == http.MethodPost {
		itemID := parts[3]
		switch parts[4] {
		case "toggle":
			payload, err := s.service.ToggleChecklistItem(r.Context(), session.UserID, cardID, itemID)
			respond(w, http.StatusOK, payload, err)
			return
		case "position":
			var body struct {
				NewPosition *int `json:"newPosition"`
			}
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			payload, err := s.service.MoveChecklistItem(r.Context(), session.UserID, cardID, itemID, body.NewPosition)
			respond(w, http.StatusOK, payload, err)
			return
		}
	}

	writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
}
