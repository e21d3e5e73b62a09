package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/akarpov91/vaultd/internal/common"
	"github.com/akarpov91/vaultd/internal/server/models"
	"github.com/akarpov91/vaultd/internal/server/services"
)

type createRecordRequest struct {
	Type     models.RecordType   `json:"type"`
	Source   models.RecordSource `json:"source"`
	SourceID string              `json:"source_id"`
	Title    string              `json:"title"`
	Content  string              `json:"content"`
	Metadata map[string]any      `json:"metadata"`
	Tags     []string            `json:"tags"`
	FilePath string              `json:"file_path"`
}

func (h *Handler) handleCreateRecord(w http.ResponseWriter, r *http.Request) {
	identity := identityFrom(r.Context())

	var req createRecordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, common.ErrValidation)
		return
	}
	if req.Title == "" {
		writeError(w, common.ErrValidation)
		return
	}

	record, err := h.records.Create(r.Context(), identity, services.CreateRecordInput{
		Type:     req.Type,
		Source:   req.Source,
		SourceID: req.SourceID,
		Title:    req.Title,
		Content:  req.Content,
		Metadata: req.Metadata,
		Tags:     req.Tags,
		FilePath: req.FilePath,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, record)
}

func (h *Handler) handleGetRecord(w http.ResponseWriter, r *http.Request) {
	identity := identityFrom(r.Context())

	id := chi.URLParam(r, "id")
	record, err := h.records.Get(r.Context(), identity, id)
	if err != nil {
		if errors.Is(err, common.ErrAuthentication) {
			// Wrong key or a tampered blob; this never succeeds on retry.
			h.logger.Error(r.Context(), "record failed ciphertext authentication",
				"record_id", id)
		}
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, record)
}

type listRecordsResponse struct {
	Items   []*models.DecryptedRecord `json:"items"`
	Total   int                       `json:"total"`
	HasMore bool                      `json:"has_more"`
}

func (h *Handler) handleListRecords(w http.ResponseWriter, r *http.Request) {
	identity := identityFrom(r.Context())
	q := r.URL.Query()

	input := services.ListRecordsInput{
		Type:        models.RecordType(q.Get("type")),
		Source:      models.RecordSource(q.Get("source")),
		TagNames:    q["tag"],
		TitleSearch: q.Get("search"),
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, common.ErrValidation)
			return
		}
		input.Offset = n
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, common.ErrValidation)
			return
		}
		input.Limit = n
	}

	res, err := h.records.List(r.Context(), identity, input)
	if err != nil {
		if errors.Is(err, common.ErrAuthentication) {
			h.logger.Error(r.Context(), "record failed ciphertext authentication")
		}
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, listRecordsResponse{
		Items:   res.Items,
		Total:   res.Total,
		HasMore: res.HasMore,
	})
}

type updateRecordRequest struct {
	Type     *models.RecordType `json:"type"`
	Title    *string            `json:"title"`
	Content  *string            `json:"content"`
	Metadata *map[string]any    `json:"metadata"`
	Tags     *[]string          `json:"tags"`
	FilePath *string            `json:"file_path"`
}

func (h *Handler) handleUpdateRecord(w http.ResponseWriter, r *http.Request) {
	identity := identityFrom(r.Context())

	var req updateRecordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, common.ErrValidation)
		return
	}

	record, err := h.records.Update(r.Context(), identity, chi.URLParam(r, "id"), services.UpdateRecordInput{
		Type:     req.Type,
		Title:    req.Title,
		Content:  req.Content,
		Metadata: req.Metadata,
		Tags:     req.Tags,
		FilePath: req.FilePath,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, record)
}

func (h *Handler) handleDeleteRecord(w http.ResponseWriter, r *http.Request) {
	identity := identityFrom(r.Context())

	deletedAt, err := h.records.Delete(r.Context(), identity, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"deleted_at": deletedAt})
}

func (h *Handler) handleUploadURL(w http.ResponseWriter, r *http.Request) {
	key, url, err := h.records.GetPresignedPutUrl(r.Context())
	if err != nil {
		h.logger.Error(r.Context(), "presigning upload", "error", err)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"file_path":  key,
		"upload_url": url,
	})
}

func (h *Handler) handleDownloadURL(w http.ResponseWriter, r *http.Request) {
	identity := identityFrom(r.Context())

	url, err := h.records.GetPresignedGetUrl(r.Context(), identity, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"download_url": url})
}

type createTagRequest struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

func (h *Handler) handleListTags(w http.ResponseWriter, r *http.Request) {
	identity := identityFrom(r.Context())

	tags, err := h.tags.List(r.Context(), identity.ID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, tags)
}

func (h *Handler) handleCreateTag(w http.ResponseWriter, r *http.Request) {
	identity := identityFrom(r.Context())

	var req createTagRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, common.ErrValidation)
		return
	}

	tag, err := h.tags.Create(r.Context(), identity.ID, req.Name, req.Color)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, tag)
}

func (h *Handler) handleGetTag(w http.ResponseWriter, r *http.Request) {
	identity := identityFrom(r.Context())

	tag, err := h.tags.Get(r.Context(), identity.ID, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, tag)
}

func (h *Handler) handleUpdateTag(w http.ResponseWriter, r *http.Request) {
	identity := identityFrom(r.Context())

	var req createTagRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, common.ErrValidation)
		return
	}

	tag, err := h.tags.Update(r.Context(), identity.ID, chi.URLParam(r, "id"), req.Name, req.Color)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, tag)
}

func (h *Handler) handleDeleteTag(w http.ResponseWriter, r *http.Request) {
	identity := identityFrom(r.Context())

	if err := h.tags.Delete(r.Context(), identity.ID, chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
