package http

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/atinyakov/doafavor/internal/middleware"
	"github.com/atinyakov/doafavor/internal/models"
)

const maxDocumentBytes = 1 << 20

// DocumentRepository defines the document store operations required by the
// handlers.
type DocumentRepository interface {
	Query(ctx context.Context, collection, field, value string) ([]models.Document, error)
	CreateOrReplace(ctx context.Context, collection, key string, data json.RawMessage) error
	Append(ctx context.Context, collection string, data json.RawMessage) (string, error)
}

// DocumentHandler serves the /v1/documents endpoints.
type DocumentHandler struct {
	Repo     DocumentRepository
	Validate *validator.Validate
	Log      *zap.Logger
}

// NewDocumentHandler builds a DocumentHandler with a fresh validator.
func NewDocumentHandler(repo DocumentRepository, log *zap.Logger) *DocumentHandler {
	return &DocumentHandler{Repo: repo, Validate: validator.New(), Log: log}
}

type queryParams struct {
	Collection string `validate:"required,alphanum,max=64"`
	Field      string `validate:"required,max=64"`
	Value      string `validate:"max=512"`
}

// Query handles GET /v1/documents/{collection}?field=&value= and returns
// every document whose top-level field equals value.
func (h *DocumentHandler) Query(w http.ResponseWriter, r *http.Request) {
	p := queryParams{
		Collection: chi.URLParam(r, "collection"),
		Field:      r.URL.Query().Get("field"),
		Value:      r.URL.Query().Get("value"),
	}
	if err := h.Validate.Struct(p); err != nil {
		writeError(w, http.StatusBadRequest, CodeInvalidRequest)
		return
	}

	docs, err := h.Repo.Query(r.Context(), p.Collection, p.Field, p.Value)
	if err != nil {
		h.Log.Error("query documents", zap.String("collection", p.Collection), zap.Error(err))
		writeError(w, http.StatusInternalServerError, CodeInternal)
		return
	}
	if docs == nil {
		docs = []models.Document{}
	}
	writeJSON(w, http.StatusOK, docs)
}

// Put handles PUT /v1/documents/{collection}/{key}.
func (h *DocumentHandler) Put(w http.ResponseWriter, r *http.Request) {
	collection, key := chi.URLParam(r, "collection"), chi.URLParam(r, "key")
	if h.Validate.Var(collection, "required,alphanum,max=64") != nil || h.Validate.Var(key, "required,max=128") != nil {
		writeError(w, http.StatusBadRequest, CodeInvalidRequest)
		return
	}
	data, ok := readDocument(w, r)
	if !ok {
		return
	}
	if !mayWrite(r.Context(), collection, key, data) {
		writeError(w, http.StatusForbidden, CodePermissionDenied)
		return
	}

	if err := h.Repo.CreateOrReplace(r.Context(), collection, key, data); err != nil {
		h.Log.Error("put document",
			zap.String("collection", collection),
			zap.String("key", key),
			zap.String("uid", middleware.GetUserIDFromContext(r.Context())),
			zap.Error(err))
		writeError(w, http.StatusInternalServerError, CodeInternal)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"key": key})
}

// Append handles POST /v1/documents/{collection} and answers with the
// generated key.
func (h *DocumentHandler) Append(w http.ResponseWriter, r *http.Request) {
	collection := chi.URLParam(r, "collection")
	if h.Validate.Var(collection, "required,alphanum,max=64") != nil {
		writeError(w, http.StatusBadRequest, CodeInvalidRequest)
		return
	}
	data, ok := readDocument(w, r)
	if !ok {
		return
	}
	if !mayWrite(r.Context(), collection, "", data) {
		writeError(w, http.StatusForbidden, CodePermissionDenied)
		return
	}

	key, err := h.Repo.Append(r.Context(), collection, data)
	if err != nil {
		h.Log.Error("append document",
			zap.String("collection", collection),
			zap.String("uid", middleware.GetUserIDFromContext(r.Context())),
			zap.Error(err))
		writeError(w, http.StatusInternalServerError, CodeInternal)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"key": key})
}

// mayWrite reports whether the session may write data to collection. An
// account record belongs to the uid it carries, and a keyed account record
// must also be stored under that uid. Other collections are open to any
// session. An empty key means the store generates one.
func mayWrite(ctx context.Context, collection, key string, data json.RawMessage) bool {
	if collection != models.UsersCollection {
		return true
	}
	uid := middleware.GetUserIDFromContext(ctx)
	if uid == "" || (key != "" && key != uid) {
		return false
	}
	var owner struct {
		UID *string `json:"uid"`
	}
	if err := json.Unmarshal(data, &owner); err != nil {
		return false
	}
	if owner.UID == nil {
		return key != ""
	}
	return *owner.UID == uid
}

// readDocument reads a JSON object body, writing a 400 when it is not one.
func readDocument(w http.ResponseWriter, r *http.Request) (json.RawMessage, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxDocumentBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeInvalidRequest)
		return nil, false
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(body, &obj); err != nil || obj == nil {
		writeError(w, http.StatusBadRequest, CodeInvalidRequest)
		return nil, false
	}
	return body, true
}
