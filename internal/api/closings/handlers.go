// internal/api/closings/handlers.go
package closings

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/codr1/courtbook/internal/api/apiutil"
	"github.com/codr1/courtbook/internal/clock"
	"github.com/codr1/courtbook/internal/closing"
	"github.com/codr1/courtbook/internal/documents"
	"github.com/codr1/courtbook/internal/request"
)

const (
	closingTimeout     = 30 * time.Second
	closingReadTimeout = 5 * time.Second
)

var (
	closings    *closing.Service
	docs        *documents.Store
	handlerOnce sync.Once
)

// InitHandlers must be called during server startup before handling requests.
func InitHandlers(svc *closing.Service, store *documents.Store) {
	if svc == nil || store == nil {
		return
	}
	handlerOnce.Do(func() {
		closings = svc
		docs = store
	})
}

type generateRequest struct {
	Dates []clock.Date `json:"dates" validate:"required,min=1,max=62"`
	Note  string       `json:"note" validate:"max=1000"`
}

// POST /api/v1/closings
func HandleGenerate(w http.ResponseWriter, r *http.Request) {
	if closings == nil {
		log.Ctx(r.Context()).Error().Msg("Closing service not initialized")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	var req generateRequest
	if err := apiutil.DecodeAndValidate(r, &req); err != nil {
		apiutil.WriteError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), closingTimeout)
	defer cancel()

	c, err := closings.Generate(ctx, closing.GenerateInput{
		Dates:     req.Dates,
		Note:      req.Note,
		CreatedBy: request.Actor(r.Context()),
	})
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}

	w.Header().Set("Location", "/api/v1/closings/"+strconv.FormatInt(c.ID, 10))
	apiutil.Respond(w, r, http.StatusCreated, c)
}

type listResponse struct {
	Closings []closing.Closing `json:"closings"`
}

// GET /api/v1/closings?limit=
func HandleList(w http.ResponseWriter, r *http.Request) {
	if closings == nil {
		log.Ctx(r.Context()).Error().Msg("Closing service not initialized")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	limit, _, err := request.Int(r, "limit")
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), closingReadTimeout)
	defer cancel()

	list, err := closings.List(ctx, limit)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	apiutil.Respond(w, r, http.StatusOK, listResponse{Closings: list})
}

// GET /api/v1/closings/{id}
func HandleGet(w http.ResponseWriter, r *http.Request) {
	if closings == nil {
		log.Ctx(r.Context()).Error().Msg("Closing service not initialized")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	id, err := request.PathID(r, "id")
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), closingReadTimeout)
	defer cancel()

	c, err := closings.Get(ctx, id)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	apiutil.Respond(w, r, http.StatusOK, c)
}

// GET /api/v1/documents/{key}
func HandleDocument(w http.ResponseWriter, r *http.Request) {
	if docs == nil {
		log.Ctx(r.Context()).Error().Msg("Document store not initialized")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), closingReadTimeout)
	defer cancel()

	doc, err := docs.Get(ctx, strings.TrimSpace(r.PathValue("key")))
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", doc.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(doc.Data)))
	if doc.Name != "" {
		w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", doc.Name))
	}
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(doc.Data); err != nil {
		log.Ctx(r.Context()).Error().Err(err).Str("doc_key", doc.Key).Msg("Failed to write document")
	}
}
