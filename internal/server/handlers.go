// Package server provides HTTP handlers and server setup for the file chat service.
package server

import (
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"filechat/internal/core"
	"filechat/internal/extract"
	"filechat/internal/prompt"
	"filechat/internal/upload"
)

// filesField is the multipart field carrying uploads on both endpoints.
const filesField = "files"

// Deps are the collaborators a Handler is built from.
type Deps struct {
	Gateway   core.Gateway
	Store     *upload.Store
	Extractor *extract.Extractor
	Assembler *prompt.Assembler
}

// Handler holds the HTTP handlers
type Handler struct {
	gateway     core.Gateway
	store       *upload.Store
	extractor   *extract.Extractor
	assembler   *prompt.Assembler
	generation  core.GenerationConfig
	development bool
}

// NewHandler creates a new handler with the given collaborators
func NewHandler(deps Deps, generation core.GenerationConfig, development bool) *Handler {
	assembler := deps.Assembler
	if assembler == nil {
		assembler = prompt.NewAssembler("")
	}
	return &Handler{
		gateway:     deps.Gateway,
		store:       deps.Store,
		extractor:   deps.Extractor,
		assembler:   assembler,
		generation:  generation,
		development: development,
	}
}

// ChatResponse is the body of a successful chat turn.
type ChatResponse struct {
	Response string   `json:"response"`
	Warnings []string `json:"warnings,omitempty"`
}

// ChatErrorResponse is the body of a failed chat turn.
type ChatErrorResponse struct {
	Error   string   `json:"error"`
	Details string   `json:"details"`
	Stack   []string `json:"stack,omitempty"`
}

// ProcessFilesResponse is the body of a successful batch request.
type ProcessFilesResponse struct {
	Success    bool                    `json:"success"`
	Files      []core.ExtractionResult `json:"files"`
	AIResponse string                  `json:"aiResponse"`
}

// ProcessFilesErrorResponse is the body of a failed batch request.
type ProcessFilesErrorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Error   string `json:"error"`
}

// Chat handles POST /api/chat
func (h *Handler) Chat(c echo.Context) error {
	ctx := c.Request().Context()
	log := core.Logger(ctx)

	form, err := readMultipart(c)
	if err != nil {
		return h.chatError(c, err)
	}
	defer removeForm(form)

	batch, err := h.store.SaveAll(fileHeaders(form))
	if err != nil {
		return h.chatError(c, err)
	}
	defer batch.Release()

	var warnings []string
	history, err := prompt.ParseHistory(c.FormValue("history"))
	if err != nil {
		log.Warn("ignoring malformed chat history", "error", err)
		warnings = append(warnings, "history ignored: "+err.Error())
	}

	files := h.extractor.ExtractAll(ctx, batch.Files)
	chat := h.assembler.Chat(c.FormValue("message"), history, files)

	text, err := h.gateway.SendChatTurn(ctx, chat, h.generation)
	if err != nil {
		return h.chatError(c, err)
	}

	log.Info("chat turn completed", "files", len(batch.Files), "history", len(chat.History))
	return c.JSON(http.StatusOK, ChatResponse{Response: text, Warnings: warnings})
}

// ProcessFiles handles POST /api/process-files
func (h *Handler) ProcessFiles(c echo.Context) error {
	ctx := c.Request().Context()

	form, err := readMultipart(c)
	if err != nil {
		return h.batchError(c, err)
	}
	defer removeForm(form)

	batch, err := h.store.SaveAll(fileHeaders(form))
	if err != nil {
		return h.batchError(c, err)
	}
	defer batch.Release()

	files := h.extractor.ExtractAll(ctx, batch.Files)
	parts := h.assembler.Batch(c.FormValue("prompt"), files)

	text, err := h.gateway.GenerateOnce(ctx, parts)
	if err != nil {
		return h.batchError(c, err)
	}

	core.Logger(ctx).Info("batch completed", "files", len(batch.Files))
	return c.JSON(http.StatusOK, ProcessFilesResponse{
		Success:    true,
		Files:      prompt.Reports(files),
		AIResponse: text,
	})
}

// Health handles GET /health
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) chatError(c echo.Context, err error) error {
	e := core.AsError(err)
	status := e.HTTPStatusCode()
	logFailure(c, e, status)

	if status < http.StatusInternalServerError {
		return c.JSON(status, ChatErrorResponse{Error: "File upload error", Details: e.Details()})
	}

	resp := ChatErrorResponse{Error: "Failed to process request", Details: e.Details()}
	if h.development {
		resp.Stack = core.ErrorChain(err)
	}
	return c.JSON(status, resp)
}

func (h *Handler) batchError(c echo.Context, err error) error {
	e := core.AsError(err)
	status := e.HTTPStatusCode()
	logFailure(c, e, status)

	message := "Error processing files"
	if status < http.StatusInternalServerError {
		message = "File upload error"
	}
	return c.JSON(status, ProcessFilesErrorResponse{Success: false, Message: message, Error: e.Details()})
}

func logFailure(c echo.Context, e *core.Error, status int) {
	log := core.Logger(c.Request().Context())
	if status >= http.StatusInternalServerError {
		log.Error("request failed", "type", e.Type, "provider", e.Provider, "error", e)
		return
	}
	log.Warn("request rejected", "type", e.Type, "error", e)
}

// readMultipart parses a multipart body. Requests without one carry no files
// and are read through FormValue alone.
func readMultipart(c echo.Context) (*multipart.Form, error) {
	ct := c.Request().Header.Get(echo.HeaderContentType)
	if !strings.HasPrefix(strings.ToLower(ct), echo.MIMEMultipartForm) {
		return nil, nil
	}
	form, err := c.MultipartForm()
	if err != nil {
		if isBodyTooLarge(err) {
			return nil, errBodyTooLarge(err)
		}
		return nil, core.NewUploadError("Unable to parse multipart body", err)
	}
	return form, nil
}

func fileHeaders(form *multipart.Form) []*multipart.FileHeader {
	if form == nil {
		return nil
	}
	return form.File[filesField]
}

// removeForm deletes temporary files the multipart parser spilled to disk.
func removeForm(form *multipart.Form) {
	if form != nil {
		_ = form.RemoveAll() //nolint:errcheck
	}
}
