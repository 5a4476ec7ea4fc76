package handlers

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"rsc.io/markdown"

	"commentgen/internal/models"
	"commentgen/internal/prompt"
)

//go:embed templates/index.html
var templateFS embed.FS

var pageTmpl = template.Must(template.ParseFS(templateFS, "templates/index.html"))

// Model replies are rendered as Markdown. Only the page's own script, which
// carries the per-render nonce, may run.
const pageCSP = "default-src 'none'; script-src 'nonce-%s'; connect-src 'self'; style-src 'unsafe-inline'; img-src 'self' data:; form-action 'self'; base-uri 'none'"

const (
	progressTokenTTL = 30 * time.Minute
	maxSessionIDLen  = 128
)

// progressTokenIssuer mints tokens that let the page watch its own session.
type progressTokenIssuer interface {
	GenerateProgressToken(session string, ttl time.Duration) (string, error)
}

type pageForm struct {
	Snippet    string
	Style      models.CommentStyle
	Language   string
	Template   string
	Preset     string
	Creativity models.Creativity
}

type pageData struct {
	Form         pageForm
	Styles       []models.CommentStyle
	Creativities []models.Creativity
	Presets      []models.PresetInfo
	Model        string
	Result       template.HTML
	Error        string

	// Progress indicator wiring.
	SessionID     string
	ProgressToken string
	Nonce         string
}

type UIHandler struct {
	generator commentGenerator
	builder   *prompt.Builder
	model     string
	maxBytes  int64
	md        *markdown.Parser
	tokens    progressTokenIssuer
}

func NewUIHandler(generator commentGenerator, builder *prompt.Builder, model string, maxBytes int64) *UIHandler {
	if builder == nil {
		builder = prompt.NewBuilder(nil)
	}
	return &UIHandler{
		generator: generator,
		builder:   builder,
		model:     model,
		maxBytes:  maxBytes,
		md: &markdown.Parser{
			Strikethrough: true,
			Table:         true,
			TaskList:      true,
		},
	}
}

// WithProgressTokens makes the page authenticate its progress websocket
// when the API requires tokens.
func (h *UIHandler) WithProgressTokens(tokens progressTokenIssuer) *UIHandler {
	h.tokens = tokens
	return h
}

// Index handles GET /.
func (h *UIHandler) Index(w http.ResponseWriter, r *http.Request) {
	h.render(w, http.StatusOK, h.newPage(pageForm{Creativity: models.CreativityLow}))
}

// Submit handles POST / from the form.
func (h *UIHandler) Submit(w http.ResponseWriter, r *http.Request) {
	if h.maxBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes)
	}
	if err := r.ParseForm(); err != nil {
		page := h.newPage(pageForm{Creativity: models.CreativityLow})
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			page.Error = "The snippet is too large."
			h.render(w, http.StatusRequestEntityTooLarge, page)
			return
		}
		page.Error = "The form could not be read. Please try again."
		h.render(w, http.StatusBadRequest, page)
		return
	}

	form := pageForm{
		Snippet:    r.PostForm.Get("snippet"),
		Style:      models.CommentStyle(r.PostForm.Get("style")),
		Language:   r.PostForm.Get("language"),
		Template:   r.PostForm.Get("template"),
		Preset:     r.PostForm.Get("preset"),
		Creativity: models.Creativity(r.PostForm.Get("creativity")),
	}
	page := h.newPage(form)

	sessionID := r.PostForm.Get("session_id")
	if len(sessionID) > maxSessionIDLen {
		sessionID = ""
	}

	result, err := h.generator.Generate(r.Context(), models.GenerateCommentRequest{
		Snippet:   form.Snippet,
		SessionID: sessionID,
		RequestID: r.Header.Get("X-Request-ID"),
		PromptConfig: models.PromptConfig{
			Style:      form.Style,
			Language:   form.Language,
			Template:   form.Template,
			Preset:     form.Preset,
			Creativity: form.Creativity,
		},
	})
	if err != nil {
		status, _ := errorStatus(err)
		page.Error = userMessage(err) + ". Please press Generate again or check logs for more details."
		h.render(w, status, page)
		return
	}

	page.Result = template.HTML(markdown.ToHTML(h.md.Parse(result.Comment)))
	h.render(w, http.StatusOK, page)
}

// newPage starts a fresh progress session for every render.
func (h *UIHandler) newPage(form pageForm) *pageData {
	info := styleInfo(h.builder)
	page := &pageData{
		Form:         form,
		Styles:       info.Styles,
		Creativities: info.Creativities,
		Presets:      info.Presets,
		Model:        h.model,
		SessionID:    uuid.NewString(),
		Nonce:        uuid.NewString(),
	}
	if h.tokens != nil {
		token, err := h.tokens.GenerateProgressToken(page.SessionID, progressTokenTTL)
		if err != nil {
			log.Warn().Err(err).Msg("failed to issue progress token")
		}
		page.ProgressToken = token
	}
	return page
}

func (h *UIHandler) render(w http.ResponseWriter, status int, page *pageData) {
	var buf bytes.Buffer
	if err := pageTmpl.Execute(&buf, page); err != nil {
		log.Error().Err(err).Msg("failed to render page")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Content-Security-Policy", fmt.Sprintf(pageCSP, page.Nonce))
	w.WriteHeader(status)
	w.Write(buf.Bytes())
}
