package server

import (
	"crypto/subtle"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"wedding-rsvp/internal/models"
	"wedding-rsvp/internal/sheets"
)

const maxSubmissionBytes = 1 << 20

func (s *Server) party(c *gin.Context) {
	s.lookup(c, sheets.ActionParty)
}

func (s *Server) rsvpStatus(c *gin.Context) {
	s.lookup(c, sheets.ActionRSVPStatus)
}

// lookup forwards a token-keyed GET to the spreadsheet and relays its JSON.
func (s *Server) lookup(c *gin.Context, action string) {
	token := strings.TrimSpace(c.Query("token"))
	if token == "" {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "Falta token"})
		return
	}
	if !s.sheets.CanRead() {
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": "Falta GSHEET_GET_URL en variables de entorno"})
		return
	}

	resp, err := s.sheets.Lookup(c.Request.Context(), action, token)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": err.Error()})
		return
	}
	if !json.Valid(resp.Body) {
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": "Respuesta inválida de la hoja"})
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", resp.Body)
}

// submission is the part of a request body the API inspects. Everything else
// is forwarded untouched.
type submission struct {
	Token models.LooseString `json:"token"`
	Rows  json.RawMessage    `json:"rows"`
}

func (s *Server) submit(c *gin.Context) {
	if !s.sheets.CanWrite() {
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": "Falta GSHEET_POST_URL en variables de entorno"})
		return
	}

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxSubmissionBytes))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "No se pudo leer la solicitud"})
		return
	}
	var in submission
	if err := json.Unmarshal(body, &in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "JSON inválido"})
		return
	}

	ctx := c.Request.Context()
	token := strings.TrimSpace(string(in.Token))
	if len(in.Rows) > 0 {
		s.log.Info().Msg("Forwarding legacy multi-row submission")
	}

	// Only the first confirmation per token is accepted.
	if token != "" && s.sheets.CanRead() {
		lookup, err := s.sheets.Status(ctx, token)
		switch {
		case err != nil:
			s.log.Warn().Err(err).Str("token", token).Msg("Duplicate check failed, forwarding anyway")
		case lookup.Found():
			s.log.Info().Str("token", token).Msg("Rejecting duplicate confirmation")
			c.JSON(http.StatusConflict, gin.H{
				"ok":     false,
				"reason": models.ReasonAlreadyConfirmed,
				"status": lookup.Status,
			})
			return
		}
	}

	resp, err := s.sheets.Append(ctx, body)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": err.Error()})
		return
	}
	text := resp.Text()
	if !resp.OK() {
		msg := text
		if msg == "" {
			msg = "Error en Apps Script"
		}
		c.JSON(http.StatusBadGateway, gin.H{"ok": false, "error": msg})
		return
	}
	if json.Valid(resp.Body) {
		c.Data(http.StatusOK, "application/json; charset=utf-8", resp.Body)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "text": text})
}

func (s *Server) adminList(c *gin.Context) {
	var in struct {
		Password string `json:"password"`
	}
	_ = c.ShouldBindJSON(&in)
	if in.Password == "" || subtle.ConstantTimeCompare([]byte(in.Password), []byte(s.password)) != 1 {
		c.JSON(http.StatusUnauthorized, gin.H{"ok": false, "error": "No autorizado"})
		return
	}
	if !s.sheets.CanList() {
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": "Faltan variables de entorno"})
		return
	}

	resp, err := s.sheets.List(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": err.Error()})
		return
	}
	if !resp.OK() {
		c.JSON(http.StatusBadGateway, gin.H{"ok": false, "error": resp.Text()})
		return
	}
	if !json.Valid(resp.Body) {
		c.JSON(http.StatusOK, gin.H{"ok": true, "rows": []any{}})
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", resp.Body)
}
