package httpapi

import (
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/avelichko/linkvault/internal/common"
	"github.com/avelichko/linkvault/internal/server/models"
	"github.com/avelichko/linkvault/internal/server/services"
	"github.com/gin-gonic/gin"
)

// maxUploadBytes caps blob payloads read into memory.
const maxUploadBytes = 25 << 20

type createTextRequest struct {
	Item               string     `json:"item"`
	ExpiresAt          *time.Time `json:"expiresAt"`
	Password           string     `json:"password"`
	LinkName           string     `json:"linkName"`
	AllowedViewerEmail string     `json:"allowedViewerEmail"`
	MaxViews           *int       `json:"maxViews"`
}

// updateLinkRequest distinguishes an absent field from an explicit null,
// where null means "clear the setting" and absence means "leave it alone".
// The fields are value RawMessages, not pointers: the json decoder sets a
// pointer field to nil on null, erasing exactly the distinction needed here,
// while a value RawMessage keeps the literal null bytes.
type updateLinkRequest struct {
	ExpiresAt          *time.Time      `json:"expiresAt"`
	Password           json.RawMessage `json:"password"`
	LinkName           json.RawMessage `json:"linkName"`
	AllowedViewerEmail json.RawMessage `json:"allowedViewerEmail"`
	MaxViews           json.RawMessage `json:"maxViews"`
}

// patchString folds an optional JSON string into the patch convention:
// absent → nil (untouched), null → empty string (clear), string → value.
func patchString(raw json.RawMessage, field string) (*string, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	if string(raw) == "null" {
		empty := ""
		return &empty, nil
	}
	var v string
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("%w: %s must be a string or null", common.ErrorValidation, field)
	}
	return &v, nil
}

func (s *Server) handleCreateText(c *gin.Context) {
	var req createTextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, fmt.Errorf("%w: invalid request body", common.ErrorValidation))
		return
	}

	opts := services.CreateOptions{
		ExpiresAt:          req.ExpiresAt,
		Password:           req.Password,
		DisplayName:        req.LinkName,
		AllowedViewerEmail: req.AllowedViewerEmail,
		MaxViews:           req.MaxViews,
	}

	link, err := s.links.CreateText(c.Request.Context(), req.Item, opts, currentAccount(c))
	if err != nil {
		writeError(c, err)
		return
	}

	writeSuccess(c, http.StatusCreated, gin.H{"url": s.links.ShareURL(link)})
}

func (s *Server) handleCreateFile(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		writeError(c, fmt.Errorf("%w: no file uploaded", common.ErrorValidation))
		return
	}

	data, contentType, err := readUpload(fileHeader)
	if err != nil {
		writeError(c, err)
		return
	}

	opts, err := formCreateOptions(c)
	if err != nil {
		writeError(c, err)
		return
	}
	if opts.DisplayName == "" {
		opts.DisplayName = fileHeader.Filename
	}

	link, err := s.links.CreateBlob(c.Request.Context(), data, contentType, opts, currentAccount(c))
	if err != nil {
		writeError(c, err)
		return
	}

	writeSuccess(c, http.StatusCreated, gin.H{"url": s.links.ShareURL(link)})
}

func (s *Server) handleRedeemText(c *gin.Context) {
	s.redeem(c, models.KindText)
}

func (s *Server) handleRedeemFile(c *gin.Context) {
	s.redeem(c, models.KindBlob)
}

func (s *Server) redeem(c *gin.Context, kind models.LinkKind) {
	req := services.RedeemRequest{
		ID:              c.Param("id"),
		Kind:            kind,
		Password:        c.Query("password"),
		ClaimsProtected: c.Query("isProtected") == "true",
	}

	// Redemption is anonymous by default; a session cookie, when present and
	// valid, only contributes the viewer's identity.
	if token, err := c.Cookie(sessionCookie); err == nil {
		if account, ok := s.sessions.CurrentIdentity(c.Request.Context(), token); ok {
			req.ViewerEmail = services.NormalizeEmail(account.Email)
		}
	}

	out, err := s.access.Redeem(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}

	if out.Kind == models.KindText {
		writeSuccess(c, http.StatusOK, gin.H{"text": out.Text})
		return
	}
	writeSuccess(c, http.StatusOK, gin.H{"downloadUrl": out.DownloadURL})
}

func (s *Server) handleMyLinks(c *gin.Context) {
	summaries, err := s.links.ListOwned(c.Request.Context(), currentAccount(c))
	if err != nil {
		writeError(c, err)
		return
	}

	writeSuccess(c, http.StatusOK, gin.H{"links": summaries})
}

func (s *Server) handleUpdateLink(c *gin.Context) {
	var req updateLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, fmt.Errorf("%w: invalid request body", common.ErrorValidation))
		return
	}

	patch := services.UpdatePatch{ExpiresAt: req.ExpiresAt}

	var err error
	if patch.Password, err = patchString(req.Password, "password"); err != nil {
		writeError(c, err)
		return
	}
	if patch.DisplayName, err = patchString(req.LinkName, "linkName"); err != nil {
		writeError(c, err)
		return
	}
	if patch.AllowedViewerEmail, err = patchString(req.AllowedViewerEmail, "allowedViewerEmail"); err != nil {
		writeError(c, err)
		return
	}

	if len(req.MaxViews) != 0 {
		if string(req.MaxViews) == "null" {
			patch.ClearMaxViews = true
		} else {
			var v int
			if err := json.Unmarshal(req.MaxViews, &v); err != nil {
				writeError(c, fmt.Errorf("%w: maxViews must be a number or null", common.ErrorValidation))
				return
			}
			patch.MaxViews = &v
		}
	}

	link, err := s.links.Update(c.Request.Context(), c.Param("id"), currentAccount(c), patch)
	if err != nil {
		writeError(c, err)
		return
	}

	writeSuccess(c, http.StatusOK, gin.H{"link": s.links.Summarize(link)})
}

func (s *Server) handleDeleteLink(c *gin.Context) {
	id := c.Param("id")

	if err := s.links.Delete(c.Request.Context(), id, currentAccount(c)); err != nil {
		writeError(c, err)
		return
	}

	writeSuccess(c, http.StatusOK, gin.H{"id": id})
}

func readUpload(fh *multipart.FileHeader) ([]byte, string, error) {
	if fh.Size > maxUploadBytes {
		return nil, "", fmt.Errorf("%w: file exceeds the upload limit", common.ErrorValidation)
	}

	f, err := fh.Open()
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", common.ErrorInternal, err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxUploadBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", common.ErrorInternal, err)
	}
	if len(data) > maxUploadBytes {
		return nil, "", fmt.Errorf("%w: file exceeds the upload limit", common.ErrorValidation)
	}

	contentType := fh.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return data, contentType, nil
}

// formCreateOptions parses the optional link constraints from multipart form
// fields, which arrive as strings.
func formCreateOptions(c *gin.Context) (services.CreateOptions, error) {
	opts := services.CreateOptions{
		Password:           c.PostForm("password"),
		DisplayName:        c.PostForm("linkName"),
		AllowedViewerEmail: c.PostForm("allowedViewerEmail"),
	}

	if raw := c.PostForm("expiresAt"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return opts, fmt.Errorf("%w: expiresAt must be an RFC 3339 timestamp", common.ErrorValidation)
		}
		opts.ExpiresAt = &t
	}

	if raw := c.PostForm("maxViews"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			return opts, fmt.Errorf("%w: maxViews must be a number", common.ErrorValidation)
		}
		opts.MaxViews = &v
	}

	return opts, nil
}
