package api

import (
	"errors"
	"io"
	"mime"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mesikahq/hospital-api/internal/apperr"
	"github.com/mesikahq/hospital-api/internal/auth"
	"github.com/mesikahq/hospital-api/internal/document"
)

// multipart headers and form fields on top of the file itself
const uploadOverhead = 1 << 20

// UploadDocument accepts a multipart upload from the owning patient.
func (h *Handler) UploadDocument(c *gin.Context) {
	p := principal(c)
	patientID, err := ownProfile(p, auth.RolePatient)
	if err != nil {
		h.respondError(c, err)
		return
	}

	if h.maxUploadSize > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadSize+uploadOverhead)
	}
	fh, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.respondError(c, apperr.Wrap(err, apperr.KindValidation, "File exceeds the maximum upload size"))
			return
		}
		h.respondError(c, apperr.Wrap(err, apperr.KindValidation, "A file is required"))
		return
	}

	f, err := fh.Open()
	if err != nil {
		h.respondError(c, err)
		return
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		h.respondError(c, err)
		return
	}

	doc, err := h.svc.Documents.Upload(c.Request.Context(), document.UploadInput{
		PatientID:   patientID,
		RecordID:    c.PostForm("recordId"),
		Name:        c.PostForm("documentName"),
		Type:        c.PostForm("documentType"),
		Description: c.PostForm("description"),
		Filename:    fh.Filename,
		Data:        data,
	}, p.AccountID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondOK(c, http.StatusCreated, "Document uploaded successfully", gin.H{"document": doc})
}

func (h *Handler) PatientDocuments(c *gin.Context) {
	docs, err := h.svc.Documents.ListByPatient(c.Request.Context(), c.Param("patientId"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, docs)
}

func (h *Handler) DownloadDocument(c *gin.Context) {
	ctx := c.Request.Context()
	p := principal(c)

	meta, err := h.svc.Documents.Get(ctx, c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	if !p.CanReachPatient(auth.PermDocumentDownload, auth.PermDocumentDownloadOwn, meta.PatientID) {
		h.respondError(c, errForbidden)
		return
	}

	doc, data, err := h.svc.Documents.Download(ctx, meta.ID, p.AccountID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.Header("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": doc.Filename}))
	c.Data(http.StatusOK, doc.ContentType, data)
}

func (h *Handler) DeleteDocument(c *gin.Context) {
	if err := h.svc.Documents.Delete(c.Request.Context(), c.Param("id"), principal(c).AccountID); err != nil {
		h.respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, "Document deleted successfully", nil)
}
