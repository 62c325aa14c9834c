package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/blackbirdcodelabs/jnanagni-backend/middleware"
	"github.com/blackbirdcodelabs/jnanagni-backend/services"
)

// certificate uploads are PDFs of a few hundred KB; 10MB is generous.
const maxCertificateFileSize = 10 << 20

type CertificateHandler struct {
	certService services.CertificateService
}

func NewCertificateHandler(certService services.CertificateService) *CertificateHandler {
	return &CertificateHandler{certService: certService}
}

// Verify is the public lookup behind the QR code on printed certificates.
func (h *CertificateHandler) Verify(w http.ResponseWriter, r *http.Request) {
	certificateID := chi.URLParam(r, "certificateID")
	if certificateID == "" {
		badRequestResponse(w, r, errors.New("certificate id is required"))
		return
	}

	cert, err := h.certService.GetByCertificateID(r.Context(), certificateID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"certificate": cert}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *CertificateHandler) MyCertificates(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, err.Error())
		return
	}

	certs, err := h.certService.ListByUser(r.Context(), userID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"certificates": certs}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *CertificateHandler) UploadFile(w http.ResponseWriter, r *http.Request) {
	certificateID := chi.URLParam(r, "certificateID")
	if certificateID == "" {
		badRequestResponse(w, r, errors.New("certificate id is required"))
		return
	}

	if err := r.ParseMultipartForm(maxCertificateFileSize); err != nil {
		badRequestResponse(w, r, errors.New("invalid multipart form"))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		badRequestResponse(w, r, errors.New("file field is required"))
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/pdf"
	}

	cert, err := h.certService.AttachFile(r.Context(), certificateID, contentType, file)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"certificate": cert}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
