package receipt

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/zombor/expensevision/internal/scanning"
)

// maxUploadSize caps receipt uploads at 16MB
const maxUploadSize = int64(16 << 20)

// corsError writes a plain text error response with CORS headers set
func corsError(w http.ResponseWriter, message string, code int) {
	setCORSHeaders(w)
	http.Error(w, message, code)
}

// jsonError writes {"error": message} with the given status
func jsonError(w http.ResponseWriter, message string, code int) {
	setCORSHeaders(w)
	writeJSON(w, code, map[string]string{"error": message})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// setCORSHeaders sets CORS headers on a response
func setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
	w.Header().Set("Access-Control-Max-Age", "3600")
}

type scanResponse struct {
	Success  bool                   `json:"success"`
	RawText  string                 `json:"raw_text"`
	Parsed   scanning.ParsedReceipt `json:"parsed"`
	Provider string                 `json:"provider"`
}

// handleScanReceipt runs an uploaded receipt image through the pipeline
func (s *Server) handleScanReceipt(w http.ResponseWriter, r *http.Request) {
	// Checked before touching the upload
	if !s.service.ScanAvailable() {
		jsonError(w, "Receipt scanning is not available. Set Veryfi credentials, a Gemini key or an Ollama URL, or install Tesseract.", http.StatusServiceUnavailable)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize+(1<<20))
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		slog.Error("Error parsing multipart form", "error", err)
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
			jsonError(w, "File is too large. Maximum size is 16MB.", http.StatusRequestEntityTooLarge)
			return
		}
		jsonError(w, "Error parsing form", http.StatusBadRequest)
		return
	}

	f, header, err := r.FormFile("file")
	if err != nil {
		errorMsg := "No file uploaded"
		if errors.Is(err, http.ErrMissingFile) {
			errorMsg = "No file selected"
		}
		jsonError(w, errorMsg, http.StatusBadRequest)
		return
	}
	defer f.Close()

	if header.Filename == "" {
		jsonError(w, "No file selected", http.StatusBadRequest)
		return
	}
	if header.Size > maxUploadSize {
		jsonError(w, "File is too large. Maximum size is 16MB.", http.StatusRequestEntityTooLarge)
		return
	}

	data, err := io.ReadAll(f)
	if err != nil {
		slog.Error("Error reading file data", "error", err, "filename", header.Filename)
		jsonError(w, "Error reading file. Please try again.", http.StatusInternalServerError)
		return
	}

	result, err := s.service.Scan(r.Context(), header.Filename, data, uploadContentType(header.Header.Get("Content-Type"), header.Filename))
	if err != nil {
		switch {
		case errors.Is(err, scanning.ErrNoProviderAvailable):
			jsonError(w, err.Error(), http.StatusServiceUnavailable)
		case errors.Is(err, scanning.ErrProviderUnavailable):
			jsonError(w, "Receipt API error: "+err.Error(), http.StatusBadGateway)
		default:
			jsonError(w, "OCR processing failed: "+err.Error(), http.StatusInternalServerError)
		}
		return
	}

	writeJSON(w, http.StatusOK, scanResponse{
		Success:  true,
		RawText:  result.Parsed.RawText,
		Parsed:   result.Parsed,
		Provider: result.Provider,
	})
}

// uploadContentType falls back to the file extension when the multipart
// part has no usable Content-Type
func uploadContentType(contentType, filename string) string {
	contentType = strings.ToLower(strings.TrimSpace(contentType))
	if contentType != "" && contentType != "application/octet-stream" {
		return contentType
	}
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".pdf":
		return "application/pdf"
	case ".heic":
		return "image/heic"
	case ".heif":
		return "image/heif"
	default:
		return "application/octet-stream"
	}
}

type categoryRequest struct {
	Description string `json:"description"`
	Vendor      string `json:"vendor"`
	Category    string `json:"category"`
}

// handlePredictCategory suggests a category for a description and vendor
func (s *Server) handlePredictCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		corsError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"category": s.service.PredictCategory(req.Description, req.Vendor),
	})
}

// handleTrainCategory records a confirmed category for an expense
func (s *Server) handleTrainCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		corsError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	result, err := s.service.TrainCategory(req.Description, req.Vendor, req.Category)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	added := result.Added
	if added == nil {
		added = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"category":  result.Category,
		"added":     added,
		"persisted": result.Persisted,
	})
}

// handleListCategories returns every known category
func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.service.Categories())
}

// handleStatus reports whether receipt scanning is available
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"scanning_available": s.service.ScanAvailable(),
		"provider":           s.service.ProviderName(),
	})
}
