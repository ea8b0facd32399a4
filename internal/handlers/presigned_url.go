package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"

	s3service "case-disposition-engine/internal/services/s3"
	"case-disposition-engine/internal/utils"
)

// uploadURLExpiryMinutes is how long a generated upload URL stays valid.
const uploadURLExpiryMinutes = 60

// UploadPresigner issues presigned upload URLs.
type UploadPresigner interface {
	GeneratePresignedUploadURL(ctx context.Context, key string, contentType string, expiryMinutes int) (*s3service.PresignedURLResult, error)
}

// PresignedURLHandler handles requests for case CSV upload URLs.
type PresignedURLHandler struct {
	presigner UploadPresigner
	now       func() time.Time
}

// NewPresignedURLHandler creates a new presigned URL handler.
func NewPresignedURLHandler(presigner UploadPresigner) *PresignedURLHandler {
	return &PresignedURLHandler{presigner: presigner, now: time.Now}
}

// PresignedURLResponse is the response structure for presigned URL requests.
type PresignedURLResponse struct {
	UploadURL string `json:"uploadUrl"`
	S3Key     string `json:"s3Key"`
	ExpiresIn int    `json:"expiresIn"`
}

// Handle processes the API Gateway request for generating presigned URLs.
func (h *PresignedURLHandler) Handle(ctx context.Context, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	logger := utils.Component("presigned-url")
	headers := corsHeaders("GET,OPTIONS")

	if resp, ok := preflight(request, headers); ok {
		return resp, nil
	}

	filename := request.QueryStringParameters["filename"]
	if filename == "" {
		filename = "cases_" + uuid.NewString()[:8] + ".csv"
	}

	if !strings.HasSuffix(strings.ToLower(filename), ".csv") {
		return errorResponse(headers, http.StatusBadRequest, "Only CSV files are allowed", nil)
	}

	key := s3service.UploadKey(sanitizeFilename(filename), h.now())

	presigned, err := h.presigner.GeneratePresignedUploadURL(ctx, key, "text/csv", uploadURLExpiryMinutes)
	if err != nil {
		logger.Error("Failed to generate presigned URL", utils.Error(err))
		return errorResponse(headers, http.StatusInternalServerError, "Failed to generate upload URL", nil)
	}

	return jsonResponse(headers, http.StatusOK, "", PresignedURLResponse{
		UploadURL: presigned.URL,
		S3Key:     presigned.Key,
		ExpiresIn: uploadURLExpiryMinutes * 60,
	})
}

// sanitizeFilename removes unsafe characters from filename.
func sanitizeFilename(filename string) string {
	var b strings.Builder
	for _, r := range filename {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
			(r >= '0' && r <= '9') || r == '.' || r == '-' || r == '_' {
			b.WriteRune(r)
		}
	}
	safe := b.String()
	if len(safe) > 100 {
		safe = safe[len(safe)-100:]
	}
	return safe
}
