// Package handlers provides the API Gateway and S3 event handlers for the case disposition engine.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"

	"github.com/aws/aws-lambda-go/events"

	"case-disposition-engine/internal/models"
	"case-disposition-engine/internal/services/database"
)

// Response represents a standard API response
type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// StatusClientClosedRequest is returned when the caller gave up before the work finished.
const StatusClientClosedRequest = 499

// APIHandler is the shape of every API Gateway handler in this package.
type APIHandler func(ctx context.Context, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error)

func corsHeaders(methods string) map[string]string {
	return map[string]string{
		"Access-Control-Allow-Origin":  "*",
		"Access-Control-Allow-Headers": "Content-Type,Authorization",
		"Access-Control-Allow-Methods": methods,
		"Content-Type":                 "application/json",
	}
}

// StatusForError maps a service error to an HTTP status code.
func StatusForError(err error) int {
	switch {
	case errors.Is(err, models.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, database.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, database.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return StatusClientClosedRequest
	default:
		return http.StatusInternalServerError
	}
}

// jsonResponse wraps data in the standard envelope.
func jsonResponse(headers map[string]string, statusCode int, message string, data interface{}) (events.APIGatewayProxyResponse, error) {
	body, err := json.Marshal(Response{
		Success: statusCode < http.StatusBadRequest,
		Message: message,
		Data:    data,
	})
	if err != nil {
		return errorResponse(headers, http.StatusInternalServerError, "failed to encode response", nil)
	}

	return events.APIGatewayProxyResponse{
		StatusCode: statusCode,
		Headers:    headers,
		Body:       string(body),
	}, nil
}

// errorResponse creates an error response. Validation details, when present, are returned as data.
func errorResponse(headers map[string]string, statusCode int, message string, err error) (events.APIGatewayProxyResponse, error) {
	resp := Response{
		Success: false,
		Message: message,
		Error:   http.StatusText(statusCode),
	}
	if statusCode == StatusClientClosedRequest {
		resp.Error = "Client Closed Request"
	}

	var verrs models.ValidationErrors
	if errors.As(err, &verrs) {
		resp.Data = verrs
	}

	body, _ := json.Marshal(resp)

	return events.APIGatewayProxyResponse{
		StatusCode: statusCode,
		Headers:    headers,
		Body:       string(body),
	}, nil
}

// serviceErrorResponse maps err through StatusForError.
func serviceErrorResponse(headers map[string]string, err error) (events.APIGatewayProxyResponse, error) {
	status := StatusForError(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		message = "internal error"
	}
	return errorResponse(headers, status, message, err)
}

func preflight(request events.APIGatewayProxyRequest, headers map[string]string) (events.APIGatewayProxyResponse, bool) {
	if request.HTTPMethod != http.MethodOptions {
		return events.APIGatewayProxyResponse{}, false
	}
	return events.APIGatewayProxyResponse{StatusCode: http.StatusOK, Headers: headers}, true
}

// getEnvOrDefault returns environment variable or default value.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
