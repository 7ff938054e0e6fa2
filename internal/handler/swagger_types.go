package handler

// Swagger type definitions for API documentation.
// These types are used by swag to generate OpenAPI documentation.

// --- Request Types ---

// SignUpRequest represents the sign-up request body.
type SignUpRequest struct {
	Email    string `json:"email" binding:"required,email" example:"analyst@fund.com"`
	Password string `json:"password" binding:"required,min=8" example:"securepassword123"`
	FullName string `json:"full_name" example:"Dana Analyst"`
}

// SignInRequest represents the password sign-in request body.
type SignInRequest struct {
	Email    string `json:"email" binding:"required,email" example:"analyst@fund.com"`
	Password string `json:"password" binding:"required" example:"securepassword123"`
}

// RefreshRequest represents the token refresh request body.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required" example:"eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9..."`
}

// MagicLinkRequest represents the sign-in code request body.
type MagicLinkRequest struct {
	Email string `json:"email" binding:"required,email" example:"analyst@fund.com"`
}

// ExchangeRequest represents the code exchange request body.
type ExchangeRequest struct {
	Email string `json:"email" binding:"required,email" example:"analyst@fund.com"`
	Code  string `json:"code" binding:"required" example:"482913"`
}

// SignOutRequest represents the optional sign-out request body.
type SignOutRequest struct {
	RefreshToken string `json:"refresh_token" example:"eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9..."`
}

// CreateProjectRequest represents the create project request body.
type CreateProjectRequest struct {
	Name        string `json:"name" binding:"required" example:"Project Falcon"`
	Description string `json:"description" example:"Series B diligence for a logistics SaaS"`
}

// UpdateProjectRequest represents the update project request body.
type UpdateProjectRequest struct {
	Name        *string `json:"name" example:"Project Falcon II"`
	Description *string `json:"description" example:"Updated description"`
}

// --- Response Types ---

// MessageResponse represents a simple message response.
type MessageResponse struct {
	Message string `json:"message" example:"project deleted"`
}

// DownloadURLResponse carries a presigned download URL.
type DownloadURLResponse struct {
	DownloadURL string `json:"download_url" example:"https://bucket.s3.amazonaws.com/..."`
}

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status string `json:"status" example:"ok"`
}

// --- Generic Response Wrappers ---

// Response wraps a successful response with data.
type Response struct {
	Success bool        `json:"success" example:"true"`
	Data    interface{} `json:"data,omitempty"`
	Meta    *PagMeta    `json:"meta,omitempty"`
}

// ErrorResponseBody wraps an error response.
type ErrorResponseBody struct {
	Success bool      `json:"success" example:"false"`
	Error   *APIError `json:"error"`
}
