// Package models defines the domain models for the application.
package models

import "time"

// UserRole controls access to the admin surface.
type UserRole string

const (
	RoleNormal UserRole = "NORMAL"
	RoleAdmin  UserRole = "ADMIN"
)

// User is a registered account. Credits are the platform currency spent
// on generation jobs and granted by payment settlement.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	Credits      int       `json:"credits"`
	Role         UserRole  `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// GenerationType identifies the kind of creative job.
type GenerationType string

const (
	GenTextToImage  GenerationType = "TEXT_TO_IMAGE"
	GenImageToImage GenerationType = "IMAGE_TO_IMAGE"
	GenImageToVideo GenerationType = "IMAGE_TO_VIDEO"
	GenTextToVideo  GenerationType = "TEXT_TO_VIDEO"
)

// GenerationStatus represents the lifecycle state of a generation job.
//
// PENDING -> PROCESSING -> COMPLETED | FAILED, plus PENDING -> FAILED for
// synchronous submission failures (which also refund the debit).
type GenerationStatus string

const (
	GenStatusPending    GenerationStatus = "PENDING"
	GenStatusProcessing GenerationStatus = "PROCESSING"
	GenStatusCompleted  GenerationStatus = "COMPLETED"
	GenStatusFailed     GenerationStatus = "FAILED"
)

// IsTerminal reports whether the status admits no further transitions.
func (s GenerationStatus) IsTerminal() bool {
	return s == GenStatusCompleted || s == GenStatusFailed
}

// Generation is one submitted creative job and its correlation to the
// workflow backend execution record.
type Generation struct {
	ID             string           `json:"id"`
	UserID         string           `json:"user_id"`
	Type           GenerationType   `json:"type"`
	Prompt         string           `json:"prompt"`
	NegativePrompt string           `json:"negative_prompt,omitempty"`
	InputImage     string           `json:"input_image,omitempty"` // backend-assigned upload name
	ParametersJSON string           `json:"parameters_json,omitempty"`
	CreditsUsed    int              `json:"credits_used"`
	Status         GenerationStatus `json:"status"`
	BackendJobID   string           `json:"backend_job_id,omitempty"`
	// BackendURL is the base URL the job was submitted to. Polls target this
	// URL so switching the active configuration cannot redirect an in-flight
	// job to the wrong backend.
	BackendURL   string    `json:"backend_url,omitempty"`
	ImageURL     string    `json:"image_url,omitempty"`
	VideoURL     string    `json:"video_url,omitempty"`
	ErrorMessage string    `json:"error_message,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ArtifactURL returns the result URL for the job's output kind.
func (g *Generation) ArtifactURL() string {
	if g.Type == GenImageToVideo || g.Type == GenTextToVideo {
		return g.VideoURL
	}
	return g.ImageURL
}

// BackendConfig selects a workflow backend endpoint. At most one row is
// active at a time; activation deactivates all others in one transaction.
type BackendConfig struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	APIURL    string    `json:"api_url"`
	APIKey    string    `json:"api_key,omitempty"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// OrderStatus is the purchase order lifecycle.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusPaid      OrderStatus = "PAID"
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

// Order is a credit purchase intent, created atomically with its Payment.
type Order struct {
	ID          string      `json:"id"`
	UserID      string      `json:"user_id"`
	TotalAmount float64     `json:"total_amount"`
	Credits     int         `json:"credits"` // package credits + bonus
	Status      OrderStatus `json:"status"`
	PaymentID   string      `json:"payment_id,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// PaymentStatus is the gateway-facing payment lifecycle.
type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "PENDING"
	PaymentStatusPaid    PaymentStatus = "PAID"
	PaymentStatusFailed  PaymentStatus = "FAILED"
)

// Payment is the gateway-facing payment record. OrderRef is the merchant
// order reference sent to the gateway (out_trade_no) and is unique.
type Payment struct {
	ID             string        `json:"id"`
	UserID         string        `json:"user_id"`
	OrderRef       string        `json:"order_ref"`
	Amount         float64       `json:"amount"`
	Credits        int           `json:"credits"`
	Status         PaymentStatus `json:"status"`
	PaymentMethod  string        `json:"payment_method"`
	GatewayTradeNo string        `json:"gateway_trade_no,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
}
