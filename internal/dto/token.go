package dto

import "github.com/noah-isme/izin-asrama-api/internal/models"

// IssueTokenRequest describes a development access token.
type IssueTokenRequest struct {
	UserID   string          `json:"userId" validate:"required"`
	Role     models.UserRole `json:"role" validate:"required,oneof=SUPERADMIN NDALEM USTADZAH WALI_SANTRI"`
	FullName string          `json:"fullName"`
	Email    string          `json:"email" validate:"omitempty,email"`
}
