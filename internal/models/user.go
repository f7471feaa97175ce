package models

import "time"

// User is an account keyed by its phone-derived number.
type User struct {
	ID        string    `bson:"_id,omitempty" json:"id"`
	Number    string    `bson:"number" json:"number"`
	Name      string    `bson:"name,omitempty" json:"name,omitempty"`
	Bio       string    `bson:"bio,omitempty" json:"bio,omitempty"`
	Email     string    `bson:"email,omitempty" json:"email,omitempty"`
	ImageURL  string    `bson:"image_url,omitempty" json:"image_url,omitempty"`
	OTPHash   string    `bson:"otp_hash,omitempty" json:"-"`
	OTPExpiry time.Time `bson:"otp_expiry,omitempty" json:"-"`
	Tokens    []string  `bson:"tokens,omitempty" json:"-"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}

type SigninRequest struct {
	Number string `json:"number" validate:"required,numeric"`
}

type VerifyOTPRequest struct {
	Number string `json:"number" validate:"required,numeric"`
	OTP    string `json:"otp" validate:"required,len=6,numeric"`
}

type ProfileRequest struct {
	Number string `json:"number" validate:"required,numeric"`
	Name   string `json:"name" validate:"required"`
	Bio    string `json:"bio"`
	Email  string `json:"email" validate:"omitempty,email"`
}

type AuthResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Token   string `json:"token,omitempty"`
	User    *User  `json:"userData,omitempty"`
}
