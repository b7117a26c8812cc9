package service

import "errors"

var (
	// ErrUserNotFound is returned when a user id does not resolve
	ErrUserNotFound = errors.New("user not found")

	// ErrInvalidInput wraps request validation failures
	ErrInvalidInput = errors.New("invalid input")

	// ErrEmailTaken is returned when an identity already exists for an email
	ErrEmailTaken = errors.New("email already registered")

	// ErrReferralCodeExhausted means no unused referral code was found
	ErrReferralCodeExhausted = errors.New("could not generate a unique referral code")

	// ErrUnauthorized is returned for bad credentials
	ErrUnauthorized = errors.New("invalid email or password")
)
