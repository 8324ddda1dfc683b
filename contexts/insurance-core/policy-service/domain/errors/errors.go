package errors

import "errors"

var (
	ErrInvalidPolicyInput = errors.New("invalid policy input")
	ErrPolicyNotFound     = errors.New("policy not found")
	ErrCancelConflict     = errors.New("policy is already in a final status")
	ErrInvalidTransition  = errors.New("status transition not allowed")
	ErrConflict           = errors.New("policy conflict")
)
