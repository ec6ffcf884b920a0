package models

import "errors"

var (
	// ErrInsufficientBalance rejects an expense that would push a
	// non-negative-policy account below zero. Nothing is written.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrInvalidRange rejects a history filter whose end date precedes its
	// start date.
	ErrInvalidRange = errors.New("invalid range: end date is before start date")

	// ErrAlreadyCompleted rejects completing a plan twice.
	ErrAlreadyCompleted = errors.New("plan is already completed")

	// ErrForeignDocument rejects a restore document whose app tag does not
	// match this application.
	ErrForeignDocument = errors.New("backup document belongs to a different application")

	// ErrNothingToUndo is returned when the single undo slot is empty.
	ErrNothingToUndo = errors.New("no recently deleted transaction to undo")

	ErrRecordNotFound = errors.New("record not found")
)
