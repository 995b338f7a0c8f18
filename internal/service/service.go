// Package service holds the chat, call, delivery and presence business logic.
package service

import (
	"errors"
	"time"

	"github.com/quocanhngo/delivertalk/internal/apperror"
	"gorm.io/gorm"
)

// Clock returns the current time; services take one so tests can pin time
type Clock func() time.Time

func utcNow() time.Time {
	return time.Now().UTC()
}

// notFound maps gorm's missing-row error to a NotFound error for what
func notFound(err error, what string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperror.NotFound(what + " not found")
	}
	return err
}
