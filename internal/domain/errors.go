package domain

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrFeedClosed    = errors.New("feed closed")
	ErrOrderRejected = errors.New("order rejected")
	ErrNoQuote       = errors.New("no quote available")
	ErrSigningFailed = errors.New("signing failed")
)
