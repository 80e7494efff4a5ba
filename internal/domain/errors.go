package domain

import "errors"

var (
	ErrDisplayNotFound   = errors.New("display not found")
	ErrSlideshowNotFound = errors.New("slideshow not found")
	ErrFeedNotFound      = errors.New("feed not found")
	ErrUnknownEventType  = errors.New("unknown event type")
)
