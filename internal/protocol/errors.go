package protocol

import "errors"

// ErrNotNotification reports a frame whose type tag is not "notification".
var ErrNotNotification = errors.New("frame is not a notification")
