package link

import (
	"errors"
	"fmt"
)

var (
	// ErrChannelOpen means the device could not be opened with the configured parameters.
	ErrChannelOpen = errors.New("link: channel open failed")
	// ErrTransport means a write or read failed on an open channel.
	ErrTransport = errors.New("link: transport error")
	// ErrClosed is returned when sending on a closed or never-opened session.
	ErrClosed = fmt.Errorf("%w: channel closed", ErrTransport)
	// ErrInvalidConfig is returned by Config.Validate.
	ErrInvalidConfig = errors.New("link: invalid config")
)
