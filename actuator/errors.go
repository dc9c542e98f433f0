package actuator

import "github.com/pkg/errors"

// ErrDisconnected is returned by drivers whose motor is not connected.
var ErrDisconnected = errors.New("motor is disconnected")

// ErrNoFeedback is returned when a motor has not reported a reading recently.
var ErrNoFeedback = errors.New("no recent feedback from motor")

// ErrUnsupported is returned by drivers whose hardware has no sensor for a
// reading. It is not treated as a fault.
var ErrUnsupported = errors.New("motor does not report this reading")

// NewInvalidChannelError returns an error for a motor channel the hardware does not have.
func NewInvalidChannelError(channel int) error {
	return errors.Errorf("invalid motor channel %d", channel)
}
