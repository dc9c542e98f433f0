package drive

import (
	"math"

	"xdrive/input"
)

// Command is the drive mode picked for one input reading.
type Command struct {
	// Rotating selects DriveWithRotation; otherwise Drive is used and Rotation is 0.
	Rotating bool
	X        float64
	Y        float64
	Rotation float64
}

// Select applies the command priority: rotation above the deadband wins, then
// the directional triggers, then the analog translation axes.
func Select(r input.Reading, deadband float64) Command {
	if math.Abs(r.Rotation) > deadband {
		return Command{Rotating: true, X: r.X, Y: r.Y, Rotation: r.Rotation}
	}
	if r.AnyDirection() {
		return Command{
			X: input.FullScale * (boolToFloat(r.Right) - boolToFloat(r.Left)),
			Y: input.FullScale * (boolToFloat(r.Up) - boolToFloat(r.Down)),
		}
	}
	return Command{X: r.X, Y: r.Y}
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
