package firmware

// Phase of a firmware update.
type Phase string

// Phases reported to the progress callback.
const (
	PhaseErasing     Phase = "erasing"
	PhaseProgramming Phase = "programming"
	PhaseComplete    Phase = "complete"
)

// Progress contains information about the flashing progress.
type Progress struct {
	Phase        Phase
	BytesWritten int
	TotalBytes   int
}

// ProgressCallback is called after the erase and after every programmed
// chunk. It runs on the programming thread and should return quickly.
type ProgressCallback func(Progress)

// Confirmer asks the user whether the identified chip should be flashed.
type Confirmer interface {
	Confirm(id ChipID) (bool, error)
}

// Config holds the programmer configuration.
type Config struct {
	// ProgressCallback is called to report progress (optional).
	ProgressCallback ProgressCallback

	// Confirmer is asked before the chip is erased. Without a confirmer the
	// firmware is flashed unconditionally.
	Confirmer Confirmer
}

// Option is a functional option for configuring the Programmer.
type Option func(*Config)

// WithProgressCallback sets a callback function to track flashing progress.
func WithProgressCallback(callback ProgressCallback) Option {
	return func(c *Config) {
		c.ProgressCallback = callback
	}
}

// WithConfirmer sets the confirmation asked before erasing the chip.
func WithConfirmer(confirmer Confirmer) Option {
	return func(c *Config) {
		c.Confirmer = confirmer
	}
}
