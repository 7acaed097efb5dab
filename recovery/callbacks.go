package recovery

import "time"

// Phases reported through Progress.Phase.
const (
	PhaseLoading  = "loading"
	PhaseRunning  = "running"
	PhaseComplete = "complete"
)

// Progress contains information about an upload in progress.
// Passed to ProgressCallback during Load and Program.
type Progress struct {
	// Phase describes the current operation phase:
	//   "loading"  - Uploading segment data
	//   "running"  - Sending the RUN command
	//   "complete" - Operation completed successfully
	Phase string

	// Segment is the name of the segment being loaded (Program only)
	Segment string

	// CurrentSegment is the 1-based index of the segment being loaded
	CurrentSegment int

	// TotalSegments is the number of segments in the job
	TotalSegments int

	// Address is the target address of the current segment
	Address uint32

	// BytesWritten is the total number of bytes written so far
	BytesWritten int

	// TotalBytes is the total number of bytes the job will write
	TotalBytes int

	// Percentage is the completion percentage (0.0 to 100.0)
	Percentage float64

	// ElapsedTime is the time elapsed since the operation started
	ElapsedTime time.Duration
}

// ProgressCallback is called after every bulk write to report progress.
// Implementations should return quickly to avoid stalling the upload.
//
// Example:
//
//	sess, err := recovery.New(dev,
//	    recovery.WithProgressCallback(func(p recovery.Progress) {
//	        fmt.Printf("[%s] %.1f%% - %d/%d bytes\n",
//	            p.Phase, p.Percentage, p.BytesWritten, p.TotalBytes)
//	    }),
//	)
type ProgressCallback func(Progress)

// Logger is an optional logging interface that can be provided to the session.
// This allows integration with any logging framework; NewSlogLogger adapts a
// *slog.Logger.
type Logger interface {
	// Debug logs a debug message with optional key-value pairs
	Debug(msg string, keysAndValues ...interface{})

	// Info logs an info message with optional key-value pairs
	Info(msg string, keysAndValues ...interface{})

	// Error logs an error message with optional key-value pairs
	Error(msg string, keysAndValues ...interface{})
}

func percentage(done, total int) float64 {
	if total <= 0 {
		return 100
	}
	return float64(done) / float64(total) * 100
}
