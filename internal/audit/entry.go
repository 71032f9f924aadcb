package audit

import "time"

// Entry represents a single audit log record: one line evaluated by the shell.
type Entry struct {
	Seq      uint64    `json:"seq"`
	Time     time.Time `json:"ts"`
	PrevHash string    `json:"prev_hash"`
	Session  string    `json:"session"`         // id of the shell process that ran the line
	Line     string    `json:"line"`            // the line as read
	Commands []string  `json:"commands"`        // verbs in evaluation order
	ExitCode int       `json:"exit_code"`       // status of the line
	Error    string    `json:"error,omitempty"` // parse or fatal error, if any
	Exited   bool      `json:"exited,omitempty"`
	Duration float64   `json:"duration_ms"` // execution time in milliseconds
	Cwd      string    `json:"cwd"`         // working directory after the line
	Hash     string    `json:"hash"`        // SHA-256 of this entry (with hash field empty)
}

// Record is what the caller knows about a finished line.
type Record struct {
	Session  string
	Line     string
	Commands []string
	ExitCode int
	Err      error
	Exited   bool // the line ended the shell
	Duration time.Duration
	Cwd      string
}
