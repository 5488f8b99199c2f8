package executil

import (
	"context"
	"sync"
)

// Recorder captures shell commands for tests instead of running them.
type Recorder struct {
	mu       sync.Mutex
	commands []string

	// Err is returned from every RunSh call.
	Err error
	// Ran, if set, receives each command after it is recorded.
	Ran chan string
}

// RunSh implements Runner.
func (r *Recorder) RunSh(ctx context.Context, cmd string) error {
	r.mu.Lock()
	r.commands = append(r.commands, cmd)
	r.mu.Unlock()

	if r.Ran != nil {
		r.Ran <- cmd
	}
	return r.Err
}

// Commands returns a copy of the recorded commands.
func (r *Recorder) Commands() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.commands...)
}
