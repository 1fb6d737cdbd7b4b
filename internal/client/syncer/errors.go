package syncer

import "fmt"

// panicError carries a panic raised by a SyncFunc so one bad upload cannot
// take down the pass.
type panicError struct {
	value any
}

func (e *panicError) Error() string {
	return fmt.Sprintf("sync func panicked: %v", e.value)
}
