package services

import (
	"errors"
	"fmt"
	"sync"

	"gorm.io/gorm"
)

// Typed failures surfaced to transport handlers. Handlers map these to
// client-visible acknowledgments.
var (
	ErrNotFound        = errors.New("not found")
	ErrInvalidPassword = errors.New("invalid password")
	ErrNoPrivileges    = errors.New("no privileges")
	ErrNotInsideStage  = errors.New("user is not inside a stage")
	ErrNoGroupAvailable = errors.New("stage has no groups")
	ErrSlotsExhausted  = errors.New("no free order slot: all 30 slots in use")
)

// PartialCascadeError reports that at least one cascade branch failed while
// sibling branches may have completed their side effects. Completed siblings
// are not rolled back.
type PartialCascadeError struct {
	Op  string
	ID  string
	Err error
}

func (e *PartialCascadeError) Error() string {
	return fmt.Sprintf("%s %s: partial cascade failure: %v", e.Op, e.ID, e.Err)
}

func (e *PartialCascadeError) Unwrap() error {
	return e.Err
}

// translateNotFound maps a gorm record miss onto the service taxonomy.
func translateNotFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

// runBranches executes cascade branches concurrently and waits for all of
// them. A failing branch does not cancel its siblings; the aggregate error
// joins every branch failure.
func runBranches(branches ...func() error) error {
	var wg sync.WaitGroup
	errs := make([]error, len(branches))
	for i, branch := range branches {
		wg.Add(1)
		go func(i int, branch func() error) {
			defer wg.Done()
			errs[i] = branch()
		}(i, branch)
	}
	wg.Wait()
	return errors.Join(errs...)
}

// cascadeError wraps a branch aggregate into a PartialCascadeError, or
// passes nil through.
func cascadeError(op, id string, err error) error {
	if err == nil {
		return nil
	}
	return &PartialCascadeError{Op: op, ID: id, Err: err}
}
