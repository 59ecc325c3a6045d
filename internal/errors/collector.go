package errors

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/multierr"
)

// ProblemCollector accumulates per-file compile failures. It is safe for
// concurrent use so file loading can report from several goroutines.
type ProblemCollector struct {
	problems []Problem
	causes   []error
	mutex    sync.Mutex
}

// NewProblemCollector creates an empty collector
func NewProblemCollector() *ProblemCollector {
	return &ProblemCollector{}
}

// Add records a located problem together with the error that produced it.
func (pc *ProblemCollector) Add(p Problem, cause error) {
	pc.mutex.Lock()
	defer pc.mutex.Unlock()
	pc.problems = append(pc.problems, p)
	if cause == nil {
		cause = errors.New(p.String())
	}
	pc.causes = append(pc.causes, cause)
}

// AddError parses an engine error for file and records it.
func (pc *ProblemCollector) AddError(file string, err error) {
	if err == nil {
		return
	}
	pc.Add(ParseProblem(file, err), err)
}

// HasErrors returns true if there are any problems
func (pc *ProblemCollector) HasErrors() bool {
	pc.mutex.Lock()
	defer pc.mutex.Unlock()
	return len(pc.problems) > 0
}

// Problems returns a sorted copy of the collected problems
func (pc *ProblemCollector) Problems() []Problem {
	pc.mutex.Lock()
	defer pc.mutex.Unlock()
	result := make([]Problem, len(pc.problems))
	copy(result, pc.problems)
	sort.SliceStable(result, func(i, j int) bool {
		if result[i].File != result[j].File {
			return result[i].File < result[j].File
		}
		return result[i].Line < result[j].Line
	})
	return result
}

// Err returns nil when nothing was collected, otherwise a compile error
// listing every problem under root.
func (pc *ProblemCollector) Err(root string) error {
	if !pc.HasErrors() {
		return nil
	}
	problems := pc.Problems()

	pc.mutex.Lock()
	cause := multierr.Combine(pc.causes...)
	pc.mutex.Unlock()

	err := NewCompileError(
		ErrCodeCompileFailed,
		fmt.Sprintf("%d template problem(s) under %s", len(problems), root),
		cause,
	)
	err.Problems = problems
	if len(problems) == 1 {
		err.WithLocation(problems[0].File, problems[0].Line, problems[0].Column)
	}
	return err
}

// ProblemsOf returns the problems carried by a compile error, if any.
func ProblemsOf(err error) []Problem {
	var he *HotplateError
	if errors.As(err, &he) {
		return he.Problems
	}
	return nil
}

// Causes splits an aggregated error back into its parts.
func Causes(err error) []error {
	var he *HotplateError
	if errors.As(err, &he) && he.Cause != nil {
		return multierr.Errors(he.Cause)
	}
	return multierr.Errors(err)
}
