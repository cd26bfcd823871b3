package testutil

import (
	"context"
	"errors"
	"sync"

	"github.com/lotwatch/lotwatch/internal/inventory"
)

// ErrScripted is the default failure returned by ScriptedSource.
var ErrScripted = errors.New("scripted source failure")

// ScriptedSource is an in-memory inventory source for sweep tests.
//
// Full-sweep fetches (empty search) serve Sweep page by page; offsets
// past the scripted pages return an empty page, terminating pagination.
// Targeted lookups serve the Targeted map keyed by search string.
//
// FailPage and FailSearch inject that many consecutive failures before a
// call succeeds, for exercising retry and removal-ambiguity policy.
type ScriptedSource struct {
	mu sync.Mutex

	// PageSize must match the controller's page size. Defaults to 100.
	PageSize int

	Sweep    [][]inventory.Observation
	Targeted map[string][]inventory.Observation

	FailPage   map[int]int    // page index -> remaining failures
	FailSearch map[string]int // search key -> remaining failures

	// Err overrides ErrScripted for injected failures.
	Err error

	// FetchCalls counts every FetchPage invocation.
	FetchCalls int
}

// FetchPage implements source.Source.
func (s *ScriptedSource) FetchPage(_ context.Context, offset int, search string) ([]inventory.Observation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.FetchCalls++

	fail := func(left *int) bool {
		if *left > 0 {
			*left--
			return true
		}
		return false
	}
	scriptedErr := s.Err
	if scriptedErr == nil {
		scriptedErr = ErrScripted
	}

	if search != "" {
		if n, ok := s.FailSearch[search]; ok {
			left := n
			if fail(&left) {
				s.FailSearch[search] = left
				return nil, scriptedErr
			}
		}
		return s.Targeted[search], nil
	}

	pageSize := s.PageSize
	if pageSize <= 0 {
		pageSize = 100
	}
	idx := offset / pageSize
	if n, ok := s.FailPage[idx]; ok {
		left := n
		if fail(&left) {
			s.FailPage[idx] = left
			return nil, scriptedErr
		}
	}
	if idx >= len(s.Sweep) {
		return nil, nil
	}
	return s.Sweep[idx], nil
}
