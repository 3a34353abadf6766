package batch

import (
	"fmt"
	"strings"
)

type visitState int

const (
	unvisited visitState = iota
	inProgress
	visited
)

// ChangeSetSorter orders the requests of a change set so that every
// request referencing the Content-Id of a sibling runs after it
type ChangeSetSorter struct {
	requests []*Request
}

// NewChangeSetSorter creates a sorter for requests in submission order
func NewChangeSetSorter(requests []*Request) *ChangeSetSorter {
	return &ChangeSetSorter{requests: requests}
}

// OrderedRequests returns the requests in execution order.
//
// Requests form a graph with an edge from every referenced request to
// the request referencing it. The graph is walked depth first in
// submission order, emitting each request after everything it depends
// on, so the order is deterministic and requests without references
// keep their submission order. A dependency runs right before the first
// request referencing it, ahead of any request submitted in between. References to Content-Ids not declared
// in the change set add no edge, they fail later when resolved.
func (s *ChangeSetSorter) OrderedRequests() ([]*Request, error) {
	indexByContentID := make(map[string]int, len(s.requests))
	for i, req := range s.requests {
		if req.ContentID == "" {
			continue
		}
		if _, exists := indexByContentID[req.ContentID]; exists {
			return nil, NewError(
				DuplicateContentID,
				fmt.Sprintf("Content-Id %q is used by more than one request of the change set", req.ContentID),
				req.LineNumber,
			)
		}
		indexByContentID[req.ContentID] = i
	}

	dependencies := make([][]int, len(s.requests))
	for i, req := range s.requests {
		for _, contentID := range req.ReferencedContentIDs() {
			if j, declared := indexByContentID[contentID]; declared {
				dependencies[i] = append(dependencies[i], j)
			}
		}
	}

	states := make([]visitState, len(s.requests))
	ordered := make([]*Request, 0, len(s.requests))
	// path holds the requests currently in progress, in visiting order
	path := make([]int, 0, len(s.requests))

	var visit func(i int) error
	visit = func(i int) error {
		switch states[i] {
		case visited:
			return nil
		case inProgress:
			return s.cycleError(path, i)
		}

		states[i] = inProgress
		path = append(path, i)

		for _, j := range dependencies[i] {
			if err := visit(j); err != nil {
				return err
			}
		}

		path = path[:len(path)-1]
		states[i] = visited
		ordered = append(ordered, s.requests[i])

		return nil
	}

	for i := range s.requests {
		if err := visit(i); err != nil {
			return nil, err
		}
	}

	return ordered, nil
}

// cycleError describes the cycle closed by revisiting request i
func (s *ChangeSetSorter) cycleError(path []int, i int) error {
	start := 0
	for k, j := range path {
		if j == i {
			start = k
			break
		}
	}

	contentIDs := make([]string, 0, len(path)-start+1)
	for _, j := range path[start:] {
		contentIDs = append(contentIDs, s.requests[j].ContentID)
	}
	contentIDs = append(contentIDs, s.requests[i].ContentID)

	return NewError(
		ReferenceCycle,
		"Reference cycle between Content-Ids "+strings.Join(contentIDs, " -> "),
		s.requests[i].LineNumber,
	)
}
