package state

import "fmt"

// Progress is the per-page completion record derived from the
// `{page}_completed` and `{page}_total` keys.
type Progress struct {
	Completed int
	Total     int
}

// Started reports whether any progress data exists for the page.
// A zero-valued Progress means "not yet visited", never an error.
func (p Progress) Started() bool { return p.Total > 0 }

// Done reports whether every task on the page has passed.
func (p Progress) Done() bool { return p.Started() && p.Completed >= p.Total }

// Fraction returns completed/total, or 0 when there is no data.
func (p Progress) Fraction() float64 {
	if p.Total == 0 {
		return 0
	}
	return float64(p.Completed) / float64(p.Total)
}

func completedKey(page string) string { return page + "_completed" }
func totalKey(page string) string     { return page + "_total" }

// PageProgress reads the progress record for a page. Missing keys
// yield the zero value.
func PageProgress(s Store, page string) Progress {
	var p Progress
	if v, ok := s.Lookup(completedKey(page)); ok {
		if n, ok := IntValue(v); ok {
			p.Completed = n
		}
	}
	if v, ok := s.Lookup(totalKey(page)); ok {
		if n, ok := IntValue(v); ok {
			p.Total = n
		}
	}
	return p
}

// SetPageProgress records completion for a page. Completion is clamped
// to [0, total] and never decreases: once a task has passed it stays
// passed for the rest of the session.
func SetPageProgress(s Store, page string, completed, total int) error {
	if total < 0 {
		return fmt.Errorf("state: negative task total %d for page %q", total, page)
	}
	if completed < 0 {
		completed = 0
	}
	if completed > total {
		completed = total
	}
	if prev := PageProgress(s, page); prev.Completed > completed && prev.Total == total {
		completed = prev.Completed
	}
	s.Ensure(completedKey(page), completed)
	s.Ensure(totalKey(page), total)
	return nil
}
