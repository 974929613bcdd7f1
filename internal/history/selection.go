package history

// Selection is the cursor into the filtered view. Index stays within
// [0, Count) whenever Count > 0, and is 0 otherwise.
type Selection struct {
	index int
	count int
}

// Index is the selected position.
func (s *Selection) Index() int { return s.index }

// Count mirrors the length of the filtered view.
func (s *Selection) Count() int { return s.count }

// MoveUp selects the previous entry; a no-op at the top.
func (s *Selection) MoveUp() bool {
	if s.index > 0 {
		s.index--
		return true
	}
	return false
}

// MoveDown selects the next entry; a no-op at the bottom.
func (s *Selection) MoveDown() bool {
	if s.index < s.count-1 {
		s.index++
		return true
	}
	return false
}

// Set selects i if it is in range.
func (s *Selection) Set(i int) bool {
	if i < 0 || i >= s.count || i == s.index {
		return false
	}
	s.index = i
	return true
}

// Reset selects the first entry.
func (s *Selection) Reset() { s.index = 0 }

// SetCount updates the view length and re-clamps the index.
func (s *Selection) SetCount(n int) {
	s.count = max(n, 0)
	if s.index >= s.count {
		s.index = s.count - 1
	}
	if s.index < 0 {
		s.index = 0
	}
}
