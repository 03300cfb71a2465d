package refresh

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"opsboard/internal/board"
)

// LastGood keeps the most recent successful report per report and feed
// location. Old keys fall out once size is exceeded, which bounds memory
// when the registry keeps changing feed URLs.
type LastGood struct {
	cache *lru.Cache[string, board.Report]
}

// NewLastGood creates a cache holding up to size reports.
func NewLastGood(size int) (*LastGood, error) {
	c, err := lru.New[string, board.Report](size)
	if err != nil {
		return nil, err
	}
	return &LastGood{cache: c}, nil
}

// Get implements board.LastGood.
func (l *LastGood) Get(key string) (board.Report, bool) {
	return l.cache.Get(key)
}

// Put implements board.LastGood.
func (l *LastGood) Put(key string, r board.Report) {
	l.cache.Add(key, r)
}

// Len is the number of remembered reports.
func (l *LastGood) Len() int {
	return l.cache.Len()
}
