package roster

import (
	"strings"
	"sync"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"agentdesk/internal/model"
)

// Order is the natural order of a roster; it returns <0, 0 or >0 like strings.Compare.
type Order func(a, b model.Record) int

// NameOrder sorts by display name using the collation rules of tag,
// case-insensitively, and breaks ties by id so the order is total.
func NameOrder(tag language.Tag) Order {
	var mu sync.Mutex
	collator := collate.New(tag, collate.IgnoreCase, collate.Loose)

	return func(a, b model.Record) int {
		mu.Lock()
		cmp := collator.CompareString(strings.TrimSpace(a.Name), strings.TrimSpace(b.Name))
		mu.Unlock()
		if cmp != 0 {
			return cmp
		}
		return strings.Compare(a.ID, b.ID)
	}
}
