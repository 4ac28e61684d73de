package appointment

// SlotCatalog is the ordered list of bookable time-of-day labels every doctor offers.
// Labels are opaque tokens; their order is the search order of the suggester.
type SlotCatalog []string

func DefaultSlotCatalog() SlotCatalog {
	return SlotCatalog{"09:00 AM", "10:00 AM", "11:00 AM", "02:00 PM", "04:00 PM"}
}

// Index returns the position of slot in the catalog, or -1.
func (c SlotCatalog) Index(slot string) int {
	for i, s := range c {
		if s == slot {
			return i
		}
	}
	return -1
}

func (c SlotCatalog) Contains(slot string) bool {
	return c.Index(slot) >= 0
}

// Following returns up to n labels declared after slot on the same day.
// It never wraps to the next day.
func (c SlotCatalog) Following(slot string, n int) []string {
	idx := c.Index(slot)
	if idx < 0 || n <= 0 {
		return []string{}
	}
	end := idx + 1 + n
	if end > len(c) {
		end = len(c)
	}
	out := make([]string, 0, end-idx-1)
	out = append(out, c[idx+1:end]...)
	return out
}
