package index

import "iter"

// Slice applies drop/take semantics to an entry stream: the first skip
// entries are dropped and at most limit entries are yielded. A negative
// limit means unlimited.
//
// Errors pass through without consuming skip or limit budget.
func Slice(seq iter.Seq2[Entry, error], skip, limit int) iter.Seq2[Entry, error] {
	return func(yield func(Entry, error) bool) {
		if limit == 0 {
			return
		}

		skipped, yielded := 0, 0
		for e, err := range seq {
			if err != nil {
				if !yield(e, err) {
					return
				}
				continue
			}
			if skipped < skip {
				skipped++
				continue
			}
			if !yield(e, nil) {
				return
			}
			yielded++
			if limit > 0 && yielded >= limit {
				return
			}
		}
	}
}

// Collect drains an entry stream into a slice. Test helper.
func Collect(seq iter.Seq2[Entry, error]) ([]Entry, error) {
	var out []Entry
	for e, err := range seq {
		if err != nil {
			return out, err
		}
		out = append(out, e)
	}
	return out, nil
}
