// Module Lister: the set of distinct module tags that have active
// records in the journal, in first-seen order.
package txn

// Modules returns the distinct module names carrying at least one active
// (non-"un*") record, in the order each first appears in the journal.
func Modules(j *Journal) ([]string, error) {
	seen := make(map[string]bool)
	var out []string

	s := j.Scan()
	for {
		e, ok, err := s.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		if e.Action.Undone() {
			continue
		}
		if !seen[e.Module] {
			seen[e.Module] = true
			out = append(out, e.Module)
		}
	}
	return out, nil
}
