package intern

// Table deduplicates repeated strings behind small, stable integer ids.
// Ids are assigned sequentially from zero in first-seen order and never
// change once handed out. A Table is not safe for concurrent mutation; after
// a build freezes it, any number of readers may use it without locking.
type Table struct {
	ids    map[string]uint32
	values []string
}

func NewTable() *Table {
	return &Table{ids: make(map[string]uint32)}
}

// GetOrIntern returns the id of s, interning it first if it has not been
// seen before. Equality is exact byte equality.
func (t *Table) GetOrIntern(s string) uint32 {
	if id, loaded := t.ids[s]; loaded {
		return id
	}
	id := uint32(len(t.values))
	t.ids[s] = id
	t.values = append(t.values, s)
	return id
}

// Get returns the string stored under a previously assigned id.
func (t *Table) Get(id uint32) string {
	return t.values[id]
}

func (t *Table) Len() int {
	return len(t.values)
}

// Values exposes the backing slice in id order. Callers must treat it as
// read-only.
func (t *Table) Values() []string {
	return t.values
}
