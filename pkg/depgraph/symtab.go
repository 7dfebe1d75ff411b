package depgraph

// symbolTable maps file paths to dense integer IDs and back. It is guarded by the
// owning Graph's lock.
type symbolTable struct {
	strToID map[string]int
	idToStr []string
}

func newSymbolTable() *symbolTable {
	return &symbolTable{
		strToID: make(map[string]int),
		idToStr: make([]string, 0),
	}
}

// intern returns the ID for name, assigning the next free one on first sight.
func (table *symbolTable) intern(name string) int {
	if id, exists := table.strToID[name]; exists {
		return id
	}

	id := len(table.idToStr)
	table.idToStr = append(table.idToStr, name)
	table.strToID[name] = id

	return id
}

// lookup returns the ID for name without interning it.
func (table *symbolTable) lookup(name string) (int, bool) {
	id, ok := table.strToID[name]

	return id, ok
}

// resolve returns the path for id, or "" when id is out of range.
func (table *symbolTable) resolve(id int) string {
	if id < 0 || id >= len(table.idToStr) {
		return ""
	}

	return table.idToStr[id]
}

func (table *symbolTable) resolveAll(ids []int) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = table.resolve(id)
	}

	return out
}
