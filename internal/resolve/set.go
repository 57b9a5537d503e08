// 文件路径: internal/resolve/set.go
// 模块说明: 这是 internal 模块里的 set 逻辑，保持插入顺序的 ID 集合。
package resolve

// IDSet is an insertion-ordered set of IDs.
type IDSet struct {
	order []string
	seen  map[string]struct{}
}

func newIDSet() *IDSet {
	return &IDSet{seen: make(map[string]struct{})}
}

// Add inserts id and reports whether it was new.
func (s *IDSet) Add(id string) bool {
	if _, ok := s.seen[id]; ok {
		return false
	}
	s.seen[id] = struct{}{}
	s.order = append(s.order, id)
	return true
}

// Has reports membership. A nil set is empty.
func (s *IDSet) Has(id string) bool {
	if s == nil {
		return false
	}
	_, ok := s.seen[id]
	return ok
}

// IDs returns the members in insertion order.
func (s *IDSet) IDs() []string {
	if s == nil {
		return nil
	}
	return append([]string(nil), s.order...)
}

// Len returns the number of members.
func (s *IDSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.order)
}
