package zone

import "sort"

type kdEntry struct {
	id   int
	x, y float64
}

// kdTree is a static 2-d index over projected points. It is rebuilt for
// every zoom level.
type kdTree struct {
	entries  []kdEntry
	nodeSize int
}

func newKDTree(nodes []*node, nodeSize int) *kdTree {
	if nodeSize < 1 {
		nodeSize = 64
	}
	entries := make([]kdEntry, len(nodes))
	for i, n := range nodes {
		entries[i] = kdEntry{id: i, x: n.x, y: n.y}
	}
	t := &kdTree{entries: entries, nodeSize: nodeSize}
	t.sortRange(0, len(entries)-1, 0)
	return t
}

func (t *kdTree) sortRange(left, right, axis int) {
	if right-left <= t.nodeSize {
		return
	}
	seg := t.entries[left : right+1]
	sort.SliceStable(seg, func(i, j int) bool {
		if axis == 0 {
			return seg[i].x < seg[j].x
		}
		return seg[i].y < seg[j].y
	})
	m := (left + right) >> 1
	t.sortRange(left, m-1, 1-axis)
	t.sortRange(m+1, right, 1-axis)
}

type kdSpan struct{ left, right, axis int }

// within returns the ids of entries whose distance to (qx,qy) is at most r.
func (t *kdTree) within(qx, qy, r float64) []int {
	var out []int
	r2 := r * r
	stack := []kdSpan{{0, len(t.entries) - 1, 0}}
	for len(stack) > 0 {
		s := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if s.right < s.left {
			continue
		}
		if s.right-s.left <= t.nodeSize {
			for i := s.left; i <= s.right; i++ {
				e := t.entries[i]
				if sqDist(e.x, e.y, qx, qy) <= r2 {
					out = append(out, e.id)
				}
			}
			continue
		}
		m := (s.left + s.right) >> 1
		e := t.entries[m]
		if sqDist(e.x, e.y, qx, qy) <= r2 {
			out = append(out, e.id)
		}
		c, q := e.x, qx
		if s.axis == 1 {
			c, q = e.y, qy
		}
		if q-r <= c {
			stack = append(stack, kdSpan{s.left, m - 1, 1 - s.axis})
		}
		if q+r >= c {
			stack = append(stack, kdSpan{m + 1, s.right, 1 - s.axis})
		}
	}
	return out
}

// rangeQuery returns the ids of entries inside the axis-aligned box.
func (t *kdTree) rangeQuery(minX, minY, maxX, maxY float64) []int {
	var out []int
	inside := func(e kdEntry) bool {
		return e.x >= minX && e.x <= maxX && e.y >= minY && e.y <= maxY
	}
	stack := []kdSpan{{0, len(t.entries) - 1, 0}}
	for len(stack) > 0 {
		s := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if s.right < s.left {
			continue
		}
		if s.right-s.left <= t.nodeSize {
			for i := s.left; i <= s.right; i++ {
				if inside(t.entries[i]) {
					out = append(out, t.entries[i].id)
				}
			}
			continue
		}
		m := (s.left + s.right) >> 1
		e := t.entries[m]
		if inside(e) {
			out = append(out, e.id)
		}
		c, lo, hi := e.x, minX, maxX
		if s.axis == 1 {
			c, lo, hi = e.y, minY, maxY
		}
		if lo <= c {
			stack = append(stack, kdSpan{s.left, m - 1, 1 - s.axis})
		}
		if hi >= c {
			stack = append(stack, kdSpan{m + 1, s.right, 1 - s.axis})
		}
	}
	sort.Ints(out)
	return out
}

func sqDist(ax, ay, bx, by float64) float64 {
	dx, dy := ax-bx, ay-by
	return dx*dx + dy*dy
}
