package zone

import (
	"math"
	"sort"
)

// node is a point or cluster at one zoom level. leaves holds indices into
// the loaded point slice.
type node struct {
	x, y   float64
	zoom   int
	count  int
	leaves []int
}

// hierarchy is a bottom-up agglomeration of points, one level per zoom from
// maxZoom+1 (raw points) down to minZoom.
type hierarchy struct {
	opts   Options
	levels map[int][]*node
	trees  map[int]*kdTree
}

func buildHierarchy(xs, ys []float64, opts Options) *hierarchy {
	h := &hierarchy{opts: opts, levels: map[int][]*node{}, trees: map[int]*kdTree{}}
	nodes := make([]*node, len(xs))
	for i := range xs {
		nodes[i] = &node{x: xs[i], y: ys[i], zoom: math.MaxInt32, count: 1, leaves: []int{i}}
	}
	top := opts.MaxZoom + 1
	h.levels[top] = nodes
	h.trees[top] = newKDTree(nodes, opts.NodeSize)
	for z := opts.MaxZoom; z >= opts.MinZoom; z-- {
		nodes = h.clusterLevel(nodes, h.trees[z+1], z)
		h.levels[z] = nodes
		h.trees[z] = newKDTree(nodes, opts.NodeSize)
	}
	return h
}

func (h *hierarchy) clusterLevel(points []*node, tree *kdTree, zoom int) []*node {
	r := h.opts.Radius / (float64(h.opts.Extent) * math.Pow(2, float64(zoom)))
	next := make([]*node, 0, len(points))
	for _, p := range points {
		if p.zoom <= zoom {
			continue
		}
		p.zoom = zoom

		neighbors := tree.within(p.x, p.y, r)
		sort.Ints(neighbors)
		count := p.count
		for _, id := range neighbors {
			if b := points[id]; b.zoom > zoom {
				count += b.count
			}
		}

		if count > p.count && count >= h.opts.MinPoints {
			wx := p.x * float64(p.count)
			wy := p.y * float64(p.count)
			leaves := append([]int(nil), p.leaves...)
			for _, id := range neighbors {
				b := points[id]
				if b.zoom <= zoom {
					continue
				}
				b.zoom = zoom
				wx += b.x * float64(b.count)
				wy += b.y * float64(b.count)
				leaves = append(leaves, b.leaves...)
			}
			next = append(next, &node{
				x:      wx / float64(count),
				y:      wy / float64(count),
				zoom:   math.MaxInt32,
				count:  count,
				leaves: leaves,
			})
			continue
		}

		next = append(next, p)
		if count > 1 {
			// below the minimum: neighbours stay as they are at this level
			for _, id := range neighbors {
				b := points[id]
				if b.zoom <= zoom {
					continue
				}
				b.zoom = zoom
				next = append(next, b)
			}
		}
	}
	return next
}

// nodesIn returns the nodes of the level closest to zoom whose position
// falls inside the projected box.
func (h *hierarchy) nodesIn(zoom int, minX, minY, maxX, maxY float64) []*node {
	z := zoom
	if z < h.opts.MinZoom {
		z = h.opts.MinZoom
	}
	if z > h.opts.MaxZoom+1 {
		z = h.opts.MaxZoom + 1
	}
	level := h.levels[z]
	ids := h.trees[z].rangeQuery(minX, minY, maxX, maxY)
	out := make([]*node, 0, len(ids))
	for _, id := range ids {
		out = append(out, level[id])
	}
	return out
}
