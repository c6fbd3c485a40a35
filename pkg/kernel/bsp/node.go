package bsp

// node is one level of a BSP tree. polygons are coplanar with plane; a nil
// front or back child means empty space on that side (outside for front,
// inside for back).
type node struct {
	plane    *plane
	front    *node
	back     *node
	polygons []polygon
}

// budget bounds the work of one boolean. Once exhausted, build stops
// splitting and keeps the remaining polygons at the current node so the
// result is still renderable.
type budget struct {
	maxDepth    int
	maxPolygons int
	polygons    int
	exceeded    bool
}

func (b *budget) allow(depth, n int) bool {
	b.polygons += n
	if depth > b.maxDepth || b.polygons > b.maxPolygons {
		b.exceeded = true
		return false
	}
	return true
}

func newNode(polys []polygon, bud *budget) *node {
	n := &node{}
	n.build(polys, 0, bud)
	return n
}

// invert swaps solid and empty space.
func (n *node) invert() {
	for i := range n.polygons {
		n.polygons[i] = n.polygons[i].flipped()
	}
	if n.plane != nil {
		p := n.plane.flipped()
		n.plane = &p
	}
	if n.front != nil {
		n.front.invert()
	}
	if n.back != nil {
		n.back.invert()
	}
	n.front, n.back = n.back, n.front
}

// clipPolygons removes the parts of polys that lie inside this tree.
func (n *node) clipPolygons(polys []polygon) []polygon {
	if n.plane == nil {
		return append([]polygon(nil), polys...)
	}
	var fronts, backs []polygon
	for _, p := range polys {
		n.plane.split(p, &fronts, &backs, &fronts, &backs)
	}
	if n.front != nil {
		fronts = n.front.clipPolygons(fronts)
	}
	if n.back != nil {
		backs = n.back.clipPolygons(backs)
	} else {
		backs = nil
	}
	return append(fronts, backs...)
}

// clipTo removes every polygon of n that lies inside other.
func (n *node) clipTo(other *node) {
	n.polygons = other.clipPolygons(n.polygons)
	if n.front != nil {
		n.front.clipTo(other)
	}
	if n.back != nil {
		n.back.clipTo(other)
	}
}

// allPolygons collects the polygons of the whole tree.
func (n *node) allPolygons() []polygon {
	out := append([]polygon(nil), n.polygons...)
	if n.front != nil {
		out = append(out, n.front.allPolygons()...)
	}
	if n.back != nil {
		out = append(out, n.back.allPolygons()...)
	}
	return out
}

// build inserts polys, splitting along the first polygon's plane at every
// level.
func (n *node) build(polys []polygon, depth int, bud *budget) {
	if len(polys) == 0 {
		return
	}
	if n.plane == nil {
		p := polys[0].plane
		n.plane = &p
	}
	if !bud.allow(depth, len(polys)) {
		n.polygons = append(n.polygons, polys...)
		return
	}
	var fronts, backs []polygon
	for _, p := range polys {
		n.plane.split(p, &n.polygons, &n.polygons, &fronts, &backs)
	}
	if len(fronts) > 0 {
		if n.front == nil {
			n.front = &node{}
		}
		n.front.build(fronts, depth+1, bud)
	}
	if len(backs) > 0 {
		if n.back == nil {
			n.back = &node{}
		}
		n.back.build(backs, depth+1, bud)
	}
}
