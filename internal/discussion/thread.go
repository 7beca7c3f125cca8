package discussion

import "slices"

const noParent = -1

// BuildOrder lays comments out as a pre-order depth-first thread.
//
// A comment whose parent is missing, is itself, or lies on a parent cycle is
// placed at the root; nothing is dropped. Siblings are ordered by creation
// time and then by id, so the result does not depend on input order.
func BuildOrder(comments []Comment) []OrderedComment {
	slots := layout(comments)
	out := make([]OrderedComment, len(slots))
	for i, s := range slots {
		out[i] = OrderedComment{Comment: comments[s.index], Depth: s.depth}
	}
	return out
}

// slot is a position in the rendered thread, pointing back into the input.
type slot struct {
	index int
	depth int
}

func layout(comments []Comment) []slot {
	if len(comments) == 0 {
		return nil
	}

	parents := resolveParents(comments)

	var roots []int
	children := make(map[int][]int)
	for i, p := range parents {
		if p == noParent {
			roots = append(roots, i)
		} else {
			children[p] = append(children[p], i)
		}
	}

	bySiblingOrder := func(a, b int) int {
		ca, cb := comments[a], comments[b]
		if c := ca.CreatedAt.Compare(cb.CreatedAt); c != 0 {
			return c
		}
		if c := compareIDs(ca.ID, cb.ID); c != 0 {
			return c
		}
		return a - b
	}
	slices.SortFunc(roots, bySiblingOrder)
	for p := range children {
		slices.SortFunc(children[p], bySiblingOrder)
	}

	out := make([]slot, 0, len(comments))
	type frame struct {
		index int
		depth int
	}
	stack := make([]frame, 0, len(roots))
	for i := len(roots) - 1; i >= 0; i-- {
		stack = append(stack, frame{index: roots[i]})
	}
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		out = append(out, slot{index: top.index, depth: top.depth})

		kids := children[top.index]
		for i := len(kids) - 1; i >= 0; i-- {
			stack = append(stack, frame{index: kids[i], depth: top.depth + 1})
		}
	}
	return out
}

// resolveParents maps every comment to the index of its effective parent, or
// noParent. Dangling and self references become roots, and every member of a
// parent cycle is cut loose so the cycle cannot be entered.
func resolveParents(comments []Comment) []int {
	byID := make(map[string]int, len(comments))
	for i, c := range comments {
		if _, dup := byID[c.ID]; !dup {
			byID[c.ID] = i
		}
	}

	parents := make([]int, len(comments))
	for i, c := range comments {
		parents[i] = noParent
		if c.ParentID == "" {
			continue
		}
		if p, ok := byID[c.ParentID]; ok && p != i {
			parents[i] = p
		}
	}

	const (
		unvisited = iota
		onPath
		settled
	)
	state := make([]uint8, len(comments))
	var path []int
	for start := range comments {
		if state[start] != unvisited {
			continue
		}
		path = path[:0]
		n := start
		for n != noParent && state[n] == unvisited {
			state[n] = onPath
			path = append(path, n)
			n = parents[n]
		}
		if n != noParent && state[n] == onPath {
			// n closes a cycle; everything from n to the end of the path is on it.
			cycleStart := slices.Index(path, n)
			for _, member := range path[cycleStart:] {
				parents[member] = noParent
			}
		}
		for _, member := range path {
			state[member] = settled
		}
	}
	return parents
}
