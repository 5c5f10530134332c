package opt

// improve2Opt reverses segments of pl while that shortens the round trip
// and keeps the schedule feasible.
func improve2Opt(in *instance, pl plan) plan {
	n := len(pl)
	if n < 3 {
		return pl
	}
	best := append(plan(nil), pl...)
	bestLen := in.length(best)
	for improved := true; improved; {
		improved = false
		for i := 0; i < n-1; i++ {
			for k := i + 1; k < n; k++ {
				cand := twoOptSwap(best, i, k)
				d := in.length(cand)
				if d < bestLen && in.scheduleOK(cand) {
					best = cand
					bestLen = d
					improved = true
				}
			}
		}
	}
	return best
}

func twoOptSwap(ord plan, i, k int) plan {
	out := make(plan, len(ord))
	copy(out, ord[:i])
	pos := i
	for j := k; j >= i; j-- {
		out[pos] = ord[j]
		pos++
	}
	copy(out[pos:], ord[k+1:])
	return out
}

// improveRelocate moves single stops to better positions within pl.
func improveRelocate(in *instance, pl plan) plan {
	n := len(pl)
	if n < 2 {
		return pl
	}
	best := append(plan(nil), pl...)
	bestLen := in.length(best)
	for improved := true; improved; {
		improved = false
		for i := 0; i < n; i++ {
			for j := 0; j < n; j++ {
				if i == j {
					continue
				}
				cand := relocate(best, i, j)
				d := in.length(cand)
				if d < bestLen && in.scheduleOK(cand) {
					best = cand
					bestLen = d
					improved = true
				}
			}
		}
	}
	return best
}

// relocate moves the element at i so that it ends up at index j.
func relocate(ord plan, i, j int) plan {
	node := ord[i]
	rest := make(plan, 0, len(ord))
	rest = append(rest, ord[:i]...)
	rest = append(rest, ord[i+1:]...)
	return insertAt(rest, node, j)
}
