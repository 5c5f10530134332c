package opt

import "dispacio/internal/vrp"

// instance binds a problem to the fleet parameters of one solve call.
type instance struct {
	p        *vrp.Problem
	vehicles int
	capacity int64
}

func (in *instance) size() int  { return in.p.Size() }
func (in *instance) stops() int { return in.p.Stops() }

// length is the round-trip distance of pl in metres.
func (in *instance) length(pl plan) int64 {
	if len(pl) == 0 {
		return 0
	}
	total := int64(0)
	prev := 0
	for _, idx := range pl {
		total += in.p.Costs[prev][idx]
		prev = idx
	}
	return total + in.p.Costs[prev][0]
}

func (in *instance) cost(s solution) float64 {
	total := 0.0
	for _, pl := range s.plans {
		total += float64(in.length(pl))
	}
	return total + unassignedPenalty*float64(len(s.unassigned))
}

func (in *instance) load(pl plan) int64 {
	total := int64(0)
	for _, idx := range pl {
		total += in.p.Demands[idx]
	}
	return total
}

// feasible checks capacity and time windows along pl. Durations already
// carry the service time of the node being arrived at.
func (in *instance) feasible(pl plan) bool {
	if in.load(pl) > in.capacity {
		return false
	}
	return in.scheduleOK(pl)
}

func (in *instance) scheduleOK(pl plan) bool {
	w := in.p.Windows
	t := w[0].Start
	prev := 0
	for _, idx := range pl {
		t += in.p.Durations[prev][idx]
		if t < w[idx].Start {
			t = w[idx].Start
		}
		if t > w[idx].End {
			return false
		}
		prev = idx
	}
	return t+in.p.Durations[prev][0] <= w[0].End
}

// feasibleAt reports whether idx can be inserted into pl at pos.
func (in *instance) feasibleAt(pl plan, idx, pos int) bool {
	if pos < 0 || pos > len(pl) {
		return false
	}
	if in.load(pl)+in.p.Demands[idx] > in.capacity {
		return false
	}
	return in.scheduleOK(insertAt(pl, idx, pos))
}

// deltaInsert is the added distance of inserting idx at pos.
func (in *instance) deltaInsert(pl plan, idx, pos int) int64 {
	prev, next := 0, 0
	if pos > 0 {
		prev = pl[pos-1]
	}
	if pos < len(pl) {
		next = pl[pos]
	}
	c := in.p.Costs
	return c[prev][idx] + c[idx][next] - c[prev][next]
}
