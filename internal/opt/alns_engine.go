package opt

import (
	"context"
	"math"
	"math/rand"
	"sort"
	"time"
)

// plan is one vehicle's visiting order over location indices (depot excluded).
type plan []int

type solution struct {
	plans      []plan
	unassigned []int
	cost       float64
}

func (s solution) clone() solution {
	out := solution{plans: make([]plan, len(s.plans)), cost: s.cost}
	for i, pl := range s.plans {
		out.plans[i] = append(plan(nil), pl...)
	}
	out.unassigned = append([]int(nil), s.unassigned...)
	return out
}

// Metrics describes one search run.
type Metrics struct {
	RemovalSelects        [2]int // random, related
	InsertSelects         [2]int // greedy, regret2
	Iterations            int
	Improvements          int
	AcceptedWorse         int
	SeedCost              float64
	BestCost              float64
	FinalRemovalWeights   [2]float64
	FinalInsertionWeights [2]float64
	Snapshots             []WeightSnapshot
	Elapsed               time.Duration
}

type WeightSnapshot struct {
	Iteration int
	Removal   [2]float64
	Insertion [2]float64
}

// unassignedPenalty dominates any real route length so the search always
// prefers serving a stop.
const unassignedPenalty = 1e12

// search runs adaptive large neighbourhood search until ctx is done, the
// time budget is spent, the iteration cap is hit or the search stalls.
func search(ctx context.Context, in *instance, cfg Config, budget time.Duration) (solution, Metrics) {
	start := time.Now()
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	curr := greedySeed(in)
	curr = localSearch(in, curr)
	best := curr.clone()
	m := Metrics{SeedCost: curr.cost, BestCost: best.cost}

	n := in.stops()
	if n <= 3 {
		m.Elapsed = time.Since(start)
		return best, m
	}

	remW := []float64{1, 1}
	insW := []float64{1, 1}
	if len(cfg.InitialRemovalWeights) == 2 {
		remW = []float64{cfg.InitialRemovalWeights[0], cfg.InitialRemovalWeights[1]}
	}
	if len(cfg.InitialInsertionWeights) == 2 {
		insW = []float64{cfg.InitialInsertionWeights[0], cfg.InitialInsertionWeights[1]}
	}
	temp := cfg.InitialTemp
	if temp <= 0 {
		temp = 0.05 * curr.cost / float64(n)
	}
	cool := 0.995
	if cfg.Cooling > 0 && cfg.Cooling < 1 {
		cool = cfg.Cooling
	}
	stallLimit := cfg.StallLimit
	if stallLimit <= 0 {
		stallLimit = 200 + 20*n
	}
	deadline := start.Add(budget)
	snapshotEvery := 50
	stall := 0

	for time.Now().Before(deadline) && ctx.Err() == nil {
		m.Iterations++
		if cfg.IterationsLimit > 0 && m.Iterations > cfg.IterationsLimit {
			m.Iterations--
			break
		}
		if stall >= stallLimit {
			break
		}
		k := 1 + rng.Intn(min(4, n/2))
		op := selectOp(remW, rng)
		m.RemovalSelects[op]++
		ip := selectOp(insW, rng)
		m.InsertSelects[ip]++

		cand := curr.clone()
		var removed []int
		switch op {
		case 0:
			removed = pickRandomNodes(cand, k, rng)
		case 1:
			removed = relatedRemoval(in, cand, k, rng)
		}
		cand = removeNodes(cand, removed)
		pending := append(cand.unassigned, removed...)
		cand.unassigned = nil
		switch ip {
		case 0:
			cand = greedyInsert(in, cand, pending)
		case 1:
			cand = regretInsert(in, cand, pending)
		}
		cand = localSearch(in, cand)

		delta := cand.cost - curr.cost
		switch {
		case cand.cost+1e-6 < best.cost:
			best = cand.clone()
			curr = cand
			remW[op] += 0.1
			insW[ip] += 0.1
			m.Improvements++
			m.BestCost = best.cost
			stall = 0
		case delta <= 0 || rng.Float64() < math.Exp(-delta/(temp+1e-9)):
			curr = cand
			remW[op] += 0.01
			insW[ip] += 0.01
			if delta > 0 {
				m.AcceptedWorse++
			}
			stall++
		default:
			remW[op] = math.Max(0.01, remW[op]*0.999)
			insW[ip] = math.Max(0.01, insW[ip]*0.999)
			stall++
		}
		temp *= cool
		if m.Iterations%snapshotEvery == 0 {
			m.Snapshots = append(m.Snapshots, WeightSnapshot{Iteration: m.Iterations, Removal: [2]float64{remW[0], remW[1]}, Insertion: [2]float64{insW[0], insW[1]}})
		}
	}
	m.FinalRemovalWeights = [2]float64{remW[0], remW[1]}
	m.FinalInsertionWeights = [2]float64{insW[0], insW[1]}
	m.Elapsed = time.Since(start)
	return best, m
}

// greedySeed builds routes by repeatedly appending the nearest feasible stop
// to each vehicle in turn.
func greedySeed(in *instance) solution {
	n := in.size()
	used := make([]bool, n)
	used[0] = true
	sol := solution{plans: make([]plan, in.vehicles)}
	for assigned := 0; assigned < in.stops(); {
		progress := false
		for vi := range sol.plans {
			last := 0
			if len(sol.plans[vi]) > 0 {
				last = sol.plans[vi][len(sol.plans[vi])-1]
			}
			bestIdx, bestDist := -1, int64(math.MaxInt64)
			for i := 1; i < n; i++ {
				if used[i] {
					continue
				}
				if !in.feasibleAt(sol.plans[vi], i, len(sol.plans[vi])) {
					continue
				}
				if d := in.p.Costs[last][i]; d < bestDist {
					bestDist = d
					bestIdx = i
				}
			}
			if bestIdx >= 0 {
				sol.plans[vi] = append(sol.plans[vi], bestIdx)
				used[bestIdx] = true
				assigned++
				progress = true
				if assigned == in.stops() {
					break
				}
			}
		}
		if !progress {
			break
		}
	}
	for i := 1; i < n; i++ {
		if !used[i] {
			sol.unassigned = append(sol.unassigned, i)
		}
	}
	sol.cost = in.cost(sol)
	return sol
}

func pickRandomNodes(sol solution, k int, rng *rand.Rand) []int {
	var all []int
	for _, pl := range sol.plans {
		all = append(all, pl...)
	}
	var removed []int
	for i := 0; i < k && len(all) > 0; i++ {
		j := rng.Intn(len(all))
		removed = append(removed, all[j])
		all = append(all[:j], all[j+1:]...)
	}
	return removed
}

// relatedRemoval removes a random stop and the k-1 stops closest to it.
func relatedRemoval(in *instance, sol solution, k int, rng *rand.Rand) []int {
	var assigned []int
	for _, pl := range sol.plans {
		assigned = append(assigned, pl...)
	}
	if len(assigned) == 0 {
		return nil
	}
	seedIdx := assigned[rng.Intn(len(assigned))]
	type pair struct {
		idx   int
		score int64
	}
	rel := make([]pair, 0, len(assigned))
	for _, idx := range assigned {
		if idx == seedIdx {
			continue
		}
		score := in.p.Costs[seedIdx][idx] + 100*absInt64(in.p.Demands[seedIdx]-in.p.Demands[idx])
		rel = append(rel, pair{idx: idx, score: score})
	}
	sort.Slice(rel, func(i, j int) bool {
		if rel[i].score != rel[j].score {
			return rel[i].score < rel[j].score
		}
		return rel[i].idx < rel[j].idx
	})
	removed := []int{seedIdx}
	for i := 0; i < len(rel) && len(removed) < k; i++ {
		removed = append(removed, rel[i].idx)
	}
	return removed
}

func removeNodes(sol solution, removed []int) solution {
	if len(removed) == 0 {
		return sol
	}
	rm := map[int]bool{}
	for _, i := range removed {
		rm[i] = true
	}
	for vi, pl := range sol.plans {
		kept := pl[:0]
		for _, idx := range pl {
			if !rm[idx] {
				kept = append(kept, idx)
			}
		}
		sol.plans[vi] = kept
	}
	return sol
}

// greedyInsert places each pending stop at its cheapest feasible position,
// cheapest first. Stops with no feasible position stay unassigned.
func greedyInsert(in *instance, sol solution, pending []int) solution {
	nodes := append([]int(nil), pending...)
	for len(nodes) > 0 {
		bestPlan, bestPos, bestNode := -1, -1, -1
		bestCost := int64(math.MaxInt64)
		for ni, idx := range nodes {
			for vi, pl := range sol.plans {
				for pos := 0; pos <= len(pl); pos++ {
					if !in.feasibleAt(pl, idx, pos) {
						continue
					}
					if c := in.deltaInsert(pl, idx, pos); c < bestCost {
						bestCost, bestPlan, bestPos, bestNode = c, vi, pos, ni
					}
				}
			}
		}
		if bestNode == -1 {
			sol.unassigned = append(sol.unassigned, nodes...)
			break
		}
		sol.plans[bestPlan] = insertAt(sol.plans[bestPlan], nodes[bestNode], bestPos)
		nodes = append(nodes[:bestNode], nodes[bestNode+1:]...)
	}
	sol.cost = in.cost(sol)
	return sol
}

// regretInsert places first the stop whose best and second-best positions
// differ most.
func regretInsert(in *instance, sol solution, pending []int) solution {
	nodes := append([]int(nil), pending...)
	for len(nodes) > 0 {
		bestNode, bestPlan, bestPos := -1, -1, -1
		bestRegret := int64(-1)
		for ni, idx := range nodes {
			best1, best2 := int64(math.MaxInt64), int64(math.MaxInt64)
			bp, bpos := -1, -1
			for vi, pl := range sol.plans {
				for pos := 0; pos <= len(pl); pos++ {
					if !in.feasibleAt(pl, idx, pos) {
						continue
					}
					c := in.deltaInsert(pl, idx, pos)
					if c < best1 {
						best2 = best1
						best1 = c
						bp, bpos = vi, pos
					} else if c < best2 {
						best2 = c
					}
				}
			}
			if bp == -1 {
				continue
			}
			regret := int64(math.MaxInt64)
			if best2 != math.MaxInt64 {
				regret = best2 - best1
			}
			if regret > bestRegret {
				bestRegret = regret
				bestNode, bestPlan, bestPos = ni, bp, bpos
			}
		}
		if bestNode == -1 {
			sol.unassigned = append(sol.unassigned, nodes...)
			break
		}
		sol.plans[bestPlan] = insertAt(sol.plans[bestPlan], nodes[bestNode], bestPos)
		nodes = append(nodes[:bestNode], nodes[bestNode+1:]...)
	}
	sol.cost = in.cost(sol)
	return sol
}

func insertAt(pl plan, idx, pos int) plan {
	out := make(plan, 0, len(pl)+1)
	out = append(out, pl[:pos]...)
	out = append(out, idx)
	return append(out, pl[pos:]...)
}

// localSearch runs intra-route 2-opt and relocation, then inter-route
// exchanges, until none of them improves the solution.
func localSearch(in *instance, sol solution) solution {
	for {
		before := in.cost(sol)
		for vi := range sol.plans {
			sol.plans[vi] = improve2Opt(in, sol.plans[vi])
			sol.plans[vi] = improveRelocate(in, sol.plans[vi])
		}
		sol = crossExchangeImprove(in, sol)
		sol.cost = in.cost(sol)
		if sol.cost+1e-6 >= before {
			return sol
		}
	}
}

// crossExchangeImprove swaps single stops between routes when that shortens
// the total and both routes stay feasible.
func crossExchangeImprove(in *instance, sol solution) solution {
	m := len(sol.plans)
	if m < 2 {
		return sol
	}
	improved := true
	for improved {
		improved = false
		for a := 0; a < m; a++ {
			for b := a + 1; b < m; b++ {
				pa, pb := sol.plans[a], sol.plans[b]
				for i := 0; i < len(pa); i++ {
					for j := 0; j < len(pb); j++ {
						ca := append(plan(nil), pa...)
						cb := append(plan(nil), pb...)
						ca[i], cb[j] = cb[j], ca[i]
						if !in.feasible(ca) || !in.feasible(cb) {
							continue
						}
						if in.length(ca)+in.length(cb) < in.length(pa)+in.length(pb) {
							sol.plans[a], sol.plans[b] = ca, cb
							pa, pb = ca, cb
							improved = true
						}
					}
				}
			}
		}
	}
	return sol
}

func selectOp(weights []float64, rng *rand.Rand) int {
	sum := 0.0
	for _, w := range weights {
		sum += w
	}
	if sum <= 0 {
		return 0
	}
	r := rng.Float64() * sum
	acc := 0.0
	for i, w := range weights {
		acc += w
		if r <= acc {
			return i
		}
	}
	return len(weights) - 1
}

func absInt64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
