package opt

import "waterflow/internal/dow"

// Population is the bookkeeping shared by one run. Membership only grows:
// nothing leaves excluded, discarded or eroded, and an optimum leaves UE only
// to become eroded.
type Population struct {
	excluded  map[string]struct{}
	discarded map[string]struct{}
	eroded    map[string]*dow.DOW

	ue     []*dow.DOW // distinct un-eroded optima, insertion order
	counts map[string]int
	index  map[string][]*dow.DOW // optimum -> neighbours

	p0 []*dow.DOW
}

func NewPopulation() *Population {
	return &Population{
		excluded:  map[string]struct{}{},
		discarded: map[string]struct{}{},
		eroded:    map[string]*dow.DOW{},
		counts:    map[string]int{},
		index:     map[string][]*dow.DOW{},
	}
}

func (p *Population) AddExcluded(ds ...*dow.DOW) {
	for _, d := range ds {
		p.excluded[d.Key()] = struct{}{}
	}
}

func (p *Population) AddDiscarded(ds ...*dow.DOW) {
	for _, d := range ds {
		p.discarded[d.Key()] = struct{}{}
	}
}

func (p *Population) IsDiscarded(d *dow.DOW) bool {
	_, ok := p.discarded[d.Key()]
	return ok
}

func (p *Population) IsEroded(d *dow.DOW) bool {
	_, ok := p.eroded[d.Key()]
	return ok
}

func (p *Population) InUE(d *dow.DOW) bool { return p.counts[d.Key()] > 0 }

// Seen reports membership in any of excluded, discarded, UE or eroded.
func (p *Population) Seen(d *dow.DOW) bool {
	k := d.Key()
	if _, ok := p.excluded[k]; ok {
		return true
	}
	if _, ok := p.discarded[k]; ok {
		return true
	}
	if _, ok := p.eroded[k]; ok {
		return true
	}
	return p.counts[k] > 0
}

// RecordOptimum tallies one more occurrence of a local optimum. The neighbour
// list of the first occurrence is kept. Optima already eroded are ignored.
func (p *Population) RecordOptimum(d *dow.DOW, neighbors []*dow.DOW) {
	k := d.Key()
	if _, ok := p.eroded[k]; ok {
		return
	}
	if p.counts[k] == 0 {
		p.ue = append(p.ue, d)
	}
	p.counts[k]++
	if _, ok := p.index[k]; !ok {
		p.index[k] = neighbors
	}
}

func (p *Population) Occurrences(d *dow.DOW) int { return p.counts[d.Key()] }

// Ready returns the un-eroded optima seen at least minEro times, in the
// order they were first recorded.
func (p *Population) Ready(minEro int) []*dow.DOW {
	var out []*dow.DOW
	for _, d := range p.ue {
		if p.counts[d.Key()] >= minEro {
			out = append(out, d)
		}
	}
	return out
}

func (p *Population) Neighbors(d *dow.DOW) []*dow.DOW { return p.index[d.Key()] }

// Promote registers an optimum found by erosion: it joins UE and P0 and its
// neighbour list replaces any earlier one.
func (p *Population) Promote(d *dow.DOW, neighbors []*dow.DOW) {
	k := d.Key()
	if p.counts[k] == 0 {
		p.ue = append(p.ue, d)
	}
	p.counts[k]++
	p.index[k] = neighbors
	p.p0 = append(p.p0, d)
}

// MarkEroded moves d from UE to eroded.
func (p *Population) MarkEroded(d *dow.DOW) {
	k := d.Key()
	if p.counts[k] > 0 {
		delete(p.counts, k)
		for i, u := range p.ue {
			if u.Key() == k {
				p.ue = append(p.ue[:i], p.ue[i+1:]...)
				break
			}
		}
	}
	p.eroded[k] = d
}

// AddBest appends an erosion result to P0.
func (p *Population) AddBest(d *dow.DOW) { p.p0 = append(p.p0, d) }

// Best is the P0 member with the lowest objective, the earliest on ties, or
// nil when P0 is empty.
func (p *Population) Best() *dow.DOW {
	i := best(p.p0)
	if i < 0 {
		return nil
	}
	return p.p0[i]
}

// NextUnseen returns the first candidate neither seen nor in tried.
func (p *Population) NextUnseen(cands []*dow.DOW, tried map[string]bool) *dow.DOW {
	for _, c := range cands {
		if !tried[c.Key()] && !p.Seen(c) {
			return c
		}
	}
	return nil
}

// Stats are population sizes.
type Stats struct {
	P0        int `json:"p0"`
	UE        int `json:"ue"`
	Eroded    int `json:"eroded"`
	Excluded  int `json:"excluded"`
	Discarded int `json:"discarded"`
}

func (p *Population) Stats() Stats {
	return Stats{
		P0:        len(p.p0),
		UE:        len(p.ue),
		Eroded:    len(p.eroded),
		Excluded:  len(p.excluded),
		Discarded: len(p.discarded),
	}
}
