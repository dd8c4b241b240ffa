package stats

// accumulator folds one group's per-city observations into a StatBlock.
type accumulator struct {
	den Denominator

	minTotal *MinCount
	maxTotal *MaxCount
	minPct   *MinRatio
	maxPct   *MaxRatio

	sumTotal     int
	sumPct       float64
	pctUndefined bool

	// contributing counts observations with a nonzero count.
	contributing int
}

// observe folds one city's count and percentage. Comparisons are strict, so
// ties keep the first city seen. Undefined percentages never become extremes
// but poison the percentage mean, unless the city is outside a
// ContributingCities mean because its count is zero. With onlyContributing
// set, a zero count is ignored entirely.
func (a *accumulator) observe(city string, total int, pct Ratio, onlyContributing bool) {
	if total == 0 && onlyContributing {
		return
	}
	if total != 0 {
		a.contributing++
	}

	a.sumTotal += total
	if a.minTotal == nil || a.minTotal.Min > total {
		a.minTotal = &MinCount{City: city, Min: total}
	}
	if a.maxTotal == nil || a.maxTotal.Max < total {
		a.maxTotal = &MaxCount{City: city, Max: total}
	}

	v, ok := pct.Float64()
	if !ok {
		if total != 0 || a.den != ContributingCities {
			a.pctUndefined = true
		}
		return
	}
	a.sumPct += v
	if a.minPct == nil || mustFloat(a.minPct.Min) > v {
		a.minPct = &MinRatio{City: city, Min: pct}
	}
	if a.maxPct == nil || mustFloat(a.maxPct.Max) < v {
		a.maxPct = &MaxRatio{City: city, Max: pct}
	}
}

// resetMinimum forces both minimums to zero attributed to city.
func (a *accumulator) resetMinimum(city string) {
	a.minTotal = &MinCount{City: city, Min: 0}
	a.minPct = &MinRatio{City: city, Min: Value(0)}
}

// block finalises the accumulator. cityCount is the number of cities in the
// report.
func (a *accumulator) block(cityCount int) StatBlock {
	den := cityCount
	if a.den == ContributingCities {
		den = a.contributing
	}

	mean := Mean{Total: Divide(float64(a.sumTotal), float64(den))}
	if a.pctUndefined {
		mean.Percentage = Undefined()
	} else {
		mean.Percentage = Divide(a.sumPct, float64(den))
	}

	return StatBlock{
		Min:  Minimum{Total: a.minTotal, Percentage: a.minPct},
		Max:  Maximum{Total: a.maxTotal, Percentage: a.maxPct},
		Mean: mean,
	}
}

func mustFloat(r Ratio) float64 {
	v, _ := r.Float64()
	return v
}

// groups is an accumulator per name, iterated in first-insertion order.
type groups struct {
	den    Denominator
	order  []string
	byName map[string]*accumulator
}

func newGroups(d Denominator) *groups {
	return &groups{den: d, byName: make(map[string]*accumulator)}
}

func (g *groups) get(name string) (*accumulator, bool) {
	acc, ok := g.byName[name]
	return acc, ok
}

func (g *groups) create(name string) *accumulator {
	acc := &accumulator{den: g.den}
	g.byName[name] = acc
	g.order = append(g.order, name)
	return acc
}

func (g *groups) getOrCreate(name string) *accumulator {
	if acc, ok := g.get(name); ok {
		return acc
	}
	return g.create(name)
}
