package stats

// Each reducer folds one dimension over the read-only city summaries and
// owns its accumulators, so the four can run in parallel.

func reduceTotal(summaries []CitySummary, p Policy) StatBlock {
	acc := accumulator{den: p.Total}
	for i := range summaries {
		s := &summaries[i]
		acc.observe(s.City, s.Total.Total, s.Total.Percentage, p.ContributingExtremes)
	}
	return acc.block(len(summaries))
}

// reduceTypes groups by type name in first-seen order. Cities without a type
// only count towards its mean through the denominator.
func reduceTypes(summaries []CitySummary, p Policy) []TypeStat {
	g := newGroups(p.Type)
	for i := range summaries {
		s := &summaries[i]
		for _, t := range s.Type {
			g.getOrCreate(t.Type).observe(s.City, t.Total, t.Percentage, p.ContributingExtremes)
		}
	}

	out := make([]TypeStat, 0, len(g.order))
	for _, name := range g.order {
		out = append(out, TypeStat{Type: name, StatBlock: g.byName[name].block(len(summaries))})
	}
	return out
}

func reduceDeveloped(summaries []CitySummary, names []string, p Policy) []AllergyStat {
	g := newGroups(p.Developed)
	for i := range summaries {
		s := &summaries[i]
		for _, name := range names {
			a, inCity := s.allergy(name)
			acc, tracked := g.get(name)
			switch {
			case inCity:
				if !tracked {
					acc = g.create(name)
				}
				acc.observe(s.City, a.Developed.Total, a.Developed.Percentage, p.ContributingExtremes)
			case tracked && p.DevelopedAbsent == AbsentResetsMinimum:
				acc.resetMinimum(s.City)
			}
		}
	}
	return allergyStats(g, len(summaries))
}

// reduceOutgrown mirrors reduceDeveloped without touching allergies a city
// lacks.
func reduceOutgrown(summaries []CitySummary, names []string, p Policy) []AllergyStat {
	g := newGroups(p.Outgrown)
	for i := range summaries {
		s := &summaries[i]
		for _, name := range names {
			a, ok := s.allergy(name)
			if !ok {
				continue
			}
			g.getOrCreate(name).observe(s.City, a.Outgrown.Total, a.Outgrown.Percentage, p.ContributingExtremes)
		}
	}
	return allergyStats(g, len(summaries))
}

func allergyStats(g *groups, cityCount int) []AllergyStat {
	out := make([]AllergyStat, 0, len(g.order))
	for _, name := range g.order {
		out = append(out, AllergyStat{Allergy: name, StatBlock: g.byName[name].block(cityCount)})
	}
	return out
}
