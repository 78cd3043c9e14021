package aion

// resolveDrivers implements spec.md §4.5: partition the drivers of a
// single signal by strength, take the highest-strength stratum with at
// least one driver, and agree bit by bit within that stratum (X on
// disagreement). If every driver is HighImpedance the result is all-Z.
func resolveDrivers(drivers []Driver, width int) LogicVec {
	if len(drivers) == 0 {
		return AllZ(width)
	}

	best := HighImpedance
	for _, d := range drivers {
		if d.Strength > best {
			best = d.Strength
		}
	}
	if best == HighImpedance {
		return AllZ(width)
	}

	var winners []LogicVec
	for _, d := range drivers {
		if d.Strength == best {
			winners = append(winners, d.Value)
		}
	}

	bits := make([]Logic, width)
	for i := 0; i < width; i++ {
		var cur Logic
		set := false
		for _, w := range winners {
			b := w.Get(i)
			if !set {
				cur = b
				set = true
				continue
			}
			if b != cur {
				cur = X
			}
		}
		bits[i] = cur
	}
	return LogicVec{bits: bits}
}

// overlaySlice overlays a slice update onto base, returning a new
// full-width value where bits [lo,hi] come from value and all other
// bits are unchanged, per spec.md §4.5's slice-update overlay rule.
func overlaySlice(base LogicVec, hi, lo int, value LogicVec) LogicVec {
	out := base.Clone()
	for i := 0; i <= hi-lo; i++ {
		out = out.Set(lo+i, value.Get(i))
	}
	return out
}
