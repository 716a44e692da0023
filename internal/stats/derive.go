package stats

// Derive fills rate stats the provider omitted.
func (b *Batting) Derive() {
	if b.AVG == nil && b.AtBats > 0 {
		b.AVG = round(float64(b.Hits)/float64(b.AtBats), 3)
	}
	if b.OBP == nil {
		if den := b.AtBats + b.Walks + b.HitByPitch + b.SacFlies; den > 0 {
			b.OBP = round(float64(b.Hits+b.Walks+b.HitByPitch)/float64(den), 3)
		}
	}
	if b.SLG == nil && b.AtBats > 0 {
		b.SLG = round(float64(b.TotalBases())/float64(b.AtBats), 3)
	}
}

// TotalBases is H + 2B + 2*3B + 3*HR.
func (b *Batting) TotalBases() int {
	return b.Hits + b.Doubles + 2*b.Triples + 3*b.HomeRuns
}

// Derive fills ERA and WHIP. Both are undefined with zero outs recorded.
func (p *Pitching) Derive() {
	if p.Outs == 0 {
		return
	}
	if p.ERA == nil {
		p.ERA = round(float64(p.EarnedRuns)*27/float64(p.Outs), 2)
	}
	if p.WHIP == nil {
		p.WHIP = round(float64(p.Walks+p.Hits)*3/float64(p.Outs), 2)
	}
}

// InningsPitched renders Outs in provider notation.
func (p *Pitching) InningsPitched() string {
	return FormatInnings(p.Outs)
}

// Derive fills fielding percentage.
func (f *Fielding) Derive() {
	if f.FieldingPct == nil {
		if chances := f.Putouts + f.Assists + f.Errors; chances > 0 {
			f.FieldingPct = round(float64(f.Putouts+f.Assists)/float64(chances), 3)
		}
	}
}

// ---------------------------------------------------------------------------
// Aggregation
// ---------------------------------------------------------------------------

// Career sums counting stats across lines and recomputes every rate from
// the summed components. Per-season rates are never averaged.
func Career(lines []Line) Line {
	var total Line
	for _, l := range lines {
		if l.Batting != nil {
			if total.Batting == nil {
				total.Batting = &Batting{}
			}
			total.Batting.add(l.Batting)
		}
		if l.Pitching != nil {
			if total.Pitching == nil {
				total.Pitching = &Pitching{}
			}
			total.Pitching.add(l.Pitching)
		}
		if l.Fielding != nil {
			if total.Fielding == nil {
				total.Fielding = &Fielding{}
			}
			total.Fielding.add(l.Fielding)
		}
	}
	if total.Batting != nil {
		total.Batting.Derive()
	}
	if total.Pitching != nil {
		total.Pitching.Derive()
	}
	if total.Fielding != nil {
		total.Fielding.Derive()
	}
	return total
}

func (b *Batting) add(o *Batting) {
	b.Games += o.Games
	b.AtBats += o.AtBats
	b.Runs += o.Runs
	b.Hits += o.Hits
	b.Doubles += o.Doubles
	b.Triples += o.Triples
	b.HomeRuns += o.HomeRuns
	b.RBI += o.RBI
	b.Walks += o.Walks
	b.Strikeouts += o.Strikeouts
	b.HitByPitch += o.HitByPitch
	b.SacFlies += o.SacFlies
	b.SacHits += o.SacHits
	b.Steals += o.Steals
	b.CaughtStealing += o.CaughtStealing
}

func (p *Pitching) add(o *Pitching) {
	p.Appearances += o.Appearances
	p.Starts += o.Starts
	p.Wins += o.Wins
	p.Losses += o.Losses
	p.Saves += o.Saves
	p.Outs += o.Outs
	p.Hits += o.Hits
	p.Runs += o.Runs
	p.EarnedRuns += o.EarnedRuns
	p.Walks += o.Walks
	p.Strikeouts += o.Strikeouts
	p.HomeRuns += o.HomeRuns
}

func (f *Fielding) add(o *Fielding) {
	f.Putouts += o.Putouts
	f.Assists += o.Assists
	f.Errors += o.Errors
	f.DoublePlays += o.DoublePlays
}
