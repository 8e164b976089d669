package algebra

// Stats accumulates running statistics over a series without storing it:
// extrema, sum, and Welford-method mean/variance.
type Stats struct {
	n    int64
	max  float64
	min  float64
	sum  float64
	mean float64
	m2   float64
}

// Update folds one sample into the series.
func (s *Stats) Update(sample float64) {
	if s.n == 0 {
		s.max = sample
		s.min = sample
	} else if sample > s.max {
		s.max = sample
	} else if sample < s.min {
		s.min = sample
	}

	s.sum += sample
	s.n++

	delta := sample - s.mean
	s.mean += delta / float64(s.n)
	s.m2 += delta * (sample - s.mean)
}

// Count returns the number of samples folded in so far.
func (s *Stats) Count() int64 { return s.n }

// Max returns the largest sample seen, or 0 for an empty series.
func (s *Stats) Max() float64 { return s.max }

// Min returns the smallest sample seen, or 0 for an empty series.
func (s *Stats) Min() float64 { return s.min }

// Mean returns the series mean, or 0 for an empty series.
func (s *Stats) Mean() float64 {
	if s.n == 0 {
		return 0
	}
	return s.mean
}

// Variance returns the sample variance, or 0 when fewer than two samples
// have been recorded.
func (s *Stats) Variance() float64 {
	if s.n <= 1 {
		return 0
	}
	return s.m2 / float64(s.n-1)
}

// Reset empties the series.
func (s *Stats) Reset() {
	*s = Stats{}
}
