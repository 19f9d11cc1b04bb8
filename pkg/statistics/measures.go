package statistics

// samples holds the iterated dose values sorted in descending order with
// their relevant volume fractions. Measures only read it.
type samples struct {
	doses       []float64
	proportions []float64
	voxelVolume float64
}

func (s *samples) len() int     { return len(s.doses) }
func (s *samples) max() float64 { return s.doses[0] }
func (s *samples) min() float64 { return s.doses[len(s.doses)-1] }

// voxels converts a volume in cm³ to a voxel count.
func (s *samples) voxels(volume float64) float64 { return volume / s.voxelVolume }

// at returns the i-th sample counted from the hot end, or from the cold end
// when cold is set.
func (s *samples) at(i int, cold bool) (float64, float64) {
	if cold {
		i = len(s.doses) - 1 - i
	}
	return s.doses[i], s.proportions[i]
}

// doseAtVolume returns the dose of the sample where the cumulative volume
// from the hot end reaches volume, or the minimum dose if it never does.
func (s *samples) doseAtVolume(volume float64) float64 {
	target := s.voxels(volume)
	running := 0.0
	for i := 0; i < s.len(); i++ {
		d, p := s.at(i, false)
		running += p
		if running >= target {
			return d
		}
	}
	return s.min()
}

// volumeAboveDose returns the volume in cm³ receiving at least dose.
func (s *samples) volumeAboveDose(dose float64) float64 {
	sum := 0.0
	for i := 0; i < s.len() && s.doses[i] >= dose; i++ {
		sum += s.proportions[i]
	}
	return sum * s.voxelVolume
}

// meanOfExtreme returns the mean dose of the hottest (or coldest) volume. A
// volume beyond the total averages every sample; an empty volume returns the
// extreme dose itself.
func (s *samples) meanOfExtreme(volume float64, cold bool) float64 {
	target := s.voxels(volume)
	if target <= 0 {
		d, _ := s.at(0, cold)
		return d
	}
	running, sum := 0.0, 0.0
	for i := 0; i < s.len() && running < target; i++ {
		d, p := s.at(i, cold)
		w := min(p, target-running)
		sum += d * w
		running += w
	}
	if running == 0 {
		d, _ := s.at(0, cold)
		return d
	}
	return sum / running
}

// boundaryOfExtreme returns the dose of the first sample after the hottest
// (or coldest) volume. An empty volume returns the extreme dose; a volume
// that takes every sample returns the opposite extreme.
func (s *samples) boundaryOfExtreme(volume float64, cold bool) float64 {
	target := s.voxels(volume)
	if target <= 0 {
		d, _ := s.at(0, cold)
		return d
	}
	running := 0.0
	for i := 0; i < s.len(); i++ {
		_, p := s.at(i, cold)
		running += p
		if running >= target {
			if i+1 < s.len() {
				d, _ := s.at(i+1, cold)
				return d
			}
			break
		}
	}
	d, _ := s.at(s.len()-1, cold)
	return d
}

// evaluate computes measure k at absolute threshold x.
func (s *samples) evaluate(k Kind, x float64) float64 {
	switch k {
	case Dx:
		return s.doseAtVolume(x)
	case Vx:
		return s.volumeAboveDose(x)
	case MOHx:
		return s.meanOfExtreme(x, false)
	case MOCx:
		return s.meanOfExtreme(x, true)
	case MaxOHx:
		return s.boundaryOfExtreme(x, false)
	case MinOCx:
		return s.boundaryOfExtreme(x, true)
	}
	return 0
}
