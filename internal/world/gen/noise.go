package gen

// Simplex noise after Ken Perlin's algorithm, sampled on a seeded permutation.
// Output is in [-1, 1].

var grad3 = [12][3]float64{
	{1, 1, 0}, {-1, 1, 0}, {1, -1, 0}, {-1, -1, 0},
	{1, 0, 1}, {-1, 0, 1}, {1, 0, -1}, {-1, 0, -1},
	{0, 1, 1}, {0, -1, 1}, {0, 1, -1}, {0, -1, -1},
}

const (
	skew2   = 0.36602540378443864676 // (sqrt(3) - 1) / 2
	unskew2 = 0.21132486540518711775 // (3 - sqrt(3)) / 6
	skew3   = 1.0 / 3.0
	unskew3 = 1.0 / 6.0
)

// Noise is a coherent noise field. It is immutable after construction and
// safe for concurrent use.
type Noise struct {
	perm [512]uint8
}

// NewNoise creates a noise field whose permutation table is shuffled by an
// RNG seeded with seed.
func NewNoise(seed int64) *Noise {
	var p [256]uint8
	for i := range p {
		p[i] = uint8(i)
	}
	rng := NewRNG(seed)
	for i := 255; i > 0; i-- {
		j := rng.Intn(i + 1)
		p[i], p[j] = p[j], p[i]
	}

	n := &Noise{}
	for i := range n.perm {
		n.perm[i] = p[i&255]
	}
	return n
}

func (n *Noise) hash(i, j, k int) int {
	return int(n.perm[i+int(n.perm[j+int(n.perm[k])])]) % 12
}

// Noise2D samples the field at (x, y).
func (n *Noise) Noise2D(x, y float64) float64 {
	s := (x + y) * skew2
	i := fastFloor(x + s)
	j := fastFloor(y + s)
	t := float64(i+j) * unskew2
	x0 := x - (float64(i) - t)
	y0 := y - (float64(j) - t)

	// Lower or upper triangle of the skewed cell.
	i1, j1 := 0, 1
	if x0 > y0 {
		i1, j1 = 1, 0
	}

	corners := [3]struct {
		di, dj int
		x, y   float64
	}{
		{0, 0, x0, y0},
		{i1, j1, x0 - float64(i1) + unskew2, y0 - float64(j1) + unskew2},
		{1, 1, x0 - 1 + 2*unskew2, y0 - 1 + 2*unskew2},
	}

	ii, jj := i&255, j&255
	var sum float64
	for _, c := range corners {
		f := 0.5 - c.x*c.x - c.y*c.y
		if f < 0 {
			continue
		}
		g := grad3[int(n.perm[ii+c.di+int(n.perm[jj+c.dj])])%12]
		f *= f
		sum += f * f * (g[0]*c.x + g[1]*c.y)
	}
	return 70 * sum
}

// Noise3D samples the field at (x, y, z).
func (n *Noise) Noise3D(x, y, z float64) float64 {
	s := (x + y + z) * skew3
	i := fastFloor(x + s)
	j := fastFloor(y + s)
	k := fastFloor(z + s)
	t := float64(i+j+k) * unskew3
	x0 := x - (float64(i) - t)
	y0 := y - (float64(j) - t)
	z0 := z - (float64(k) - t)

	o1, o2 := simplexOffsets3(x0, y0, z0)
	offsets := [4][3]int{{0, 0, 0}, o1, o2, {1, 1, 1}}

	ii, jj, kk := i&255, j&255, k&255
	var sum float64
	for c, o := range offsets {
		d := float64(c) * unskew3
		cx := x0 - float64(o[0]) + d
		cy := y0 - float64(o[1]) + d
		cz := z0 - float64(o[2]) + d
		f := 0.6 - cx*cx - cy*cy - cz*cz
		if f < 0 {
			continue
		}
		g := grad3[n.hash(ii+o[0], jj+o[1], kk+o[2])]
		f *= f
		sum += f * f * (g[0]*cx + g[1]*cy + g[2]*cz)
	}
	return 32 * sum
}

// simplexOffsets3 returns the offsets of the second and third corners of the
// tetrahedron containing (x, y, z).
func simplexOffsets3(x, y, z float64) (second, third [3]int) {
	switch {
	case x >= y && y >= z:
		return [3]int{1, 0, 0}, [3]int{1, 1, 0}
	case x >= y && x >= z:
		return [3]int{1, 0, 0}, [3]int{1, 0, 1}
	case x >= y:
		return [3]int{0, 0, 1}, [3]int{1, 0, 1}
	case y < z:
		return [3]int{0, 0, 1}, [3]int{0, 1, 1}
	case x < z:
		return [3]int{0, 1, 0}, [3]int{0, 1, 1}
	default:
		return [3]int{0, 1, 0}, [3]int{1, 1, 0}
	}
}

func fastFloor(x float64) int {
	xi := int(x)
	if x < float64(xi) {
		return xi - 1
	}
	return xi
}
