package gen

// RNG is a small deterministic random stream. Two RNGs created from the same
// seed produce the same sequence on every platform.
type RNG struct {
	state int64
}

// NewRNG creates an RNG from a seed.
func NewRNG(seed int64) *RNG {
	return &RNG{state: seed}
}

// NewChunkRNG derives the stream for one chunk's generation run. salt
// separates independent streams for the same chunk.
func NewChunkRNG(seed int64, cx, cz int, salt int64) *RNG {
	return NewRNG(seed ^ (int64(cx)*341873128712 + int64(cz)*132897987541 + salt))
}

func (r *RNG) next() int64 {
	r.state = r.state*6364136223846793005 + 1442695040888963407
	return r.state
}

// Float64 returns a value in [0, 1).
func (r *RNG) Float64() float64 {
	return float64(uint64(r.next())>>11) / (1 << 53)
}

// Intn returns a value in [0, n). n must be positive.
func (r *RNG) Intn(n int) int {
	return int((uint64(r.next()) >> 33) % uint64(n))
}

// IntRange returns a value in [lo, hi], each equally likely. lo must not exceed hi.
func (r *RNG) IntRange(lo, hi int) int {
	return lo + r.Intn(hi-lo+1)
}

// mix64 scrambles a 64-bit value (splitmix64 finaliser).
func mix64(z uint64) uint64 {
	z += 0x9e3779b97f4a7c15
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}

// DeriveSeed returns an independent seed for the stream identified by salt.
func DeriveSeed(seed int64, salt uint64) int64 {
	return int64(mix64(uint64(seed) ^ mix64(salt)))
}
