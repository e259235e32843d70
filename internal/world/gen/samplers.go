package gen

const (
	saltTerrain  = 1
	saltClouds   = 2
	saltResource = 100
)

// Samplers holds every noise field a world samples during generation. Each
// field is derived from the world seed alone, never from a chunk, so chunks
// agree on values at shared world coordinates.
type Samplers struct {
	Seed      int64
	Terrain   *Noise
	Clouds    *Noise
	Resources []*Noise // one per resource block, in catalog order
}

// NewSamplers derives the noise fields for a world seed and the given number
// of resource block types.
func NewSamplers(seed int64, resources int) *Samplers {
	s := &Samplers{
		Seed:      seed,
		Terrain:   NewNoise(DeriveSeed(seed, saltTerrain)),
		Clouds:    NewNoise(DeriveSeed(seed, saltClouds)),
		Resources: make([]*Noise, resources),
	}
	for i := range s.Resources {
		s.Resources[i] = NewNoise(DeriveSeed(seed, saltResource+uint64(i)))
	}
	return s
}
