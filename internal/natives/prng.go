package natives

// PCG32, ported directly from seni_prng.c ("Really minimal PCG32" by
// M.E. O'Neill, pcg-random.org). Kept bit-for-bit faithful so genotypes
// seeded identically reproduce identical genes across builds.
type pcg32 struct {
	state uint64
	inc   uint64
}

func newPCG32(seed uint64) *pcg32 {
	return &pcg32{state: seed, inc: 1}
}

func (p *pcg32) next() uint32 {
	old := p.state
	p.state = old*6364136223846793005 + (p.inc | 1)
	xorshifted := uint32(((old >> 18) ^ old) >> 27)
	rot := uint32(old >> 59)
	return (xorshifted >> rot) | (xorshifted << ((-rot) & 31))
}

// f32 returns a value in [0, 1] (1 itself when next() returns the largest
// u32), matching seni_prng_f32's division by the largest u32 rather than
// 1<<32.
func (p *pcg32) f32() float64 {
	const largestU32 = float64(4294967295)
	return float64(p.next()) / largestU32
}

func (p *pcg32) f32Range(min, max float64) float64 {
	return p.f32()*(max-min) + min
}
