package fairness

// StaticClientSeed returns the same operator-published client seed for every
// round, typically a block hash announced before the chain was generated.
type StaticClientSeed string

func (s StaticClientSeed) Next() (string, error) {
	return string(s), nil
}

// RandomClientSeed draws a fresh client seed per round.
type RandomClientSeed struct{}

func (RandomClientSeed) Next() (string, error) {
	return GenerateServerSeed()
}
