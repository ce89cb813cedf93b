package generator

import (
	"encoding/json"
	"math"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"github.com/nimeshabuddhika/fraud-scoring-relay/pkg/views"
)

// Generator produces synthetic card transactions shaped like the PCA-anonymised dataset the model was trained on.
type Generator struct {
	rng *rand.Rand
	now func() time.Time
}

// New returns a generator seeded with seed, so runs are reproducible.
func New(seed uint64) *Generator {
	return &Generator{
		rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		now: time.Now,
	}
}

// Next returns a fraud-like transaction with probability fraudRatio and a normal one otherwise.
func (g *Generator) Next(fraudRatio float64) (views.Transaction, bool) {
	if g.rng.Float64() < fraudRatio {
		return g.Fraudulent(), true
	}
	return g.Normal(), false
}

// Normal returns a legitimate-looking transaction; 80% of amounts fall in [1,100].
func (g *Generator) Normal() views.Transaction {
	var f [views.FeatureCount]float64
	for i := range f {
		switch {
		case i < 5:
			f[i] = g.uniform(-3, 3)
		case i < 10:
			f[i] = g.uniform(-2, 2)
		case i < 15:
			f[i] = g.uniform(-1.5, 1.5)
		default:
			f[i] = g.uniform(-1, 1)
		}
	}

	amount := g.uniform(100, 1000)
	if g.rng.Float64() < 0.8 {
		amount = g.uniform(1, 100)
	}
	return g.build(f, amount)
}

// Fraudulent returns a transaction with the feature pattern the scoring model flags.
func (g *Generator) Fraudulent() views.Transaction {
	var f [views.FeatureCount]float64
	for i := range f {
		switch {
		case i < 3:
			f[i] = g.uniform(-4, -2)
		case i < 6:
			f[i] = g.uniform(2, 4)
		case i < 10:
			f[i] = g.uniform(-3, -1)
		default:
			f[i] = g.uniform(-2, 2)
		}
	}
	return g.build(f, g.uniform(500, 2000))
}

func (g *Generator) build(f [views.FeatureCount]float64, amount float64) views.Transaction {
	for i := range f {
		f[i] = round(f[i], 6)
	}
	ts, _ := json.Marshal(g.now().Format("2006-01-02T15:04:05.000000"))
	tx := views.Transaction{
		Amount:        round(amount, 2),
		TransactionID: uuid.New().String(),
		Timestamp:     ts,
	}
	tx.SetFeatures(f)
	return tx
}

func (g *Generator) uniform(lo, hi float64) float64 {
	return lo + g.rng.Float64()*(hi-lo)
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
