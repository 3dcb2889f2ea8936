// Package sample generates synthetic bond observations around the FRED OAS
// baseline curve.
//
// The generator is deterministic: the RNG seed is a hash of the snapshot
// values and the generation settings, so identical inputs always produce the
// identical sample.
package sample

import (
	"encoding/binary"
	"fmt"
	"hash/fnv"
	"math"
	"math/rand"
	"time"

	"github.com/o15CR/rv-curves/internal/domain"
	"github.com/o15CR/rv-curves/internal/fred"
)

// shortEndAlpha is the power-law exponent for short-end extrapolation:
// spread(t) = spread(2y) * (t/2)^alpha for t < 2y. The sqrt shape gives the
// concave rise typical of credit curves.
const shortEndAlpha = 0.5

// minSpreadBP floors the baseline spread at 1bp.
const minSpreadBP = 1.0

// minVol floors interpolated bucket volatility.
const minVol = 0.001

// Data is the output of one synthetic generation run.
type Data struct {
	Points   []domain.Observation
	Baseline []float64
	Stats    domain.DatasetStats
	AsOf     time.Time
}

// Generate builds a synthetic bond sample from a FRED snapshot.
func Generate(snapshot *fred.Snapshot, cfg *domain.FitConfig) (*Data, error) {
	if cfg.SampleCount <= 0 {
		return nil, fmt.Errorf("%w: sample count must be > 0", domain.ErrConfigInvalid)
	}
	if !(isFinite(cfg.TenorMin) && isFinite(cfg.TenorMax) && cfg.TenorMax > cfg.TenorMin) {
		return nil, fmt.Errorf("%w: tenor range [%v, %v]", domain.ErrConfigInvalid, cfg.TenorMin, cfg.TenorMax)
	}
	if cfg.JumpProbWide < 0 || cfg.JumpProbTight < 0 || cfg.JumpProbWide+cfg.JumpProbTight >= 1 {
		return nil, fmt.Errorf("%w: jump probabilities wide=%v tight=%v", domain.ErrConfigInvalid,
			cfg.JumpProbWide, cfg.JumpProbTight)
	}
	if !(isFinite(cfg.JumpKWide) && isFinite(cfg.JumpKTight) && cfg.JumpKWide > 0 && cfg.JumpKTight > 0) {
		return nil, fmt.Errorf("%w: jump magnitudes k_wide=%v k_tight=%v", domain.ErrConfigInvalid,
			cfg.JumpKWide, cfg.JumpKTight)
	}

	rng := rand.New(rand.NewSource(int64(sampleSeed(snapshot, cfg))))

	ratingVol, ok := snapshot.Volatility.Ratings[cfg.Rating]
	if !ok {
		ratingVol = 0.01
	}

	points := make([]domain.Observation, 0, cfg.SampleCount)
	baseline := make([]float64, 0, cfg.SampleCount)

	for i := 0; i < cfg.SampleCount; i++ {
		tenor := cfg.TenorMin + rng.Float64()*(cfg.TenorMax-cfg.TenorMin)

		curveLevel, err := BaselineCurve(snapshot, cfg.Rating, tenor)
		if err != nil {
			return nil, err
		}
		baseline = append(baseline, curveLevel)

		// Blend rating-specific and tenor-specific volatility by geometric
		// mean, then scale by sqrt(tenor) floored at 0.25.
		bucketVol := interpolateBucketVol(tenor, snapshot.Volatility.Buckets)
		combinedVol := math.Sqrt(ratingVol * bucketVol)
		tenorScale := math.Max(math.Sqrt(tenor), 0.25)
		sigmaLn := combinedVol * tenorScale

		z := rng.NormFloat64()
		jump := sampleJump(rng, cfg.JumpProbWide, cfg.JumpProbTight, cfg.JumpKWide, cfg.JumpKTight)
		meanCorr := jumpMeanCorrection(sigmaLn, cfg.JumpProbWide, cfg.JumpProbTight, cfg.JumpKWide, cfg.JumpKTight)

		base := math.Max(curveLevel, 1e-6)
		yObs := base * math.Exp(sigmaLn*(z+jump)-meanCorr)

		maturity := snapshot.Date.AddDate(0, 0, int(math.Round(tenor*365.25)))

		points = append(points, domain.Observation{
			ID:           fmt.Sprintf("%s-%03d", cfg.Rating, i+1),
			AsOfDate:     snapshot.Date,
			MaturityDate: maturity,
			Tenor:        tenor,
			Y:            yObs,
			Weight:       1.0,
			Rating:       cfg.Rating.String(),
		})
	}

	stats, ok := computeStats(points)
	if !ok {
		return nil, fmt.Errorf("%w: failed to compute sample stats", domain.ErrNoData)
	}

	return &Data{
		Points:   points,
		Baseline: baseline,
		Stats:    stats,
		AsOf:     snapshot.Date,
	}, nil
}

// BaselineCurve evaluates the rating-adjusted baseline spread at a tenor:
// rating level scaled by the bucket curve shape relative to the overall
// index.
func BaselineCurve(snapshot *fred.Snapshot, rating domain.RatingBand, tenor float64) (float64, error) {
	ratingLevel, ok := snapshot.RatingsBP[rating]
	if !ok {
		return 0, fmt.Errorf("%w: missing rating baseline for %s", domain.ErrConfigInvalid, rating)
	}
	if !(isFinite(ratingLevel) && ratingLevel > 0) {
		return 0, fmt.Errorf("%w: invalid rating baseline %v", domain.ErrConfigInvalid, ratingLevel)
	}

	bucketLevel := bucketCurve(tenor, snapshot.Buckets)
	if !(isFinite(bucketLevel) && bucketLevel > 0) {
		return 0, fmt.Errorf("%w: invalid bucket baseline %v", domain.ErrConfigInvalid, bucketLevel)
	}
	if !(isFinite(snapshot.OverallBP) && snapshot.OverallBP > 0) {
		return 0, fmt.Errorf("%w: invalid overall baseline %v", domain.ErrConfigInvalid, snapshot.OverallBP)
	}

	level := ratingLevel * (bucketLevel / snapshot.OverallBP)
	if !(isFinite(level) && level > 0) {
		return 0, fmt.Errorf("%w: invalid computed baseline curve", domain.ErrConfigInvalid)
	}
	return level, nil
}

// AnchorBaselines evaluates the baseline curve at each anchor tenor.
func AnchorBaselines(snapshot *fred.Snapshot, cfg *domain.FitConfig) ([]float64, error) {
	out := make([]float64, len(cfg.AnchorTenors))
	for i, tenor := range cfg.AnchorTenors {
		v, err := BaselineCurve(snapshot, cfg.Rating, tenor)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// bucketCurve interpolates the bucket OAS values across tenor. Bucket
// midpoints: 1-3y -> 2y, 3-5y -> 4y, 5-7y -> 6y, 7-10y -> 8.5y. Short tenors
// use power-law extrapolation, long tenors flat extrapolation.
func bucketCurve(t float64, buckets fred.BucketSeries) float64 {
	knots := [4]struct{ x, y float64 }{
		{2.0, buckets.Y13},
		{4.0, buckets.Y35},
		{6.0, buckets.Y57},
		{8.5, buckets.Y710},
	}

	if t < knots[0].x {
		anchor := math.Max(knots[0].y, minSpreadBP)
		tSafe := math.Max(t, 0.01)
		return math.Max(anchor*math.Pow(tSafe/knots[0].x, shortEndAlpha), minSpreadBP)
	}

	if t >= knots[len(knots)-1].x {
		return math.Max(knots[len(knots)-1].y, minSpreadBP)
	}

	for i := 0; i < len(knots)-1; i++ {
		if t >= knots[i].x && t <= knots[i+1].x {
			return linearInterp(knots[i].x, knots[i].y, knots[i+1].x, knots[i+1].y, t)
		}
	}
	return buckets.Y57
}

// interpolateBucketVol interpolates per-bucket volatility at a tenor using
// the same knot layout as the spread curve.
func interpolateBucketVol(t float64, buckets fred.BucketVolatility) float64 {
	knots := [4]struct{ x, y float64 }{
		{2.0, buckets.Y13},
		{4.0, buckets.Y35},
		{6.0, buckets.Y57},
		{8.5, buckets.Y710},
	}

	if t < knots[0].x {
		anchor := math.Max(knots[0].y, minVol)
		tSafe := math.Max(t, 0.01)
		return math.Max(anchor*math.Pow(tSafe/knots[0].x, shortEndAlpha), minVol)
	}

	// Flat beyond the last knot; linear extrapolation can go negative.
	if t >= knots[len(knots)-1].x {
		return math.Max(knots[len(knots)-1].y, minVol)
	}

	for i := 0; i < len(knots)-1; i++ {
		if t >= knots[i].x && t <= knots[i+1].x {
			return linearInterp(knots[i].x, knots[i].y, knots[i+1].x, knots[i+1].y, t)
		}
	}
	return buckets.Y57
}

func linearInterp(x0, y0, x1, y1, x float64) float64 {
	if math.Abs(x1-x0) < 1e-12 {
		return y0
	}
	u := (x - x0) / (x1 - x0)
	return y0 + u*(y1-y0)
}

// jumpMeanCorrection keeps E[exp(log-noise)] == 1 so the baseline stays
// unbiased under the jump mixture.
func jumpMeanCorrection(sigma, pWide, pTight, kWide, kTight float64) float64 {
	pNone := 1 - pWide - pTight
	m1 := pNone + pWide*math.Exp(sigma*kWide) + pTight*math.Exp(-sigma*kTight)
	return 0.5*sigma*sigma + math.Log(m1)
}

func sampleJump(rng *rand.Rand, pWide, pTight, kWide, kTight float64) float64 {
	roll := rng.Float64()
	switch {
	case roll < pWide:
		return kWide
	case roll < pWide+pTight:
		return -kTight
	default:
		return 0
	}
}

// sampleSeed hashes the snapshot values and generation settings into a
// reproducible RNG seed.
func sampleSeed(snapshot *fred.Snapshot, cfg *domain.FitConfig) uint64 {
	h := fnv.New64a()
	buf := make([]byte, 8)

	writeU64 := func(v uint64) {
		binary.LittleEndian.PutUint64(buf, v)
		h.Write(buf)
	}
	writeF64 := func(v float64) { writeU64(math.Float64bits(v)) }

	writeU64(uint64(snapshot.Date.Unix()))
	writeF64(snapshot.OverallBP)
	for _, band := range domain.AllRatings {
		if v, ok := snapshot.RatingsBP[band]; ok {
			writeF64(v)
		}
	}
	writeF64(snapshot.Buckets.Y13)
	writeF64(snapshot.Buckets.Y35)
	writeF64(snapshot.Buckets.Y57)
	writeF64(snapshot.Buckets.Y710)
	writeF64(snapshot.Volatility.Overall)

	writeU64(uint64(cfg.Rating))
	writeU64(uint64(cfg.SampleCount))
	writeU64(cfg.SampleSeed)
	writeF64(cfg.TenorMin)
	writeF64(cfg.TenorMax)
	writeF64(cfg.JumpProbWide)
	writeF64(cfg.JumpProbTight)
	writeF64(cfg.JumpKWide)
	writeF64(cfg.JumpKTight)

	return h.Sum64()
}

func computeStats(points []domain.Observation) (domain.DatasetStats, bool) {
	tenorMin, tenorMax := math.Inf(1), math.Inf(-1)
	yMin, yMax := math.Inf(1), math.Inf(-1)

	for _, p := range points {
		tenorMin = math.Min(tenorMin, p.Tenor)
		tenorMax = math.Max(tenorMax, p.Tenor)
		yMin = math.Min(yMin, p.Y)
		yMax = math.Max(yMax, p.Y)
	}

	if !isFinite(tenorMin) || !isFinite(tenorMax) || !isFinite(yMin) || !isFinite(yMax) {
		return domain.DatasetStats{}, false
	}
	return domain.DatasetStats{
		N:        len(points),
		TenorMin: tenorMin,
		TenorMax: tenorMax,
		YMin:     yMin,
		YMax:     yMax,
	}, true
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
