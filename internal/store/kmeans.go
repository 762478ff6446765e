package store

const defaultKMeansIterations = 25

// kmeans runs Lloyd's algorithm with deterministic seeding: initial centroids
// are evenly spaced picks from the input. A cluster that ends an iteration
// empty is re-seeded with the point currently farthest from its centroid.
// len(vectors) must be at least k.
func kmeans(vectors [][]float32, k, iterations int) [][]float32 {
	n := len(vectors)
	dim := len(vectors[0])

	centroids := make([][]float32, k)
	for i := range centroids {
		centroids[i] = append([]float32(nil), vectors[i*n/k]...)
	}

	assign := make([]int, n)
	for i := range assign {
		assign[i] = -1
	}

	for iter := 0; iter < iterations; iter++ {
		changed := false
		for i, v := range vectors {
			c := nearestCentroid(centroids, v)
			if c != assign[i] {
				assign[i] = c
				changed = true
			}
		}
		if !changed && iter > 0 {
			break
		}

		sums := make([][]float64, k)
		counts := make([]int, k)
		for i := range sums {
			sums[i] = make([]float64, dim)
		}
		for i, v := range vectors {
			c := assign[i]
			counts[c]++
			for d, x := range v {
				sums[c][d] += float64(x)
			}
		}

		for c := range centroids {
			if counts[c] == 0 {
				continue
			}
			for d := range centroids[c] {
				centroids[c][d] = float32(sums[c][d] / float64(counts[c]))
			}
		}

		for c := range centroids {
			if counts[c] > 0 {
				continue
			}
			far := farthestPoint(vectors, centroids, assign, counts)
			copy(centroids[c], vectors[far])
			counts[assign[far]]--
			assign[far] = c
			counts[c] = 1
		}
	}

	return centroids
}

// nearestCentroid returns the index of the closest centroid, lowest index on ties.
func nearestCentroid(centroids [][]float32, v []float32) int {
	best := 0
	bestDist := squaredL2(v, centroids[0])
	for i := 1; i < len(centroids); i++ {
		if d := squaredL2(v, centroids[i]); d < bestDist {
			best, bestDist = i, d
		}
	}
	return best
}

// farthestPoint returns the point farthest from its assigned centroid,
// considering only clusters that can give up a member without emptying.
func farthestPoint(vectors, centroids [][]float32, assign, counts []int) int {
	far := 0
	var farDist float32 = -1
	for i, v := range vectors {
		if counts[assign[i]] < 2 {
			continue
		}
		if d := squaredL2(v, centroids[assign[i]]); d > farDist {
			far, farDist = i, d
		}
	}
	return far
}
