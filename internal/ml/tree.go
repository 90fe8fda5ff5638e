package ml

import (
	"math/rand"
	"sort"
)

// impurityEpsilon guards against splits that only win through rounding noise.
const impurityEpsilon = 1e-12

type treeNode struct {
	feature   int // -1 marks a leaf
	threshold float64
	left      int
	right     int

	value float64   // regression output
	probs []float64 // class distribution for classification
}

func (n *treeNode) isLeaf() bool { return n.feature < 0 }

// decisionTree is a fitted CART tree stored as a flat node slice; node 0 is the root.
type decisionTree struct {
	nodes []treeNode
}

func (t *decisionTree) leaf(x []float64) *treeNode {
	n := &t.nodes[0]
	for !n.isLeaf() {
		if x[n.feature] <= n.threshold {
			n = &t.nodes[n.left]
		} else {
			n = &t.nodes[n.right]
		}
	}
	return n
}

type treeBuilder struct {
	task           Task
	x              [][]float64
	y              []float64
	nClasses       int
	maxFeatures    int
	maxDepth       int
	minSamplesLeaf int
	rng            *rand.Rand

	nodes []treeNode
}

type split struct {
	feature   int
	threshold float64
	cost      float64
	found     bool
}

func (b *treeBuilder) fit(samples []int) *decisionTree {
	b.nodes = b.nodes[:0]
	b.build(samples, 0)
	return &decisionTree{nodes: b.nodes}
}

// build grows the subtree for samples and returns its node index.
func (b *treeBuilder) build(samples []int, depth int) int {
	id := len(b.nodes)
	b.nodes = append(b.nodes, b.leafNode(samples))

	parentCost := b.cost(samples)
	if parentCost <= impurityEpsilon ||
		len(samples) < 2*b.minSamplesLeaf ||
		(b.maxDepth > 0 && depth >= b.maxDepth) {
		return id
	}

	best := b.bestSplit(samples)
	if !best.found || parentCost-best.cost <= impurityEpsilon {
		return id
	}

	var left, right []int
	for _, s := range samples {
		if b.x[s][best.feature] <= best.threshold {
			left = append(left, s)
		} else {
			right = append(right, s)
		}
	}

	l := b.build(left, depth+1)
	r := b.build(right, depth+1)
	b.nodes[id].feature = best.feature
	b.nodes[id].threshold = best.threshold
	b.nodes[id].left = l
	b.nodes[id].right = r
	return id
}

func (b *treeBuilder) leafNode(samples []int) treeNode {
	n := treeNode{feature: -1}
	if b.task == Regression {
		var sum float64
		for _, s := range samples {
			sum += b.y[s]
		}
		n.value = sum / float64(len(samples))
		return n
	}

	n.probs = make([]float64, b.nClasses)
	for _, s := range samples {
		n.probs[int(b.y[s])]++
	}
	for c := range n.probs {
		n.probs[c] /= float64(len(samples))
	}
	return n
}

// cost is the node impurity scaled by sample count: SSE for regression,
// n*gini for classification. Child costs are directly comparable to it.
func (b *treeBuilder) cost(samples []int) float64 {
	n := float64(len(samples))
	if b.task == Regression {
		var sum, sq float64
		for _, s := range samples {
			sum += b.y[s]
			sq += b.y[s] * b.y[s]
		}
		return sq - sum*sum/n
	}

	counts := make([]float64, b.nClasses)
	for _, s := range samples {
		counts[int(b.y[s])]++
	}
	var sq float64
	for _, c := range counts {
		sq += c * c
	}
	return n - sq/n
}

// bestSplit scans candidate features in random order. Like the reference CART
// implementation, features that are constant within the node do not count
// against maxFeatures.
func (b *treeBuilder) bestSplit(samples []int) split {
	nFeatures := len(b.x[0])
	order := b.rng.Perm(nFeatures)
	sorted := make([]int, len(samples))

	best := split{}
	visited := 0
	for _, f := range order {
		if visited >= b.maxFeatures {
			break
		}
		copy(sorted, samples)
		sort.SliceStable(sorted, func(i, j int) bool {
			return b.x[sorted[i]][f] < b.x[sorted[j]][f]
		})
		if b.x[sorted[0]][f] == b.x[sorted[len(sorted)-1]][f] {
			continue
		}
		visited++

		cand := b.scanFeature(sorted, f)
		if cand.found && (!best.found || cand.cost < best.cost) {
			best = cand
		}
	}
	return best
}

func (b *treeBuilder) scanFeature(sorted []int, f int) split {
	if b.task == Regression {
		return b.scanRegression(sorted, f)
	}
	return b.scanClassification(sorted, f)
}

func (b *treeBuilder) scanRegression(sorted []int, f int) split {
	n := len(sorted)
	var totalSum, totalSq float64
	for _, s := range sorted {
		totalSum += b.y[s]
		totalSq += b.y[s] * b.y[s]
	}

	best := split{feature: f}
	var leftSum, leftSq float64
	for i := 0; i < n-1; i++ {
		v := b.y[sorted[i]]
		leftSum += v
		leftSq += v * v

		nl := i + 1
		nr := n - nl
		if nl < b.minSamplesLeaf || nr < b.minSamplesLeaf {
			continue
		}
		cur, next := b.x[sorted[i]][f], b.x[sorted[i+1]][f]
		if cur == next {
			continue
		}

		rightSum := totalSum - leftSum
		rightSq := totalSq - leftSq
		cost := (leftSq - leftSum*leftSum/float64(nl)) + (rightSq - rightSum*rightSum/float64(nr))
		if !best.found || cost < best.cost {
			best.found = true
			best.cost = cost
			best.threshold = cur + (next-cur)/2
		}
	}
	return best
}

func (b *treeBuilder) scanClassification(sorted []int, f int) split {
	n := len(sorted)
	total := make([]float64, b.nClasses)
	for _, s := range sorted {
		total[int(b.y[s])]++
	}
	left := make([]float64, b.nClasses)

	best := split{feature: f}
	for i := 0; i < n-1; i++ {
		left[int(b.y[sorted[i]])]++

		nl := i + 1
		nr := n - nl
		if nl < b.minSamplesLeaf || nr < b.minSamplesLeaf {
			continue
		}
		cur, next := b.x[sorted[i]][f], b.x[sorted[i+1]][f]
		if cur == next {
			continue
		}

		var sqL, sqR float64
		for c := range left {
			r := total[c] - left[c]
			sqL += left[c] * left[c]
			sqR += r * r
		}
		cost := (float64(nl) - sqL/float64(nl)) + (float64(nr) - sqR/float64(nr))
		if !best.found || cost < best.cost {
			best.found = true
			best.cost = cost
			best.threshold = cur + (next-cur)/2
		}
	}
	return best
}
