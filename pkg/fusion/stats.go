package fusion

import "github.com/matzehuels/autofuse/pkg/sym"

// Statistics describes the aggregates after a pass. It is diagnostic only.
type Statistics struct {
	NodeCount     int      `json:"node_count"`
	FusedCount    int      `json:"fused_count"`
	OriginalCount int      `json:"original_count"`
	MinScale      int      `json:"min_scale"`
	MaxScale      int      `json:"max_scale"`
	AvgScale      float64  `json:"avg_scale"`
	TotalRead     sym.Expr `json:"total_read"`
	TotalWrite    sym.Expr `json:"total_write"`
}

func computeStatistics(nodes []*FusingNode) Statistics {
	var st Statistics
	for i, fn := range nodes {
		scale := fn.FusionNodesSize()
		if i == 0 || scale < st.MinScale {
			st.MinScale = scale
		}
		st.MaxScale = max(st.MaxScale, scale)
		st.OriginalCount += scale
		if fn.IsFused() {
			st.FusedCount++
		}
		st.TotalRead = st.TotalRead.Add(fn.reads.Total())
		st.TotalWrite = st.TotalWrite.Add(fn.writes.Total())
	}
	st.NodeCount = len(nodes)
	if st.NodeCount > 0 {
		st.AvgScale = float64(st.OriginalCount) / float64(st.NodeCount)
	}
	return st
}
