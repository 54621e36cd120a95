package retrieval

import (
	"sort"
	"strings"

	"github.com/zhouzirui/mindharbor/backend/internal/model/chat"
	"github.com/zhouzirui/mindharbor/backend/internal/model/knowledge"
)

// Params 控制检索数量与相关性门限，距离为余弦距离（0~2）。
type Params struct {
	Threshold          float64
	ListeningThreshold float64
	RelaxBand          float64
	NoMatchDistance    float64
	LastResortDistance float64
	TopK               int
	GuidanceK          int
	DefaultK           int
}

// DefaultParams 返回默认的门限参数。
func DefaultParams() Params {
	return Params{
		Threshold:          1.2,
		ListeningThreshold: 1.0,
		RelaxBand:          0.3,
		NoMatchDistance:    1.5,
		LastResortDistance: 1.3,
		TopK:               6,
		GuidanceK:          30,
		DefaultK:           20,
	}
}

// CandidateCount 返回某个阶段向检索源请求的候选数量。
func (p Params) CandidateCount(stage chat.Stage) int {
	if stage == chat.StageGuidance {
		return p.GuidanceK
	}
	return p.DefaultK
}

// stageKeeps 列出各阶段优先保留的来源关键字；倾听阶段不使用知识库。
var stageKeeps = map[chat.Stage][]string{
	chat.StageUnderstanding: {"assessment", "general"},
	chat.StageGuidance:      {"support", "general"},
}

// FilterByStage 按来源路径保留与阶段匹配的片段，若一个都不匹配则原样返回。
func FilterByStage(candidates []knowledge.Fragment, stage chat.Stage) []knowledge.Fragment {
	if stage == chat.StageListening {
		return nil
	}
	keeps, ok := stageKeeps[stage]
	if !ok {
		return candidates
	}

	kept := make([]knowledge.Fragment, 0, len(candidates))
	for _, c := range candidates {
		source := strings.ToLower(c.Source)
		for _, k := range keeps {
			if strings.Contains(source, k) {
				kept = append(kept, c)
				break
			}
		}
	}
	if len(kept) == 0 {
		return candidates
	}
	return kept
}

// Gate 按距离门限筛选片段，结果按距离升序，最多 TopK 条。
//
// 最优距离超过 NoMatchDistance 时认为无相关内容；否则先取基础阈值内的片段，
// 不足 TopK 时补入阈值外 RelaxBand 范围内的片段；仍为空时，
// 若最优距离不超过 LastResortDistance 则只保留最优的一条。
func (p Params) Gate(candidates []knowledge.Fragment, stage chat.Stage) []knowledge.Fragment {
	if len(candidates) == 0 {
		return nil
	}

	sorted := make([]knowledge.Fragment, len(candidates))
	copy(sorted, candidates)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Distance < sorted[j].Distance
	})

	best := sorted[0].Distance
	if best > p.NoMatchDistance {
		return nil
	}

	base := p.Threshold
	if stage == chat.StageListening {
		base = p.ListeningThreshold
	}

	var kept []knowledge.Fragment
	for _, c := range sorted {
		if c.Distance <= base {
			kept = append(kept, c)
		}
	}
	if len(kept) < p.TopK {
		relaxed := base + p.RelaxBand
		for _, c := range sorted {
			if c.Distance > base && c.Distance <= relaxed {
				kept = append(kept, c)
			}
		}
	}

	if len(kept) == 0 {
		if best <= p.LastResortDistance {
			return sorted[:1]
		}
		return nil
	}

	// 两段都已按距离升序，且第二段距离都大于第一段。
	if p.TopK > 0 && len(kept) > p.TopK {
		kept = kept[:p.TopK]
	}
	return kept
}

// Filter 依次执行阶段过滤与距离门限。
func (p Params) Filter(candidates []knowledge.Fragment, stage chat.Stage) []knowledge.Fragment {
	return p.Gate(FilterByStage(candidates, stage), stage)
}
