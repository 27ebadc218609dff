package river

import "math"

const (
	MinIdealFlowCFS = 500.0
	MaxIdealFlowCFS = 2000.0
	MinIdealTempC   = 8.0
	MaxIdealTempC   = 18.0

	MessagePerfect    = "🔥 Conditions are PERFECT for fishing!"
	MessageSuboptimal = "⚠️ Conditions are suboptimal."
)

// Conditions 根据流量与水温给出的钓况判断
type Conditions struct {
	Perfect bool     `json:"perfect"`
	Message string   `json:"message"`
	Flies   []string `json:"flies"`
}

// Assess 流量 500–2000 cfs 且水温 8–18°C 视为理想；任一数值缺失（NaN）即不理想
func Assess(flowCFS, tempC float64) Conditions {
	perfect := !math.IsNaN(flowCFS) && !math.IsNaN(tempC) &&
		flowCFS >= MinIdealFlowCFS && flowCFS <= MaxIdealFlowCFS &&
		tempC >= MinIdealTempC && tempC <= MaxIdealTempC

	c := Conditions{Perfect: perfect, Message: MessageSuboptimal, Flies: SuggestFlies(tempC)}
	if perfect {
		c.Message = MessagePerfect
	}
	return c
}

// SuggestFlies 按水温推荐飞蝇；水温未知时落到最后一档
func SuggestFlies(tempC float64) []string {
	switch {
	case tempC <= 10:
		return []string{"Blue Wing Olive", "Little Black Stonefly"}
	case tempC <= 16:
		return []string{"Hendrickson", "Parachute Adams"}
	default:
		return []string{"Sulphur Dun", "Elk Hair Caddis"}
	}
}

func valueOrNaN(p *float64) float64 {
	if p == nil {
		return math.NaN()
	}
	return *p
}
