package domain

// MaxRiskScore 分数上限
const MaxRiskScore = 100

// AnomalyThreshold 分数达到该值即视为异常
const AnomalyThreshold = 70

// Detector 标识加分来源
type Detector string

const (
	DetectorClassifier  Detector = "classifier"
	DetectorVendorLimit Detector = "vendor_limit"
	DetectorBehavior    Detector = "payment_behavior"
	DetectorBenford     Detector = "benford"
	DetectorVendorAvg   Detector = "vendor_average"
	DetectorFrequency   Detector = "frequency"
	DetectorDuplicate   Detector = "duplicate"
	DetectorBeneficiary Detector = "beneficiary_concentration"
	DetectorTimeOfDay   Detector = "time_of_day"
	DetectorWeekend     Detector = "weekend"
	DetectorBudget      Detector = "budget"
)

// Finding 单个检测器的加分结论
type Finding struct {
	Detector Detector
	Points   int
	Reason   string
}

// RiskAssessment 流水线中累计的评分
type RiskAssessment struct {
	Score   int
	Reasons []string
	// 各检测器实际计入的分数（封顶后）
	Contributions       map[Detector]int
	ClassifierAvailable bool
	ClassifierAnomaly   bool
}

// NewRiskAssessment 以分类结果作为基础分
func NewRiskAssessment(c Classification) *RiskAssessment {
	a := &RiskAssessment{
		Score:               clampScore(c.Score),
		Reasons:             append([]string(nil), c.Reasons...),
		Contributions:       map[Detector]int{},
		ClassifierAvailable: c.Available,
		ClassifierAnomaly:   c.IsAnomaly,
	}
	a.Contributions[DetectorClassifier] = a.Score
	return a
}

// Apply 叠加一条结论，每次叠加后立即封顶
func (a *RiskAssessment) Apply(f Finding) {
	if f.Points <= 0 && f.Reason == "" {
		return
	}
	before := a.Score
	a.Score = clampScore(a.Score + f.Points)
	a.Contributions[f.Detector] += a.Score - before
	if f.Reason != "" {
		a.Reasons = append(a.Reasons, f.Reason)
	}
}

// ApplyAll 依次叠加
func (a *RiskAssessment) ApplyAll(findings []Finding) {
	for _, f := range findings {
		a.Apply(f)
	}
}

// Level 当前等级
func (a *RiskAssessment) Level() RiskLevel {
	return LevelFor(a.Score)
}

// IsAnomaly 分类器判定异常或分数达到阈值
func (a *RiskAssessment) IsAnomaly() bool {
	return a.ClassifierAnomaly || a.Score >= AnomalyThreshold
}

func clampScore(s int) int {
	if s < 0 {
		return 0
	}
	if s > MaxRiskScore {
		return MaxRiskScore
	}
	return s
}
