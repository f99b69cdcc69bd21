package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"
)

// AuditEventType 审计事件类型
type AuditEventType string

const (
	AuditAlertCreated       AuditEventType = "ALERT_CREATED"
	AuditAlertStatusChanged AuditEventType = "ALERT_STATUS_CHANGED"
)

// AuditSeverity 审计严重程度
type AuditSeverity string

const (
	SeverityInfo     AuditSeverity = "INFO"
	SeverityWarning  AuditSeverity = "WARNING"
	SeverityError    AuditSeverity = "ERROR"
	SeverityCritical AuditSeverity = "CRITICAL"
)

// SystemActor 评分流水线写审计时的操作人
const SystemActor = "system"

// AuditEntry 仅追加的审计记录，Hash 串联前一条形成防篡改链
type AuditEntry struct {
	ID          string
	EventType   AuditEventType
	Actor       string
	Target      string
	BeforeState json.RawMessage
	AfterState  json.RawMessage
	Metadata    json.RawMessage
	Severity    AuditSeverity
	Timestamp   time.Time
	PrevHash    string
	Hash        string
}

// AlertTarget 审计目标标识
func AlertTarget(alertID string) string {
	return "Alert:" + alertID
}

// SeverityForScore 分数超过 80 记为 CRITICAL
func SeverityForScore(score int) AuditSeverity {
	if score > 80 {
		return SeverityCritical
	}
	return SeverityInfo
}

// Seal 以前一条哈希为链头计算本条哈希
func (e *AuditEntry) Seal(prevHash string) {
	e.PrevHash = prevHash
	e.Hash = e.computeHash()
}

// Verify 校验本条哈希是否与内容一致
func (e *AuditEntry) Verify() bool {
	return e.Hash == e.computeHash()
}

func (e *AuditEntry) computeHash() string {
	payload := strings.Join([]string{
		e.ID,
		string(e.EventType),
		e.Actor,
		e.Target,
		e.Timestamp.UTC().Format(time.RFC3339Nano),
		string(e.BeforeState),
		string(e.AfterState),
		string(e.Metadata),
		string(e.Severity),
		e.PrevHash,
	}, "|")
	sum := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:])
}

// VerifyChain 检查按顺序排列的审计链，返回首个断裂位置，完整时返回 -1
func VerifyChain(entries []*AuditEntry) int {
	prev := ""
	for i, e := range entries {
		if e.PrevHash != prev || !e.Verify() {
			return i
		}
		prev = e.Hash
	}
	return -1
}

// MustJSON 序列化为 RawMessage，失败时返回 null
func MustJSON(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage("null")
	}
	return data
}
