// Package utils 提供 ID（雪花）生成等通用工具
package utils

import (
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
)

// IDGenerator 基于雪花算法的业务 ID 生成器，并发安全
type IDGenerator struct {
	node *snowflake.Node
}

// NewIDGenerator 创建 ID 生成器，nodeID 取值 0-1023
func NewIDGenerator(nodeID int64) (*IDGenerator, error) {
	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		return nil, fmt.Errorf("failed to create snowflake node %d: %w", nodeID, err)
	}
	return &IDGenerator{node: node}, nil
}

// NextID 生成原始雪花 ID
func (g *IDGenerator) NextID() int64 {
	return g.node.Generate().Int64()
}

// NextAlertID 生成告警 ID，格式 ALT-<年份>-<雪花ID>
func (g *IDGenerator) NextAlertID(at time.Time) string {
	return fmt.Sprintf("ALT-%d-%s", at.Year(), g.node.Generate().String())
}

// NewUUID 生成随机 UUID 字符串
func NewUUID() string {
	return uuid.NewString()
}

// Float64Ptr 返回 float64 指针
func Float64Ptr(f float64) *float64 {
	return &f
}

// DerefFloat64 解引用 float64 指针
func DerefFloat64(f *float64) float64 {
	if f == nil {
		return 0
	}
	return *f
}
