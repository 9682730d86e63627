package service

import (
	"errors"
	"fmt"
)

// WarningKind 告警类别枚举（落库到 report_runs.warnings，报告中原样披露）
type WarningKind string

const (
	WarnSourceUnavailable      WarningKind = "source_unavailable"      // 数据源超时/失败，降级为空数据
	WarnReconciliationConflict WarningKind = "reconciliation_conflict" // 两数据源conducted计数冲突
	WarnValidationDropped      WarningKind = "validation_dropped"      // 坏行被丢弃
	WarnDeliveryFailed         WarningKind = "delivery_failed"         // 报告推送失败
)

// Warning 非致命告警（不阻断产出，只影响运行状态与报告披露）
type Warning struct {
	Kind           WarningKind `json:"kind"`
	Representative string      `json:"representative,omitempty"`
	Date           string      `json:"date,omitempty"`
	Message        string      `json:"message"`
}

// ErrAllSourcesFailed 三个数据源全部失败，当日运行整体失败
var ErrAllSourcesFailed = errors.New("全部数据源拉取失败")

// SourceUnavailableError 单数据源不可用（本地恢复为空数据+告警）
type SourceUnavailableError struct {
	Source string
	Err    error
}

func (e *SourceUnavailableError) Error() string {
	return fmt.Sprintf("数据源%s不可用: %v", e.Source, e.Err)
}

func (e *SourceUnavailableError) Unwrap() error { return e.Err }

// PersistenceError 指标落库失败（调用方有界重试后仍失败则该日非零退出）
type PersistenceError struct {
	Date           string
	Representative string
	Err            error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("指标落库失败（%s/%s）: %v", e.Date, e.Representative, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
