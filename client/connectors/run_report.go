/*
 * @module client/connectors/run_report
 * @description ETL 运行报告消息格式，各消息通道共用
 * @architecture 消息契约 - JSON 序列化
 * @documentReference DESIGN.md
 * @stateFlow 运行结束 -> 组装消息 -> 序列化 -> 各通道发布
 * @rules 消息体包含完整运行记录与作业结果
 * @dependencies encoding/json, retail-datahub/service/models
 * @refs kafka_connector.go, mqtt_connector.go, redis_connector.go
 */

package connectors

import (
	"encoding/json"
	"fmt"
	"time"

	"retail-datahub/service/models"
)

// RunFinishedEvent 运行结束事件类型
const RunFinishedEvent = "etl_run.finished"

// RunReportMessage 运行报告消息
type RunReportMessage struct {
	Event       string         `json:"event"`
	Run         *models.ETLRun `json:"run"`
	PublishedAt time.Time      `json:"published_at"`
}

func encodeRunReport(run *models.ETLRun) ([]byte, error) {
	if run == nil {
		return nil, fmt.Errorf("运行记录为空")
	}
	data, err := json.Marshal(RunReportMessage{
		Event:       RunFinishedEvent,
		Run:         run,
		PublishedAt: time.Now().UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("序列化运行报告失败: %w", err)
	}
	return data, nil
}
