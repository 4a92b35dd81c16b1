/*
 * @module client/connectors/kafka_connector
 * @description Kafka 运行报告发布器
 * @architecture 适配器模式 - 封装 kafka-go Writer
 * @documentReference DESIGN.md
 * @stateFlow 运行结束 -> 序列化报告 -> 写入主题 -> 关闭时刷新
 * @rules 消息键为运行ID，保证同一运行的消息落在同一分区
 * @dependencies github.com/segmentio/kafka-go
 * @refs run_report.go, service/etl/etl_service.go
 */

package connectors

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"retail-datahub/service/config"
	"retail-datahub/service/models"

	"github.com/segmentio/kafka-go"
)

// messageWriter Kafka 写入接口，由 *kafka.Writer 实现
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher Kafka 运行报告发布器
type KafkaPublisher struct {
	writer messageWriter
	topic  string
	logger *slog.Logger
}

// NewKafkaPublisher 创建 Kafka 发布器
func NewKafkaPublisher(cfg config.KafkaConfig) *KafkaPublisher {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 50 * time.Millisecond,
	}
	slog.Info("Kafka报告发布器已创建", "brokers", cfg.Brokers, "topic", cfg.Topic)
	return newKafkaPublisher(writer, cfg.Topic)
}

func newKafkaPublisher(writer messageWriter, topic string) *KafkaPublisher {
	return &KafkaPublisher{writer: writer, topic: topic, logger: slog.Default()}
}

// Name 发布器名称
func (p *KafkaPublisher) Name() string {
	return "kafka"
}

// Publish 发布运行报告
func (p *KafkaPublisher) Publish(ctx context.Context, run *models.ETLRun) error {
	payload, err := encodeRunReport(run)
	if err != nil {
		return err
	}

	message := kafka.Message{
		Key:   []byte(run.ID),
		Value: payload,
		Time:  time.Now(),
		Headers: []kafka.Header{
			{Key: "event", Value: []byte(RunFinishedEvent)},
			{Key: "status", Value: []byte(run.Status)},
		},
	}
	if err := p.writer.WriteMessages(ctx, message); err != nil {
		return fmt.Errorf("发送Kafka消息失败 topic=%s: %w", p.topic, err)
	}

	p.logger.Debug("运行报告已发送到Kafka", "topic", p.topic, "run_id", run.ID)
	return nil
}

// Close 关闭写入器
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
