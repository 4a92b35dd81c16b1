/*
 * @module client/connectors/mqtt_connector
 * @description MQTT 运行报告发布器
 * @architecture 适配器模式 - 封装 paho MQTT 客户端
 * @documentReference DESIGN.md
 * @stateFlow 连接 broker -> 运行结束发布报告 -> 断开连接
 * @rules 发布等待确认，超时视为失败；报告不保留(retained=false)
 * @dependencies github.com/eclipse/paho.mqtt.golang
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

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

const mqttPublishTimeout = 10 * time.Second

// mqttClient MQTT 发布接口，由 mqtt.Client 实现
type mqttClient interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

// MQTTPublisher MQTT 运行报告发布器
type MQTTPublisher struct {
	client mqttClient
	topic  string
	qos    byte
	logger *slog.Logger
}

// NewMQTTPublisher 连接 broker 并创建 MQTT 发布器
func NewMQTTPublisher(cfg config.MQTTConfig) (*MQTTPublisher, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(10 * time.Second)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		slog.Warn("MQTT连接丢失", "broker", cfg.Broker, "error", err)
	})

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("MQTT连接失败: %w", token.Error())
	}

	slog.Info("MQTT报告发布器已连接", "broker", cfg.Broker, "topic", cfg.Topic)
	return newMQTTPublisher(client, cfg.Topic, cfg.QoS), nil
}

func newMQTTPublisher(client mqttClient, topic string, qos byte) *MQTTPublisher {
	return &MQTTPublisher{client: client, topic: topic, qos: qos, logger: slog.Default()}
}

// Name 发布器名称
func (p *MQTTPublisher) Name() string {
	return "mqtt"
}

// Publish 发布运行报告
func (p *MQTTPublisher) Publish(ctx context.Context, run *models.ETLRun) error {
	payload, err := encodeRunReport(run)
	if err != nil {
		return err
	}

	token := p.client.Publish(p.topic, p.qos, false, payload)
	select {
	case <-token.Done():
	case <-ctx.Done():
		return fmt.Errorf("发布MQTT消息被取消: %w", ctx.Err())
	case <-time.After(mqttPublishTimeout):
		return fmt.Errorf("发布MQTT消息超时 topic=%s", p.topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("发布MQTT消息失败 topic=%s: %w", p.topic, err)
	}

	p.logger.Debug("运行报告已发布到MQTT", "topic", p.topic, "run_id", run.ID)
	return nil
}

// Close 断开连接
func (p *MQTTPublisher) Close() error {
	p.client.Disconnect(250)
	return nil
}
