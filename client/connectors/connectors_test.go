/*
 * @module client/connectors/connectors_test
 * @description 运行报告发布器测试
 * @architecture 测试层 - mock Kafka Writer、MQTT 客户端与 Redis 客户端
 * @documentReference DESIGN.md
 * @stateFlow 构造运行记录 -> 发布 -> 校验消息内容与错误传播
 * @rules 三个通道的消息体一致；底层错误带通道信息返回
 * @dependencies testing, testify/mock
 * @refs kafka_connector.go, mqtt_connector.go, redis_connector.go
 */

package connectors

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"retail-datahub/service/models"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/go-redis/redis/v8"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func sampleRun() *models.ETLRun {
	return &models.ETLRun{
		ID:          "run-1",
		Trigger:     models.ETLTriggerSchedule,
		Status:      models.ETLStatusSuccess,
		RowsIn:      12,
		RowsWritten: 10,
		Jobs: models.ETLJobResults{
			{Kind: "dates", Status: models.ETLStatusSuccess, RowsIn: 12, RowsOut: 10, RowsWritten: 10},
		},
	}
}

func decodeReport(t *testing.T, payload []byte) RunReportMessage {
	t.Helper()
	var message RunReportMessage
	require.NoError(t, json.Unmarshal(payload, &message))
	return message
}

// MockMessageWriter Kafka 写入 mock
type MockMessageWriter struct {
	mock.Mock
}

func (m *MockMessageWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	return m.Called(msgs).Error(0)
}

func (m *MockMessageWriter) Close() error {
	return m.Called().Error(0)
}

func TestKafkaPublisher_Publish(t *testing.T) {
	writer := new(MockMessageWriter)
	var sent []kafka.Message
	writer.On("WriteMessages", mock.Anything).Run(func(args mock.Arguments) {
		sent = args.Get(0).([]kafka.Message)
	}).Return(nil)
	publisher := newKafkaPublisher(writer, "retail-etl-runs")

	require.NoError(t, publisher.Publish(context.Background(), sampleRun()))

	require.Len(t, sent, 1)
	assert.Equal(t, []byte("run-1"), sent[0].Key)
	assert.Equal(t, "event", sent[0].Headers[0].Key)
	message := decodeReport(t, sent[0].Value)
	assert.Equal(t, RunFinishedEvent, message.Event)
	assert.Equal(t, int64(10), message.Run.RowsWritten)
	assert.Equal(t, "kafka", publisher.Name())
}

func TestKafkaPublisher_Errors(t *testing.T) {
	writer := new(MockMessageWriter)
	writer.On("WriteMessages", mock.Anything).Return(errors.New("leader not available"))
	writer.On("Close").Return(nil)
	publisher := newKafkaPublisher(writer, "retail-etl-runs")

	err := publisher.Publish(context.Background(), sampleRun())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "retail-etl-runs")

	assert.Error(t, publisher.Publish(context.Background(), nil))
	assert.NoError(t, publisher.Close())
}

// fakeToken MQTT 发布令牌
type fakeToken struct {
	err  error
	done chan struct{}
}

func newFakeToken(err error, completed bool) *fakeToken {
	token := &fakeToken{err: err, done: make(chan struct{})}
	if completed {
		close(token.done)
	}
	return token
}

func (t *fakeToken) Wait() bool {
	<-t.done
	return true
}

func (t *fakeToken) WaitTimeout(time.Duration) bool {
	return true
}

func (t *fakeToken) Done() <-chan struct{} {
	return t.done
}

func (t *fakeToken) Error() error {
	return t.err
}

// fakeMQTTClient MQTT 客户端
type fakeMQTTClient struct {
	token        mqtt.Token
	topic        string
	qos          byte
	payload      []byte
	disconnected bool
}

func (c *fakeMQTTClient) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	c.topic = topic
	c.qos = qos
	c.payload, _ = payload.([]byte)
	return c.token
}

func (c *fakeMQTTClient) Disconnect(quiesce uint) {
	c.disconnected = true
}

func TestMQTTPublisher_Publish(t *testing.T) {
	client := &fakeMQTTClient{token: newFakeToken(nil, true)}
	publisher := newMQTTPublisher(client, "retail/etl/runs", 1)

	require.NoError(t, publisher.Publish(context.Background(), sampleRun()))

	assert.Equal(t, "retail/etl/runs", client.topic)
	assert.Equal(t, byte(1), client.qos)
	assert.Equal(t, "run-1", decodeReport(t, client.payload).Run.ID)

	require.NoError(t, publisher.Close())
	assert.True(t, client.disconnected)
}

func TestMQTTPublisher_Errors(t *testing.T) {
	t.Run("broker返回错误", func(t *testing.T) {
		client := &fakeMQTTClient{token: newFakeToken(errors.New("not authorized"), true)}
		err := newMQTTPublisher(client, "retail/etl/runs", 1).Publish(context.Background(), sampleRun())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not authorized")
	})

	t.Run("上下文取消", func(t *testing.T) {
		client := &fakeMQTTClient{token: newFakeToken(nil, false)}
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := newMQTTPublisher(client, "retail/etl/runs", 1).Publish(ctx, sampleRun())
		assert.ErrorIs(t, err, context.Canceled)
	})
}

// MockChannelPublisher Redis 发布 mock
type MockChannelPublisher struct {
	mock.Mock
}

func (m *MockChannelPublisher) Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd {
	args := m.Called(channel, message)
	return redis.NewIntResult(int64(args.Int(0)), args.Error(1))
}

func TestRedisPublisher_Publish(t *testing.T) {
	client := new(MockChannelPublisher)
	var payload []byte
	client.On("Publish", "etl-runs", mock.Anything).Run(func(args mock.Arguments) {
		payload = args.Get(1).([]byte)
	}).Return(2, nil)
	publisher := NewRedisPublisher(client, "etl-runs")

	require.NoError(t, publisher.Publish(context.Background(), sampleRun()))

	assert.Equal(t, models.ETLStatusSuccess, decodeReport(t, payload).Run.Status)
	assert.Equal(t, "redis", publisher.Name())
	assert.NoError(t, publisher.Close())
}

func TestRedisPublisher_Error(t *testing.T) {
	client := new(MockChannelPublisher)
	client.On("Publish", "etl-runs", mock.Anything).Return(0, errors.New("NOAUTH"))

	err := NewRedisPublisher(client, "etl-runs").Publish(context.Background(), sampleRun())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "etl-runs")
}
