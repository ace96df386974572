package server

import (
	"context"
	"encoding/json"

	"github.com/Sophix-ma/Mindra/internal/biz"
	"github.com/Sophix-ma/Mindra/internal/conf"

	"github.com/apache/rocketmq-client-go/v2"
	"github.com/apache/rocketmq-client-go/v2/consumer"
	"github.com/apache/rocketmq-client-go/v2/primitive"
	"github.com/go-kratos/kratos/v2/log"
)

// MQConsumerServer 消费其他入口产生的用量事件
// 默认关闭；仅多端共用同一账号余额时开启
type MQConsumerServer struct {
	c        rocketmq.PushConsumer
	metering *biz.MeteringUseCase
	conf     *conf.Data
	log      *log.Helper
	enabled  bool
}

// NewMQConsumerServer 创建 RocketMQ 消费者
func NewMQConsumerServer(c *conf.Bootstrap, metering *biz.MeteringUseCase, logger log.Logger) *MQConsumerServer {
	h := log.NewHelper(logger)
	if c.Data == nil || c.Data.Rocketmq == nil || !c.Data.Rocketmq.Enabled {
		return &MQConsumerServer{enabled: false, log: h}
	}

	mq := c.Data.Rocketmq
	r, err := rocketmq.NewPushConsumer(
		consumer.WithNsResolver(primitive.NewPassthroughResolver(mq.NameServers)),
		consumer.WithGroupName(mq.GroupName),
		consumer.WithRetry(int(mq.RetryTimes)),
		consumer.WithConsumeMessageBatchMaxSize(100),
	)
	if err != nil {
		h.Errorf("init consumer error: %v", err)
		return &MQConsumerServer{enabled: false, log: h}
	}

	return &MQConsumerServer{
		c:        r,
		metering: metering,
		conf:     c.Data,
		log:      h,
		enabled:  true,
	}
}

// Start 启动消费者
// 订阅或启动失败只记录日志，不阻塞整个应用
func (s *MQConsumerServer) Start(ctx context.Context) error {
	if !s.enabled || s.c == nil {
		s.log.Infof("MQConsumerServer is disabled, skipping startup")
		return nil
	}

	s.log.Infof("Starting MQConsumerServer, topic: %s", s.conf.Rocketmq.Topic)

	if err := s.c.Subscribe(s.conf.Rocketmq.Topic, consumer.MessageSelector{}, s.handler); err != nil {
		s.log.Errorf("Failed to subscribe to topic %s: %v", s.conf.Rocketmq.Topic, err)
		return nil
	}
	if err := s.c.Start(); err != nil {
		s.log.Errorf("Failed to start RocketMQ consumer: %v", err)
		return nil
	}
	return nil
}

// Stop 停止消费者
func (s *MQConsumerServer) Stop(ctx context.Context) error {
	if !s.enabled || s.c == nil {
		return nil
	}
	s.log.Info("Stopping MQConsumerServer")
	return s.c.Shutdown()
}

func (s *MQConsumerServer) handler(ctx context.Context, msgs ...*primitive.MessageExt) (consumer.ConsumeResult, error) {
	if len(msgs) == 0 {
		return consumer.ConsumeSuccess, nil
	}

	var events []*biz.UsageEvent
	for _, msg := range msgs {
		var event biz.UsageEvent
		if err := json.Unmarshal(msg.Body, &event); err != nil {
			s.log.Errorf("Unmarshal message failed: %v, body: %s", err, string(msg.Body))
			continue
		}
		events = append(events, &event)
	}

	if len(events) > 0 {
		if err := s.metering.ApplyUsageEvents(ctx, events); err != nil {
			s.log.Errorf("ApplyUsageEvents failed: %v", err)
			return consumer.ConsumeRetryLater, nil
		}
	}
	return consumer.ConsumeSuccess, nil
}
