package services

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/streadway/amqp"

	"oddsfeed-service/config"
	"oddsfeed-service/logger"
	"oddsfeed-service/models"
)

// ReconnectConfig 消息队列重连配置
type ReconnectConfig struct {
	MaxRetries    int           // 最大重试次数（0 = 无限重试）
	InitialDelay  time.Duration // 初始延迟
	MaxDelay      time.Duration // 最大延迟
	BackoffFactor float64       // 退避因子
}

// DefaultReconnectConfig 默认重连配置：无限重试，指数退避
func DefaultReconnectConfig() *ReconnectConfig {
	return &ReconnectConfig{
		MaxRetries:    0,
		InitialDelay:  1 * time.Second,
		MaxDelay:      60 * time.Second,
		BackoffFactor: 2.0,
	}
}

// FeedConsumer 消费消息队列上的推送，按通道路由：
// 聚合器响应走 ResponseParser 进实体缓存，
// 内容更新/实时比分走 UpdateDispatcher 进各协调器，
// 会话令牌轮换触发全部协调器重连
type FeedConsumer struct {
	config     *config.Config
	parser     *ResponseParser
	dispatcher *UpdateDispatcher
	archive    *MessageArchive // nil 时不归档

	mu      sync.Mutex
	conn    *amqp.Connection
	channel *amqp.Channel
	done    chan struct{}
}

// NewFeedConsumer 创建推送消费者
func NewFeedConsumer(cfg *config.Config, parser *ResponseParser, dispatcher *UpdateDispatcher, archive *MessageArchive) *FeedConsumer {
	return &FeedConsumer{
		config:     cfg,
		parser:     parser,
		dispatcher: dispatcher,
		archive:    archive,
		done:       make(chan struct{}),
	}
}

// Start 连接消息队列并开始消费，连接断开后自动重连
func (c *FeedConsumer) Start() error {
	deliveries, err := c.connectAndConsume()
	if err != nil {
		return fmt.Errorf("initial connection failed: %w", err)
	}

	logger.Println("[FeedConsumer] Connected, consuming push messages")

	go c.consumeLoop(deliveries)
	go c.monitorConnection(DefaultReconnectConfig())
	return nil
}

// Stop 停止消费并关闭连接
func (c *FeedConsumer) Stop() {
	close(c.done)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		c.conn.Close()
	}
	logger.Println("[FeedConsumer] Stopped")
}

// connectAndConsume 建立连接、声明队列并开始消费
func (c *FeedConsumer) connectAndConsume() (<-chan amqp.Delivery, error) {
	conn, err := amqp.Dial(c.config.MessagingHost)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to AMQP: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create channel: %w", err)
	}

	if err := channel.Qos(100, 0, false); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to set QoS: %w", err)
	}

	queue, err := channel.QueueDeclare(
		c.config.QueueName, // name（空字符串自动生成）
		false,              // durable
		true,               // delete when unused
		c.config.QueueName == "", // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to declare queue: %w", err)
	}

	deliveries, err := channel.Consume(
		queue.Name,
		"",    // consumer tag
		true,  // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,   // args
	)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to start consuming: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.channel = channel
	c.mu.Unlock()

	return deliveries, nil
}

// consumeLoop 逐条处理投递
func (c *FeedConsumer) consumeLoop(deliveries <-chan amqp.Delivery) {
	for {
		select {
		case delivery, ok := <-deliveries:
			if !ok {
				return
			}
			c.handleDelivery(delivery)
		case <-c.done:
			return
		}
	}
}

// handleDelivery 解码信封并按通道路由
func (c *FeedConsumer) handleDelivery(delivery amqp.Delivery) {
	var message models.FeedMessage
	if err := json.Unmarshal(delivery.Body, &message); err != nil {
		logger.Errorf("[FeedConsumer] Failed to decode feed message: %v", err)
		return
	}

	if c.archive != nil {
		if err := c.archive.SaveFeedMessage(message.Channel, string(message.Payload)); err != nil {
			logger.Errorf("[FeedConsumer] Failed to archive message: %v", err)
		}
	}

	switch message.Channel {
	case models.FeedChannelAggregator:
		var response models.AggregatorResponse
		if err := json.Unmarshal(message.Payload, &response); err != nil {
			logger.Errorf("[FeedConsumer] Failed to decode aggregator response: %v", err)
			return
		}
		c.parser.Parse(&response)

	case models.FeedChannelContent:
		var update models.ContentUpdate
		if err := json.Unmarshal(message.Payload, &update); err != nil {
			logger.Errorf("[FeedConsumer] Failed to decode content update: %v", err)
			return
		}
		if c.archive != nil && update.Kind == models.UpdateKindOutcomeOdds {
			if err := c.archive.SaveOddsUpdate(update.Identifier.EventGroupID, update.OutcomeID,
				update.OddsNumerator, update.OddsDenominator); err != nil {
				logger.Errorf("[FeedConsumer] Failed to archive odds update: %v", err)
			}
		}
		c.dispatcher.DispatchContentUpdate(update)

	case models.FeedChannelLiveData:
		var envelope models.LiveDataEnvelope
		if err := json.Unmarshal(message.Payload, &envelope); err != nil {
			logger.Errorf("[FeedConsumer] Failed to decode live data envelope: %v", err)
			return
		}
		c.dispatcher.DispatchLiveData(envelope)

	case models.FeedChannelSession:
		var rotation models.SessionRotation
		if err := json.Unmarshal(message.Payload, &rotation); err != nil {
			logger.Errorf("[FeedConsumer] Failed to decode session rotation: %v", err)
			return
		}
		c.dispatcher.ReconnectAll(rotation.SessionToken)

	default:
		logger.Printf("[FeedConsumer] Skipping message on unknown channel: %s", message.Channel)
	}
}

// monitorConnection 监控连接状态并按退避策略重连
func (c *FeedConsumer) monitorConnection(reconnectConfig *ReconnectConfig) {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()

	closeCh := conn.NotifyClose(make(chan *amqp.Error, 1))

	select {
	case <-c.done:
		return
	case closeErr := <-closeCh:
		if closeErr == nil {
			return
		}
		logger.Errorf("[FeedConsumer] ⚠️ Connection lost: %v", closeErr)
	}

	delay := reconnectConfig.InitialDelay
	attempt := 0
	for {
		select {
		case <-c.done:
			return
		case <-time.After(delay):
		}

		attempt++
		if reconnectConfig.MaxRetries > 0 && attempt > reconnectConfig.MaxRetries {
			logger.Errorf("[FeedConsumer] ❌ Giving up after %d reconnect attempts", reconnectConfig.MaxRetries)
			return
		}

		logger.Printf("[FeedConsumer] Reconnect attempt %d...", attempt)
		deliveries, err := c.connectAndConsume()
		if err != nil {
			logger.Errorf("[FeedConsumer] Reconnect failed: %v", err)
			delay = time.Duration(float64(delay) * reconnectConfig.BackoffFactor)
			if delay > reconnectConfig.MaxDelay {
				delay = reconnectConfig.MaxDelay
			}
			continue
		}

		logger.Println("[FeedConsumer] ✅ Reconnected")
		go c.consumeLoop(deliveries)
		go c.monitorConnection(reconnectConfig)
		return
	}
}
