package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"story-server/internal/repository"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

// CoverResult - ответ воркера image-generator: готовая обложка для истории.
type CoverResult struct {
	StoryID uuid.UUID `json:"story_id"`
	URL     string    `json:"url"`
}

// RabbitMQCoverResultConsumer слушает очередь результатов и проставляет
// URL обложки в историю.
type RabbitMQCoverResultConsumer struct {
	conn      *amqp.Connection
	channel   *amqp.Channel
	queueName string
	stories   repository.StoryRepository
	logger    zerolog.Logger
}

// NewRabbitMQCoverResultConsumer подключается к RabbitMQ и объявляет очередь результатов.
func NewRabbitMQCoverResultConsumer(amqpURL, queueName string, stories repository.StoryRepository, logger zerolog.Logger) (*RabbitMQCoverResultConsumer, error) {
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, fmt.Errorf("ошибка подключения к RabbitMQ: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("ошибка открытия канала RabbitMQ: %w", err)
	}

	_, err = channel.QueueDeclare(
		queueName,
		true,  // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		nil,
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("ошибка объявления очереди '%s': %w", queueName, err)
	}

	// По одному сообщению за раз: обработка дешевая, порядок важнее пропускной способности
	if err := channel.Qos(1, 0, false); err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("ошибка установки QoS: %w", err)
	}

	logger.Info().Str("queue", queueName).Msg("Consumer результатов обложек подключен к RabbitMQ")

	return &RabbitMQCoverResultConsumer{
		conn:      conn,
		channel:   channel,
		queueName: queueName,
		stories:   stories,
		logger:    logger.With().Str("component", "cover_result_consumer").Logger(),
	}, nil
}

// Start запускает обработку сообщений в фоне. Возвращается сразу;
// обработка останавливается при отмене ctx или закрытии канала.
func (c *RabbitMQCoverResultConsumer) Start(ctx context.Context) error {
	deliveries, err := c.channel.Consume(
		c.queueName,
		"",    // consumer tag - пусть сгенерирует брокер
		false, // autoAck - подтверждаем вручную
		false, // exclusive
		false, // noLocal
		false, // noWait
		nil,
	)
	if err != nil {
		return fmt.Errorf("ошибка подписки на очередь '%s': %w", c.queueName, err)
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				c.logger.Info().Msg("Consumer результатов обложек остановлен")
				return
			case d, ok := <-deliveries:
				if !ok {
					c.logger.Warn().Msg("Канал deliveries закрыт")
					return
				}
				c.handleDelivery(ctx, d)
			}
		}
	}()

	c.logger.Info().Msg("Consumer результатов обложек запущен")
	return nil
}

func (c *RabbitMQCoverResultConsumer) handleDelivery(ctx context.Context, d amqp.Delivery) {
	handleCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := c.processResult(handleCtx, d.Body); err != nil {
		c.logger.Error().Err(err).Msg("Не удалось обработать результат обложки")
		// Битое сообщение переотправлять бессмысленно, ошибка БД - стоит
		requeue := !isMalformedResult(err)
		if nackErr := d.Nack(false, requeue); nackErr != nil {
			c.logger.Error().Err(nackErr).Msg("Ошибка Nack сообщения")
		}
		return
	}

	if ackErr := d.Ack(false); ackErr != nil {
		c.logger.Error().Err(ackErr).Msg("Ошибка Ack сообщения")
	}
}

// errMalformedResult помечает сообщения, которые не станут валиднее при повторе.
var errMalformedResult = errors.New("некорректное сообщение результата обложки")

func isMalformedResult(err error) bool {
	return errors.Is(err, errMalformedResult)
}

// processResult разбирает сообщение и сохраняет URL обложки.
func (c *RabbitMQCoverResultConsumer) processResult(ctx context.Context, body []byte) error {
	var result CoverResult
	if err := json.Unmarshal(body, &result); err != nil {
		return fmt.Errorf("%w: %v", errMalformedResult, err)
	}
	if result.StoryID == uuid.Nil {
		return fmt.Errorf("%w: пустой story_id", errMalformedResult)
	}
	if strings.TrimSpace(result.URL) == "" {
		return fmt.Errorf("%w: пустой url", errMalformedResult)
	}

	if err := c.stories.UpdateCoverImageURL(ctx, result.StoryID, result.URL); err != nil {
		return fmt.Errorf("обновление URL обложки истории %s: %w", result.StoryID, err)
	}

	c.logger.Info().Str("story_id", result.StoryID.String()).Msg("URL обложки сохранен")
	return nil
}

// Close закрывает канал и соединение.
func (c *RabbitMQCoverResultConsumer) Close() {
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		c.conn.Close()
	}
}
