package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

// CoverTask - задача на генерацию обложки для воркера image-generator.
type CoverTask struct {
	StoryID uuid.UUID `json:"story_id"`
	Prompt  string    `json:"prompt"`
	Bucket  string    `json:"bucket"`
}

// coverBucket - имя бакета, в который воркер кладет готовые обложки
const coverBucket = "cover-image"

// RabbitMQCoverPublisher публикует задачи на обложки в durable-очередь RabbitMQ.
type RabbitMQCoverPublisher struct {
	conn      *amqp.Connection
	channel   *amqp.Channel
	queueName string
	logger    zerolog.Logger
}

// NewRabbitMQCoverPublisher подключается к RabbitMQ и объявляет очередь задач.
func NewRabbitMQCoverPublisher(amqpURL, queueName string, logger zerolog.Logger) (*RabbitMQCoverPublisher, error) {
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

	logger.Info().Str("queue", queueName).Msg("Publisher задач обложек подключен к RabbitMQ")

	return &RabbitMQCoverPublisher{
		conn:      conn,
		channel:   channel,
		queueName: queueName,
		logger:    logger.With().Str("component", "cover_publisher").Logger(),
	}, nil
}

// PublishCoverTask кладет задачу в очередь. Сообщение персистентное:
// переживает рестарт брокера вместе с durable-очередью.
func (p *RabbitMQCoverPublisher) PublishCoverTask(ctx context.Context, storyID uuid.UUID, prompt string) error {
	task := CoverTask{
		StoryID: storyID,
		Prompt:  prompt,
		Bucket:  coverBucket,
	}

	body, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("ошибка сериализации задачи обложки: %w", err)
	}

	publishCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err = p.channel.PublishWithContext(publishCtx,
		"",          // exchange
		p.queueName, // routing key
		false,       // mandatory
		false,       // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
	if err != nil {
		p.logger.Error().Err(err).Str("story_id", storyID.String()).Msg("Не удалось опубликовать задачу обложки")
		return fmt.Errorf("ошибка публикации задачи обложки: %w", err)
	}

	p.logger.Info().Str("story_id", storyID.String()).Msg("Задача обложки опубликована")
	return nil
}

// Close закрывает канал и соединение.
func (p *RabbitMQCoverPublisher) Close() {
	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		p.conn.Close()
	}
}
