package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

const (
	ExchangeMain = "coalfire"
	ExchangeDLX  = "coalfire.dlx"

	QueueDataImport      = "data.import"
	QueuePredictionCalc  = "prediction.calculate"
	QueuePredictionBatch = "prediction.batch"
	QueueModelTrain      = "model.train"

	// Повторы: до 3 попыток с нарастающей задержкой, потом DLQ
	maxRetries     = 3
	retryHeaderKey = "x-retry-count"

	prefetchCount = 10
	connectTries  = 5
)

type queueSpec struct {
	name       string
	exchange   string
	routingKey string
	messageTTL int // мс, 0 = без TTL
	withDLX    bool
}

// Очереди задач с TTL под длительность операции и DLQ для разбора
// неудачных сообщений
var topology = []queueSpec{
	{name: QueueDataImport, exchange: ExchangeMain, routingKey: QueueDataImport, messageTTL: 3600000, withDLX: true},
	{name: QueuePredictionCalc, exchange: ExchangeMain, routingKey: QueuePredictionCalc, messageTTL: 1800000, withDLX: true},
	{name: QueuePredictionBatch, exchange: ExchangeMain, routingKey: QueuePredictionBatch, messageTTL: 3600000, withDLX: true},
	{name: QueueModelTrain, exchange: ExchangeMain, routingKey: QueueModelTrain, messageTTL: 7200000, withDLX: true},
	{name: QueueDataImport + ".failed", exchange: ExchangeDLX, routingKey: QueueDataImport + ".failed"},
	{name: QueuePredictionCalc + ".failed", exchange: ExchangeDLX, routingKey: QueuePredictionCalc + ".failed"},
	{name: QueuePredictionBatch + ".failed", exchange: ExchangeDLX, routingKey: QueuePredictionBatch + ".failed"},
	{name: QueueModelTrain + ".failed", exchange: ExchangeDLX, routingKey: QueueModelTrain + ".failed"},
}

// Gateway управляет подключением к RabbitMQ, топологией и ack-дисциплиной.
// Канал amqp не потокобезопасен, все операции с ним идут под мьютексом.
type Gateway struct {
	url string
	log *logrus.Logger

	mu      sync.Mutex
	conn    *amqp.Connection
	channel *amqp.Channel

	ready chan struct{}
}

// NewGateway создает шлюз очередей. Подключение выполняется отдельно
// через Connect.
func NewGateway(url string, log *logrus.Logger) *Gateway {
	return &Gateway{
		url:   url,
		log:   log,
		ready: make(chan struct{}),
	}
}

// Connect подключается к RabbitMQ с повторами и объявляет топологию.
// После успешного подключения канал Ready() закрывается.
func (g *Gateway) Connect(ctx context.Context) error {
	delay := time.Second
	var lastErr error

	for attempt := 1; attempt <= connectTries; attempt++ {
		conn, err := amqp.Dial(g.url)
		if err == nil {
			channel, chErr := conn.Channel()
			if chErr == nil {
				g.mu.Lock()
				g.conn = conn
				g.channel = channel
				g.mu.Unlock()

				if err := g.declareTopology(); err != nil {
					return err
				}

				g.log.Info("✅ RabbitMQ подключен")
				close(g.ready)
				return nil
			}
			conn.Close()
			err = chErr
		}

		lastErr = err
		if attempt == connectTries {
			break
		}
		g.log.Warnf("⚠️ Ошибка подключения к RabbitMQ, повтор через %v (осталось попыток: %d)",
			delay, connectTries-attempt)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}

	return fmt.Errorf("не удалось подключиться к RabbitMQ после %d попыток: %w", connectTries, lastErr)
}

// Ready возвращает канал, закрываемый после установки подключения
func (g *Gateway) Ready() <-chan struct{} {
	return g.ready
}

func (g *Gateway) declareTopology() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, exchange := range []string{ExchangeMain, ExchangeDLX} {
		if err := g.channel.ExchangeDeclare(exchange, "direct", true, false, false, false, nil); err != nil {
			return fmt.Errorf("не удалось объявить exchange %s: %w", exchange, err)
		}
	}

	for _, spec := range topology {
		var args amqp.Table
		if spec.withDLX {
			args = amqp.Table{
				"x-dead-letter-exchange":    ExchangeDLX,
				"x-dead-letter-routing-key": spec.name + ".failed",
				"x-message-ttl":             int32(spec.messageTTL),
			}
		}

		if _, err := g.channel.QueueDeclare(spec.name, true, false, false, false, args); err != nil {
			return fmt.Errorf("не удалось объявить очередь %s: %w", spec.name, err)
		}
		if err := g.channel.QueueBind(spec.name, spec.routingKey, spec.exchange, false, nil); err != nil {
			return fmt.Errorf("не удалось привязать очередь %s: %w", spec.name, err)
		}
		g.log.Debugf("Очередь объявлена и привязана: %s", spec.name)
	}

	return nil
}

// Publish публикует JSON-сообщение с флагом persistent.
// Возвращает false вместо ошибки: вызывающий код решает сам,
// критична ли потеря сообщения.
func (g *Gateway) Publish(ctx context.Context, routingKey string, message interface{}) bool {
	body, err := json.Marshal(message)
	if err != nil {
		g.log.Errorf("❌ Не удалось сериализовать сообщение для %s: %v", routingKey, err)
		return false
	}
	return g.publishRaw(ctx, routingKey, body, nil, "")
}

func (g *Gateway) publishRaw(ctx context.Context, routingKey string, body []byte, headers amqp.Table, expiration string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.channel == nil {
		g.log.Error("❌ Канал RabbitMQ не инициализирован")
		return false
	}

	err := g.channel.PublishWithContext(ctx, ExchangeMain, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
		Headers:      headers,
		Expiration:   expiration,
	})
	if err != nil {
		g.log.Errorf("❌ Не удалось опубликовать сообщение в %s: %v", routingKey, err)
		return false
	}
	return true
}

// Handler обрабатывает тело сообщения из очереди
type Handler func(ctx context.Context, body []byte) error

// Consume подписывается на очередь и обрабатывает сообщения.
// Успех — ack. Ошибка — возврат в очередь с нарастающей задержкой,
// после трех попыток сообщение уходит в DLQ через nack.
func (g *Gateway) Consume(ctx context.Context, queue string, handler Handler) error {
	select {
	case <-g.ready:
	case <-time.After(15 * time.Second):
		return fmt.Errorf("канал не инициализирован после ожидания: %s", queue)
	case <-ctx.Done():
		return ctx.Err()
	}

	g.mu.Lock()
	if err := g.channel.Qos(prefetchCount, 0, false); err != nil {
		g.mu.Unlock()
		return fmt.Errorf("не удалось установить prefetch для %s: %w", queue, err)
	}
	deliveries, err := g.channel.Consume(queue, "", false, false, false, false, nil)
	g.mu.Unlock()
	if err != nil {
		return fmt.Errorf("не удалось подписаться на %s: %w", queue, err)
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-deliveries:
				if !ok {
					g.log.Warnf("⚠️ Канал доставки закрыт: %s", queue)
					return
				}
				g.handleDelivery(ctx, queue, msg, handler)
			}
		}
	}()

	g.log.Infof("📡 Потребитель запущен: %s", queue)
	return nil
}

func (g *Gateway) handleDelivery(ctx context.Context, queue string, msg amqp.Delivery, handler Handler) {
	err := handler(ctx, msg.Body)
	if err == nil {
		if ackErr := msg.Ack(false); ackErr != nil {
			g.log.Errorf("❌ Ошибка ack для %s: %v", queue, ackErr)
		}
		return
	}

	g.log.WithFields(logrus.Fields{"queue": queue, "error": err.Error()}).
		Error("❌ Ошибка обработки сообщения")

	retryCount := RetryCount(msg.Headers)
	if retryCount < maxRetries {
		headers := amqp.Table{}
		for k, v := range msg.Headers {
			headers[k] = v
		}
		headers[retryHeaderKey] = int32(retryCount + 1)

		// DLQ-очереди перепубликуются в исходную
		routingKey := strings.TrimSuffix(queue, ".failed")

		g.publishRaw(ctx, routingKey, msg.Body, headers, RetryExpiration(retryCount))
		if ackErr := msg.Ack(false); ackErr != nil {
			g.log.Errorf("❌ Ошибка ack для %s: %v", queue, ackErr)
		}
		g.log.Warnf("⚠️ Сообщение возвращено в очередь %s (попытка %d/%d)", routingKey, retryCount+1, maxRetries)
		return
	}

	g.log.Warnf("⚠️ Сообщение отправлено в DLQ после %d попыток: %s", retryCount, queue)
	if nackErr := msg.Nack(false, false); nackErr != nil {
		g.log.Errorf("❌ Ошибка nack для %s: %v", queue, nackErr)
	}
}

// RetryCount извлекает счетчик попыток из заголовков сообщения
func RetryCount(headers amqp.Table) int {
	if headers == nil {
		return 0
	}
	switch v := headers[retryHeaderKey].(type) {
	case int:
		return v
	case int32:
		return int(v)
	case int64:
		return int(v)
	case float64:
		return int(v)
	case string:
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return 0
}

// RetryExpiration возвращает задержку повтора для попытки retryCount (мс)
func RetryExpiration(retryCount int) string {
	return strconv.Itoa(5000 * (retryCount + 1))
}

// Close закрывает канал и подключение
func (g *Gateway) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.channel != nil {
		if err := g.channel.Close(); err != nil {
			g.log.Warnf("⚠️ Ошибка при закрытии канала RabbitMQ: %v", err)
		}
	}
	if g.conn != nil {
		if err := g.conn.Close(); err != nil {
			g.log.Warnf("⚠️ Ошибка при закрытии подключения к RabbitMQ: %v", err)
		}
	}
}
