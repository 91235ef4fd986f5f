package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sirupsen/logrus"

	"coalfire/server/internal/services"
	"coalfire/server/internal/utils"
)

// Consumers подписывает обработчики заданий на очереди
type Consumers struct {
	gateway    *Gateway
	dataImport *services.DataImportProcessor
	prediction *services.PredictionProcessor
	training   *services.ModelTrainingProcessor
	cache      *utils.RedisClient // nil, если Redis недоступен
	log        *logrus.Logger
}

// NewConsumers создает набор потребителей очередей
func NewConsumers(
	gateway *Gateway,
	dataImport *services.DataImportProcessor,
	prediction *services.PredictionProcessor,
	training *services.ModelTrainingProcessor,
	cache *utils.RedisClient,
	log *logrus.Logger,
) *Consumers {
	return &Consumers{
		gateway:    gateway,
		dataImport: dataImport,
		prediction: prediction,
		training:   training,
		cache:      cache,
		log:        log,
	}
}

// Start запускает всех потребителей. Ждет готовности шлюза внутри Consume.
func (c *Consumers) Start(ctx context.Context) error {
	if err := c.gateway.Consume(ctx, QueueDataImport, c.counted(QueueDataImport, c.handleDataImport)); err != nil {
		return err
	}
	if err := c.gateway.Consume(ctx, QueuePredictionCalc, c.counted(QueuePredictionCalc, c.handlePrediction)); err != nil {
		return err
	}
	if err := c.gateway.Consume(ctx, QueuePredictionBatch, c.counted(QueuePredictionBatch, c.handleBatchPrediction)); err != nil {
		return err
	}
	if err := c.gateway.Consume(ctx, QueueModelTrain, c.counted(QueueModelTrain, c.handleModelTrain)); err != nil {
		return err
	}
	return nil
}

// counted ведет в Redis счетчики обработанных и упавших заданий по очередям
func (c *Consumers) counted(queue string, handler Handler) Handler {
	return func(ctx context.Context, body []byte) error {
		err := handler(ctx, body)
		if c.cache != nil {
			key := "queue:jobs:processed:" + queue
			if err != nil {
				key = "queue:jobs:failed:" + queue
			}
			if _, incErr := c.cache.Increment(key); incErr != nil {
				c.log.Debugf("Не удалось обновить счетчик %s: %v", key, incErr)
			}
		}
		return err
	}
}

func (c *Consumers) handleDataImport(ctx context.Context, body []byte) error {
	var msg DataImportMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return fmt.Errorf("неверный формат сообщения импорта: %w", err)
	}

	c.log.WithFields(logrus.Fields{
		"uploadId": msg.UploadID,
		"fileType": msg.FileType,
	}).Infof("📥 Обработка импорта данных: %d", msg.UploadID)

	return c.dataImport.ProcessImport(msg.UploadID, msg.Filename, msg.FileType)
}

func (c *Consumers) handlePrediction(ctx context.Context, body []byte) error {
	var msg PredictionMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return fmt.Errorf("неверный формат сообщения прогноза: %w", err)
	}

	return c.prediction.ProcessPrediction(ctx, msg.ShtabelID, msg.HorizonDays)
}

func (c *Consumers) handleBatchPrediction(ctx context.Context, body []byte) error {
	var msg BatchPredictionMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return fmt.Errorf("неверный формат сообщения пакетного прогноза: %w", err)
	}

	return c.prediction.ProcessBatchPredictions(ctx, msg.ShtabelIDs)
}

func (c *Consumers) handleModelTrain(ctx context.Context, body []byte) error {
	var msg ModelTrainMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return fmt.Errorf("неверный формат сообщения обучения: %w", err)
	}

	c.log.Infof("🤖 Обработка задания обучения: %s v%s", msg.ModelName, msg.ModelVersion)
	return c.training.ProcessTraining(ctx, msg.ModelName, msg.ModelVersion, msg.Config)
}
