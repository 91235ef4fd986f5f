package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/sirupsen/logrus"

	"coalfire/server/internal/config"
	"coalfire/server/internal/models"
)

// MLClient клиент внешнего ML сервиса прогнозирования самовозгораний
type MLClient struct {
	baseURL        string
	client         *http.Client
	trainClient    *http.Client
	maxAttempts    int
	retryBaseDelay time.Duration
	log            *logrus.Logger
}

// NewMLClient создает клиент ML сервиса. Обучение идет отдельным
// http.Client с многочасовым таймаутом.
func NewMLClient(cfg *config.Config, log *logrus.Logger) *MLClient {
	return &MLClient{
		baseURL: cfg.MLServiceURL,
		client: &http.Client{
			Timeout: time.Duration(cfg.MLPredictTimeoutSec) * time.Second,
		},
		trainClient: &http.Client{
			Timeout: time.Duration(cfg.MLTrainTimeoutSec) * time.Second,
		},
		maxAttempts:    cfg.MLMaxAttempts,
		retryBaseDelay: time.Duration(cfg.MLRetryBaseMs) * time.Millisecond,
		log:            log,
	}
}

// PredictResponse ответ ML сервиса на запрос прогноза
type PredictResponse struct {
	ModelName     string           `json:"model_name"`
	ModelVersion  string           `json:"model_version"`
	PredictedDate *string          `json:"predicted_date"`
	ProbEvent     float64          `json:"prob_event"`
	RiskLevel     models.RiskLevel `json:"risk_level"`
	HorizonDays   int              `json:"horizon_days"`
	IntervalLow   *string          `json:"interval_low"`
	IntervalHigh  *string          `json:"interval_high"`
	Confidence    *float64         `json:"confidence"`
	Meta          json.RawMessage  `json:"meta"`
}

// TrainMetrics метрики качества модели из ответа обучения
type TrainMetrics struct {
	PeriodStart      string          `json:"period_start"`
	PeriodEnd        string          `json:"period_end"`
	MAEDays          *float64        `json:"mae_days"`
	RMSEDays         *float64        `json:"rmse_days"`
	MAPE             *float64        `json:"mape"`
	AccuracyWithin2d *float64        `json:"accuracy_within_2d"`
	AccuracyWithin3d *float64        `json:"accuracy_within_3d"`
	AccuracyWithin5d *float64        `json:"accuracy_within_5d"`
	CIndex           *float64        `json:"c_index"`
	Precision        *float64        `json:"precision"`
	Recall           *float64        `json:"recall"`
	F1Score          *float64        `json:"f1_score"`
	Raw              json.RawMessage `json:"raw"`
}

// TrainResponse ответ ML сервиса на запрос обучения
type TrainResponse struct {
	Success      bool            `json:"success"`
	ModelPath    string          `json:"model_path"`
	FileSize     *int64          `json:"file_size"`
	Hyperparams  json.RawMessage `json:"hyperparams"`
	TrainMetrics json.RawMessage `json:"train_metrics"`
	ValMetrics   json.RawMessage `json:"val_metrics"`
	TestMetrics  json.RawMessage `json:"test_metrics"`
	Meta         json.RawMessage `json:"meta"`
	Metrics      *TrainMetrics   `json:"metrics"`
}

// Predict запрашивает прогноз для штабеля
func (c *MLClient) Predict(ctx context.Context, shtabelID uint, horizonDays *int) (*PredictResponse, error) {
	payload := map[string]interface{}{
		"shtabel_id": shtabelID,
	}
	if horizonDays != nil {
		payload["horizon_days"] = *horizonDays
	}

	var result PredictResponse
	if err := c.postWithRetry(ctx, c.client, "/predict", payload, &result); err != nil {
		return nil, fmt.Errorf("ошибка прогноза ML сервиса для штабеля %d: %w", shtabelID, err)
	}
	return &result, nil
}

// Train запускает обучение модели. Без повторов: запрос идемпотентным
// не является и может идти часами.
func (c *MLClient) Train(ctx context.Context, modelName, modelVersion string, trainConfig map[string]interface{}) (*TrainResponse, error) {
	payload := map[string]interface{}{
		"model_name":    modelName,
		"model_version": modelVersion,
		"config":        trainConfig,
	}
	if payload["config"] == nil {
		payload["config"] = map[string]interface{}{}
	}

	var result TrainResponse
	if err := c.post(ctx, c.trainClient, "/train", payload, &result); err != nil {
		return nil, fmt.Errorf("ошибка обучения модели %s v%s: %w", modelName, modelVersion, err)
	}
	return &result, nil
}

// HealthCheck проверяет доступность ML сервиса
func (c *MLClient) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ML сервис недоступен (status %d)", resp.StatusCode)
	}
	return nil
}

// postWithRetry выполняет POST с повторами. Повторяются сетевые ошибки,
// таймауты, 429 и 5xx. Остальные 4xx — постоянная ошибка запроса.
func (c *MLClient) postWithRetry(ctx context.Context, client *http.Client, path string, payload, result interface{}) error {
	var lastErr error
	delay := c.retryBaseDelay

	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		err := c.post(ctx, client, path, payload, result)
		if err == nil {
			return nil
		}
		if !isRetryable(err) {
			return err
		}

		lastErr = err
		if attempt == c.maxAttempts {
			break
		}
		c.log.Warnf("⚠️ ML сервис: повтор запроса %s через %v (попытка %d/%d): %v",
			path, delay, attempt, c.maxAttempts, err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}

	return fmt.Errorf("ML сервис недоступен после %d попыток: %w", c.maxAttempts, lastErr)
}

// httpStatusError отличает постоянные ошибки HTTP от временных
type httpStatusError struct {
	status int
	body   string
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("ML API error (status %d): %s", e.status, e.body)
}

func isRetryable(err error) bool {
	var statusErr *httpStatusError
	if errors.As(err, &statusErr) {
		return statusErr.status == http.StatusTooManyRequests || statusErr.status >= 500
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	// Транспортные ошибки (connection refused и т.п.) временные,
	// ошибки кодирования/разбора — постоянные
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}

func (c *MLClient) post(ctx context.Context, client *http.Client, path string, payload, result interface{}) error {
	requestBody, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewBuffer(requestBody))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		preview := string(body)
		if len(preview) > 500 {
			preview = preview[:500] + "..."
		}
		return &httpStatusError{status: resp.StatusCode, body: preview}
	}

	if err := json.Unmarshal(body, result); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return nil
}
