package cloudapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/suchimauz/ev-charge-schedule-sync/internal/config"
	"github.com/suchimauz/ev-charge-schedule-sync/internal/core/domain"
	"github.com/suchimauz/ev-charge-schedule-sync/internal/core/ports/out"
)

// CloudAdapter - HTTP клиент облачного API расписаний зарядки
type CloudAdapter struct {
	client  *http.Client
	baseURL string
	bearer  string
	logger  out.LoggerPort
}

func NewCloudAdapter(cfg *config.Config, logger out.LoggerPort) *CloudAdapter {
	return &CloudAdapter{
		client:  &http.Client{Timeout: 10 * time.Second},
		baseURL: cfg.Cloud.URL,
		bearer:  cfg.Cloud.Bearer,
		logger:  logger,
	}
}

// HasBearer - неблокирующая проверка доступности учетных данных
func (a *CloudAdapter) HasBearer() bool {
	return a.bearer != ""
}

func (a *CloudAdapter) FetchSlots(ctx context.Context, serial string) (*out.FetchSlotsResult, error) {
	a.logger.Info("cloud.slots.fetch", out.LogFields{
		"serial": serial,
	})

	url := fmt.Sprintf("%s/vehicles/%s/charge-schedule", a.baseURL, serial)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		a.logger.Error("cloud.slots.fetch_failed", out.LogFields{
			"serial": serial,
			"error":  err.Error(),
		})
		return nil, err
	}
	a.authorize(req)

	resp, err := a.client.Do(req)
	if err != nil {
		a.logger.Error("cloud.slots.fetch_failed", out.LogFields{
			"serial": serial,
			"error":  err.Error(),
		})
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		a.logger.Error("cloud.slots.fetch_failed", out.LogFields{
			"serial": serial,
			"status": resp.StatusCode,
		})
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var result out.FetchSlotsResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		a.logger.Error("cloud.slots.decode_failed", out.LogFields{
			"serial": serial,
			"error":  err.Error(),
		})
		return nil, err
	}

	a.logger.Debug("cloud.slots.fetch_success", out.LogFields{
		"serial": serial,
		"slots":  len(result.Slots),
	})

	return &result, nil
}

type patchRequest struct {
	ConcurrencyToken string         `json:"concurrencyToken"`
	Slots            []*domain.Slot `json:"slots"`
}

func (a *CloudAdapter) PatchSlots(ctx context.Context, serial, concurrencyToken string, slots []*domain.Slot) (*out.PatchSlotsResult, error) {
	a.logger.Info("cloud.slots.patch", out.LogFields{
		"serial": serial,
		"slots":  len(slots),
	})

	body, err := json.Marshal(patchRequest{
		ConcurrencyToken: concurrencyToken,
		Slots:            slots,
	})
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/vehicles/%s/charge-schedule", a.baseURL, serial)
	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, url, bytes.NewReader(body))
	if err != nil {
		a.logger.Error("cloud.slots.patch_failed", out.LogFields{
			"serial": serial,
			"error":  err.Error(),
		})
		return nil, err
	}
	a.authorize(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		a.logger.Error("cloud.slots.patch_failed", out.LogFields{
			"serial": serial,
			"error":  err.Error(),
		})
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		a.logger.Error("cloud.slots.patch_failed", out.LogFields{
			"serial": serial,
			"status": resp.StatusCode,
		})
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	// Без тела в ответе нового токена нет - следующий патч потребует выборку
	result := &out.PatchSlotsResult{}
	if resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			a.logger.Error("cloud.slots.patch_decode_failed", out.LogFields{
				"serial": serial,
				"error":  err.Error(),
			})
			return nil, err
		}
	}

	a.logger.Debug("cloud.slots.patch_success", out.LogFields{
		"serial":   serial,
		"hasToken": result.ConcurrencyToken != "",
	})

	return result, nil
}

func (a *CloudAdapter) authorize(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+a.bearer)
	req.Header.Set("X-Request-Id", uuid.NewString())
}
