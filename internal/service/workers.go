package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"storefront/menu/internal/domain"
	"storefront/menu/internal/domain/task"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

var ErrNoQueue = errors.New("refresh queue is not configured")

// RequestRefresh enqueues a rebuild of the subcategory listing
func (s *Service) RequestRefresh(ctx context.Context, reason string) (string, error) {
	if s.queue == nil {
		return "", ErrNoQueue
	}

	id, err := s.queue.AddTask(ctx, &task.RefreshTask{
		Resource:    domain.ResourceSubcategories,
		Reason:      reason,
		RequestedAt: time.Now().UTC(),
	})
	if err != nil {
		return "", fmt.Errorf("failed to enqueue refresh: %w", err)
	}

	log.Infof("🔄 Refresh of %s requested (%s), message %s", domain.ResourceSubcategories, reason, id)
	return id, nil
}

// RunWorkers consumes refresh tasks until ctx is cancelled
func (s *Service) RunWorkers(ctx context.Context, numWorkers int) error {
	if s.queue == nil {
		return ErrNoQueue
	}

	var wg sync.WaitGroup
	s.runWorkersForStream(ctx, &wg, max(1, numWorkers), s.queue.StreamName(task.TypeRefresh))
	wg.Wait()
	return nil
}

func (s *Service) runWorkersForStream(ctx context.Context, wg *sync.WaitGroup, numWorkers int, streamName string) {
	// Auto-claimer picks up messages abandoned by crashed workers
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(s.minIdleTime)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				consumer := "autoclaimer-" + uuid.NewString()
				claimed, err := s.queue.AutoClaim(ctx, consumer, streamName, s.minIdleTime)
				if err != nil {
					log.Errorf("❌ Failed to auto-claim messages for %s: %v", streamName, err)
					continue
				}
				if len(claimed) > 0 {
					log.Infof("🔄 Auto-claimed %d messages from %s", len(claimed), streamName)
				}
				for _, msg := range claimed {
					if err := s.processMessage(ctx, streamName, &msg); err != nil {
						log.Errorf("❌ Failed to process auto-claimed message %s: %v", msg.ID, err)
					}
				}
			}
		}
	}()

	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			consumer := fmt.Sprintf("refresh-worker-%d-%s", workerID, uuid.NewString()[:8])
			log.Infof("🚀 Starting refresh worker %d as consumer %s", workerID, consumer)
			for {
				select {
				case <-ctx.Done():
					log.Infof("🛑 Refresh worker %d stopping", workerID)
					return
				default:
				}

				msg, err := s.queue.GetTask(ctx, consumer, streamName)
				if err != nil {
					if ctx.Err() != nil {
						continue
					}
					log.Errorf("❌ Failed to get task from %s: %v", streamName, err)
					time.Sleep(time.Second)
					continue
				}
				if msg == nil {
					continue
				}

				if err := s.processMessage(ctx, streamName, msg); err != nil {
					log.Errorf("❌ Failed to process message %s: %v", msg.ID, err)
				}
			}
		}(i + 1)
	}
}

// processMessage runs one task and acks it. A failed refresh stays pending
// so the auto-claimer retries it.
func (s *Service) processMessage(ctx context.Context, streamName string, msg *redis.XMessage) error {
	taskType, ok := msg.Values["task_type"].(string)
	if !ok {
		return s.ackInvalid(ctx, streamName, msg, "task type")
	}

	taskData, ok := msg.Values["task_data"].(string)
	if !ok {
		return s.ackInvalid(ctx, streamName, msg, "task data")
	}

	switch taskType {
	case task.TypeRefresh:
		refresh, err := task.UnmarshalTask[task.RefreshTask]([]byte(taskData))
		if err != nil {
			return s.ackInvalid(ctx, streamName, msg, "refresh task payload")
		}
		if refresh.Resource != domain.ResourceSubcategories {
			log.Warnf("⚠️ Ignoring refresh of unknown resource %q", refresh.Resource)
			break
		}
		if err := s.Refresh(ctx); err != nil {
			return err
		}

	default:
		return s.ackInvalid(ctx, streamName, msg, "task type "+taskType)
	}

	if err := s.queue.AckTask(ctx, streamName, msg.ID); err != nil {
		return fmt.Errorf("failed to ack message %s: %w", msg.ID, err)
	}
	return nil
}

// ackInvalid drops a message that can never succeed
func (s *Service) ackInvalid(ctx context.Context, streamName string, msg *redis.XMessage, what string) error {
	if err := s.queue.AckTask(ctx, streamName, msg.ID); err != nil {
		return fmt.Errorf("failed to ack invalid message %s: %w", msg.ID, err)
	}
	return fmt.Errorf("invalid %s in message %s", what, msg.ID)
}
