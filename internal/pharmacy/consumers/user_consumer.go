package consumers

import (
	"context"

	"github.com/agricare/agricare-backend/internal/pharmacy/repository"
	"github.com/agricare/agricare-backend/pkg/actor"
	"github.com/agricare/agricare-backend/pkg/logger"
	"github.com/agricare/agricare-backend/pkg/messaging"
)

// UserEventConsumer keeps the local user cache in sync with the user service
type UserEventConsumer struct {
	consumer      *messaging.Consumer
	userCacheRepo *repository.UserCacheRepository
	logger        *logger.Logger
}

// NewUserEventConsumer creates a new user event consumer
func NewUserEventConsumer(rmq *messaging.RabbitMQ, userCacheRepo *repository.UserCacheRepository, log *logger.Logger) (*UserEventConsumer, error) {
	consumer, err := messaging.NewConsumer(rmq, "pharmacy-service.user-events", log)
	if err != nil {
		return nil, err
	}

	if err := consumer.Subscribe(messaging.ExchangeUserEvents, "user.#"); err != nil {
		return nil, err
	}

	c := &UserEventConsumer{
		consumer:      consumer,
		userCacheRepo: userCacheRepo,
		logger:        log,
	}

	consumer.RegisterHandler(messaging.EventUserCreated, c.handleUserUpserted)
	consumer.RegisterHandler(messaging.EventUserUpdated, c.handleUserUpserted)
	consumer.RegisterHandler(messaging.EventUserDeleted, c.handleUserDeleted)

	return c, nil
}

// Start starts consuming messages
func (c *UserEventConsumer) Start(ctx context.Context) error {
	return c.consumer.Start(ctx)
}

// handleUserUpserted handles both created and updated events; the payloads
// carry the full user either way, so the cache write is the same upsert.
func (c *UserEventConsumer) handleUserUpserted(ctx context.Context, event *messaging.Event) error {
	var data messaging.UserCreatedEvent
	if err := event.UnmarshalData(&data); err != nil {
		return err
	}

	c.logger.Info().
		Str("user_id", data.UserID).
		Str("event_type", event.Type).
		Msg("refreshing cached user")

	return c.userCacheRepo.Upsert(ctx, &actor.UserCache{
		UserID:    data.UserID,
		FirstName: data.FirstName,
		LastName:  data.LastName,
		Email:     data.Email,
		RoleName:  data.RoleName,
	})
}

func (c *UserEventConsumer) handleUserDeleted(ctx context.Context, event *messaging.Event) error {
	var data messaging.UserDeletedEvent
	if err := event.UnmarshalData(&data); err != nil {
		return err
	}

	c.logger.Info().
		Str("user_id", data.UserID).
		Msg("removing cached user")

	return c.userCacheRepo.Delete(ctx, data.UserID)
}
