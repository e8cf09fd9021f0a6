package requestcontext

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	id "civreg/pkg/domain"
)

func TestActor(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, id.UserID{}, UserID(ctx))
	assert.Empty(t, Role(ctx))

	staff := id.UserID(uuid.New())
	ctx = WithRole(WithUserID(ctx, staff), "team_leader")

	a, ok := ActorFrom(ctx)
	assert.True(t, ok)
	assert.Equal(t, Actor{UserID: staff, Role: "team_leader"}, a)
}

func TestNow(t *testing.T) {
	fixed := time.Date(2025, 1, 10, 8, 0, 0, 0, time.UTC)
	assert.Equal(t, fixed, Now(WithTime(context.Background(), fixed)))
	assert.WithinDuration(t, time.Now(), Now(context.Background()), time.Second)
}
