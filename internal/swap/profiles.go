package swap

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/rajivgeraev/scentswap-api/internal/models"
	"github.com/rajivgeraev/scentswap-api/internal/store"
)

// profiles читает каждый профиль один раз за транзакцию и пишет изменённые в конце,
// чтобы адрес и счётчик одного пользователя не перезаписывали друг друга
type profiles struct {
	tx     store.Tx
	loaded map[string]*models.UserProfile
	dirty  []string
}

func newProfiles(tx store.Tx) *profiles {
	return &profiles{tx: tx, loaded: map[string]*models.UserProfile{}}
}

func (p *profiles) get(ctx context.Context, uid string) (*models.UserProfile, error) {
	if u, ok := p.loaded[uid]; ok {
		return u, nil
	}
	u, err := p.tx.GetUser(ctx, uid)
	if err != nil {
		return nil, err
	}
	p.loaded[uid] = u
	return u, nil
}

func (p *profiles) touch(uid string) {
	for _, d := range p.dirty {
		if d == uid {
			return
		}
	}
	p.dirty = append(p.dirty, uid)
}

// update применяет fn к профилю. Отсутствующий профиль пропускается.
func (p *profiles) update(ctx context.Context, uid string, fn func(u *models.UserProfile)) error {
	u, err := p.get(ctx, uid)
	if store.IsNotFound(err) {
		return nil
	}
	if err != nil {
		return err
	}
	fn(u)
	p.touch(uid)
	return nil
}

func (p *profiles) flush(ctx context.Context) error {
	for _, uid := range p.dirty {
		if err := p.tx.PutUser(ctx, p.loaded[uid]); err != nil {
			return err
		}
	}
	p.dirty = nil
	return nil
}

type milestone string

// Два этапа, на каждом из которых SwapCount обоих участников растёт на единицу
const (
	milestoneAddressesConfirmed milestone = "addresses_confirmed"
	milestoneShipmentsConfirmed milestone = "shipments_confirmed"
)

// countMilestone увеличивает SwapCount обоих участников. Вызывается только
// в той транзакции, которая перевела обмен через этап.
func countMilestone(ctx context.Context, p *profiles, swap *models.SwapRequest, m milestone, now time.Time) error {
	trace.SpanFromContext(ctx).AddEvent("swap.milestone", trace.WithAttributes(
		attribute.String("milestone", string(m)),
	))
	for _, uid := range swap.Participants {
		if swap.DeletedUsers[uid] {
			continue
		}
		err := p.update(ctx, uid, func(u *models.UserProfile) {
			u.SwapCount++
			u.UpdatedAt = now
		})
		if err != nil {
			return err
		}
	}
	return nil
}
