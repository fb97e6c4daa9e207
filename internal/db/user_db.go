package db

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rajivgeraev/scentswap-api/internal/models"
	"github.com/rajivgeraev/scentswap-api/internal/store"
)

// GetUser получает профиль пользователя внутри транзакции
func (t *pgTx) GetUser(ctx context.Context, uid string) (*models.UserProfile, error) {
	var user models.UserProfile
	err := scanDoc(t.tx.QueryRow(ctx, `
		SELECT doc FROM users WHERE uid = $1
	`, uid), &user)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// PutUser создает или перезаписывает профиль пользователя
func (t *pgTx) PutUser(ctx context.Context, user *models.UserProfile) error {
	doc, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("ошибка сериализации пользователя: %w", err)
	}

	_, err = t.tx.Exec(ctx, `
		INSERT INTO users (uid, doc, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (uid) DO UPDATE SET doc = EXCLUDED.doc, updated_at = EXCLUDED.updated_at
	`, user.UID, doc, user.UpdatedAt)
	return err
}

// DeleteUser удаляет профиль пользователя
func (t *pgTx) DeleteUser(ctx context.Context, uid string) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM users WHERE uid = $1`, uid)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}
