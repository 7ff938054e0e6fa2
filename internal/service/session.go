package service

import (
	"github.com/google/uuid"

	"dealdossier/internal/domain"
)

func requireSession(sess *domain.Session) error {
	if sess.UserID() == uuid.Nil {
		return domain.ErrUnauthorized
	}
	return nil
}
