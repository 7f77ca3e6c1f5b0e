package dto

import (
	"time"

	"github.com/google/uuid"
)

type CreateSessionRequest struct {
	OrganizationId uuid.UUID `json:"organization_id" validate:"required"`
	Title          string    `json:"title"`
}

type CreateSessionResponse struct {
	Id        uuid.UUID `json:"id"`
	StartedAt time.Time `json:"started_at"`
}

type EndSessionResponse struct {
	Id      uuid.UUID `json:"id"`
	EndedAt time.Time `json:"ended_at"`
}
