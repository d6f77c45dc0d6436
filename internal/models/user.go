package models

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID             uuid.UUID
	CreatedAt      time.Time
	Email          string
	PasswordHash   string
	FirstName      string
	LastName       string
	MiddleName     string
	Role           Role
	OrganizationID *uuid.UUID // nil if the user is not attached to an organization
	WarehouseID    *uuid.UUID // nil if the user is not attached to a warehouse
}
