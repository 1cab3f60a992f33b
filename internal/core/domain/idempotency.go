package domain

import (
	"time"

	"github.com/google/uuid"
)

// Operation names a balance mutation for idempotency scoping.
type Operation string

const (
	OperationFund     Operation = "fund"
	OperationWithdraw Operation = "withdraw"
)

// IdempotencyPending marks a key whose mutation is still running.
var IdempotencyPending = []byte("pending")

// IdempotencyRecord is the cached outcome of a committed mutation, replayed
// when the same key is presented again.
type IdempotencyRecord struct {
	Key       string    `json:"key"` // Format: "user_id:operation:client_key"
	Wallet    Wallet    `json:"wallet"`
	CreatedAt time.Time `json:"created_at"`
}

// BuildIdempotencyKey constructs the standard key format.
func BuildIdempotencyKey(userID uuid.UUID, op Operation, clientKey string) string {
	return userID.String() + ":" + string(op) + ":" + clientKey
}
