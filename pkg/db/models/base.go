package models

import "github.com/google/uuid"

// ensureID assigns a v4 identifier when the caller did not set one.
func ensureID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}

// All lists every persisted model in dependency order. Tests use it to
// AutoMigrate in-memory databases; production schema lives in migrations.
func All() []any {
	return []any{
		&Category{},
		&Product{},
		&Cart{},
		&CartItem{},
		&Address{},
		&Order{},
		&OrderItem{},
		&OutboxEvent{},
	}
}
