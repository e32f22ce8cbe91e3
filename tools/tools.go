//go:build tools

package tools

// Tool dependencies pinned in go.mod. The goose CLI runs the same embedded
// migrations by hand: goose -dir internal/adapters/postgres/migrations postgres "$DATABASE_URL" status
import (
	_ "github.com/pressly/goose/v3/cmd/goose"
)
