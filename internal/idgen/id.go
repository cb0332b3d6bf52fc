// Package idgen generates identifiers used across the framework: nanoids
// for RPC correlation and member ids, UUIDs for message ids (model.NewMessage
// uses uuid directly since that's the spec-mandated format).
package idgen

import (
	"fmt"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// Generate returns a 48-character nanoid using an alphanumeric alphabet.
// Used for RPC request correlation ids and, where a caller needs to mint a
// member id client-side before signup, for that too.
func Generate() string {
	id, err := gonanoid.Generate(alphabet, 48)
	if err != nil {
		panic(fmt.Sprintf("idgen: generate nanoid: %v", err))
	}
	return id
}
