// Package idgen generates the unique, 36-character textual identifiers
// used to build link/source/target names. It wraps the uuid subpackage
// already required by the teacher AMQP library so link naming keeps the
// same id shape the rest of the Azure AMQP stack produces.
package idgen

import (
	"github.com/Azure/azure-amqp-common-go/v3/uuid"
	"github.com/pkg/errors"
)

// New returns a freshly generated, canonically-formatted (36 character)
// unique id, e.g. "4c2110e1-c8eb-4a58-9ea6-8e57b6c9c0a1".
func New() (string, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return "", errors.Wrap(err, "failed generating a unique id")
	}
	return id.String(), nil
}
