package memory

import (
	"testing"

	"github.com/nextmessage/backend/internal/repository"
	"github.com/nextmessage/backend/internal/repository/repotest"
)

func TestContract(t *testing.T) {
	repotest.Run(t, func(t *testing.T) repository.Set { return NewSet() })
}
