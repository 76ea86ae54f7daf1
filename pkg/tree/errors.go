package tree

import (
	"github.com/google/uuid"
	"github.com/lockbook/lbcore/pkg/lberr"
)

func fileNonexistent(id uuid.UUID) *lberr.Error {
	return lberr.New(lberr.FileNonexistent, id.String())
}
