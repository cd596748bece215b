package uodm

import (
	"time"

	"github.com/google/uuid"
)

// NewName returns a freshly generated UUID string for use as a document name.
// Generation is retried with a 1ms pause because a name is a must; it panics
// only if every attempt fails, which should never happen.
func NewName() string {
	var err error
	for i := 0; i < 10; i++ {
		var id uuid.UUID
		id, err = uuid.NewRandom()
		if err == nil {
			return id.String()
		}
		time.Sleep(time.Millisecond)
	}
	panic(err)
}
