package expirer

import "github.com/google/uuid"

func newHistoryID() uuid.UUID {
	return uuid.New()
}
