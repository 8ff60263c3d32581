package contextops

import "time"

// OrphanJob records contexts that were created for an experiment which was
// never persisted, and that a compensating delete failed to remove.
type OrphanJob struct {
	ID           string    `json:"id"`
	ExperimentID int64     `json:"experiment_id"`
	ContextIDs   []string  `json:"context_ids"`
	Attempts     int       `json:"attempts"`
	EnqueuedAt   time.Time `json:"enqueued_at"`
	LastError    string    `json:"last_error,omitempty"`
}

// DeleteBatch builds the bulk request removing every orphaned context.
func (j OrphanJob) DeleteBatch() Batch {
	return DeleteAll(j.ContextIDs)
}

// DeleteAll builds a batch of DELETE operations, one per id, in order.
func DeleteAll(contextIDs []string) Batch {
	batch := make(Batch, len(contextIDs))
	for i, id := range contextIDs {
		batch[i] = Delete{ContextID: id}
	}
	return batch
}
