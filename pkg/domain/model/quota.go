package model

// MaxDocumentsPerTask is the hard cap of active documents attached to a task
const MaxDocumentsPerTask = 3

// RejectReason explains a refused admission
type RejectReason string

const (
	RejectNone          RejectReason = ""
	RejectQuotaExceeded RejectReason = "quota_exceeded"
)

// Admission is the outcome of a quota check for one upload batch
type Admission struct {
	Admitted bool
	Reason   RejectReason
	// AllowedCount is how many more documents the task could take. It is
	// only meaningful on rejection and never negative.
	AllowedCount int
}

// AdmitDocuments decides whether a batch of incoming documents fits next to
// currentActive existing ones. The batch is admitted as a whole or not at all.
// An empty batch is always admitted.
func AdmitDocuments(incoming, currentActive int) Admission {
	if incoming <= 0 {
		return Admission{Admitted: true}
	}
	if currentActive+incoming > MaxDocumentsPerTask {
		return Admission{
			Admitted:     false,
			Reason:       RejectQuotaExceeded,
			AllowedCount: max(MaxDocumentsPerTask-currentActive, 0),
		}
	}
	return Admission{Admitted: true}
}
