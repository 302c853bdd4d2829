package model_test

import (
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/tasklane/pkg/domain/model"
)

func TestAdmitDocuments(t *testing.T) {
	tests := []struct {
		name     string
		incoming int
		current  int
		admitted bool
		allowed  int
	}{
		{"empty batch on empty task", 0, 0, true, 0},
		{"empty batch on full task", 0, 3, true, 0},
		{"one on empty", 1, 0, true, 0},
		{"three on empty", 3, 0, true, 0},
		{"fill up exactly", 1, 2, true, 0},
		{"two on two", 2, 2, false, 1},
		{"one on full", 1, 3, false, 0},
		{"four on empty", 4, 0, false, 3},
		{"over-full task clamps to zero", 1, 5, false, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := model.AdmitDocuments(tt.incoming, tt.current)
			gt.Value(t, got.Admitted).Equal(tt.admitted)
			if !tt.admitted {
				gt.Value(t, got.Reason).Equal(model.RejectQuotaExceeded)
				gt.Value(t, got.AllowedCount).Equal(tt.allowed)
			} else {
				gt.Value(t, got.Reason).Equal(model.RejectNone)
			}
		})
	}
}

func TestAdmitDocumentsNeverExceedsCap(t *testing.T) {
	for current := 0; current <= model.MaxDocumentsPerTask+2; current++ {
		for incoming := 0; incoming <= model.MaxDocumentsPerTask+2; incoming++ {
			got := model.AdmitDocuments(incoming, current)
			if got.Admitted && incoming > 0 {
				gt.B(t, current+incoming <= model.MaxDocumentsPerTask).True()
			}
			gt.B(t, got.AllowedCount >= 0).True()
		}
	}
}

// Sequential uploads of 2, 1 and 1 files: the third must be rejected with
// nothing left to allow.
func TestAdmitDocumentsSequentialScenario(t *testing.T) {
	active := 0

	first := model.AdmitDocuments(2, active)
	gt.B(t, first.Admitted).True()
	active += 2

	second := model.AdmitDocuments(1, active)
	gt.B(t, second.Admitted).True()
	active++

	third := model.AdmitDocuments(1, active)
	gt.B(t, third.Admitted).False()
	gt.Value(t, third.AllowedCount).Equal(0)

	// a soft delete frees one slot
	active--
	fourth := model.AdmitDocuments(1, active)
	gt.B(t, fourth.Admitted).True()
}
