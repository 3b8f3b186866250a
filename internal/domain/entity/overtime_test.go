package entity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/millworks/backoffice/internal/domain/approval"
)

func TestOvertimeRequest_Validate(t *testing.T) {
	start := time.Date(2025, 3, 10, 18, 0, 0, 0, time.UTC)

	valid := OvertimeRequest{
		StartAt: start,
		EndAt:   start.Add(2 * time.Hour),
		Entries: []OvertimeEntry{{UserID: 1}},
	}
	assert.NoError(t, valid.Validate())

	backwards := valid
	backwards.EndAt = start.Add(-time.Hour)
	assert.Error(t, backwards.Validate())

	empty := valid
	empty.Entries = nil
	assert.Error(t, empty.Validate())
}

func TestOvertimeRequest_ComputeDurationHours(t *testing.T) {
	start := time.Date(2025, 3, 10, 18, 0, 0, 0, time.UTC)
	r := OvertimeRequest{StartAt: start, EndAt: start.Add(90 * time.Minute)}
	assert.Equal(t, 1.5, r.ComputeDurationHours())

	r.EndAt = start.Add(100 * time.Minute)
	assert.Equal(t, 1.67, r.ComputeDurationHours())
}

func TestOvertimeRequest_EntryUserIDs(t *testing.T) {
	r := OvertimeRequest{
		Entries: []OvertimeEntry{
			{UserID: 3}, {UserID: 1}, {UserID: 3}, {UserID: 2},
		},
	}
	assert.Equal(t, []int64{3, 1, 2}, r.EntryUserIDs())
}

func TestOvertimeRequest_Snapshot(t *testing.T) {
	start := time.Date(2025, 3, 10, 18, 0, 0, 0, time.UTC)
	r := OvertimeRequest{
		ID:            9,
		RequesterID:   7,
		Team:          "rolling-mill",
		StartAt:       start,
		EndAt:         start.Add(2 * time.Hour),
		DurationHours: 2,
		Entries:       []OvertimeEntry{{UserID: 8, JobNo: "J-1"}},
	}

	snap := r.Snapshot()
	requesterID, ok := snap.RequesterID()
	assert.True(t, ok)
	assert.Equal(t, int64(7), requesterID)

	assert.Equal(t, approval.SubjectRef{Kind: approval.SubjectOvertimeRequest, ID: 9}, r.Ref())
	assert.Equal(t, approval.Classification{"team": "rolling-mill"}, r.Classification())
}

func TestPurchaseRequest_Validate(t *testing.T) {
	valid := PurchaseRequest{
		Title: "grinding discs",
		Items: []PurchaseRequestItem{{ItemCode: "GD-230", Quantity: 4}},
	}
	assert.NoError(t, valid.Validate())

	noTitle := valid
	noTitle.Title = ""
	assert.Error(t, noTitle.Validate())

	noItems := valid
	noItems.Items = nil
	assert.Error(t, noItems.Validate())

	badQty := PurchaseRequest{
		Title: "x",
		Items: []PurchaseRequestItem{{ItemCode: "GD-230", Quantity: -1}},
	}
	assert.Error(t, badQty.Validate())
}
