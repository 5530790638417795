package core

import (
	"testing"
	"time"
)

func TestCategoryValid(t *testing.T) {
	for _, c := range Categories {
		if !c.Valid() {
			t.Errorf("category %s should be valid", c)
		}
	}
	if Category("jogging").Valid() {
		t.Error("unknown category should not be valid")
	}
}

func TestCategoryIsWorkMode(t *testing.T) {
	tests := []struct {
		c    Category
		want bool
	}{
		{Commute, true},
		{Remote, true},
		{Walking, false},
		{GeekSeek, false},
		{Drinking, false},
		{Energy, false},
		{Nuka, false},
	}
	for _, tt := range tests {
		if got := tt.c.IsWorkMode(); got != tt.want {
			t.Errorf("%s.IsWorkMode() = %v, want %v", tt.c, got, tt.want)
		}
	}
}

func TestMonthKey(t *testing.T) {
	t.Run("of date", func(t *testing.T) {
		d := time.Date(2023, 4, 30, 23, 30, 0, 0, time.UTC)
		if got := MonthKeyOf(d); got != "2023-04" {
			t.Errorf("MonthKeyOf = %s, want 2023-04", got)
		}
	})

	t.Run("of date normalizes to UTC", func(t *testing.T) {
		jst := time.FixedZone("JST", 9*60*60)
		// 2023-05-01 08:00 JST is still 2023-04 in UTC.
		d := time.Date(2023, 5, 1, 8, 0, 0, 0, jst)
		if got := MonthKeyOf(d); got != "2023-04" {
			t.Errorf("MonthKeyOf = %s, want 2023-04", got)
		}
	})

	t.Run("parse", func(t *testing.T) {
		tests := []struct {
			in      string
			wantErr bool
		}{
			{"2023-04", false},
			{"1999-12", false},
			{"2023-13", true},
			{"2023-00", true},
			{"2023-4", true},
			{"23-04", true},
			{"2023/04", true},
			{"", true},
		}
		for _, tt := range tests {
			_, err := ParseMonthKey(tt.in)
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseMonthKey(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
		}
	})

	t.Run("ordering", func(t *testing.T) {
		if !MonthKey("2023-04").Before("2023-05") {
			t.Error("2023-04 should sort before 2023-05")
		}
		if MonthKey("2023-10").Before("2023-09") {
			t.Error("2023-10 should not sort before 2023-09")
		}
	})

	t.Run("time", func(t *testing.T) {
		got := MonthKey("2023-04").Time(time.UTC)
		want := time.Date(2023, 4, 1, 0, 0, 0, 0, time.UTC)
		if !got.Equal(want) {
			t.Errorf("Time = %v, want %v", got, want)
		}
	})
}

func TestDayRecordHelpers(t *testing.T) {
	fare := 300
	d := DayRecord{
		Date: time.Date(2023, 4, 3, 0, 0, 0, 0, time.UTC),
		Events: []Event{
			{Type: Commute, Name: "出社", Fare: &fare},
			{Type: Walking, Name: "徒歩"},
			{Type: GeekSeek, Amounts: 1000},
			{Type: GeekSeek, Amounts: 500},
		},
		WorkingDay: true,
	}

	if d.IsPadding() {
		t.Error("dated record is not padding")
	}
	if (DayRecord{}).IsPadding() == false {
		t.Error("zero-date record is padding")
	}
	if got := d.CountEvents(GeekSeek); got != 2 {
		t.Errorf("CountEvents(geek-seek) = %d, want 2", got)
	}
	if got := d.CountEvents(Drinking); got != 0 {
		t.Errorf("CountEvents(drinking) = %d, want 0", got)
	}
	e, ok := d.FindEvent(Commute)
	if !ok {
		t.Fatal("commute event not found")
	}
	if v, ok := e.FareValue(); !ok || v != 300 {
		t.Errorf("commute fare = %d/%v, want 300/true", v, ok)
	}
	if _, ok := (Event{Type: Walking}).FareValue(); ok {
		t.Error("missing fare should report not set")
	}
}

func TestSyncStatusSynced(t *testing.T) {
	tests := []struct {
		name   string
		status SyncStatus
		want   bool
	}{
		{"idle", SyncStatus{}, true},
		{"editing", SyncStatus{Editing: true}, false},
		{"saving", SyncStatus{Saving: true}, false},
		{"editing and saving", SyncStatus{Editing: true, Saving: true}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.status.Synced(); got != tt.want {
				t.Errorf("Synced() = %v, want %v", got, tt.want)
			}
		})
	}
}
