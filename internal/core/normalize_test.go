package core

import (
	"reflect"
	"testing"
)

func TestNormalizeDayEvents_CanonicalOrder(t *testing.T) {
	fare := 300

	tests := []struct {
		name      string
		requested []Event
		want      []Category
	}{
		{
			name:      "empty request clears the day",
			requested: []Event{},
			want:      []Category{},
		},
		{
			name: "reversed request comes back in canonical order",
			requested: []Event{
				{Type: Nuka},
				{Type: Energy},
				{Type: Drinking},
				{Type: GeekSeek},
				{Type: Walking},
				{Type: Commute},
			},
			want: []Category{Commute, Walking, GeekSeek, Drinking, Energy, Nuka},
		},
		{
			name: "commute wins over remote",
			requested: []Event{
				{Type: Remote},
				{Type: Commute, Fare: &fare},
			},
			want: []Category{Commute},
		},
		{
			name: "duplicate work modes collapse to one",
			requested: []Event{
				{Type: Remote},
				{Type: Remote},
				{Type: Remote},
			},
			want: []Category{Remote},
		},
		{
			name: "walking without commute is dropped",
			requested: []Event{
				{Type: Walking},
				{Type: Drinking},
			},
			want: []Category{Drinking},
		},
		{
			name: "walking on a remote day is dropped",
			requested: []Event{
				{Type: Remote},
				{Type: Walking},
			},
			want: []Category{Remote},
		},
		{
			name: "geek-seek capped at two slots",
			requested: []Event{
				{Type: GeekSeek},
				{Type: GeekSeek},
				{Type: GeekSeek},
			},
			want: []Category{GeekSeek, GeekSeek},
		},
		{
			name: "duplicate drinking collapses to one",
			requested: []Event{
				{Type: Drinking, Amounts: 14},
				{Type: Drinking, Amounts: 28},
			},
			want: []Category{Drinking},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeDayEvents(tt.requested)
			gotTypes := make([]Category, 0, len(got))
			for _, e := range got {
				gotTypes = append(gotTypes, e.Type)
			}
			if !reflect.DeepEqual(gotTypes, tt.want) {
				t.Errorf("NormalizeDayEvents() categories = %v, want %v", gotTypes, tt.want)
			}
		})
	}
}

func TestNormalizeDayEvents_Idempotent(t *testing.T) {
	fare := -150

	inputs := [][]Event{
		{},
		{{Type: Commute}, {Type: Walking, Fare: &fare}, {Type: GeekSeek, Amounts: 500}},
		{{Type: Remote}, {Type: Drinking, Name: "ビール", Amounts: 14}},
		{{Type: Nuka}, {Type: Energy}, {Type: GeekSeek}, {Type: GeekSeek}, {Type: GeekSeek}},
	}

	for _, requested := range inputs {
		once := NormalizeDayEvents(requested)
		twice := NormalizeDayEvents(once)
		if !reflect.DeepEqual(once, twice) {
			t.Errorf("normalize applied twice diverged:\nonce  = %+v\ntwice = %+v", once, twice)
		}
	}
}

func TestNormalizeDayEvents_PayloadCarryOver(t *testing.T) {
	fare := 120

	t.Run("drinking keeps edited name and amounts", func(t *testing.T) {
		got := NormalizeDayEvents([]Event{{Type: Drinking, Name: "日本酒", Amounts: 28}})
		if len(got) != 1 {
			t.Fatalf("got %d events, want 1", len(got))
		}
		if got[0].Name != "日本酒" || got[0].Amounts != 28 {
			t.Errorf("drinking payload = %q/%d, want 日本酒/28", got[0].Name, got[0].Amounts)
		}
	})

	t.Run("geek-seek slots pull per-instance amounts", func(t *testing.T) {
		got := NormalizeDayEvents([]Event{
			{Type: GeekSeek, Amounts: 1500},
			{Type: GeekSeek, Amounts: 500},
		})
		if len(got) != 2 {
			t.Fatalf("got %d events, want 2", len(got))
		}
		if got[0].Amounts != 1500 || got[1].Amounts != 500 {
			t.Errorf("geek-seek amounts = %d/%d, want 1500/500", got[0].Amounts, got[1].Amounts)
		}
	})

	t.Run("geek-seek default price fills missing amounts", func(t *testing.T) {
		got := NormalizeDayEvents([]Event{{Type: GeekSeek}})
		if len(got) != 1 || got[0].Amounts != 1000 {
			t.Fatalf("got %+v, want one geek-seek with default amounts 1000", got)
		}
	})

	t.Run("walking fare survives", func(t *testing.T) {
		got := NormalizeDayEvents([]Event{
			{Type: Commute},
			{Type: Walking, Fare: &fare},
		})
		if len(got) != 2 {
			t.Fatalf("got %d events, want 2", len(got))
		}
		if v, ok := got[1].FareValue(); !ok || v != 120 {
			t.Errorf("walking fare = %v/%v, want 120/true", v, ok)
		}
	})

	t.Run("canonical names fill unnamed requests", func(t *testing.T) {
		got := NormalizeDayEvents([]Event{{Type: Commute}})
		if len(got) != 1 || got[0].Name != "出社" {
			t.Fatalf("got %+v, want commute named 出社", got)
		}
	})
}

func TestCanonicalSlotsGeekSeekCount(t *testing.T) {
	count := 0
	for _, slot := range canonicalSlots {
		if slot.Type == GeekSeek {
			count++
		}
	}
	if count != GeekSeekSlots {
		t.Errorf("slot table carries %d geek-seek entries, want %d", count, GeekSeekSlots)
	}
}

func TestDefaultEvent(t *testing.T) {
	for _, c := range Categories {
		e, ok := DefaultEvent(c)
		if !ok {
			t.Errorf("DefaultEvent(%s) not found in slot table", c)
			continue
		}
		if e.Type != c {
			t.Errorf("DefaultEvent(%s) has type %s", c, e.Type)
		}
	}
	if _, ok := DefaultEvent(Category("bogus")); ok {
		t.Error("DefaultEvent should not resolve unknown categories")
	}
}
