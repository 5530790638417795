package core

// canonicalSlots is the fixed slot table a normalized day is assembled from.
// The order is what keeps event arrays deterministic across edits: category
// membership is a set, but rendering keys need a stable sequence. The
// geek-seek slot repeats GeekSeekSlots times, which is what bounds how many
// of those entries a day can carry.
var canonicalSlots = buildCanonicalSlots()

func buildCanonicalSlots() []Event {
	slots := []Event{
		{Name: "出社", Type: Commute},
		{Name: "在宅", Type: Remote},
		{Name: "徒歩", Type: Walking},
	}
	for i := 0; i < GeekSeekSlots; i++ {
		slots = append(slots, Event{Name: "GS", Type: GeekSeek, Amounts: 1000})
	}
	return append(slots,
		Event{Name: "*", Type: Drinking},
		Event{Name: "ENG", Type: Energy},
		Event{Name: "糠漬", Type: Nuka},
	)
}

// DefaultEvent returns the canonical template for a category, usable as the
// seed of a fresh user selection.
func DefaultEvent(c Category) (Event, bool) {
	for _, slot := range canonicalSlots {
		if slot.Type == c {
			return slot, true
		}
	}
	return Event{}, false
}

// NormalizeDayEvents canonicalizes the full desired event set of a single day.
// The input is an unordered bag describing the post-edit state, not a delta.
// The output walks the canonical slot table and keeps each category at most
// once (geek-seek: up to the number of requested instances, capped by the slot
// count), pulling payload fields from the matching requested events.
//
// Reconciliation of malformed input is silent: a remote event loses against a
// commute event also present in the request, walking is dropped without a
// commute, surplus drinking or geek-seek entries beyond their slots are cut.
// An empty request yields an empty day, which is how "clear day" is spelled.
func NormalizeDayEvents(requested []Event) []Event {
	workMode, haveWorkMode := pickWorkMode(requested)

	var geekSeeks []Event
	for _, e := range requested {
		if e.Type == GeekSeek {
			geekSeeks = append(geekSeeks, e)
		}
	}

	out := []Event{}
	geekSeekSlot := 0
	for _, slot := range canonicalSlots {
		switch slot.Type {
		case Commute, Remote:
			if haveWorkMode && workMode.Type == slot.Type {
				out = append(out, mergePayload(slot, workMode))
			}
		case Walking:
			// A walking leg substitutes one leg of a commute round trip;
			// it carries no meaning on a remote or empty day.
			if !haveWorkMode || workMode.Type != Commute {
				continue
			}
			if e, ok := firstOfType(requested, Walking); ok {
				out = append(out, mergePayload(slot, e))
			}
		case GeekSeek:
			if geekSeekSlot < len(geekSeeks) {
				out = append(out, mergePayload(slot, geekSeeks[geekSeekSlot]))
				geekSeekSlot++
			}
		case Drinking, Energy, Nuka:
			if e, ok := firstOfType(requested, slot.Type); ok {
				out = append(out, mergePayload(slot, e))
			}
		}
	}
	return out
}

// pickWorkMode resolves the commute/remote exclusivity: when both are
// requested, the one earlier in canonical order (commute) wins.
func pickWorkMode(requested []Event) (Event, bool) {
	if e, ok := firstOfType(requested, Commute); ok {
		return e, true
	}
	if e, ok := firstOfType(requested, Remote); ok {
		return e, true
	}
	return Event{}, false
}

func firstOfType(events []Event, c Category) (Event, bool) {
	for _, e := range events {
		if e.Type == c {
			return e, true
		}
	}
	return Event{}, false
}

// mergePayload fills a canonical slot with the payload of the requested event:
// an edited name, an explicit fare, an explicit amount. Slot defaults apply
// where the request carries nothing.
func mergePayload(slot, requested Event) Event {
	out := slot
	if requested.Name != "" {
		out.Name = requested.Name
	}
	if fare, ok := requested.FareValue(); ok {
		out.Fare = &fare
	}
	if requested.Amounts != 0 {
		out.Amounts = requested.Amounts
	}
	return out
}
