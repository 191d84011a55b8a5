package db

import (
	"reflect"
	"testing"

	"cardsync/internal/scraper"
)

func TestCopyCards_All(t *testing.T) {
	src := openTestDB(t)
	defer src.Close()
	dst := openTestDB(t)
	defer dst.Close()

	for _, id := range []int64{1, 2, 3} {
		if err := src.UpsertCard(sampleCard(id)); err != nil {
			t.Fatalf("UpsertCard: %v", err)
		}
	}

	copied, err := CopyCards(src, dst, nil)
	if err != nil {
		t.Fatalf("CopyCards: %v", err)
	}
	if copied != 3 {
		t.Errorf("copied = %d, want 3", copied)
	}
	n, err := dst.CountCards()
	if err != nil {
		t.Fatalf("CountCards: %v", err)
	}
	if n != 3 {
		t.Errorf("dst CountCards = %d, want 3", n)
	}
}

func TestCopyCards_MarkFilter(t *testing.T) {
	src := openTestDB(t)
	defer src.Close()
	dst := openTestDB(t)
	defer dst.Close()

	h := sampleCard(1)
	h.RegulationMark = strptr("H")
	i := sampleCard(2)
	i.RegulationMark = strptr("i") // stored lower-case; compared case-insensitively
	g := sampleCard(3)
	g.RegulationMark = strptr("G")
	none := sampleCard(4)
	none.RegulationMark = nil
	for _, card := range []*scraper.Card{h, i, g, none} {
		if err := src.UpsertCard(card); err != nil {
			t.Fatalf("UpsertCard: %v", err)
		}
	}

	copied, err := CopyCards(src, dst, map[string]bool{"H": true, "I": true})
	if err != nil {
		t.Fatalf("CopyCards: %v", err)
	}
	if copied != 2 {
		t.Errorf("copied = %d, want 2 (H and i)", copied)
	}
	ids, err := dst.ExistingCardIDs()
	if err != nil {
		t.Fatalf("ExistingCardIDs: %v", err)
	}
	if !ids[1] || !ids[2] || ids[3] || ids[4] {
		t.Errorf("dst ids = %v, want {1,2}", ids)
	}
}

func TestCopyCards_SkillsSurvive(t *testing.T) {
	src := openTestDB(t)
	defer src.Close()
	dst := openTestDB(t)
	defer dst.Close()

	if err := src.UpsertCard(sampleCard(1)); err != nil {
		t.Fatalf("UpsertCard: %v", err)
	}
	if _, err := CopyCards(src, dst, nil); err != nil {
		t.Fatalf("CopyCards: %v", err)
	}

	want, err := src.GetSkills(1)
	if err != nil {
		t.Fatalf("src GetSkills: %v", err)
	}
	got, err := dst.GetSkills(1)
	if err != nil {
		t.Fatalf("dst GetSkills: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("dst skills = %+v, want %+v", got, want)
	}
}

func TestCopyCards_RoundTrip(t *testing.T) {
	src := openTestDB(t)
	defer src.Close()
	dst := openTestDB(t)
	defer dst.Close()
	src2 := openTestDB(t)
	defer src2.Close()

	for _, id := range []int64{1, 2} {
		if err := src.UpsertCard(sampleCard(id)); err != nil {
			t.Fatalf("UpsertCard: %v", err)
		}
	}

	// Two hops: src -> dst -> src2. Every card and skill row must come
	// out field-for-field identical.
	if _, err := CopyCards(src, dst, nil); err != nil {
		t.Fatalf("first hop: %v", err)
	}
	if _, err := CopyCards(dst, src2, nil); err != nil {
		t.Fatalf("second hop: %v", err)
	}

	n, err := src2.CountCards()
	if err != nil {
		t.Fatalf("CountCards: %v", err)
	}
	if n != 2 {
		t.Fatalf("src2 CountCards = %d, want 2", n)
	}
	for _, id := range []int64{1, 2} {
		want, err := src.GetCard(id)
		if err != nil {
			t.Fatalf("src GetCard(%d): %v", id, err)
		}
		got, err := src2.GetCard(id)
		if err != nil {
			t.Fatalf("src2 GetCard(%d): %v", id, err)
		}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("card %d: round trip = %+v, want %+v", id, got, want)
		}

		wantSkills, err := src.GetSkills(id)
		if err != nil {
			t.Fatalf("src GetSkills(%d): %v", id, err)
		}
		gotSkills, err := src2.GetSkills(id)
		if err != nil {
			t.Fatalf("src2 GetSkills(%d): %v", id, err)
		}
		if !reflect.DeepEqual(gotSkills, wantSkills) {
			t.Errorf("card %d skills: round trip = %+v, want %+v", id, gotSkills, wantSkills)
		}
	}
}

func TestCopyCards_Additive(t *testing.T) {
	src := openTestDB(t)
	defer src.Close()
	dst := openTestDB(t)
	defer dst.Close()

	if err := src.UpsertCard(sampleCard(1)); err != nil {
		t.Fatalf("UpsertCard: %v", err)
	}
	// Pre-existing destination rows outside the copy set stay untouched.
	if err := dst.UpsertCard(sampleCard(99)); err != nil {
		t.Fatalf("UpsertCard: %v", err)
	}

	if _, err := CopyCards(src, dst, nil); err != nil {
		t.Fatalf("CopyCards: %v", err)
	}
	n, err := dst.CountCards()
	if err != nil {
		t.Fatalf("CountCards: %v", err)
	}
	if n != 2 {
		t.Errorf("dst CountCards = %d, want 2", n)
	}
}
