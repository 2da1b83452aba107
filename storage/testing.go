/*
	This file contains functions useful for testing storage engines in other packages.
	They are exported so each engine's tests can run the same checks.
*/

package storage

import (
	"errors"
	"testing"
	"time"

	"github.com/openseis/seisvol/seisvol"
)

// TestMetadataStore exercises the MetadataStore contract on an empty store.
func TestMetadataStore(t *testing.T, store MetadataStore) {
	now := time.Now()
	names := []string{"zeta", "alpha", "mid"}
	ids := make(map[string]uint64)
	for i, name := range names {
		v := &Volume{
			Name:     name,
			FilePath: "/data/" + name + ".sgy",
			Metadata: VolumeMetadata{
				NumInlines:     10 + i,
				NumCrosslines:  20,
				NumSamples:     100,
				SampleInterval: 4,
				InlineMin:      100,
				InlineMax:      109 + i,
				CrosslineMin:   200,
				CrosslineMax:   219,
				FormatCode:     5,
				NumTraces:      (10 + i) * 20,
				Geometry:       "standard",
				Gridded:        true,
			},
			ImportedAt: now,
		}
		id, err := store.PutVolume(v)
		if err != nil {
			t.Fatalf("can't put volume %q: %v\n", name, err)
		}
		if id == 0 || v.ID != id {
			t.Fatalf("bad id %d assigned to volume %q (record has %d)\n", id, name, v.ID)
		}
		ids[name] = id
	}

	dup := &Volume{Name: "alpha", FilePath: "/other.sgy", ImportedAt: now}
	if _, err := store.PutVolume(dup); !errors.Is(err, seisvol.ErrConflict) {
		t.Errorf("expected conflict on duplicate volume name, got %v\n", err)
	}

	got, err := store.GetVolume(ids["mid"])
	if err != nil {
		t.Fatalf("can't get volume: %v\n", err)
	}
	if got.Name != "mid" || got.FilePath != "/data/mid.sgy" || got.Metadata.InlineMax != 111 || !got.Metadata.Gridded {
		t.Errorf("bad volume returned: %+v\n", got)
	}
	if !got.ImportedAt.Equal(now) {
		t.Errorf("imported time %s, expected %s\n", got.ImportedAt, now)
	}
	byName, err := store.GetVolumeByName("zeta")
	if err != nil || byName.ID != ids["zeta"] {
		t.Errorf("bad volume by name: %v, %v\n", byName, err)
	}
	if _, err := store.GetVolume(99999); !errors.Is(err, seisvol.ErrVolumeNotFound) {
		t.Errorf("expected ErrVolumeNotFound, got %v\n", err)
	}

	volumes, err := store.ListVolumes()
	if err != nil {
		t.Fatalf("can't list volumes: %v\n", err)
	}
	if len(volumes) != 3 || volumes[0].Name != "alpha" || volumes[1].Name != "mid" || volumes[2].Name != "zeta" {
		t.Errorf("volumes not listed by name: %v\n", volumeNames(volumes))
	}

	if err := store.DeleteVolume(ids["alpha"]); err != nil {
		t.Fatalf("can't delete volume: %v\n", err)
	}
	if err := store.DeleteVolume(ids["alpha"]); !errors.Is(err, seisvol.ErrVolumeNotFound) {
		t.Errorf("expected ErrVolumeNotFound on second delete, got %v\n", err)
	}
	// Name is free again after delete.
	if _, err := store.PutVolume(&Volume{Name: "alpha", FilePath: "/new.sgy", ImportedAt: now}); err != nil {
		t.Errorf("can't reuse deleted volume name: %v\n", err)
	}

	// Surveys
	var surveyIDs []uint64
	for _, name := range []string{"north", "south"} {
		s := &Survey{
			Name:          name,
			InlineMin:     100,
			InlineMax:     500,
			InlineStep:    1,
			CrosslineMin:  1000,
			CrosslineMax:  1200,
			CrosslineStep: 2,
			OriginX:       1000,
			OriginY:       2000,
			InlineDX:      0,
			InlineDY:      25,
			CrosslineDX:   25,
			CrosslineDY:   0,
			CreatedAt:     now,
		}
		id, err := store.PutSurvey(s)
		if err != nil {
			t.Fatalf("can't put survey %q: %v\n", name, err)
		}
		surveyIDs = append(surveyIDs, id)
	}
	if surveyIDs[1] <= surveyIDs[0] {
		t.Errorf("survey ids not increasing: %v\n", surveyIDs)
	}
	if _, err := store.PutSurvey(&Survey{Name: "north", CreatedAt: now}); !errors.Is(err, seisvol.ErrConflict) {
		t.Errorf("expected conflict on duplicate survey, got %v\n", err)
	}
	s, err := store.GetSurvey("north")
	if err != nil {
		t.Fatalf("can't get survey: %v\n", err)
	}
	if s.OriginX != 1000 || s.InlineDY != 25 || s.CrosslineDX != 25 || s.CrosslineStep != 2 {
		t.Errorf("bad survey returned: %+v\n", s)
	}
	surveys, err := store.ListSurveys()
	if err != nil {
		t.Fatalf("can't list surveys: %v\n", err)
	}
	if len(surveys) != 2 || surveys[0].Name != "north" || surveys[1].Name != "south" {
		t.Errorf("surveys not listed by id: %v\n", surveys)
	}
	if err := store.DeleteSurvey("north"); err != nil {
		t.Fatalf("can't delete survey: %v\n", err)
	}
	if err := store.DeleteSurvey("north"); !errors.Is(err, seisvol.ErrSurveyNotFound) {
		t.Errorf("expected ErrSurveyNotFound, got %v\n", err)
	}
	if _, err := store.GetSurvey("north"); !errors.Is(err, seisvol.ErrSurveyNotFound) {
		t.Errorf("expected ErrSurveyNotFound after delete, got %v\n", err)
	}

	// Replacing a volume drops it and its same-named survey.
	for _, name := range []string{"zeta", "mid"} {
		if _, err := store.PutSurvey(&Survey{Name: name, CreatedAt: now}); err != nil {
			t.Fatalf("can't put survey %q: %v\n", name, err)
		}
	}
	replacement := &Volume{Name: "zeta", FilePath: "/data/zeta2.sgy", ImportedAt: now}
	newID, err := store.ReplaceVolume(ids["zeta"], replacement)
	if err != nil {
		t.Fatalf("can't replace volume: %v\n", err)
	}
	if newID == 0 || newID == ids["zeta"] || replacement.ID != newID {
		t.Errorf("bad replacement id %d (old %d, record %d)\n", newID, ids["zeta"], replacement.ID)
	}
	if _, err := store.GetVolume(ids["zeta"]); !errors.Is(err, seisvol.ErrVolumeNotFound) {
		t.Errorf("replaced volume still present: %v\n", err)
	}
	if v, err := store.GetVolumeByName("zeta"); err != nil || v.FilePath != "/data/zeta2.sgy" {
		t.Errorf("bad replacement volume: %v, %v\n", v, err)
	}
	if _, err := store.GetSurvey("zeta"); !errors.Is(err, seisvol.ErrSurveyNotFound) {
		t.Errorf("survey of replaced volume still present: %v\n", err)
	}

	// A failed replacement leaves everything in place.
	if _, err := store.ReplaceVolume(newID, &Volume{Name: "mid", ImportedAt: now}); !errors.Is(err, seisvol.ErrConflict) {
		t.Errorf("expected conflict replacing with a taken name, got %v\n", err)
	}
	if _, err := store.GetVolume(newID); err != nil {
		t.Errorf("volume lost after failed replacement: %v\n", err)
	}
	if _, err := store.GetSurvey("mid"); err != nil {
		t.Errorf("survey lost after failed replacement: %v\n", err)
	}
	if _, err := store.GetVolume(ids["mid"]); err != nil {
		t.Errorf("conflicting volume lost after failed replacement: %v\n", err)
	}
}

func volumeNames(volumes []*Volume) []string {
	names := make([]string, len(volumes))
	for i, v := range volumes {
		names[i] = v.Name
	}
	return names
}
