package app_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"nomad_match/internal/app"
	"nomad_match/internal/domain"
)

func newToggler(backend *fakeBackend) (*app.PreferenceStore, *app.Toggler) {
	store := app.NewPreferenceStore()
	return store, app.NewToggler(store, backend, nil, "tok", "user@example.com")
}

func TestToggle_LikeRoundTripUnsets(t *testing.T) {
	backend := &fakeBackend{}
	store, tog := newToggler(backend)
	ctx := context.Background()

	state, err := tog.Toggle(ctx, "Lisbon", domain.ActionLike)
	if err != nil || state != app.StateLiked {
		t.Fatalf("first like: state=%v err=%v", state, err)
	}
	if a, ok := store.Get("Lisbon"); !ok || a != domain.ActionLike {
		t.Fatalf("store after like: %v %v", a, ok)
	}

	state, err = tog.Toggle(ctx, "Lisbon", domain.ActionLike)
	if err != nil || state != app.StateUnset {
		t.Fatalf("second like must unset: state=%v err=%v", state, err)
	}
	if _, ok := store.Get("Lisbon"); ok {
		t.Fatalf("store must be empty after round trip")
	}

	want := []string{"put:Lisbon:like", "del:Lisbon"}
	if got := backend.callLog(); !eq(got, want) {
		t.Fatalf("remote calls = %v, want %v", got, want)
	}
}

func TestToggle_DislikeRoundTripAndHiddenSet(t *testing.T) {
	backend := &fakeBackend{}
	store, tog := newToggler(backend)
	ctx := context.Background()

	if _, err := tog.Toggle(ctx, "Berlin", domain.ActionDislike); err != nil {
		t.Fatalf("dislike: %v", err)
	}
	if _, hidden := store.Hidden()["Berlin"]; !hidden {
		t.Fatalf("disliked city must enter the hidden set")
	}

	if _, err := tog.Toggle(ctx, "Berlin", domain.ActionDislike); err != nil {
		t.Fatalf("second dislike: %v", err)
	}
	if len(store.Hidden()) != 0 {
		t.Fatalf("hidden set must be empty after un-set")
	}
}

func TestToggle_SwitchIsSingleUpsert(t *testing.T) {
	backend := &fakeBackend{}
	store, tog := newToggler(backend)
	ctx := context.Background()

	if _, err := tog.Toggle(ctx, "Porto", domain.ActionLike); err != nil {
		t.Fatalf("like: %v", err)
	}
	state, err := tog.Toggle(ctx, "Porto", domain.ActionDislike)
	if err != nil || state != app.StateDisliked {
		t.Fatalf("switch: state=%v err=%v", state, err)
	}

	// like -> dislike must be one upsert, not delete-then-create
	want := []string{"put:Porto:like", "put:Porto:dislike"}
	if got := backend.callLog(); !eq(got, want) {
		t.Fatalf("remote calls = %v, want %v", got, want)
	}
	if a, _ := store.Get("Porto"); a != domain.ActionDislike {
		t.Fatalf("store after switch: %v", a)
	}
}

func TestToggle_RemoteFailureRollsBack(t *testing.T) {
	backend := &fakeBackend{putErr: errors.New("backend down")}
	store, tog := newToggler(backend)
	ctx := context.Background()

	state, err := tog.Toggle(ctx, "Split", domain.ActionDislike)
	if err == nil {
		t.Fatalf("expected error from failed remote call")
	}
	if state != app.StateUnset {
		t.Fatalf("reported state must be the rolled-back one, got %v", state)
	}
	if _, ok := store.Get("Split"); ok {
		t.Fatalf("optimistic dislike must be rolled back on failure")
	}

	// now the delete path: existing like, failed un-set
	backend.putErr = nil
	backend.delErr = errors.New("backend down")
	if _, err := tog.Toggle(ctx, "Split", domain.ActionLike); err != nil {
		t.Fatalf("like: %v", err)
	}
	state, err = tog.Toggle(ctx, "Split", domain.ActionLike)
	if err == nil {
		t.Fatalf("expected delete failure")
	}
	if state != app.StateLiked {
		t.Fatalf("rolled-back state = %v, want liked", state)
	}
	if a, ok := store.Get("Split"); !ok || a != domain.ActionLike {
		t.Fatalf("like must survive failed un-set: %v %v", a, ok)
	}
}

func TestToggle_RejectsUnknownAction(t *testing.T) {
	backend := &fakeBackend{}
	_, tog := newToggler(backend)
	if _, err := tog.Toggle(context.Background(), "Rome", "meh"); err == nil {
		t.Fatalf("expected rejection of unknown action")
	}
	if len(backend.callLog()) != 0 {
		t.Fatalf("no remote call expected for invalid action")
	}
}

func TestToggle_WritesThroughMirror(t *testing.T) {
	backend := &fakeBackend{}
	store := app.NewPreferenceStore()
	mirror := &fakeMirror{}
	tog := app.NewToggler(store, backend, mirror, "tok", "user@example.com")
	ctx := context.Background()

	if _, err := tog.Toggle(ctx, "Riga", domain.ActionLike); err != nil {
		t.Fatalf("like: %v", err)
	}
	got, _ := mirror.List(ctx, "user@example.com")
	if len(got) != 1 || got[0].CityName != "Riga" || got[0].Action != domain.ActionLike {
		t.Fatalf("mirror after like: %+v", got)
	}

	if _, err := tog.Toggle(ctx, "Riga", domain.ActionLike); err != nil {
		t.Fatalf("unset: %v", err)
	}
	if got, _ := mirror.List(ctx, "user@example.com"); len(got) != 0 {
		t.Fatalf("mirror after un-set: %+v", got)
	}
}

func TestPreferenceStore_ConcurrentToggles(t *testing.T) {
	backend := &fakeBackend{}
	store, tog := newToggler(backend)
	ctx := context.Background()

	cities := []string{"Lisbon", "Berlin", "Porto", "Riga", "Split", "Sofia", "Vienna", "Malta"}
	var wg sync.WaitGroup
	for _, c := range cities {
		for i := 0; i < 4; i++ {
			wg.Add(1)
			go func(name string) {
				defer wg.Done()
				_, _ = tog.Toggle(ctx, name, domain.ActionDislike)
			}(c)
		}
	}
	wg.Wait()

	// an even number of toggles per city must land every slot back at unset
	if n := len(store.Hidden()); n != 0 {
		t.Fatalf("expected empty hidden set after even toggles, got %d", n)
	}
}

func TestPreferenceStore_LoadReplacesState(t *testing.T) {
	store := app.NewPreferenceStore()
	store.Load([]domain.PreferenceEntry{
		{CityName: "Lisbon", Action: domain.ActionLike},
		{CityName: "Berlin", Action: domain.ActionDislike},
		{CityName: "Ghost", Action: "bogus"}, // ignored
	})

	if likes := store.Likes(); len(likes) != 1 || likes[0] != "Lisbon" {
		t.Fatalf("likes = %v", likes)
	}
	if _, hidden := store.Hidden()["Berlin"]; !hidden {
		t.Fatalf("Berlin must be hidden after load")
	}
	if _, ok := store.Get("Ghost"); ok {
		t.Fatalf("invalid action must not load")
	}

	store.Load(nil)
	if len(store.Likes()) != 0 || len(store.Hidden()) != 0 {
		t.Fatalf("reload with empty snapshot must clear the store")
	}
}
