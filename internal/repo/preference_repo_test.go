package repo

import (
	"context"
	"errors"
	"testing"

	"github.com/tbourn/go-admin-console/internal/domain"
)

func TestPreferences_PutGetLoadDelete(t *testing.T) {
	db := newMemDB(t, &domain.Preference{})
	ctx := context.Background()

	if _, err := GetPreference(ctx, db, domain.PrefTheme); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := PutPreference(ctx, db, domain.PrefTheme, `"light"`); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := PutPreference(ctx, db, domain.PrefTheme, `"dark"`); err != nil {
		t.Fatalf("put again: %v", err)
	}
	if err := PutPreference(ctx, db, domain.PrefLanguage, `"en-US"`); err != nil {
		t.Fatalf("put language: %v", err)
	}

	v, err := GetPreference(ctx, db, domain.PrefTheme)
	if err != nil || v != `"dark"` {
		t.Fatalf("get theme = %q, %v; want dark (last write wins)", v, err)
	}

	all, err := LoadPreferences(ctx, db)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(all) != 2 || all[domain.PrefLanguage] != `"en-US"` {
		t.Fatalf("unexpected preferences: %v", all)
	}

	if err := DeletePreference(ctx, db, domain.PrefTheme); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := DeletePreference(ctx, db, domain.PrefTheme); err != nil {
		t.Fatalf("delete missing: %v", err)
	}
	if _, err := GetPreference(ctx, db, domain.PrefTheme); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}
