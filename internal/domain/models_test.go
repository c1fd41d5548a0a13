package domain

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite (no CGO)
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	return db
}

func TestTableNames(t *testing.T) {
	if (Preference{}).TableName() != "preferences" {
		t.Fatalf("Preference.TableName() = %q; want %q", (Preference{}).TableName(), "preferences")
	}
	if (Idempotency{}).TableName() != "idempotency" {
		t.Fatalf("Idempotency.TableName() = %q; want %q", (Idempotency{}).TableName(), "idempotency")
	}
}

func TestPreference_UpsertKeepsOneRowPerKey(t *testing.T) {
	db := newTestDB(t)
	if err := db.AutoMigrate(&Preference{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}

	if err := db.Save(&Preference{Key: PrefLanguage, Value: `"zh-CN"`}).Error; err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := db.Save(&Preference{Key: PrefLanguage, Value: `"en-US"`}).Error; err != nil {
		t.Fatalf("save again: %v", err)
	}

	var rows []Preference
	if err := db.Find(&rows).Error; err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(rows) != 1 || rows[0].Value != `"en-US"` {
		t.Fatalf("want single en-US row, got %+v", rows)
	}
}

func TestArticle_DecodesRemoteShape(t *testing.T) {
	raw := `{"id":5,"title":"Hello","content":"c","excerpt":"e","category_id":2,
		"category":{"id":2,"name":"News"},"status":"published",
		"created_at":"2024-03-01T10:00:00Z","updated_at":"2024-03-02T10:00:00Z",
		"published_at":"2024-03-02T10:00:00Z"}`

	var a Article
	if err := json.Unmarshal([]byte(raw), &a); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if a.ID != 5 || a.Category.Name != "News" || a.Status != ArticlePublished {
		t.Fatalf("unexpected article: %+v", a)
	}
	if a.PublishedAt == nil || !a.PublishedAt.Equal(time.Date(2024, 3, 2, 10, 0, 0, 0, time.UTC)) {
		t.Fatalf("published_at not decoded: %v", a.PublishedAt)
	}
}

func TestIdentity_IsAdmin(t *testing.T) {
	if !(Identity{Role: "admin"}).IsAdmin() {
		t.Fatal("admin role should be admin")
	}
	if (Identity{Role: "editor"}).IsAdmin() {
		t.Fatal("editor role should not be admin")
	}
}

func TestUserInput_BlankPasswordStillEncodes(t *testing.T) {
	b, err := json.Marshal(UserInput{Name: "n", Email: "a@b.c", Role: "viewer"})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var m map[string]any
	_ = json.Unmarshal(b, &m)
	if _, ok := m["password"]; !ok {
		t.Fatalf("password key should be present so it can be omitted explicitly: %s", b)
	}
}
