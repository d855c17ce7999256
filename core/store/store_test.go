package store

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"mspb-config/config"
	"mspb-config/core/hierarchy"
)

func mustTestDB(t *testing.T) *sql.DB {
	t.Helper()
	cfg := &config.AppConfig{DBDriver: "sqlite", DBPath: filepath.Join(t.TempDir(), "test.db")}
	db, err := NewDB(cfg, nil)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := ApplyMigrations(context.Background(), db, nil); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func seedOverride(t *testing.T, db *sql.DB, o hierarchy.StoredOverride) int64 {
	t.Helper()
	res, err := db.Exec(`
		INSERT INTO config_overrides
			(customer_id, category, section, property, organization, site, agent, level, value,
			 sort_category, sort_section, sort_property, sort_comment, is_custom)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		o.CustomerID, o.Category, o.Section, o.Property, o.Organization, o.Site, o.Agent,
		string(o.Level), o.Value, o.Sort.Category, o.Sort.Section, o.Sort.Property, o.Sort.Comment,
		boolToInt(o.IsCustom))
	if err != nil {
		t.Fatalf("seed override: %v", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		t.Fatalf("seed override id: %v", err)
	}
	return id
}

func TestOverridesUpdateStampsModifier(t *testing.T) {
	db := mustTestDB(t)
	s := NewOverridesStore(db)
	id := seedOverride(t, db, hierarchy.StoredOverride{
		Category: "Backup.ini", Section: "Schedule", Property: "RetentionDays",
		Level: hierarchy.LevelGlobal, Value: "30",
	})

	res, err := s.Update(context.Background(), id, "RetentionDays", "45", hierarchy.LevelGlobal, WriteOptions{Actor: "alice"})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if res.Blocked || res.ConfigID != id {
		t.Fatalf("unexpected result: %+v", res)
	}

	var value, updatedBy string
	if err := db.QueryRow(`SELECT value, updated_by FROM config_overrides WHERE config_id=?`, id).Scan(&value, &updatedBy); err != nil {
		t.Fatalf("readback: %v", err)
	}
	if value != "45" || updatedBy != "alice" {
		t.Fatalf("got value=%q updated_by=%q", value, updatedBy)
	}
}

func TestOverridesUpdateLevelMismatch(t *testing.T) {
	db := mustTestDB(t)
	s := NewOverridesStore(db)
	id := seedOverride(t, db, hierarchy.StoredOverride{
		Category: "Backup.ini", Section: "Schedule", Property: "RetentionDays",
		Level: hierarchy.LevelGlobal, Value: "30",
	})

	if _, err := s.Update(context.Background(), id, "", "45", hierarchy.LevelSite, WriteOptions{Actor: "alice"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("level mismatch: expected ErrNotFound, got %v", err)
	}
	if _, err := s.Update(context.Background(), id, "", "45", hierarchy.Level("PLANET"), WriteOptions{Actor: "alice"}); !errors.Is(err, hierarchy.ErrInvalidLevel) {
		t.Fatalf("bad level: expected ErrInvalidLevel, got %v", err)
	}
}

func TestOverridesReadOnlyBlocksWrite(t *testing.T) {
	db := mustTestDB(t)
	s := NewOverridesStore(db)
	id := seedOverride(t, db, hierarchy.StoredOverride{
		Category: "Backup.ini", Section: "Schedule", Property: "RetentionDays",
		Level: hierarchy.LevelGlobal, Value: "30",
	})

	res, err := s.Update(context.Background(), id, "", "99", hierarchy.LevelGlobal, WriteOptions{Actor: "alice", ReadOnly: true})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if !res.Blocked || res.Echo == nil {
		t.Fatalf("blocked write must return the statement echo: %+v", res)
	}
	if !strings.Contains(res.Echo.SQL, "UPDATE config_overrides") {
		t.Fatalf("echo sql: %q", res.Echo.SQL)
	}
	if !strings.Contains(res.Echo.Rendered, "'99'") {
		t.Fatalf("rendered echo should carry the value: %q", res.Echo.Rendered)
	}

	var value string
	if err := db.QueryRow(`SELECT value FROM config_overrides WHERE config_id=?`, id).Scan(&value); err != nil {
		t.Fatalf("readback: %v", err)
	}
	if value != "30" {
		t.Fatalf("read-only mode must not mutate, got %q", value)
	}
}

func TestOverridesCreateAndDelete(t *testing.T) {
	db := mustTestDB(t)
	s := NewOverridesStore(db)

	res, err := s.Create(context.Background(), &hierarchy.StoredOverride{
		CustomerID: "cust-1", Category: "Backup.ini", Section: "Schedule", Property: "WindowStart",
		Organization: "org-a", Site: "site-1", Agent: "agent-7",
		Level: hierarchy.LevelAgent, Value: "01:00",
	}, WriteOptions{Actor: "alice"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if res.ConfigID == 0 {
		t.Fatalf("create must return the new id")
	}

	got, err := s.Get(context.Background(), res.ConfigID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.IsCustom || got.Level != hierarchy.LevelAgent || got.Value != "01:00" {
		t.Fatalf("unexpected row: %+v", got)
	}

	if _, err := s.Delete(context.Background(), res.ConfigID, WriteOptions{Actor: "alice"}); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.Get(context.Background(), res.ConfigID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestOverridesDeleteGuards(t *testing.T) {
	db := mustTestDB(t)
	s := NewOverridesStore(db)
	systemRow := seedOverride(t, db, hierarchy.StoredOverride{
		CustomerID: "cust-1", Category: "Backup.ini", Section: "Schedule", Property: "RetentionDays",
		Organization: "org-a", Level: hierarchy.LevelOrg, Value: "60",
	})
	globalCustom := seedOverride(t, db, hierarchy.StoredOverride{
		Category: "Backup.ini", Section: "Schedule", Property: "WindowEnd",
		Level: hierarchy.LevelGlobal, Value: "06:00", IsCustom: true,
	})

	if _, err := s.Delete(context.Background(), systemRow, WriteOptions{Actor: "alice"}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("system row: expected ErrForbidden, got %v", err)
	}
	if _, err := s.Delete(context.Background(), globalCustom, WriteOptions{Actor: "alice"}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("global row: expected ErrForbidden, got %v", err)
	}
	if _, err := s.Delete(context.Background(), 99999, WriteOptions{Actor: "alice"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing row: expected ErrNotFound, got %v", err)
	}
}

func TestListOverridesScopeRestriction(t *testing.T) {
	db := mustTestDB(t)
	s := NewOverridesStore(db)
	seedOverride(t, db, hierarchy.StoredOverride{
		Category: "Backup.ini", Section: "Schedule", Property: "RetentionDays",
		Level: hierarchy.LevelGlobal, Value: "30",
	})
	seedOverride(t, db, hierarchy.StoredOverride{
		CustomerID: "cust-1", Category: "Backup.ini", Section: "Schedule", Property: "RetentionDays",
		Organization: "org-a", Site: "site-1", Level: hierarchy.LevelSite, Value: "60",
	})
	seedOverride(t, db, hierarchy.StoredOverride{
		CustomerID: "cust-2", Category: "Backup.ini", Section: "Schedule", Property: "RetentionDays",
		Level: hierarchy.LevelCustomer, Value: "90",
	})

	rows, err := s.ListOverrides(context.Background(), hierarchy.ScopeSelector{
		CustomerID: "cust-1", Category: "Backup.ini", Organization: "org-a",
	})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rows) != 1 || rows[0].Level != hierarchy.LevelGlobal {
		t.Fatalf("selector without site must not see site rows or other customers: %+v", rows)
	}

	rows, err = s.ListOverrides(context.Background(), hierarchy.ScopeSelector{
		CustomerID: "cust-1", Category: "Backup.ini", Organization: "org-a", Site: "site-1",
	})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("full selector should see global and site rows: %+v", rows)
	}
}

func TestResolveAgainstStorage(t *testing.T) {
	db := mustTestDB(t)
	s := NewOverridesStore(db)
	globalID := seedOverride(t, db, hierarchy.StoredOverride{
		Category: "Backup.ini", Section: "Schedule", Property: "RetentionDays",
		Level: hierarchy.LevelGlobal, Value: "30",
	})
	seedOverride(t, db, hierarchy.StoredOverride{
		CustomerID: "cust-1", Category: "Backup.ini", Section: "Schedule", Property: "RetentionDays",
		Organization: "org-a", Site: "site-1", Level: hierarchy.LevelSite, Value: "60",
	})

	rows, err := hierarchy.NewResolver(s).ResolveOverrides(context.Background(), hierarchy.ScopeSelector{
		CustomerID: "cust-1", Category: "Backup.ini", Organization: "org-a", Site: "site-1", Agent: "agent-7",
	})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected a single resolved property: %+v", rows)
	}
	r := rows[0]
	if r.SourceLevel != hierarchy.LevelSite || r.Value != "60" {
		t.Fatalf("site override must win: %+v", r)
	}
	if r.ParentValue == nil || *r.ParentValue != "30" || r.ParentLevel != hierarchy.LevelGlobal {
		t.Fatalf("global value must surface as parent: %+v", r)
	}
	if r.ParentConfigID == nil || *r.ParentConfigID != globalID {
		t.Fatalf("parent id mismatch: %+v", r)
	}
}

func TestListNodesAndCategories(t *testing.T) {
	db := mustTestDB(t)
	s := NewOverridesStore(db)
	seedOverride(t, db, hierarchy.StoredOverride{
		CustomerID: "cust-1", Category: "Backup.ini", Section: "Schedule", Property: "RetentionDays",
		Organization: "org-b", Level: hierarchy.LevelOrg, Value: "10",
	})
	seedOverride(t, db, hierarchy.StoredOverride{
		CustomerID: "cust-1", Category: "Agent.ini", Section: "Core", Property: "LogLevel",
		Organization: "org-a", Site: "site-1", Level: hierarchy.LevelSite, Value: "debug",
	})
	seedOverride(t, db, hierarchy.StoredOverride{
		Category: "Service.ini", Section: "Core", Property: "Port",
		Level: hierarchy.LevelGlobal, Value: "8443",
	})
	seedOverride(t, db, hierarchy.StoredOverride{
		CustomerID: "cust-2", Category: "Other.ini", Section: "Core", Property: "X",
		Level: hierarchy.LevelCustomer, Value: "1",
	})

	orgs, err := s.ListNodes(context.Background(), "cust-1", hierarchy.LevelOrg, "", "")
	if err != nil {
		t.Fatalf("list orgs: %v", err)
	}
	if len(orgs) != 2 || orgs[0] != "org-a" || orgs[1] != "org-b" {
		t.Fatalf("orgs: %v", orgs)
	}

	sites, err := s.ListNodes(context.Background(), "cust-1", hierarchy.LevelSite, "org-a", "")
	if err != nil {
		t.Fatalf("list sites: %v", err)
	}
	if len(sites) != 1 || sites[0] != "site-1" {
		t.Fatalf("sites: %v", sites)
	}

	cats, err := s.ListCategories(context.Background(), "cust-1")
	if err != nil {
		t.Fatalf("list categories: %v", err)
	}
	want := []string{"Agent.ini", "Backup.ini", "Service.ini"}
	if len(cats) != len(want) {
		t.Fatalf("categories: %v", cats)
	}
	for i := range want {
		if cats[i] != want[i] {
			t.Fatalf("categories: %v", cats)
		}
	}
}
