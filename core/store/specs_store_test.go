package store

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestFileSpecUpdateStampsReview(t *testing.T) {
	db := mustTestDB(t)
	s := NewSpecsStore(db)
	res, err := db.Exec(`INSERT INTO file_spec (f_name, file_desc, sort_order) VALUES ('Backup.ini', 'backup agent config', 10)`)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	id, _ := res.LastInsertId()

	wr, err := s.UpdateFileSpec(context.Background(), id, FileSpecUpdate{
		Description:           "backup agent configuration",
		SortOrder:             5,
		CustomSectionsAllowed: true,
	}, WriteOptions{Actor: "admin"})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if wr.Blocked {
		t.Fatalf("update should persist: %+v", wr)
	}

	specs, err := s.ListFileSpecs(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(specs) != 1 {
		t.Fatalf("specs: %+v", specs)
	}
	f := specs[0]
	if f.Description != "backup agent configuration" || f.SortOrder != 5 || !f.CustomSectionsAllowed {
		t.Fatalf("fields not persisted: %+v", f)
	}
	if f.LastReviewed == nil || f.UpdatedBy != "admin" {
		t.Fatalf("review stamp missing: %+v", f)
	}
}

func TestFileSpecUpdateReadOnly(t *testing.T) {
	db := mustTestDB(t)
	s := NewSpecsStore(db)
	res, err := db.Exec(`INSERT INTO file_spec (f_name, file_desc) VALUES ('Backup.ini', 'original')`)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	id, _ := res.LastInsertId()

	wr, err := s.UpdateFileSpec(context.Background(), id, FileSpecUpdate{Description: "changed"}, WriteOptions{Actor: "admin", ReadOnly: true})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if !wr.Blocked || wr.Echo == nil {
		t.Fatalf("read-only must block with echo: %+v", wr)
	}

	var desc string
	if err := db.QueryRow(`SELECT file_desc FROM file_spec WHERE file_spec_id=?`, id).Scan(&desc); err != nil {
		t.Fatalf("readback: %v", err)
	}
	if desc != "original" {
		t.Fatalf("blocked write mutated storage: %q", desc)
	}
}

func TestSectionSpecUpdate(t *testing.T) {
	db := mustTestDB(t)
	s := NewSpecsStore(db)
	res, err := db.Exec(`INSERT INTO file_spec (f_name, file_desc) VALUES ('Backup.ini', 'backup')`)
	if err != nil {
		t.Fatalf("seed file spec: %v", err)
	}
	fileID, _ := res.LastInsertId()
	res, err = db.Exec(`INSERT INTO section_spec (file_spec_id, section_name) VALUES (?, 'Schedule')`, fileID)
	if err != nil {
		t.Fatalf("seed section spec: %v", err)
	}
	sectionID, _ := res.LastInsertId()

	if _, err := s.UpdateSectionSpec(context.Background(), sectionID, SectionSpecUpdate{SectionName: "  "}, WriteOptions{Actor: "admin"}); err == nil {
		t.Fatalf("blank section_name must be rejected")
	}

	if _, err := s.UpdateSectionSpec(context.Background(), sectionID, SectionSpecUpdate{
		SectionName: "Schedule", SectionDesc: "backup windows", IsOptional: true,
	}, WriteOptions{Actor: "admin"}); err != nil {
		t.Fatalf("update: %v", err)
	}

	sections, err := s.ListSectionSpecs(context.Background(), fileID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(sections) != 1 {
		t.Fatalf("sections: %+v", sections)
	}
	sp := sections[0]
	if sp.SectionDesc != "backup windows" || !sp.IsOptional || sp.FileDesc != "backup" {
		t.Fatalf("unexpected section: %+v", sp)
	}

	if _, err := s.UpdateSectionSpec(context.Background(), 99999, SectionSpecUpdate{SectionName: "X"}, WriteOptions{Actor: "admin"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing section: expected ErrNotFound, got %v", err)
	}
}

func TestCreateSectionSpec(t *testing.T) {
	db := mustTestDB(t)
	s := NewSpecsStore(db)
	res, err := db.Exec(`INSERT INTO file_spec (f_name, custom_sections_allowed) VALUES ('Backup.ini', 1)`)
	if err != nil {
		t.Fatalf("seed open spec: %v", err)
	}
	openID, _ := res.LastInsertId()
	res, err = db.Exec(`INSERT INTO file_spec (f_name, custom_sections_allowed) VALUES ('Agent.ini', 0)`)
	if err != nil {
		t.Fatalf("seed closed spec: %v", err)
	}
	closedID, _ := res.LastInsertId()

	wr, err := s.CreateSectionSpec(context.Background(), SectionSpecCreate{
		FileSpecID: openID, SectionName: "CustomJobs", SectionDesc: "per-customer jobs",
	}, WriteOptions{Actor: "alice"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	sections, err := s.ListSectionSpecs(context.Background(), openID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(sections) != 1 || sections[0].SectionSpecID != wr.ConfigID {
		t.Fatalf("sections: %+v", sections)
	}
	sp := sections[0]
	if sp.SectionName != "CustomJobs" || sp.IsGlobalDefault || !sp.IsOptional || sp.UpdatedBy != "alice" {
		t.Fatalf("unexpected section: %+v", sp)
	}

	if _, err := s.CreateSectionSpec(context.Background(), SectionSpecCreate{
		FileSpecID: closedID, SectionName: "CustomJobs",
	}, WriteOptions{Actor: "alice"}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("closed spec: expected ErrForbidden, got %v", err)
	}
	if _, err := s.CreateSectionSpec(context.Background(), SectionSpecCreate{
		FileSpecID: 99999, SectionName: "CustomJobs",
	}, WriteOptions{Actor: "alice"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing spec: expected ErrNotFound, got %v", err)
	}
	if _, err := s.CreateSectionSpec(context.Background(), SectionSpecCreate{
		FileSpecID: openID, SectionName: "  ",
	}, WriteOptions{Actor: "alice"}); err == nil {
		t.Fatalf("blank section name must be rejected")
	}
}

func TestCreateSectionSpecReadOnly(t *testing.T) {
	db := mustTestDB(t)
	s := NewSpecsStore(db)
	res, err := db.Exec(`INSERT INTO file_spec (f_name, custom_sections_allowed) VALUES ('Backup.ini', 1)`)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	id, _ := res.LastInsertId()

	wr, err := s.CreateSectionSpec(context.Background(), SectionSpecCreate{
		FileSpecID: id, SectionName: "CustomJobs",
	}, WriteOptions{Actor: "alice", ReadOnly: true})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !wr.Blocked || wr.Echo == nil || !strings.Contains(wr.Echo.SQL, "INSERT INTO section_spec") {
		t.Fatalf("read-only must block with echo: %+v", wr)
	}
	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM section_spec`).Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 0 {
		t.Fatalf("blocked create mutated storage: %d rows", n)
	}
}

func TestListDataTypeValues(t *testing.T) {
	db := mustTestDB(t)
	s := NewSpecsStore(db)
	res, err := db.Exec(`INSERT INTO data_type (type_name) VALUES ('LogLevel')`)
	if err != nil {
		t.Fatalf("seed type: %v", err)
	}
	typeID, _ := res.LastInsertId()
	seed := []struct {
		value string
		sort  int
	}{{"warn", 2}, {"debug", 1}, {"error", 3}}
	for _, v := range seed {
		if _, err := db.Exec(`INSERT INTO data_type_value (data_type_id, value, sort_order) VALUES (?,?,?)`,
			typeID, v.value, v.sort); err != nil {
			t.Fatalf("seed value: %v", err)
		}
	}

	values, err := s.ListDataTypeValues(context.Background(), typeID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(values) != 3 || values[0].Value != "debug" || values[2].Value != "error" {
		t.Fatalf("values out of order: %+v", values)
	}

	values, err = s.ListDataTypeValues(context.Background(), 99999)
	if err != nil {
		t.Fatalf("list unknown type: %v", err)
	}
	if len(values) != 0 {
		t.Fatalf("unknown type should list nothing: %+v", values)
	}
}
