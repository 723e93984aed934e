package option

import (
	"fmt"
	"strings"
	"testing"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

type row struct {
	ID     int64
	Status string
}

func dryRunDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{DryRun: true})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	return db
}

func TestApplyBuildsPredicates(t *testing.T) {
	db := dryRunDB(t)

	var rows []row
	stmt := Apply(db.Model(&row{}),
		ApplyOperator(Condition{Field: "status", Value: "sent"}),
		ApplyOperator(Condition{Field: "id", Operator: LT, Value: 10}),
		ApplyOperator(Condition{Field: "id", Operator: IN, Value: []int64{1, 2}}),
		WithLimit(5),
	).Find(&rows).Statement

	sql := stmt.SQL.String()
	for _, want := range []string{"status = ?", "id < ?", "id IN (?,?)", "LIMIT"} {
		if !strings.Contains(sql, want) {
			t.Fatalf("expected %q in %q", want, sql)
		}
	}
}

func TestApplySkipsEmptyField(t *testing.T) {
	db := dryRunDB(t)

	var rows []row
	stmt := Apply(db.Model(&row{}),
		ApplyOperator(Condition{Field: "  ", Value: "x"}),
		WithLimit(0),
		nil,
	).Find(&rows).Statement

	sql := stmt.SQL.String()
	if strings.Contains(sql, "WHERE") || strings.Contains(sql, "LIMIT") {
		t.Fatalf("unexpected clauses in %q", sql)
	}
}
