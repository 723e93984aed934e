package logger

import "testing"

func TestOperationFromSQL(t *testing.T) {
	cases := map[string]string{
		"SELECT * FROM invoices":                         "SELECT",
		"  insert into invoices (id) values (1)":         "INSERT",
		"WITH paid AS (SELECT 1) UPDATE invoices SET x=1": "SELECT",
		"(DELETE FROM users)":                            "DELETE",
		"":                                               "UNKNOWN",
		"VACUUM":                                         "UNKNOWN",
	}
	for sql, want := range cases {
		if got := operationFromSQL(sql); got != want {
			t.Fatalf("operationFromSQL(%q) = %s, want %s", sql, got, want)
		}
	}
}
